package objectstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store for tests and local runs.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Fetch(ctx context.Context, uri string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[uri]
	if !ok {
		return nil, fmt.Errorf("object %q not found", uri)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	uri := "mem://" + objectName
	stored := make([]byte, len(data))
	copy(stored, data)
	m.mu.Lock()
	m.objects[uri] = stored
	m.mu.Unlock()
	return uri, nil
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
