package store

import (
	"context"
	"sync"

	"github.com/receiptworks/reconciler/internal/apperrors"
	"github.com/receiptworks/reconciler/internal/domain"
)

// Memory implements Store in process memory.
type Memory struct {
	mu          sync.RWMutex
	documents   map[string]*domain.Document
	txns        map[string][]*domain.ExtractedTransaction
	statements  map[string]*domain.BankStatementExtraction
	checks      map[string][]*domain.CheckImage
	vendors     map[string]*domain.VendorRecord
	vendorOrder []string
	matches     map[string][]*domain.MatchResult
	statuses    map[string]*domain.DocumentStatus
	pushes      map[string]*domain.PushResult
}

func NewMemory() *Memory {
	return &Memory{
		documents:  make(map[string]*domain.Document),
		txns:       make(map[string][]*domain.ExtractedTransaction),
		statements: make(map[string]*domain.BankStatementExtraction),
		checks:     make(map[string][]*domain.CheckImage),
		vendors:    make(map[string]*domain.VendorRecord),
		matches:    make(map[string][]*domain.MatchResult),
		statuses:   make(map[string]*domain.DocumentStatus),
		pushes:     make(map[string]*domain.PushResult),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) SaveDocument(ctx context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ID] = doc
	return nil
}

func (m *Memory) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return doc, nil
}

func (m *Memory) FindDocumentByChecksum(ctx context.Context, checksum string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, doc := range m.documents {
		if doc.Checksum == checksum {
			return doc, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *Memory) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
	delete(m.txns, id)
	delete(m.statements, id)
	delete(m.checks, id)
	delete(m.matches, id)
	delete(m.statuses, id)
	delete(m.pushes, id)
	return nil
}

func (m *Memory) SaveTransactions(ctx context.Context, documentID string, txns []*domain.ExtractedTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns[documentID] = txns
	return nil
}

func (m *Memory) ListTransactions(ctx context.Context, documentID string) ([]*domain.ExtractedTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.txns[documentID], nil
}

func (m *Memory) SaveStatement(ctx context.Context, stmt *domain.BankStatementExtraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements[stmt.DocumentID] = stmt
	return nil
}

func (m *Memory) GetStatement(ctx context.Context, documentID string) (*domain.BankStatementExtraction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stmt, ok := m.statements[documentID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return stmt, nil
}

func (m *Memory) SaveCheckImages(ctx context.Context, documentID string, checks []*domain.CheckImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[documentID] = checks
	return nil
}

func (m *Memory) ListCheckImages(ctx context.Context, documentID string) ([]*domain.CheckImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checks[documentID], nil
}

func (m *Memory) ListVendors(ctx context.Context) ([]*domain.VendorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.VendorRecord, 0, len(m.vendors))
	for _, id := range m.vendorOrder {
		out = append(out, copyVendor(m.vendors[id]))
	}
	return out, nil
}

func (m *Memory) SaveVendor(ctx context.Context, v *domain.VendorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.vendors[v.ID]; !exists {
		m.vendorOrder = append(m.vendorOrder, v.ID)
	}
	m.vendors[v.ID] = copyVendor(v)
	return nil
}

// copyVendor deep-copies a record so callers never share the stored
// Aliases slice.
func copyVendor(v *domain.VendorRecord) *domain.VendorRecord {
	cp := *v
	cp.Aliases = append([]string(nil), v.Aliases...)
	return &cp
}

func (m *Memory) SaveMatchResults(ctx context.Context, documentID string, results []*domain.MatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[documentID] = results
	return nil
}

func (m *Memory) ListMatchResults(ctx context.Context, documentID string) ([]*domain.MatchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.matches[documentID], nil
}

func (m *Memory) SaveStatus(ctx context.Context, status *domain.DocumentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *status
	m.statuses[status.DocumentID] = &cp
	return nil
}

func (m *Memory) GetStatus(ctx context.Context, documentID string) (*domain.DocumentStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[documentID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *status
	return &cp, nil
}

func (m *Memory) ListStatuses(ctx context.Context) ([]*domain.DocumentStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.DocumentStatus, 0, len(m.statuses))
	for _, status := range m.statuses {
		cp := *status
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) SavePushResult(ctx context.Context, result *domain.PushResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes[result.DocumentID] = result
	return nil
}

func (m *Memory) GetPushResult(ctx context.Context, documentID string) (*domain.PushResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.pushes[documentID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return result, nil
}
