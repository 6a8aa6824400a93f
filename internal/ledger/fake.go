package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake is an in-memory ledger for tests and local runs. It enforces the same
// token-based deduplication the real ledger does, so idempotency bugs surface
// in tests instead of production.
type Fake struct {
	mu         sync.Mutex
	candidates []*Candidate
	vendors    map[string]string // token -> vendor ID
	expenses   map[string]string // token -> record ID
	attached   map[string]bool   // token
	matched    map[string]string // token -> candidateID
	nextID     int

	// CallCounts tracks non-deduplicated invocations per method name.
	CallCounts map[string]int
}

func NewFake(candidates []*Candidate) *Fake {
	return &Fake{
		candidates: candidates,
		vendors:    make(map[string]string),
		expenses:   make(map[string]string),
		attached:   make(map[string]bool),
		matched:    make(map[string]string),
		CallCounts: make(map[string]int),
	}
}

func (f *Fake) UnmatchedCandidates(ctx context.Context, accountID string, from, to time.Time) ([]*Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CallCounts["UnmatchedCandidates"]++
	out := make([]*Candidate, 0, len(f.candidates))
	for _, c := range f.candidates {
		claimed := false
		for _, id := range f.matched {
			if id == c.ID {
				claimed = true
				break
			}
		}
		if claimed {
			continue
		}
		if (from.IsZero() || !c.Date.Before(from)) && (to.IsZero() || !c.Date.After(to)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *Fake) CreateVendor(ctx context.Context, token, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.vendors[token]; ok {
		return id, nil
	}
	f.CallCounts["CreateVendor"]++
	f.nextID++
	id := fmt.Sprintf("vend-%d", f.nextID)
	f.vendors[token] = id
	return id, nil
}

func (f *Fake) CreateExpense(ctx context.Context, token string, req ExpenseRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.expenses[token]; ok {
		return id, nil
	}
	f.CallCounts["CreateExpense"]++
	f.nextID++
	id := fmt.Sprintf("rec-%d", f.nextID)
	f.expenses[token] = id
	return id, nil
}

func (f *Fake) AttachDocument(ctx context.Context, token, recordID, documentURI string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attached[token] {
		return nil
	}
	f.CallCounts["AttachDocument"]++
	f.attached[token] = true
	return nil
}

func (f *Fake) MarkMatched(ctx context.Context, token, candidateID, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.matched[token]; ok {
		return nil
	}
	f.CallCounts["MarkMatched"]++
	f.matched[token] = candidateID
	return nil
}

// ExpenseCount reports how many distinct expense records exist.
func (f *Fake) ExpenseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.expenses)
}

// AddCandidate appends a feed entry (tests only).
func (f *Fake) AddCandidate(c *Candidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, c)
}
