// Package ledger is the boundary to the external accounting system. The
// reconciler reads unmatched bank-feed candidates and performs idempotent
// writes; it never owns the ledger's data model.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Candidate is a read-only view of one unmatched bank-feed entry. Candidates
// are supplied by the ledger and never created or mutated here.
type Candidate struct {
	ID          string
	Date        time.Time
	Amount      decimal.Decimal // as reported by the feed; sign follows the ledger's convention
	Description string
	CheckNumber string
}

// ExpenseRequest describes one expense/bill record to create in the ledger.
type ExpenseRequest struct {
	VendorLedgerID string
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	Category       string
}

// Client is the external ledger. Every write takes a client-supplied request
// token; the ledger deduplicates on it, so retrying a write with the same
// token is safe.
type Client interface {
	// UnmatchedCandidates reads the account's bank-feed entries not yet
	// claimed by any match, within the date range.
	UnmatchedCandidates(ctx context.Context, accountID string, from, to time.Time) ([]*Candidate, error)

	// CreateVendor creates a vendor and returns its ledger identifier.
	CreateVendor(ctx context.Context, token, name string) (string, error)

	// CreateExpense creates an expense record and returns its identifier.
	CreateExpense(ctx context.Context, token string, req ExpenseRequest) (string, error)

	// AttachDocument links a stored source document to a ledger record.
	AttachDocument(ctx context.Context, token, recordID, documentURI string) error

	// MarkMatched marks a bank-feed candidate as matched to a record.
	MarkMatched(ctx context.Context, token, candidateID, recordID string) error
}

// writeTokenNamespace scopes request tokens to this system's push workflow.
var writeTokenNamespace = uuid.MustParse("7a8b1c2d-3e4f-4a5b-8c6d-9e0f1a2b3c4d")

// WriteToken derives a stable idempotency token from the identifiers of the
// work being pushed. The same document/transaction pair always yields the
// same token, so a retried push repeats the token instead of the side effect.
func WriteToken(parts ...string) string {
	name := ""
	for i, p := range parts {
		if i > 0 {
			name += "/"
		}
		name += p
	}
	return uuid.NewSHA1(writeTokenNamespace, []byte(name)).String()
}
