// Package store defines the durable persistence boundary. Everything is
// keyed by document ID; implementations live in subpackages plus an
// in-memory version for tests and local runs.
package store

import (
	"context"

	"github.com/receiptworks/reconciler/internal/domain"
)

// DocumentStore persists uploaded documents. Documents are immutable once
// saved; Delete exists only for archival.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	// FindDocumentByChecksum reports an already-ingested copy of the same
	// bytes, or apperrors.ErrNotFound.
	FindDocumentByChecksum(ctx context.Context, checksum string) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// TransactionStore persists extraction output. Saving for a document
// replaces that document's prior rows: a re-extraction supersedes, never
// appends.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, documentID string, txns []*domain.ExtractedTransaction) error
	ListTransactions(ctx context.Context, documentID string) ([]*domain.ExtractedTransaction, error)
	SaveStatement(ctx context.Context, stmt *domain.BankStatementExtraction) error
	GetStatement(ctx context.Context, documentID string) (*domain.BankStatementExtraction, error)
}

// CheckImageStore persists located check crops and their links.
type CheckImageStore interface {
	SaveCheckImages(ctx context.Context, documentID string, checks []*domain.CheckImage) error
	ListCheckImages(ctx context.Context, documentID string) ([]*domain.CheckImage, error)
}

// VendorStore persists the vendor registry.
type VendorStore interface {
	ListVendors(ctx context.Context) ([]*domain.VendorRecord, error)
	SaveVendor(ctx context.Context, v *domain.VendorRecord) error
}

// MatchStore persists the outcome of matching passes.
type MatchStore interface {
	SaveMatchResults(ctx context.Context, documentID string, results []*domain.MatchResult) error
	ListMatchResults(ctx context.Context, documentID string) ([]*domain.MatchResult, error)
}

// StatusStore persists the per-document state machine and push outcomes.
type StatusStore interface {
	SaveStatus(ctx context.Context, status *domain.DocumentStatus) error
	GetStatus(ctx context.Context, documentID string) (*domain.DocumentStatus, error)
	ListStatuses(ctx context.Context) ([]*domain.DocumentStatus, error)
	SavePushResult(ctx context.Context, result *domain.PushResult) error
	GetPushResult(ctx context.Context, documentID string) (*domain.PushResult, error)
}

// Store is the full persistence surface the pipeline needs.
type Store interface {
	DocumentStore
	TransactionStore
	CheckImageStore
	VendorStore
	MatchStore
	StatusStore
}
