package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptworks/reconciler/internal/apperrors"
	"github.com/receiptworks/reconciler/internal/domain"
)

func TestMemoryDocumentRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	doc := &domain.Document{
		ID:         "d1",
		Filename:   "statement.pdf",
		Checksum:   "abc123",
		UploadedAt: time.Now(),
	}
	require.NoError(t, m.SaveDocument(ctx, doc))

	got, err := m.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	byChecksum, err := m.FindDocumentByChecksum(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "d1", byChecksum.ID)

	_, err = m.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryStatusCopiesOnReadAndWrite(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	status := &domain.DocumentStatus{DocumentID: "d1", State: domain.StateUploaded}
	require.NoError(t, m.SaveStatus(ctx, status))

	// Mutating the caller's struct after save must not leak into the store.
	status.State = domain.StateFailed

	got, err := m.GetStatus(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateUploaded, got.State)

	got.Cancelled = true
	again, err := m.GetStatus(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, again.Cancelled)
}

func TestMemoryDeleteDocumentRemovesDerivedRows(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveDocument(ctx, &domain.Document{ID: "d1"}))
	require.NoError(t, m.SaveTransactions(ctx, "d1", []*domain.ExtractedTransaction{{ID: "t1"}}))
	require.NoError(t, m.SaveStatus(ctx, &domain.DocumentStatus{DocumentID: "d1", State: domain.StatePushed}))
	require.NoError(t, m.SavePushResult(ctx, &domain.PushResult{DocumentID: "d1"}))

	require.NoError(t, m.DeleteDocument(ctx, "d1"))

	_, err := m.GetDocument(ctx, "d1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	txns, err := m.ListTransactions(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, txns)
	_, err = m.GetPushResult(ctx, "d1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryVendorOrderStable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveVendor(ctx, &domain.VendorRecord{ID: "v1", CanonicalName: "Acme"}))
	require.NoError(t, m.SaveVendor(ctx, &domain.VendorRecord{ID: "v2", CanonicalName: "Globex"}))
	require.NoError(t, m.SaveVendor(ctx, &domain.VendorRecord{ID: "v1", CanonicalName: "Acme Corp"}))

	vendors, err := m.ListVendors(ctx)
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	assert.Equal(t, "Acme Corp", vendors[0].CanonicalName)
	assert.Equal(t, "v2", vendors[1].ID)
}
