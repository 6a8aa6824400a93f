package recon

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptworks/reconciler/internal/apperrors"
	"github.com/receiptworks/reconciler/internal/checks"
	"github.com/receiptworks/reconciler/internal/classify"
	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/extract"
	"github.com/receiptworks/reconciler/internal/inference"
	"github.com/receiptworks/reconciler/internal/ledger"
	"github.com/receiptworks/reconciler/internal/match"
	"github.com/receiptworks/reconciler/internal/objectstore"
	"github.com/receiptworks/reconciler/internal/store"
	"github.com/receiptworks/reconciler/internal/vendors"
)

// stubInference answers each task with a canned response or error. onTask,
// when set, runs while the call is in flight so tests can interleave work
// with a stage.
type stubInference struct {
	responses map[string]string
	errs      map[string]error
	calls     map[string]int
	onTask    func(task string)
}

func (s *stubInference) Infer(ctx context.Context, req inference.Request) (*inference.Response, error) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[req.Task]++
	if s.onTask != nil {
		s.onTask(req.Task)
	}
	if err := s.errs[req.Task]; err != nil {
		return nil, err
	}
	return &inference.Response{Text: s.responses[req.Task]}, nil
}

type fixture struct {
	orch    *Orchestrator
	store   *store.Memory
	objects *objectstore.Memory
	ledger  *ledger.Fake
	infer   *stubInference
}

func newFixture(t *testing.T, responses map[string]string, candidates []*ledger.Candidate) *fixture {
	t.Helper()
	mem := store.NewMemory()
	objects := objectstore.NewMemory()
	fake := ledger.NewFake(candidates)
	infer := &stubInference{responses: responses}

	orch := New(Deps{
		Store:      mem,
		Objects:    objects,
		Classifier: classify.New(infer, 0.5),
		Extractor:  extract.New(infer, 0.6, 72*time.Hour),
		Locator:    checks.NewLocator(infer, objects, 3),
		Registry:   vendors.NewRegistry(mem, 0.85),
		Engine:     match.NewEngine(match.DefaultConfig()),
		Ledger:     fake,
		AccountID:  "acct-1",
	})
	return &fixture{orch: orch, store: mem, objects: objects, ledger: fake, infer: infer}
}

func (f *fixture) upload(t *testing.T, id, contentType string, content []byte) {
	t.Helper()
	ctx := context.Background()
	uri, err := f.objects.Put(ctx, "docs/"+id, content, contentType)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveDocument(ctx, &domain.Document{
		ID:          id,
		Filename:    id + ".jpg",
		ContentType: contentType,
		StorageURI:  uri,
		UploadedAt:  time.Now(),
	}))
	require.NoError(t, f.store.SaveStatus(ctx, &domain.DocumentStatus{
		DocumentID: id,
		State:      domain.StateUploaded,
		UpdatedAt:  time.Now(),
	}))
}

func receiptResponses() map[string]string {
	return map[string]string{
		"classify_document": `{"type": "receipt", "confidence": 0.95}`,
		"extract_receipt": `{"vendor": "Acme Corp", "date": "2025-03-01",
			"total_amount": 42.99, "description": "office supplies",
			"category": "Supplies", "confidence": 0.9}`,
	}
}

func acmeCandidate() *ledger.Candidate {
	return &ledger.Candidate{
		ID:          "c1",
		Date:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromFloat(42.99),
		Description: "ACME CORP #4521",
	}
}

func TestProcessReceiptEndToEnd(t *testing.T) {
	f := newFixture(t, receiptResponses(), []*ledger.Candidate{acmeCandidate()})
	ctx := context.Background()
	f.upload(t, "d1", "image/jpeg", []byte("fake-receipt"))

	require.NoError(t, f.orch.Process(ctx, "d1"))

	status, err := f.store.GetStatus(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePushed, status.State)
	assert.Equal(t, domain.TypeReceipt, status.DocumentType)

	result, err := f.store.GetPushResult(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, result.LedgerRecordIDs, 1)
	assert.Equal(t, 1, result.VendorsCreated)
	assert.Equal(t, 1, result.FeedEntriesMarked)

	matches, err := f.store.ListMatchResults(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, domain.DecisionMatched, matches[0].Decision)
	assert.Equal(t, "c1", matches[0].CandidateID)

	assert.Equal(t, 1, f.ledger.CallCounts["CreateExpense"])
	assert.Equal(t, 1, f.ledger.CallCounts["MarkMatched"])
}

func TestPushIsIdempotent(t *testing.T) {
	f := newFixture(t, receiptResponses(), []*ledger.Candidate{acmeCandidate()})
	ctx := context.Background()
	f.upload(t, "d1", "image/jpeg", []byte("fake-receipt"))

	require.NoError(t, f.orch.Process(ctx, "d1"))
	first, err := f.store.GetPushResult(ctx, "d1")
	require.NoError(t, err)

	again, err := f.orch.Push(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// No new external writes on the second push.
	assert.Equal(t, 1, f.ledger.CallCounts["CreateExpense"])
	assert.Equal(t, 1, f.ledger.CallCounts["AttachDocument"])
	assert.Equal(t, 1, f.ledger.CallCounts["MarkMatched"])
	assert.Equal(t, 1, f.ledger.CallCounts["CreateVendor"])
}

func TestReprocessingPushedDocumentIsNoOp(t *testing.T) {
	f := newFixture(t, receiptResponses(), []*ledger.Candidate{acmeCandidate()})
	ctx := context.Background()
	f.upload(t, "d1", "image/jpeg", []byte("fake-receipt"))

	require.NoError(t, f.orch.Process(ctx, "d1"))
	classifyCalls := f.infer.calls["classify_document"]

	require.NoError(t, f.orch.Process(ctx, "d1"))

	assert.Equal(t, classifyCalls, f.infer.calls["classify_document"], "terminal documents skip all stages")
	assert.Equal(t, 1, f.ledger.CallCounts["CreateExpense"])
}

func TestUnknownClassificationHaltsExtraction(t *testing.T) {
	f := newFixture(t, map[string]string{
		"classify_document": `{"type": "unknown", "confidence": 0.9}`,
	}, nil)
	ctx := context.Background()
	f.upload(t, "d1", "image/jpeg", []byte("mystery"))

	require.NoError(t, f.orch.Process(ctx, "d1"))

	status, err := f.store.GetStatus(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateClassified, status.State)
	assert.Equal(t, domain.TypeUnknown, status.DocumentType)
	assert.Zero(t, f.infer.calls["extract_receipt"])
}

func TestInvalidClassificationFailsDocument(t *testing.T) {
	f := newFixture(t, map[string]string{
		"classify_document": `{"type": "novel", "confidence": 0.9}`,
	}, nil)
	ctx := context.Background()
	f.upload(t, "d1", "image/jpeg", []byte("junk"))

	err := f.orch.Process(ctx, "d1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidClassification)

	status, getErr := f.store.GetStatus(ctx, "d1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.StateFailed, status.State)
	assert.Equal(t, domain.StateClassified, status.FailedStage)
	assert.NotEmpty(t, status.FailureReason)
}

func TestExtractionRetryExhaustionFailsDocument(t *testing.T) {
	f := newFixture(t, map[string]string{
		"classify_document": `{"type": "receipt", "confidence": 0.95}`,
	}, nil)
	f.infer.errs = map[string]error{
		"extract_receipt": fmt.Errorf("%w: model timed out", apperrors.ErrInferenceTransient),
	}
	ctx := context.Background()
	f.upload(t, "d1", "image/jpeg", []byte("fake-receipt"))

	err := f.orch.Process(ctx, "d1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInferenceTransient)

	status, getErr := f.store.GetStatus(ctx, "d1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.StateFailed, status.State)
	assert.Equal(t, domain.StateExtracted, status.FailedStage)
}

func TestAmbiguousTransactionNotPushed(t *testing.T) {
	// Two identical feed entries for one extracted transaction: the match is
	// ambiguous, so push records nothing in the ledger for it.
	duplicate := func(id string) *ledger.Candidate {
		return &ledger.Candidate{
			ID:          id,
			Date:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromFloat(42.99),
			Description: "ACME CORP #4521",
		}
	}
	f := newFixture(t, receiptResponses(), []*ledger.Candidate{duplicate("c1"), duplicate("c2")})
	ctx := context.Background()
	f.upload(t, "d1", "image/jpeg", []byte("fake-receipt"))

	require.NoError(t, f.orch.Process(ctx, "d1"))

	matches, err := f.store.ListMatchResults(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, domain.DecisionAmbiguous, matches[0].Decision)

	status, err := f.store.GetStatus(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePushed, status.State)

	result, err := f.store.GetPushResult(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, result.LedgerRecordIDs)
	assert.Zero(t, f.ledger.CallCounts["CreateExpense"])
	assert.Zero(t, f.ledger.CallCounts["MarkMatched"])
}

func TestCancelledDocumentIsNotProcessed(t *testing.T) {
	f := newFixture(t, receiptResponses(), nil)
	ctx := context.Background()
	f.upload(t, "d1", "image/jpeg", []byte("fake-receipt"))

	require.NoError(t, f.orch.Cancel(ctx, "d1"))

	err := f.orch.Process(ctx, "d1")
	assert.ErrorIs(t, err, apperrors.ErrCancelled)
	assert.Zero(t, f.infer.calls["classify_document"])
}

func TestCancelDuringStageDiscardsStageOutput(t *testing.T) {
	f := newFixture(t, receiptResponses(), nil)
	ctx := context.Background()
	f.upload(t, "d1", "image/jpeg", []byte("fake-receipt"))

	// Cancellation lands while extraction is in flight. The stage finishes,
	// but nothing it produced may be persisted and the state must not
	// advance past the last committed stage.
	f.infer.onTask = func(task string) {
		if task == "extract_receipt" {
			require.NoError(t, f.orch.Cancel(ctx, "d1"))
		}
	}

	err := f.orch.Process(ctx, "d1")
	assert.ErrorIs(t, err, apperrors.ErrCancelled)

	status, getErr := f.store.GetStatus(ctx, "d1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.StateClassified, status.State)
	assert.True(t, status.Cancelled)

	txns, listErr := f.store.ListTransactions(ctx, "d1")
	require.NoError(t, listErr)
	assert.Empty(t, txns, "cancelled documents keep no extraction rows")
}

func TestProcessResumesFromPersistedState(t *testing.T) {
	f := newFixture(t, map[string]string{}, []*ledger.Candidate{acmeCandidate()})
	ctx := context.Background()
	f.upload(t, "d1", "image/jpeg", []byte("fake-receipt"))

	// Simulate a worker that died after matching: classification and
	// extraction are already persisted and no model should be re-invoked.
	require.NoError(t, f.store.SaveTransactions(ctx, "d1", []*domain.ExtractedTransaction{{
		ID:         "t1",
		DocumentID: "d1",
		Date:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.NewFromFloat(42.99),
		Direction:  domain.Debit,
		Vendor:     "Acme Corp",
		Confidence: 0.9,
	}}))
	require.NoError(t, f.store.SaveMatchResults(ctx, "d1", []*domain.MatchResult{{
		TransactionID: "t1",
		CandidateID:   "c1",
		Score:         97,
		Decision:      domain.DecisionMatched,
	}}))
	require.NoError(t, f.store.SaveStatus(ctx, &domain.DocumentStatus{
		DocumentID:   "d1",
		State:        domain.StateMatched,
		DocumentType: domain.TypeReceipt,
		UpdatedAt:    time.Now(),
	}))

	require.NoError(t, f.orch.Process(ctx, "d1"))

	assert.Zero(t, f.infer.calls["classify_document"])
	assert.Zero(t, f.infer.calls["extract_receipt"])
	status, err := f.store.GetStatus(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePushed, status.State)
	assert.Equal(t, 1, f.ledger.CallCounts["MarkMatched"])
}

func TestJanitorSweepsOldTerminalDocuments(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	save := func(id string, state domain.DocumentState, age time.Duration) {
		require.NoError(t, mem.SaveDocument(ctx, &domain.Document{ID: id}))
		require.NoError(t, mem.SaveStatus(ctx, &domain.DocumentStatus{
			DocumentID: id,
			State:      state,
			UpdatedAt:  now.Add(-age),
		}))
	}
	save("old-pushed", domain.StatePushed, 100*24*time.Hour)
	save("old-failed", domain.StateFailed, 100*24*time.Hour)
	save("fresh-pushed", domain.StatePushed, 10*24*time.Hour)
	save("old-inflight", domain.StateExtracted, 100*24*time.Hour)

	j := NewJanitor(mem, "0 3 * * *", 90*24*time.Hour)
	j.now = func() time.Time { return now }
	require.NoError(t, j.Sweep(ctx))

	_, err := mem.GetDocument(ctx, "old-pushed")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = mem.GetDocument(ctx, "old-failed")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = mem.GetDocument(ctx, "fresh-pushed")
	assert.NoError(t, err)
	_, err = mem.GetDocument(ctx, "old-inflight")
	assert.NoError(t, err)
}
