// Package recon sequences the pipeline stages for each document and owns the
// per-document state machine. Every transition is idempotent: re-running a
// stage whose state is already recorded skips the work instead of repeating
// side effects.
package recon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/receiptworks/reconciler/internal/apperrors"
	"github.com/receiptworks/reconciler/internal/checks"
	"github.com/receiptworks/reconciler/internal/classify"
	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/extract"
	"github.com/receiptworks/reconciler/internal/ledger"
	"github.com/receiptworks/reconciler/internal/logger"
	"github.com/receiptworks/reconciler/internal/match"
	"github.com/receiptworks/reconciler/internal/objectstore"
	"github.com/receiptworks/reconciler/internal/store"
	"github.com/receiptworks/reconciler/internal/vendors"
)

// candidateWindowSlack widens the candidate date range past the extracted
// dates so feed entries that posted a few days late still surface.
const candidateWindowSlack = 7 * 24 * time.Hour

// Orchestrator drives documents through classification, extraction, check
// location, vendor resolution, matching and push.
type Orchestrator struct {
	store     store.Store
	objects   objectstore.Store
	classify  *classify.Classifier
	extract   *extract.Extractor
	locator   *checks.Locator
	registry  *vendors.Registry
	engine    *match.Engine
	ledger    ledger.Client
	accountID string

	now func() time.Time

	// Matching passes against the same ledger account must not interleave
	// candidate claims; passes for different accounts run in parallel.
	mu           sync.Mutex
	accountLocks map[string]*sync.Mutex
}

type Deps struct {
	Store      store.Store
	Objects    objectstore.Store
	Classifier *classify.Classifier
	Extractor  *extract.Extractor
	Locator    *checks.Locator
	Registry   *vendors.Registry
	Engine     *match.Engine
	Ledger     ledger.Client
	AccountID  string
}

func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		store:        deps.Store,
		objects:      deps.Objects,
		classify:     deps.Classifier,
		extract:      deps.Extractor,
		locator:      deps.Locator,
		registry:     deps.Registry,
		engine:       deps.Engine,
		ledger:       deps.Ledger,
		accountID:    deps.AccountID,
		now:          time.Now,
		accountLocks: make(map[string]*sync.Mutex),
	}
}

// Process advances the document through every remaining stage. It is safe to
// call repeatedly: completed stages are skipped, terminal documents return
// immediately.
func (o *Orchestrator) Process(ctx context.Context, documentID string) error {
	log := logger.WithDocument(logger.FromContext(ctx), documentID)
	ctx = logger.WithContext(ctx, log)

	status, err := o.loadStatus(ctx, documentID)
	if err != nil {
		return err
	}
	if status.State.Terminal() {
		log.Debug().Str("state", string(status.State)).Msg("document already terminal")
		return nil
	}
	if status.Cancelled {
		return apperrors.ErrCancelled
	}

	doc, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	content, err := o.objects.Fetch(ctx, doc.StorageURI)
	if err != nil {
		return fmt.Errorf("fetch document content: %w", err)
	}

	if !status.State.AtLeast(domain.StateClassified) {
		if err := o.runClassify(ctx, status, doc, content); err != nil {
			return err
		}
	}
	if status.DocumentType == domain.TypeUnknown {
		// Valid terminal classification: nothing downstream applies.
		log.Info().Msg("document classified unknown, halting extraction")
		return nil
	}

	if !status.State.AtLeast(domain.StateExtracted) {
		if err := o.runExtract(ctx, status, doc, content); err != nil {
			return err
		}
	}
	if !status.State.AtLeast(domain.StateCheckLocated) {
		if err := o.runCheckLocate(ctx, status, doc, content); err != nil {
			return err
		}
	}
	if !status.State.AtLeast(domain.StateVendorResolved) {
		if err := o.runVendorResolve(ctx, status); err != nil {
			return err
		}
	}
	if !status.State.AtLeast(domain.StateMatched) {
		if err := o.runMatch(ctx, status); err != nil {
			return err
		}
	}

	_, err = o.Push(ctx, documentID)
	return err
}

// Cancel flags the document; each stage boundary re-reads the flag and
// discards results instead of committing them.
func (o *Orchestrator) Cancel(ctx context.Context, documentID string) error {
	status, err := o.store.GetStatus(ctx, documentID)
	if err != nil {
		return err
	}
	if status.State.Terminal() {
		return fmt.Errorf("document %s is already %s", documentID, status.State)
	}
	status.Cancelled = true
	status.UpdatedAt = o.now()
	return o.store.SaveStatus(ctx, status)
}

func (o *Orchestrator) loadStatus(ctx context.Context, documentID string) (*domain.DocumentStatus, error) {
	status, err := o.store.GetStatus(ctx, documentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		status = &domain.DocumentStatus{
			DocumentID: documentID,
			State:      domain.StateUploaded,
			UpdatedAt:  o.now(),
		}
		if err := o.store.SaveStatus(ctx, status); err != nil {
			return nil, err
		}
		return status, nil
	}
	return status, err
}

// commit re-checks cancellation at the stage boundary, persists the stage's
// output, then records the transition. A document cancelled while the stage
// ran keeps nothing: persist never runs and the results are discarded.
func (o *Orchestrator) commit(ctx context.Context, status *domain.DocumentStatus, next domain.DocumentState, persist func() error) error {
	fresh, err := o.store.GetStatus(ctx, status.DocumentID)
	if err != nil {
		return err
	}
	if fresh.Cancelled {
		log := logger.FromContext(ctx)
		log.Info().Str("stage", string(next)).
			Msg("document cancelled mid-stage, discarding result")
		return apperrors.ErrCancelled
	}
	if persist != nil {
		if err := persist(); err != nil {
			return err
		}
	}
	status.State = next
	status.UpdatedAt = o.now()
	return o.store.SaveStatus(ctx, status)
}

// fail moves the document to the failed terminal state with a readable
// reason. The stage's partial output stays persisted for manual review.
func (o *Orchestrator) fail(ctx context.Context, status *domain.DocumentStatus, stage domain.DocumentState, cause error) error {
	log := logger.FromContext(ctx)
	log.Error().Err(cause).Str("stage", string(stage)).
		Msg("stage failed permanently")
	status.FailedStage = stage
	status.FailureReason = cause.Error()
	status.State = domain.StateFailed
	status.UpdatedAt = o.now()
	if err := o.store.SaveStatus(ctx, status); err != nil {
		return err
	}
	return cause
}

func (o *Orchestrator) runClassify(ctx context.Context, status *domain.DocumentStatus, doc *domain.Document, content []byte) error {
	// Transient exhaustion is absorbed by the classifier itself, which
	// degrades to unknown; anything surfacing here is permanent.
	docType, confidence, err := o.classify.Classify(ctx, content, doc.ContentType)
	if err != nil {
		return o.fail(ctx, status, domain.StateClassified, err)
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("type", string(docType)).Float64("confidence", confidence).
		Msg("document classified")
	status.DocumentType = docType
	return o.commit(ctx, status, domain.StateClassified, nil)
}

func (o *Orchestrator) runExtract(ctx context.Context, status *domain.DocumentStatus, doc *domain.Document, content []byte) error {
	// The inference client has already retried transient failures with
	// backoff up to the ceiling, so any error here fails the stage.
	result, err := o.extract.Extract(ctx, doc, content, status.DocumentType)
	if err != nil {
		return o.fail(ctx, status, domain.StateExtracted, err)
	}

	var txns []*domain.ExtractedTransaction
	if result.Statement != nil {
		txns = result.Statement.Transactions
	} else if result.Transaction != nil {
		txns = []*domain.ExtractedTransaction{result.Transaction}
	}
	return o.commit(ctx, status, domain.StateExtracted, func() error {
		if result.Statement != nil {
			if err := o.store.SaveStatement(ctx, result.Statement); err != nil {
				return err
			}
		}
		return o.store.SaveTransactions(ctx, doc.ID, txns)
	})
}

func (o *Orchestrator) runCheckLocate(ctx context.Context, status *domain.DocumentStatus, doc *domain.Document, content []byte) error {
	applicable := (status.DocumentType == domain.TypeBankStatement || status.DocumentType == domain.TypeCheck) &&
		doc.ContentType == "application/pdf"
	if !applicable {
		return o.commit(ctx, status, domain.StateCheckLocated, nil)
	}

	txns, err := o.store.ListTransactions(ctx, doc.ID)
	if err != nil {
		return err
	}
	located, err := o.locator.Locate(ctx, doc, content, txns)
	if err != nil {
		return o.fail(ctx, status, domain.StateCheckLocated, err)
	}
	return o.commit(ctx, status, domain.StateCheckLocated, func() error {
		return o.store.SaveCheckImages(ctx, doc.ID, located)
	})
}

func (o *Orchestrator) runVendorResolve(ctx context.Context, status *domain.DocumentStatus) error {
	txns, err := o.store.ListTransactions(ctx, status.DocumentID)
	if err != nil {
		return err
	}
	for _, txn := range txns {
		if txn.Vendor == "" {
			continue
		}
		if _, err := o.registry.Resolve(ctx, txn.Vendor); err != nil {
			return fmt.Errorf("resolve vendor %q: %w", txn.Vendor, err)
		}
	}
	return o.commit(ctx, status, domain.StateVendorResolved, nil)
}

func (o *Orchestrator) runMatch(ctx context.Context, status *domain.DocumentStatus) error {
	txns, err := o.store.ListTransactions(ctx, status.DocumentID)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		return o.commit(ctx, status, domain.StateMatched, nil)
	}

	lock := o.accountLock(o.accountID)
	lock.Lock()
	defer lock.Unlock()

	from, to := candidateWindow(txns)
	candidates, err := o.ledger.UnmatchedCandidates(ctx, o.accountID, from, to)
	if err != nil {
		return fmt.Errorf("list unmatched candidates: %w", err)
	}
	results := o.engine.Match(txns, candidates)

	matched := 0
	for _, r := range results {
		if r.Decision == domain.DecisionMatched {
			matched++
		}
	}
	log := logger.FromContext(ctx)
	log.Info().
		Int("transactions", len(txns)).Int("candidates", len(candidates)).Int("matched", matched).
		Msg("matching pass complete")
	return o.commit(ctx, status, domain.StateMatched, func() error {
		return o.store.SaveMatchResults(ctx, status.DocumentID, results)
	})
}

func (o *Orchestrator) accountLock(accountID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.accountLocks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		o.accountLocks[accountID] = lock
	}
	return lock
}

func candidateWindow(txns []*domain.ExtractedTransaction) (time.Time, time.Time) {
	from, to := txns[0].Date, txns[0].Date
	for _, t := range txns[1:] {
		if t.Date.Before(from) {
			from = t.Date
		}
		if t.Date.After(to) {
			to = t.Date
		}
	}
	return from.Add(-candidateWindowSlack), to.Add(candidateWindowSlack)
}
