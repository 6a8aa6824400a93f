// Package app wires the production dependency graph shared by the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/receiptworks/reconciler/internal/checks"
	"github.com/receiptworks/reconciler/internal/classify"
	"github.com/receiptworks/reconciler/internal/config"
	"github.com/receiptworks/reconciler/internal/extract"
	"github.com/receiptworks/reconciler/internal/inference"
	"github.com/receiptworks/reconciler/internal/ledger"
	"github.com/receiptworks/reconciler/internal/match"
	"github.com/receiptworks/reconciler/internal/objectstore"
	"github.com/receiptworks/reconciler/internal/recon"
	"github.com/receiptworks/reconciler/internal/store"
	bqstore "github.com/receiptworks/reconciler/internal/store/bigquery"
	"github.com/receiptworks/reconciler/internal/vendors"
)

// App bundles the wired components and their cleanup.
type App struct {
	Config       *config.Config
	Store        store.Store
	Objects      objectstore.Store
	Orchestrator *recon.Orchestrator
	Janitor      *recon.Janitor

	closers []func() error
}

// New builds the production graph: Gemini inference, GCS objects, BigQuery
// persistence. The ledger client is the in-process fake until a deployment
// supplies a real accounting backend; every write already carries the
// idempotency token the real one will need.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	gemini, err := inference.NewGemini(ctx, inference.Options{
		Model:       cfg.ModelName,
		Timeout:     cfg.InferenceTimeout,
		MaxRetries:  cfg.InferenceRetries,
		BaseBackoff: cfg.InferenceBackoff,
		MaxInflight: cfg.MaxInflightInfer,
	})
	if err != nil {
		return nil, fmt.Errorf("inference client: %w", err)
	}

	objects, err := objectstore.NewGCS(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	a.closers = append(a.closers, objects.Close)
	a.Objects = objects

	st, err := bqstore.New(ctx, cfg.ProjectID, cfg.Dataset)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	a.closers = append(a.closers, st.Close)
	a.Store = st

	a.Orchestrator = recon.New(recon.Deps{
		Store:      st,
		Objects:    objects,
		Classifier: classify.New(gemini, cfg.ClassifyConfidenceFloor),
		Extractor:  extract.New(gemini, cfg.RecordConfidenceFloor, cfg.FutureDateTolerance),
		Locator:    checks.NewLocator(gemini, objects, cfg.CheckDateWindowDays),
		Registry:   vendors.NewRegistry(st, cfg.VendorSimilarityThreshold),
		Engine:     match.NewEngine(match.DefaultConfig()),
		Ledger:     ledger.NewFake(nil),
		AccountID:  cfg.LedgerAccountID,
	})
	a.Janitor = recon.NewJanitor(st, cfg.JanitorSchedule, cfg.ArchiveAfter)
	return a, nil
}

// Close releases every client the app opened.
func (a *App) Close() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
