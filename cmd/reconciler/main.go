// Command reconciler is the worker service: it scans for documents that have
// not reached a terminal state, feeds them through the queue to pipeline
// workers, and runs the archival janitor on its cron schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/receiptworks/reconciler/internal/app"
	"github.com/receiptworks/reconciler/internal/config"
	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/jobs"
	"github.com/receiptworks/reconciler/internal/jobs/inmemory"
	"github.com/receiptworks/reconciler/internal/logger"
)

// scanInterval is how often the service looks for documents needing work.
const scanInterval = 30 * time.Second

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wire dependencies")
	}
	defer a.Close()

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(cfg.QueueBufferLen, cfg.WorkerCount, jobStore)

	handler := func(ctx context.Context, job jobs.Job) error {
		processJob, ok := job.(*jobs.ProcessDocumentJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		log.Info().
			Str("job_id", processJob.JobID).
			Str("document_id", processJob.DocumentID).
			Msg("processing document")
		return a.Orchestrator.Process(ctx, processJob.DocumentID)
	}

	if err := queue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("start job consumer")
	}
	if err := a.Janitor.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start janitor")
	}

	go scanLoop(ctx, a, queue, jobStore, log)

	log.Info().Int("workers", cfg.WorkerCount).Msg("reconciler service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	a.Janitor.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown incomplete")
	}
	log.Info().Msg("reconciler service exited")
}

// scanLoop enqueues every non-terminal, non-cancelled document that has no
// job pending or running. Processing is idempotent, so occasionally enqueuing
// a document twice is harmless.
func scanLoop(ctx context.Context, a *app.App, queue *inmemory.Queue, jobStore jobs.JobStore, log zerolog.Logger) {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		if err := enqueuePending(ctx, a, queue, jobStore); err != nil {
			log.Error().Err(err).Msg("scan for pending documents failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func enqueuePending(ctx context.Context, a *app.App, queue *inmemory.Queue, jobStore jobs.JobStore) error {
	statuses, err := a.Store.ListStatuses(ctx)
	if err != nil {
		return err
	}
	for _, status := range statuses {
		if status.State.Terminal() || status.Cancelled {
			continue
		}
		// unknown is a valid halt: the document waits for a human, not a worker.
		if status.DocumentType == domain.TypeUnknown && status.State.AtLeast(domain.StateClassified) {
			continue
		}
		active, err := jobStore.ListJobs(ctx, jobs.JobFilter{DocumentID: status.DocumentID})
		if err != nil {
			return err
		}
		inflight := false
		for _, j := range active {
			if j.Status == jobs.JobStatusPending || j.Status == jobs.JobStatusRunning || j.Status == jobs.JobStatusRetrying {
				inflight = true
				break
			}
		}
		if inflight {
			continue
		}
		if err := queue.PublishProcessDocument(ctx, &jobs.ProcessDocumentJob{
			DocumentID: status.DocumentID,
		}); err != nil {
			return err
		}
	}
	return nil
}
