package recon

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/receiptworks/reconciler/internal/logger"
	"github.com/receiptworks/reconciler/internal/store"
)

// Janitor sweeps terminal documents out of the store once they have sat in
// pushed or failed longer than the retention period. The source object in
// blob storage is left in place; only the pipeline's rows are removed.
type Janitor struct {
	store    store.Store
	retain   time.Duration
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

func NewJanitor(s store.Store, schedule string, retain time.Duration) *Janitor {
	return &Janitor{
		store:    s,
		retain:   retain,
		schedule: schedule,
		now:      time.Now,
	}
}

// Start registers the sweep on its cron schedule and begins running it.
func (j *Janitor) Start(ctx context.Context) error {
	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.schedule, func() {
		if err := j.Sweep(ctx); err != nil {
			log := logger.FromContext(ctx)
			log.Error().Err(err).Msg("janitor sweep failed")
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// Sweep removes every terminal document older than the retention period.
func (j *Janitor) Sweep(ctx context.Context) error {
	log := logger.FromContext(ctx)
	statuses, err := j.store.ListStatuses(ctx)
	if err != nil {
		return err
	}
	cutoff := j.now().Add(-j.retain)
	removed := 0
	for _, status := range statuses {
		if !status.State.Terminal() || status.UpdatedAt.After(cutoff) {
			continue
		}
		if err := j.store.DeleteDocument(ctx, status.DocumentID); err != nil {
			log.Error().Err(err).Str("document_id", status.DocumentID).
				Msg("failed to archive document")
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("janitor sweep complete")
	}
	return nil
}
