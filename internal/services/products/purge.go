package products

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
)

// QueueMaintenance is the river queue purge jobs run on.
const QueueMaintenance = "maintenance"

// PurgeArgs schedules removal of the whole catalog.
type PurgeArgs struct{}

func (PurgeArgs) Kind() string { return "catalog_purge" }

func (PurgeArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueMaintenance, MaxAttempts: 3}
}

// PurgeWorker deletes every product.
type PurgeWorker struct {
	river.WorkerDefaults[PurgeArgs]

	store  Truncator
	logger *slog.Logger
}

// NewPurgeWorker creates a PurgeWorker.
func NewPurgeWorker(store Truncator, logger *slog.Logger) *PurgeWorker {
	return &PurgeWorker{
		store:  store,
		logger: logger.With("component", "purge-worker"),
	}
}

// Work runs the purge.
func (w *PurgeWorker) Work(ctx context.Context, job *river.Job[PurgeArgs]) error {
	deleted, err := w.store.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge catalog: %w", err)
	}
	w.logger.Info("catalog purged", "river_job_id", job.ID, "deleted", deleted)
	return nil
}
