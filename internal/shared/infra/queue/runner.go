package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/cornjacket/catalog-ingest/internal/services/ingestion/worker"
	"github.com/cornjacket/catalog-ingest/internal/services/products"
	"github.com/cornjacket/catalog-ingest/internal/services/webhooks"
)

// Config sizes the worker pools per queue.
type Config struct {
	IngestWorkers  int
	WebhookWorkers int
}

// Workers are the job handlers the runner executes.
type Workers struct {
	Ingest   river.Worker[worker.IngestArgs]
	Dispatch river.Worker[webhooks.DispatchArgs]
	Purge    river.Worker[products.PurgeArgs]
}

// Runner works the ingest, webhooks and maintenance queues.
type Runner struct {
	client *river.Client[pgx.Tx]
	logger *slog.Logger
}

// NewRunner creates a working river client with every worker registered.
func NewRunner(pool *pgxpool.Pool, cfg Config, w Workers, logger *slog.Logger) (*Runner, error) {
	if w.Ingest == nil || w.Dispatch == nil || w.Purge == nil {
		return nil, errors.New("all queue workers are required")
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, w.Ingest)
	river.AddWorker(workers, w.Dispatch)
	river.AddWorker(workers, w.Purge)

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			worker.QueueIngest:        {MaxWorkers: max(cfg.IngestWorkers, 1)},
			webhooks.QueueWebhooks:    {MaxWorkers: max(cfg.WebhookWorkers, 1)},
			products.QueueMaintenance: {MaxWorkers: 1},
		},
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create queue runner: %w", err)
	}

	return &Runner{
		client: client,
		logger: logger.With("component", "queue-runner"),
	}, nil
}

// Start begins fetching and working jobs. It returns once the client is running.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start queue runner: %w", err)
	}
	r.logger.Info("queue runner started")
	return nil
}

// Stop waits for running jobs to finish. If ctx expires first, running jobs
// are cancelled.
func (r *Runner) Stop(ctx context.Context) error {
	err := r.client.Stop(ctx)
	if err == nil {
		r.logger.Info("queue runner stopped")
		return nil
	}
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to stop queue runner: %w", err)
	}

	r.logger.Warn("graceful stop timed out, cancelling running jobs")
	if err := r.client.StopAndCancel(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to cancel queue runner: %w", err)
	}
	return nil
}
