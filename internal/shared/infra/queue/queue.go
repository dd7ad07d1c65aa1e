// Package queue runs the durable task queue on Postgres using river.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/cornjacket/catalog-ingest/internal/services/ingestion"
	"github.com/cornjacket/catalog-ingest/internal/services/ingestion/worker"
	"github.com/cornjacket/catalog-ingest/internal/services/products"
	"github.com/cornjacket/catalog-ingest/internal/services/webhooks"
)

// Migrate brings the river schema up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), &rivermigrate.Config{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create queue migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("failed to migrate queue schema: %w", err)
	}

	logger.Info("queue schema migrated", "versions_applied", len(res.Versions))
	return nil
}

// Submitter inserts jobs without working them. It implements
// webhooks.Enqueuer and products.Purger.
type Submitter struct {
	client *river.Client[pgx.Tx]
	logger *slog.Logger
}

// NewSubmitter creates an insert-only river client over pool.
func NewSubmitter(pool *pgxpool.Pool, logger *slog.Logger) (*Submitter, error) {
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create queue client: %w", err)
	}
	return &Submitter{
		client: client,
		logger: logger.With("component", "queue-submitter"),
	}, nil
}

// enqueueIngestTx schedules processing of an ingestion job inside tx.
func (s *Submitter) enqueueIngestTx(ctx context.Context, tx pgx.Tx, jobID int64) error {
	res, err := s.client.InsertTx(ctx, tx, worker.IngestArgs{JobID: jobID}, nil)
	if err != nil {
		return fmt.Errorf("failed to enqueue ingest job %d: %w", jobID, err)
	}
	s.logger.Debug("ingest enqueued", "job_id", jobID, "river_job_id", res.Job.ID)
	return nil
}

// EnqueueDispatch schedules a webhook dispatch.
func (s *Submitter) EnqueueDispatch(ctx context.Context, args webhooks.DispatchArgs) error {
	res, err := s.client.Insert(ctx, args, nil)
	if err != nil {
		return fmt.Errorf("failed to enqueue dispatch: %w", err)
	}
	s.logger.Debug("dispatch enqueued", "event_type", args.EventType, "river_job_id", res.Job.ID)
	return nil
}

// EnqueuePurge schedules a catalog purge and returns the task id.
func (s *Submitter) EnqueuePurge(ctx context.Context) (int64, error) {
	res, err := s.client.Insert(ctx, products.PurgeArgs{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue purge: %w", err)
	}
	return res.Job.ID, nil
}

// JobCreator writes a pending ingestion job inside a caller-owned transaction.
type JobCreator interface {
	CreateTx(ctx context.Context, tx pgx.Tx, fileName string, content []byte) (*ingestion.Job, error)
}

// IngestQueue implements ingestion.JobQueue. The job row, its upload and the
// river job commit together.
type IngestQueue struct {
	pool      *pgxpool.Pool
	jobs      JobCreator
	submitter *Submitter
}

// NewIngestQueue creates an IngestQueue.
func NewIngestQueue(pool *pgxpool.Pool, jobs JobCreator, submitter *Submitter) *IngestQueue {
	return &IngestQueue{pool: pool, jobs: jobs, submitter: submitter}
}

// Submit creates the job and schedules it in one transaction.
func (q *IngestQueue) Submit(ctx context.Context, fileName string, content []byte) (*ingestion.Job, error) {
	var job *ingestion.Job
	err := pgx.BeginFunc(ctx, q.pool, func(tx pgx.Tx) error {
		var err error
		job, err = q.jobs.CreateTx(ctx, tx, fileName, content)
		if err != nil {
			return err
		}
		return q.submitter.enqueueIngestTx(ctx, tx, job.ID)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

var (
	_ ingestion.JobQueue = (*IngestQueue)(nil)
	_ webhooks.Enqueuer  = (*Submitter)(nil)
	_ products.Purger    = (*Submitter)(nil)
)
