package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/cornjacket/catalog-ingest/internal/services/ingestion"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/clock"
)

// QueueIngest is the river queue ingestion jobs run on.
const QueueIngest = "ingest"

// IngestArgs schedules one ingestion job. The file itself stays in Postgres
// next to the job row; only the id travels through the queue.
type IngestArgs struct {
	JobID int64 `json:"job_id"`
}

func (IngestArgs) Kind() string { return "catalog_ingest" }

// InsertOpts pins ingestion to its queue with a single attempt: a failed job
// is terminal and is never retried by the queue.
func (IngestArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueIngest, MaxAttempts: 1}
}

// IngestWorker runs queued ingestion jobs.
type IngestWorker struct {
	river.WorkerDefaults[IngestArgs]

	jobs    JobSource
	runner  JobRunner
	timeout time.Duration
	logger  *slog.Logger
}

// NewIngestWorker creates an IngestWorker. timeout <= 0 leaves the run unbounded.
func NewIngestWorker(jobs JobSource, runner JobRunner, timeout time.Duration, logger *slog.Logger) *IngestWorker {
	return &IngestWorker{
		jobs:    jobs,
		runner:  runner,
		timeout: timeout,
		logger:  logger.With("component", "ingest-worker"),
	}
}

// Timeout overrides river's one-minute default; large files run far longer.
func (w *IngestWorker) Timeout(*river.Job[IngestArgs]) time.Duration {
	if w.timeout <= 0 {
		return -1
	}
	return w.timeout
}

// Work loads the job's file and runs it to completion.
func (w *IngestWorker) Work(ctx context.Context, job *river.Job[IngestArgs]) error {
	jobID := job.Args.JobID
	logger := w.logger.With("job_id", jobID, "river_job_id", job.ID)

	content, err := w.jobs.Content(ctx, jobID)
	if err != nil {
		if errors.Is(err, ingestion.ErrJobNotFound) {
			logger.Warn("job content gone, job already finished or removed")
			return river.JobCancel(err)
		}
		logger.Error("failed to load job content", "error", err)
		msg := fmt.Sprintf("failed to load upload: %v", err)
		if markErr := w.jobs.MarkFailed(context.WithoutCancel(ctx), jobID, msg, clock.Now()); markErr != nil {
			logger.Error("failed to mark job failed", "error", markErr)
		}
		return river.JobCancel(err)
	}

	logger.Info("processing upload", "bytes", len(content))

	if err := w.runner.Run(ctx, jobID, content); err != nil {
		logger.Warn("ingestion job failed", "error", err)
		return river.JobCancel(err)
	}

	logger.Info("ingestion job finished")
	return nil
}
