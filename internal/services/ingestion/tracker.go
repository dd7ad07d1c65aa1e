package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/clock"
	"github.com/cornjacket/catalog-ingest/internal/shared/metrics"
)

// Tracker owns a job's lifecycle. Every call persists immediately so pollers
// see progress while the job runs.
type Tracker struct {
	jobs   JobStore
	logger *slog.Logger
}

// NewTracker creates a Tracker over jobs.
func NewTracker(jobs JobStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		jobs:   jobs,
		logger: logger.With("component", "job-tracker"),
	}
}

// Start moves a pending job to processing.
func (t *Tracker) Start(ctx context.Context, jobID int64) error {
	if err := t.jobs.MarkProcessing(ctx, jobID, clock.Now()); err != nil {
		return fmt.Errorf("failed to start job %d: %w", jobID, err)
	}
	metrics.JobsTotal.WithLabelValues(string(StatusProcessing)).Inc()
	t.logger.Info("job started", "job_id", jobID)
	return nil
}

// SetTotal records the row count. It never lowers a previously set total.
func (t *Tracker) SetTotal(ctx context.Context, jobID int64, total int) error {
	if total < 0 {
		return fmt.Errorf("%w: negative total %d", ErrInvalidTransition, total)
	}
	if err := t.jobs.SetTotal(ctx, jobID, total); err != nil {
		return fmt.Errorf("failed to set total for job %d: %w", jobID, err)
	}
	return nil
}

// Advance credits one applied batch. Call only after the batch is committed.
func (t *Tracker) Advance(ctx context.Context, jobID int64, outcome BatchOutcome) error {
	if outcome.Rows < 0 || outcome.Skipped < 0 || outcome.Conflicts < 0 {
		return fmt.Errorf("%w: negative batch outcome %+v", ErrInvalidTransition, outcome)
	}
	if outcome.Rows == 0 {
		return nil
	}
	if err := t.jobs.Advance(ctx, jobID, outcome); err != nil {
		return fmt.Errorf("failed to advance job %d: %w", jobID, err)
	}
	return nil
}

// Finish moves a processing job to completed.
func (t *Tracker) Finish(ctx context.Context, jobID int64) error {
	if err := t.jobs.MarkCompleted(ctx, jobID, clock.Now()); err != nil {
		return fmt.Errorf("failed to complete job %d: %w", jobID, err)
	}
	metrics.JobsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	t.logger.Info("job completed", "job_id", jobID)
	return nil
}

// Fail moves a non-terminal job to failed with message.
func (t *Tracker) Fail(ctx context.Context, jobID int64, message string) error {
	if err := t.jobs.MarkFailed(ctx, jobID, message, clock.Now()); err != nil {
		return fmt.Errorf("failed to mark job %d failed: %w", jobID, err)
	}
	metrics.JobsTotal.WithLabelValues(string(StatusFailed)).Inc()
	t.logger.Warn("job failed", "job_id", jobID, "error_message", message)
	return nil
}

// Get returns the latest persisted snapshot of a job.
func (t *Tracker) Get(ctx context.Context, jobID int64) (*Job, error) {
	return t.jobs.Get(ctx, jobID)
}
