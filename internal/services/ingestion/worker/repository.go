package worker

import (
	"context"
	"time"
)

// JobSource loads the uploaded bytes of a queued job. MarkFailed is used when
// the content cannot be loaded, so the job never stays pending.
type JobSource interface {
	Content(ctx context.Context, id int64) ([]byte, error)
	MarkFailed(ctx context.Context, id int64, message string, at time.Time) error
}

// JobRunner processes one job to a terminal state.
// This interface is satisfied by ingestion.Orchestrator.
type JobRunner interface {
	Run(ctx context.Context, jobID int64, content []byte) error
}
