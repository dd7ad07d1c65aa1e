package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/catalog"
)

var (
	// ErrJobNotFound is returned when an ingestion job does not exist.
	ErrJobNotFound = errors.New("ingestion job not found")

	// ErrInvalidTransition is returned when a job update would move it out of
	// a terminal state or break its counters.
	ErrInvalidTransition = errors.New("invalid job transition")

	// ErrInvalidInput is returned for uploads rejected before a job is created.
	ErrInvalidInput = errors.New("invalid input")
)

// Status is the lifecycle state of an ingestion job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one asynchronous run of the pipeline over one uploaded file.
type Job struct {
	ID            int64
	FileName      string
	TotalRows     int
	ProcessedRows int
	SkippedRows   int
	ConflictRows  int
	Status        Status
	ErrorMessage  string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

// Percent returns floor(processed/total*100), or 0 while the total is unknown.
func (j *Job) Percent() int {
	if j.TotalRows <= 0 {
		return 0
	}
	return j.ProcessedRows * 100 / j.TotalRows
}

// BatchOutcome is the progress credited for one applied batch.
type BatchOutcome struct {
	Rows      int // rows consumed, including skipped ones
	Skipped   int // rows dropped for an empty key
	Conflicts int // inserts ignored because the key already existed
}

// JobStore persists ingestion jobs. Every mutating method is a guarded
// transition: it returns ErrJobNotFound for an unknown id and
// ErrInvalidTransition when the job is not in a state that allows it.
type JobStore interface {
	Create(ctx context.Context, fileName string, content []byte) (*Job, error)
	Get(ctx context.Context, id int64) (*Job, error)
	// Content returns the uploaded bytes kept until the job reaches a terminal state.
	Content(ctx context.Context, id int64) ([]byte, error)
	MarkProcessing(ctx context.Context, id int64, at time.Time) error
	SetTotal(ctx context.Context, id int64, total int) error
	Advance(ctx context.Context, id int64, outcome BatchOutcome) error
	MarkCompleted(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, message string, at time.Time) error
}

// CatalogStore runs fn inside one transaction. If fn returns an error nothing
// it wrote survives.
type CatalogStore interface {
	InBatch(ctx context.Context, fn func(tx CatalogTx) error) error
}

// CatalogTx is the catalog access available inside a batch transaction.
type CatalogTx interface {
	// ExistingSKUs returns the subset of skus already present.
	ExistingSKUs(ctx context.Context, skus []string) (map[string]struct{}, error)
	// InsertItems inserts records, ignoring key conflicts, and returns the number inserted.
	InsertItems(ctx context.Context, records []catalog.Record, at time.Time) (int64, error)
	// UpdateItems applies the updates in place and returns the number of rows changed.
	UpdateItems(ctx context.Context, updates []catalog.ItemUpdate) (int64, error)
}

// JobQueue creates a pending job and schedules it for asynchronous
// processing in one step. When Submit fails no job exists.
type JobQueue interface {
	Submit(ctx context.Context, fileName string, content []byte) (*Job, error)
}
