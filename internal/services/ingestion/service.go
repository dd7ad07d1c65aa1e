package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Service accepts uploads and answers progress queries.
type Service struct {
	jobs        JobStore
	queue       JobQueue
	maxFileSize int64
	logger      *slog.Logger
}

// NewService creates a new ingestion service. maxFileSize <= 0 disables the size check.
func NewService(jobs JobStore, queue JobQueue, maxFileSize int64, logger *slog.Logger) *Service {
	return &Service{
		jobs:        jobs,
		queue:       queue,
		maxFileSize: maxFileSize,
		logger:      logger.With("service", "ingestion"),
	}
}

// Progress is the polling view of a job.
type Progress struct {
	JobID         int64      `json:"job_id"`
	FileName      string     `json:"file_name"`
	Status        Status     `json:"status"`
	Progress      int        `json:"progress"`
	ProcessedRows int        `json:"processed_rows"`
	TotalRows     int        `json:"total_rows"`
	SkippedRows   int        `json:"skipped_rows"`
	ConflictRows  int        `json:"conflict_rows"`
	ErrorMessage  *string    `json:"error_message"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// ProgressOf builds the polling view of job.
func ProgressOf(job *Job) *Progress {
	p := &Progress{
		JobID:         job.ID,
		FileName:      job.FileName,
		Status:        job.Status,
		Progress:      job.Percent(),
		ProcessedRows: job.ProcessedRows,
		TotalRows:     job.TotalRows,
		SkippedRows:   job.SkippedRows,
		ConflictRows:  job.ConflictRows,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
	}
	if job.ErrorMessage != "" {
		msg := job.ErrorMessage
		p.ErrorMessage = &msg
	}
	return p
}

// Submit creates a pending job for content and schedules it. It returns as
// soon as the job is queued.
func (s *Service) Submit(ctx context.Context, fileName string, content []byte) (*Job, error) {
	if err := s.validate(fileName, content); err != nil {
		return nil, err
	}

	job, err := s.queue.Submit(ctx, fileName, content)
	if err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}

	s.logger.Info("upload accepted",
		"job_id", job.ID,
		"file_name", fileName,
		"bytes", len(content),
	)
	return job, nil
}

// Progress returns the latest snapshot of a job.
func (s *Service) Progress(ctx context.Context, jobID int64) (*Progress, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return ProgressOf(job), nil
}

func (s *Service) validate(fileName string, content []byte) error {
	name := strings.TrimSpace(fileName)
	if name == "" {
		return fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return fmt.Errorf("%w: file must be a CSV", ErrInvalidInput)
	}
	if s.maxFileSize > 0 && int64(len(content)) > s.maxFileSize {
		return fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, s.maxFileSize)
	}
	return nil
}
