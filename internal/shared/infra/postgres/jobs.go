package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cornjacket/catalog-ingest/internal/services/ingestion"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/clock"
)

const jobColumns = `id, file_name, total_rows, processed_rows, skipped_rows, conflict_rows,
	status, error_message, started_at, completed_at, created_at`

// JobRepo implements ingestion.JobStore using PostgreSQL. Every transition is a
// single guarded UPDATE, so concurrent writers cannot move a job backwards.
type JobRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewJobRepo creates a new JobRepo.
func NewJobRepo(pool *pgxpool.Pool, logger *slog.Logger) *JobRepo {
	return &JobRepo{
		pool:   pool,
		logger: logger.With("repository", "ingestion_jobs"),
	}
}

// Create inserts a pending job together with its uploaded content.
func (r *JobRepo) Create(ctx context.Context, fileName string, content []byte) (*ingestion.Job, error) {
	var job *ingestion.Job
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		job, err = r.CreateTx(ctx, tx, fileName, content)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// CreateTx inserts a pending job and its upload inside tx. The caller owns
// the commit.
func (r *JobRepo) CreateTx(ctx context.Context, tx pgx.Tx, fileName string, content []byte) (*ingestion.Job, error) {
	job := &ingestion.Job{FileName: fileName, Status: ingestion.StatusPending, CreatedAt: clock.Now()}

	err := tx.QueryRow(ctx,
		`INSERT INTO ingestion_jobs (file_name, status, created_at) VALUES ($1, $2, $3) RETURNING id`,
		fileName, string(ingestion.StatusPending), job.CreatedAt,
	).Scan(&job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO upload_files (job_id, content) VALUES ($1, $2)`, job.ID, content); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	r.logger.Debug("job created", "job_id", job.ID, "file_name", fileName, "bytes", len(content))
	return job, nil
}

// Get retrieves a job by id.
func (r *JobRepo) Get(ctx context.Context, id int64) (*ingestion.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = $1`, id)

	var (
		job          ingestion.Job
		status       string
		errorMessage *string
	)
	err := row.Scan(
		&job.ID,
		&job.FileName,
		&job.TotalRows,
		&job.ProcessedRows,
		&job.SkippedRows,
		&job.ConflictRows,
		&status,
		&errorMessage,
		&job.StartedAt,
		&job.CompletedAt,
		&job.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ingestion.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.Status = ingestion.Status(status)
	if errorMessage != nil {
		job.ErrorMessage = *errorMessage
	}
	return &job, nil
}

// Content returns the uploaded bytes. They are gone once the job is terminal,
// which reads as ErrJobNotFound.
func (r *JobRepo) Content(ctx context.Context, id int64) ([]byte, error) {
	var content []byte
	err := r.pool.QueryRow(ctx, `SELECT content FROM upload_files WHERE job_id = $1`, id).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ingestion.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load upload: %w", err)
	}
	return content, nil
}

// MarkProcessing moves a pending job to processing.
func (r *JobRepo) MarkProcessing(ctx context.Context, id int64, at time.Time) error {
	return r.transition(ctx, r.pool, id, "mark job processing", `
		UPDATE ingestion_jobs SET status = 'processing', started_at = $2
		WHERE id = $1 AND status = 'pending'`, id, at)
}

// SetTotal records the row count. It never shrinks below what is recorded.
func (r *JobRepo) SetTotal(ctx context.Context, id int64, total int) error {
	return r.transition(ctx, r.pool, id, "set job total", `
		UPDATE ingestion_jobs SET total_rows = $2
		WHERE id = $1 AND status = 'processing' AND $2 >= total_rows AND $2 >= processed_rows`, id, total)
}

// Advance credits one applied batch.
func (r *JobRepo) Advance(ctx context.Context, id int64, o ingestion.BatchOutcome) error {
	return r.transition(ctx, r.pool, id, "advance job", `
		UPDATE ingestion_jobs
		SET processed_rows = processed_rows + $2,
		    skipped_rows = skipped_rows + $3,
		    conflict_rows = conflict_rows + $4
		WHERE id = $1 AND status = 'processing' AND processed_rows + $2 <= total_rows`,
		id, o.Rows, o.Skipped, o.Conflicts)
}

// MarkCompleted finishes a processing job and drops its content.
func (r *JobRepo) MarkCompleted(ctx context.Context, id int64, at time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := r.transition(ctx, tx, id, "mark job completed", `
			UPDATE ingestion_jobs SET status = 'completed', completed_at = $2
			WHERE id = $1 AND status = 'processing'`, id, at)
		if err != nil {
			return err
		}
		return r.dropContent(ctx, tx, id)
	})
}

// MarkFailed fails a pending or processing job and drops its content.
func (r *JobRepo) MarkFailed(ctx context.Context, id int64, message string, at time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := r.transition(ctx, tx, id, "mark job failed", `
			UPDATE ingestion_jobs SET status = 'failed', error_message = $2, completed_at = $3
			WHERE id = $1 AND status IN ('pending', 'processing')`, id, message, at)
		if err != nil {
			return err
		}
		return r.dropContent(ctx, tx, id)
	})
}

type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// transition runs a guarded UPDATE. When nothing matched it tells an unknown
// job apart from one whose state forbids the change.
func (r *JobRepo) transition(ctx context.Context, db execQuerier, id int64, op, query string, args ...any) error {
	result, err := db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ingestion_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if !exists {
		return ingestion.ErrJobNotFound
	}
	return ingestion.ErrInvalidTransition
}

func (r *JobRepo) dropContent(ctx context.Context, tx pgx.Tx, id int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM upload_files WHERE job_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return nil
}

var _ ingestion.JobStore = (*JobRepo)(nil)
