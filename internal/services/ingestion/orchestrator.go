package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/catalog"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
	"github.com/cornjacket/catalog-ingest/internal/shared/metrics"
)

// DefaultBatchSize bounds rows per reconciliation transaction.
const DefaultBatchSize = 1000

// Orchestrator runs one job: it streams the file into fixed-size batches and
// applies them strictly in input order.
type Orchestrator struct {
	reconciler *Reconciler
	tracker    *Tracker
	emitter    events.Emitter
	batchSize  int
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator. A non-positive batchSize uses DefaultBatchSize.
func NewOrchestrator(reconciler *Reconciler, tracker *Tracker, emitter events.Emitter, batchSize int, logger *slog.Logger) *Orchestrator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Orchestrator{
		reconciler: reconciler,
		tracker:    tracker,
		emitter:    emitter,
		batchSize:  batchSize,
		logger:     logger.With("component", "orchestrator"),
	}
}

// Run processes content for jobID. Any failure after the job starts is
// recorded on the job and returned; the job is terminal either way.
func (o *Orchestrator) Run(ctx context.Context, jobID int64, content []byte) (err error) {
	logger := o.logger.With("job_id", jobID)

	if err := o.tracker.Start(ctx, jobID); err != nil {
		return err
	}

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during ingestion", "panic", r)
			err = o.fail(ctx, logger, jobID, fmt.Errorf("internal error: %v", r))
		}
	}()

	total, err := countRows(content)
	if err != nil {
		return o.fail(ctx, logger, jobID, err)
	}
	if err := o.tracker.SetTotal(ctx, jobID, total); err != nil {
		return o.fail(ctx, logger, jobID, err)
	}
	logger.Info("input parsed", "total_rows", total, "batch_size", o.batchSize)

	if err := o.process(ctx, logger, jobID, content); err != nil {
		return o.fail(ctx, logger, jobID, err)
	}

	if err := o.tracker.Finish(ctx, jobID); err != nil {
		return o.fail(ctx, logger, jobID, err)
	}

	o.emitter.UploadCompleted(ctx, jobID, total)
	return nil
}

func (o *Orchestrator) process(ctx context.Context, logger *slog.Logger, jobID int64, content []byte) error {
	rr, err := newRowReader(content)
	if err != nil {
		return err
	}

	batch := make([]row, 0, o.batchSize)
	batchNum := 0
	for {
		r, err := rr.next()
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if err == nil {
			batch = append(batch, r)
		}

		full := len(batch) == o.batchSize
		last := errors.Is(err, io.EOF)
		if (full || last) && len(batch) > 0 {
			batchNum++
			if err := o.applyBatch(ctx, logger.With("batch", batchNum), jobID, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
		if last {
			return nil
		}
	}
}

// applyBatch normalizes, reconciles and credits one batch.
func (o *Orchestrator) applyBatch(ctx context.Context, logger *slog.Logger, jobID int64, rows []row) error {
	start := time.Now()

	records := make([]catalog.Record, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		rec, skip, err := Normalize(r.fields, r.line)
		if err != nil {
			return err
		}
		if skip {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	res, err := o.reconciler.Reconcile(ctx, records)
	if err != nil {
		return fmt.Errorf("failed to apply batch: %w", err)
	}

	outcome := BatchOutcome{Rows: len(rows), Skipped: skipped, Conflicts: res.Conflicts}
	if err := o.tracker.Advance(ctx, jobID, outcome); err != nil {
		return err
	}

	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	metrics.RowsTotal.WithLabelValues("inserted").Add(float64(res.Inserted))
	metrics.RowsTotal.WithLabelValues("updated").Add(float64(res.Updated))
	metrics.RowsTotal.WithLabelValues("skipped").Add(float64(skipped))
	metrics.RowsTotal.WithLabelValues("conflict").Add(float64(res.Conflicts))

	logger.Debug("batch applied",
		"rows", len(rows),
		"inserted", res.Inserted,
		"updated", res.Updated,
		"skipped", skipped,
		"conflicts", res.Conflicts,
	)
	return nil
}

// fail records cause on the job. The write uses a context detached from
// cancellation so a shutdown still leaves the job terminal.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, jobID int64, cause error) error {
	if err := o.tracker.Fail(context.WithoutCancel(ctx), jobID, cause.Error()); err != nil {
		logger.Error("failed to record job failure", "cause", cause, "error", err)
	}
	return cause
}
