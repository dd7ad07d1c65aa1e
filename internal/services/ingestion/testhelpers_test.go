package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/catalog"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockJobStore implements JobStore with overridable functions.
type mockJobStore struct {
	CreateFn         func(ctx context.Context, fileName string, content []byte) (*Job, error)
	GetFn            func(ctx context.Context, id int64) (*Job, error)
	ContentFn        func(ctx context.Context, id int64) ([]byte, error)
	MarkProcessingFn func(ctx context.Context, id int64, at time.Time) error
	SetTotalFn       func(ctx context.Context, id int64, total int) error
	AdvanceFn        func(ctx context.Context, id int64, outcome BatchOutcome) error
	MarkCompletedFn  func(ctx context.Context, id int64, at time.Time) error
	MarkFailedFn     func(ctx context.Context, id int64, message string, at time.Time) error
}

func (m *mockJobStore) Create(ctx context.Context, fileName string, content []byte) (*Job, error) {
	return m.CreateFn(ctx, fileName, content)
}

func (m *mockJobStore) Get(ctx context.Context, id int64) (*Job, error) {
	return m.GetFn(ctx, id)
}

func (m *mockJobStore) Content(ctx context.Context, id int64) ([]byte, error) {
	return m.ContentFn(ctx, id)
}

func (m *mockJobStore) MarkProcessing(ctx context.Context, id int64, at time.Time) error {
	return m.MarkProcessingFn(ctx, id, at)
}

func (m *mockJobStore) SetTotal(ctx context.Context, id int64, total int) error {
	return m.SetTotalFn(ctx, id, total)
}

func (m *mockJobStore) Advance(ctx context.Context, id int64, outcome BatchOutcome) error {
	return m.AdvanceFn(ctx, id, outcome)
}

func (m *mockJobStore) MarkCompleted(ctx context.Context, id int64, at time.Time) error {
	return m.MarkCompletedFn(ctx, id, at)
}

func (m *mockJobStore) MarkFailed(ctx context.Context, id int64, message string, at time.Time) error {
	return m.MarkFailedFn(ctx, id, message, at)
}

// mockJobQueue implements JobQueue for testing.
type mockJobQueue struct {
	SubmitFn func(ctx context.Context, fileName string, content []byte) (*Job, error)
}

func (m *mockJobQueue) Submit(ctx context.Context, fileName string, content []byte) (*Job, error) {
	return m.SubmitFn(ctx, fileName, content)
}

// memJobQueue creates jobs in a memJobStore and records the ids it schedules.
type memJobQueue struct {
	jobs      *memJobStore
	scheduled []int64
}

func (q *memJobQueue) Submit(ctx context.Context, fileName string, content []byte) (*Job, error) {
	job, err := q.jobs.Create(ctx, fileName, content)
	if err != nil {
		return nil, err
	}
	q.scheduled = append(q.scheduled, job.ID)
	return job, nil
}

// memJobStore is an in-memory JobStore enforcing the same guarded
// transitions as the Postgres store. It records every persisted
// processed_rows value.
type memJobStore struct {
	mu        sync.Mutex
	nextID    int64
	jobs      map[int64]*Job
	content   map[int64][]byte
	snapshots map[int64][]int
	totalSet  map[int64]int // processed_rows at the time the total was recorded
}

func newMemJobStore() *memJobStore {
	return &memJobStore{
		jobs:      make(map[int64]*Job),
		content:   make(map[int64][]byte),
		snapshots: make(map[int64][]int),
		totalSet:  make(map[int64]int),
	}
}

func (s *memJobStore) Create(_ context.Context, fileName string, content []byte) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	job := &Job{ID: s.nextID, FileName: fileName, Status: StatusPending, CreatedAt: time.Now().UTC()}
	s.jobs[job.ID] = job
	s.content[job.ID] = content
	cp := *job
	return &cp, nil
}

func (s *memJobStore) Get(_ context.Context, id int64) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *memJobStore) Content(_ context.Context, id int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.content[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return c, nil
}

func (s *memJobStore) update(id int64, fn func(j *Job) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if !fn(job) {
		return ErrInvalidTransition
	}
	return nil
}

func (s *memJobStore) MarkProcessing(_ context.Context, id int64, at time.Time) error {
	return s.update(id, func(j *Job) bool {
		if j.Status != StatusPending {
			return false
		}
		j.Status = StatusProcessing
		j.StartedAt = &at
		return true
	})
}

func (s *memJobStore) SetTotal(_ context.Context, id int64, total int) error {
	return s.update(id, func(j *Job) bool {
		if j.Status != StatusProcessing || total < j.TotalRows || total < j.ProcessedRows {
			return false
		}
		j.TotalRows = total
		s.totalSet[id] = j.ProcessedRows
		return true
	})
}

func (s *memJobStore) Advance(_ context.Context, id int64, o BatchOutcome) error {
	return s.update(id, func(j *Job) bool {
		if j.Status != StatusProcessing || j.ProcessedRows+o.Rows > j.TotalRows {
			return false
		}
		j.ProcessedRows += o.Rows
		j.SkippedRows += o.Skipped
		j.ConflictRows += o.Conflicts
		s.snapshots[id] = append(s.snapshots[id], j.ProcessedRows)
		return true
	})
}

func (s *memJobStore) MarkCompleted(_ context.Context, id int64, at time.Time) error {
	return s.update(id, func(j *Job) bool {
		if j.Status != StatusProcessing {
			return false
		}
		j.Status = StatusCompleted
		j.CompletedAt = &at
		delete(s.content, id)
		return true
	})
}

func (s *memJobStore) MarkFailed(_ context.Context, id int64, message string, at time.Time) error {
	return s.update(id, func(j *Job) bool {
		if j.Status.Terminal() {
			return false
		}
		j.Status = StatusFailed
		j.ErrorMessage = message
		j.CompletedAt = &at
		delete(s.content, id)
		return true
	})
}

func (s *memJobStore) progressSnapshots(id int64) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.snapshots[id]...)
}

// memCatalog is an in-memory CatalogStore. Each InBatch works on a copy that
// replaces the live map only when fn succeeds.
type memCatalog struct {
	mu      sync.Mutex
	items   map[string]catalog.Item
	nextID  int64
	batches int

	// failOnBatch makes the n-th InBatch (1-based) fail after its writes.
	failOnBatch int
	// racedSKUs are inserted by a "concurrent writer" between lookup and insert.
	racedSKUs map[string]struct{}
}

func newMemCatalog() *memCatalog {
	return &memCatalog{items: make(map[string]catalog.Item)}
}

func (c *memCatalog) InBatch(ctx context.Context, fn func(tx CatalogTx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches++

	staged := make(map[string]catalog.Item, len(c.items))
	for k, v := range c.items {
		staged[k] = v
	}
	tx := &memCatalogTx{c: c, items: staged}

	if err := fn(tx); err != nil {
		return err
	}
	if c.failOnBatch == c.batches {
		return fmt.Errorf("connection reset during batch %d", c.batches)
	}
	c.items = staged
	return nil
}

func (c *memCatalog) get(sku string) (catalog.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[sku]
	return it, ok
}

func (c *memCatalog) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *memCatalog) skus() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.items))
	for k := range c.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type memCatalogTx struct {
	c     *memCatalog
	items map[string]catalog.Item
}

func (tx *memCatalogTx) ExistingSKUs(_ context.Context, skus []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, s := range skus {
		if _, ok := tx.items[s]; ok {
			out[s] = struct{}{}
		}
	}
	return out, nil
}

func (tx *memCatalogTx) InsertItems(_ context.Context, records []catalog.Record, at time.Time) (int64, error) {
	for sku := range tx.c.racedSKUs {
		if _, ok := tx.items[sku]; !ok {
			tx.c.nextID++
			tx.items[sku] = catalog.Item{ID: tx.c.nextID, SKU: sku, Name: "raced", IsActive: true, CreatedAt: at, UpdatedAt: at}
		}
	}

	var n int64
	for _, r := range records {
		if _, ok := tx.items[r.SKU]; ok {
			continue
		}
		tx.c.nextID++
		tx.items[r.SKU] = catalog.Item{
			ID: tx.c.nextID, SKU: r.SKU, Name: r.Name, Description: r.Description, Price: r.Price,
			IsActive: true, CreatedAt: at, UpdatedAt: at,
		}
		n++
	}
	return n, nil
}

func (tx *memCatalogTx) UpdateItems(_ context.Context, updates []catalog.ItemUpdate) (int64, error) {
	var n int64
	for _, u := range updates {
		it, ok := tx.items[u.SKU]
		if !ok {
			continue
		}
		it.Name, it.Description, it.Price, it.UpdatedAt = u.Name, u.Description, u.Price, u.UpdatedAt
		tx.items[u.SKU] = it
		n++
	}
	return n, nil
}

// uploadEvent is one recorded UploadCompleted call.
type uploadEvent struct {
	JobID     int64
	TotalRows int
}

// recordingEmitter captures upload.completed emissions.
type recordingEmitter struct {
	mu      sync.Mutex
	uploads []uploadEvent
}

func (e *recordingEmitter) UploadCompleted(_ context.Context, jobID int64, totalRows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.uploads = append(e.uploads, uploadEvent{JobID: jobID, TotalRows: totalRows})
}

func (e *recordingEmitter) ProductCreated(context.Context, events.ProductRef) {}
func (e *recordingEmitter) ProductUpdated(context.Context, events.ProductRef) {}
func (e *recordingEmitter) ProductDeleted(context.Context, events.ProductRef) {}
