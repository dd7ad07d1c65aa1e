package products

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/catalog"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockPurger implements Purger for testing.
type mockPurger struct {
	EnqueuePurgeFn func(ctx context.Context) (int64, error)
}

func (m *mockPurger) EnqueuePurge(ctx context.Context) (int64, error) {
	return m.EnqueuePurgeFn(ctx)
}

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	items   map[int64]catalog.Item
	listErr error
	lists   []ListFilter
}

func newMemStore() *memStore {
	return &memStore{items: make(map[int64]catalog.Item)}
}

func (s *memStore) Create(_ context.Context, item *catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.SKU == item.SKU {
			return catalog.ErrDuplicateSKU
		}
	}
	s.nextID++
	item.ID = s.nextID
	s.items[item.ID] = *item
	return nil
}

func (s *memStore) Get(_ context.Context, id int64) (*catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &item, nil
}

func (s *memStore) Update(_ context.Context, item *catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return catalog.ErrNotFound
	}
	s.items[item.ID] = *item
	return nil
}

func (s *memStore) Delete(_ context.Context, id int64) (*catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	delete(s.items, id)
	return &item, nil
}

func (s *memStore) List(_ context.Context, f ListFilter) ([]catalog.Item, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists = append(s.lists, f)
	if s.listErr != nil {
		return nil, 0, s.listErr
	}

	search := strings.ToLower(f.Search)
	var matched []catalog.Item
	for _, item := range s.items {
		if f.IsActive != nil && item.IsActive != *f.IsActive {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.SKU), search) &&
			!strings.Contains(strings.ToLower(item.Name), search) &&
			!strings.Contains(strings.ToLower(item.Description), search) {
			continue
		}
		matched = append(matched, item)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (s *memStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.items))
	s.items = make(map[int64]catalog.Item)
	return n, nil
}

func (s *memStore) seed(n int, active bool) {
	for i := 0; i < n; i++ {
		item := catalog.Item{SKU: fmt.Sprintf("SKU-%d", s.nextID+1), Name: "item", IsActive: active}
		_ = s.Create(context.Background(), &item)
	}
}

type emitted struct {
	eventType events.Type
	ref       events.ProductRef
}

// recordingEmitter captures product events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) record(t events.Type, p events.ProductRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{eventType: t, ref: p})
}

func (e *recordingEmitter) ProductCreated(_ context.Context, p events.ProductRef) {
	e.record(events.ProductCreated, p)
}

func (e *recordingEmitter) ProductUpdated(_ context.Context, p events.ProductRef) {
	e.record(events.ProductUpdated, p)
}

func (e *recordingEmitter) ProductDeleted(_ context.Context, p events.ProductRef) {
	e.record(events.ProductDeleted, p)
}

func (e *recordingEmitter) UploadCompleted(context.Context, int64, int) {}
