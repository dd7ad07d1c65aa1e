package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockRegistry implements Registry for testing.
type mockRegistry struct {
	ActiveSubscribersFn func(ctx context.Context, eventType events.Type) ([]Subscriber, error)
}

func (m *mockRegistry) ActiveSubscribers(ctx context.Context, eventType events.Type) ([]Subscriber, error) {
	return m.ActiveSubscribersFn(ctx, eventType)
}

// mockEnqueuer implements Enqueuer for testing.
type mockEnqueuer struct {
	EnqueueDispatchFn func(ctx context.Context, args DispatchArgs) error
}

func (m *mockEnqueuer) EnqueueDispatch(ctx context.Context, args DispatchArgs) error {
	return m.EnqueueDispatchFn(ctx, args)
}

// memAttemptLog collects recorded attempts.
type memAttemptLog struct {
	mu       sync.Mutex
	attempts []DeliveryAttempt
	err      error
}

func (l *memAttemptLog) Record(_ context.Context, a *DeliveryAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	a.ID = int64(len(l.attempts) + 1)
	l.attempts = append(l.attempts, *a)
	return nil
}

func (l *memAttemptLog) byWebhook() map[int64]DeliveryAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[int64]DeliveryAttempt, len(l.attempts))
	for _, a := range l.attempts {
		out[a.WebhookID] = a
	}
	return out
}

func (l *memAttemptLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// memWebhookStore is an in-memory WebhookStore backed by a memAttemptLog.
type memWebhookStore struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]Subscriber
	log    *memAttemptLog
}

func newMemWebhookStore() *memWebhookStore {
	return &memWebhookStore{subs: make(map[int64]Subscriber), log: &memAttemptLog{}}
}

func (s *memWebhookStore) add(url string, eventType events.Type, active bool) Subscriber {
	sub := Subscriber{URL: url, EventType: eventType, IsActive: active}
	_ = s.Create(context.Background(), &sub)
	return sub
}

func (s *memWebhookStore) ActiveSubscribers(_ context.Context, eventType events.Type) ([]Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Subscriber
	for _, sub := range s.subs {
		if sub.IsActive && sub.EventType == eventType {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memWebhookStore) Get(_ context.Context, id int64) (*Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, ErrWebhookNotFound
	}
	return &sub, nil
}

func (s *memWebhookStore) Create(_ context.Context, sub *Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub.ID = s.nextID
	s.subs[sub.ID] = *sub
	return nil
}

func (s *memWebhookStore) List(_ context.Context) ([]Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memWebhookStore) Update(_ context.Context, sub *Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return ErrWebhookNotFound
	}
	s.subs[sub.ID] = *sub
	return nil
}

func (s *memWebhookStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[id]; !ok {
		return ErrWebhookNotFound
	}
	delete(s.subs, id)
	return nil
}

func (s *memWebhookStore) Attempts(_ context.Context, webhookID int64, limit int) ([]DeliveryAttempt, error) {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	var out []DeliveryAttempt
	for i := len(s.log.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		if s.log.attempts[i].WebhookID == webhookID {
			out = append(out, s.log.attempts[i])
		}
	}
	return out, nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
