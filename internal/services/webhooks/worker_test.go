package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

func dispatchJob(args DispatchArgs) *river.Job[DispatchArgs] {
	return &river.Job[DispatchArgs]{
		JobRow: &rivertype.JobRow{ID: 77, Attempt: 1, Kind: args.Kind()},
		Args:   args,
	}
}

func countingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestDispatchArgs_InsertOpts(t *testing.T) {
	opts := DispatchArgs{}.InsertOpts()
	assert.Equal(t, QueueWebhooks, opts.Queue)
	assert.Equal(t, 1, opts.MaxAttempts)
}

func TestDispatchWorker_FansOut(t *testing.T) {
	srv, hits := countingServer(t)
	store := newMemWebhookStore()
	store.add(srv.URL, events.UploadCompleted, true)
	store.add(srv.URL, events.UploadCompleted, true)

	d := NewDispatcher(store, store.log, nil, DispatcherConfig{}, testLogger())
	w := NewDispatchWorker(d, store, testLogger())

	err := w.Work(context.Background(), dispatchJob(DispatchArgs{
		EventType: events.UploadCompleted,
		Payload:   mustJSON(events.UploadSummary{JobID: 1, TotalRows: 3}),
	}))
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 2, store.log.len())
}

func TestDispatchWorker_TargetedIgnoresActiveFlag(t *testing.T) {
	srv, hits := countingServer(t)
	store := newMemWebhookStore()
	target := store.add(srv.URL, events.ProductCreated, false)
	store.add(srv.URL, events.ProductCreated, true)

	d := NewDispatcher(store, store.log, nil, DispatcherConfig{}, testLogger())
	w := NewDispatchWorker(d, store, testLogger())

	err := w.Work(context.Background(), dispatchJob(DispatchArgs{
		EventType: events.ProductCreated,
		Payload:   mustJSON(map[string]any{"test": true}),
		WebhookID: target.ID,
	}))
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	logged := store.log.byWebhook()
	_, ok := logged[target.ID]
	assert.True(t, ok)
}

func TestDispatchWorker_TargetGone(t *testing.T) {
	store := newMemWebhookStore()
	d := NewDispatcher(store, store.log, nil, DispatcherConfig{}, testLogger())
	w := NewDispatchWorker(d, store, testLogger())

	err := w.Work(context.Background(), dispatchJob(DispatchArgs{EventType: events.ProductCreated, WebhookID: 404}))
	assert.NoError(t, err)
	assert.Equal(t, 0, store.log.len())
}

func TestDispatchWorker_FailedDeliveryIsNotAJobError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	store := newMemWebhookStore()
	store.add(srv.URL, events.ProductDeleted, true)
	d := NewDispatcher(store, store.log, nil, DispatcherConfig{}, testLogger())

	err := NewDispatchWorker(d, store, testLogger()).Work(context.Background(),
		dispatchJob(DispatchArgs{EventType: events.ProductDeleted, Payload: mustJSON(map[string]any{"id": 1})}))
	assert.NoError(t, err)
	assert.Equal(t, 1, store.log.len())
}

func TestQueueSink_Publish(t *testing.T) {
	var got DispatchArgs
	sink := NewQueueSink(&mockEnqueuer{
		EnqueueDispatchFn: func(ctx context.Context, args DispatchArgs) error {
			got = args
			return nil
		},
	})

	env, err := events.NewEnvelope(events.ProductCreated, events.ProductRef{ID: 3, SKU: "A1", Name: "Widget"})
	require.NoError(t, err)
	require.NoError(t, sink.Publish(context.Background(), env))

	assert.Equal(t, events.ProductCreated, got.EventType)
	assert.Zero(t, got.WebhookID)
	assert.JSONEq(t, `{"id":3,"sku":"A1","name":"Widget"}`, string(got.Payload))
}

func TestQueueSink_PublishError(t *testing.T) {
	sink := NewQueueSink(&mockEnqueuer{
		EnqueueDispatchFn: func(context.Context, DispatchArgs) error { return errors.New("queue down") },
	})
	env, err := events.NewEnvelope(events.ProductDeleted, events.ProductRef{ID: 3})
	require.NoError(t, err)

	err = sink.Publish(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product.deleted")
}
