package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

func newTestRouter(store *memWebhookStore, queue Enqueuer) http.Handler {
	r := chi.NewRouter()
	NewHandler(NewService(store, queue, testLogger()), testLogger()).RegisterRoutes(r)
	return r
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, bytes.NewBufferString(body)))
	return w
}

func TestHandleCreateAndGet(t *testing.T) {
	router := newTestRouter(newMemWebhookStore(), &mockEnqueuer{})

	w := serve(router, http.MethodPost, "/api/v1/webhooks", `{"url":"https://example.com/hook","event_type":"product.created"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created Subscriber
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, events.ProductCreated, created.EventType)

	w = serve(router, http.MethodGet, "/api/v1/webhooks/1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodGet, "/api/v1/webhooks", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []Subscriber
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestHandleCreate_BadRequests(t *testing.T) {
	router := newTestRouter(newMemWebhookStore(), &mockEnqueuer{})

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/api/v1/webhooks", `{nope`).Code)
	assert.Equal(t, http.StatusBadRequest,
		serve(router, http.MethodPost, "/api/v1/webhooks", `{"url":"https://example.com","event_type":"order.placed"}`).Code)
}

func TestHandleList_Empty(t *testing.T) {
	router := newTestRouter(newMemWebhookStore(), &mockEnqueuer{})

	w := serve(router, http.MethodGet, "/api/v1/webhooks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHandleUpdateAndDelete(t *testing.T) {
	store := newMemWebhookStore()
	store.add("https://example.com", events.ProductCreated, true)
	router := newTestRouter(store, &mockEnqueuer{})

	w := serve(router, http.MethodPut, "/api/v1/webhooks/1", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	var updated Subscriber
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.False(t, updated.IsActive)

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, "/api/v1/webhooks/1", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodDelete, "/api/v1/webhooks/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/api/v1/webhooks/x", "").Code)
}

func TestHandleTest(t *testing.T) {
	store := newMemWebhookStore()
	store.add("https://example.com", events.UploadCompleted, true)
	enqueued := 0
	router := newTestRouter(store, &mockEnqueuer{
		EnqueueDispatchFn: func(context.Context, DispatchArgs) error {
			enqueued++
			return nil
		},
	})

	w := serve(router, http.MethodPost, "/api/v1/webhooks/1/test", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"test_sent"}`, w.Body.String())
	assert.Equal(t, 1, enqueued)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/api/v1/webhooks/2/test", "").Code)
}

func TestHandleLogs(t *testing.T) {
	store := newMemWebhookStore()
	sub := store.add("https://example.com", events.UploadCompleted, true)
	code := 200
	require.NoError(t, store.log.Record(context.Background(), &DeliveryAttempt{WebhookID: sub.ID, EventType: events.UploadCompleted, ResponseCode: &code}))
	router := newTestRouter(store, &mockEnqueuer{})

	w := serve(router, http.MethodGet, "/api/v1/webhooks/1/logs?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var logs []DeliveryAttempt
	require.NoError(t, json.NewDecoder(w.Body).Decode(&logs))
	require.Len(t, logs, 1)
	assert.Equal(t, 200, *logs[0].ResponseCode)

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/api/v1/webhooks/1/logs?limit=abc", "").Code)
}
