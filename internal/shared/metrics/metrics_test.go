package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(RowsTotal.WithLabelValues("inserted"))
	RowsTotal.WithLabelValues("inserted").Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(RowsTotal.WithLabelValues("inserted")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	JobsTotal.WithLabelValues("completed").Inc()
	WebhookDeliveries.WithLabelValues("upload.completed", "success").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "catalog_ingest_jobs_total")
	assert.Contains(t, string(body), `catalog_webhook_deliveries_total{event_type="upload.completed",outcome="success"}`)
}
