// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog"

var (
	// JobsTotal counts ingestion jobs reaching a status (processing, completed, failed).
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_jobs_total",
			Help:      "Ingestion jobs by status transition",
		},
		[]string{"status"},
	)

	// RowsTotal counts ingested rows by outcome (inserted, updated, skipped, conflict).
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_total",
			Help:      "Ingested rows by outcome",
		},
		[]string{"outcome"},
	)

	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_jobs_active",
			Help:      "Ingestion jobs currently running in this process",
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_batch_duration_seconds",
			Help:      "Time to normalize and reconcile one batch",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~41s
		},
	)

	// WebhookDeliveries counts delivery attempts by event type and outcome (success, http_error, transport_error).
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery attempts",
		},
		[]string{"event_type", "outcome"},
	)

	WebhookLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_duration_seconds",
			Help:      "Latency of webhook deliveries that produced a response",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
		},
		[]string{"event_type"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
