package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/clock"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
	"github.com/cornjacket/catalog-ingest/internal/shared/metrics"
)

const (
	// DefaultTimeout bounds a single delivery attempt.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxParallel bounds concurrent deliveries for one event.
	DefaultMaxParallel = 8

	// response bodies are drained up to this size and discarded
	maxDrainBytes = 64 << 10
)

// DispatcherConfig holds delivery settings.
type DispatcherConfig struct {
	Timeout     time.Duration
	MaxParallel int
	UserAgent   string
}

// Dispatcher delivers events to subscribers: one attempt per subscriber, no
// retries, every attempt logged.
type Dispatcher struct {
	registry Registry
	attempts AttemptLog
	client   *http.Client
	config   DispatcherConfig
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil client uses a fresh http.Client;
// per-attempt deadlines come from config.Timeout.
func NewDispatcher(registry Registry, attempts AttemptLog, client *http.Client, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxParallel <= 0 {
		config.MaxParallel = DefaultMaxParallel
	}
	if config.UserAgent == "" {
		config.UserAgent = "catalogd-webhooks/1.0"
	}
	return &Dispatcher{
		registry: registry,
		attempts: attempts,
		client:   client,
		config:   config,
		logger:   logger.With("component", "webhook-dispatcher"),
	}
}

// Dispatch resolves the active subscribers for eventType and delivers
// payload to each. It returns once every attempt is finished and logged.
// Failures are reported only through the returned attempts and the log.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType events.Type, payload json.RawMessage) []DeliveryAttempt {
	subs, err := d.registry.ActiveSubscribers(ctx, eventType)
	if err != nil {
		d.logger.Error("failed to resolve subscribers", "event_type", eventType, "error", err)
		return nil
	}
	return d.DispatchTo(ctx, subs, eventType, payload)
}

// DispatchTo delivers payload to an explicit subscriber set.
func (d *Dispatcher) DispatchTo(ctx context.Context, subs []Subscriber, eventType events.Type, payload json.RawMessage) []DeliveryAttempt {
	if len(subs) == 0 {
		d.logger.Debug("no subscribers", "event_type", eventType)
		return nil
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	results := make([]DeliveryAttempt, len(subs))

	var g errgroup.Group
	g.SetLimit(d.config.MaxParallel)
	for i, sub := range subs {
		g.Go(func() error {
			results[i] = d.deliver(ctx, sub, eventType, payload)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// deliver performs one attempt and records it regardless of outcome.
func (d *Dispatcher) deliver(ctx context.Context, sub Subscriber, eventType events.Type, payload json.RawMessage) DeliveryAttempt {
	logger := d.logger.With("webhook_id", sub.ID, "event_type", eventType)

	attempt := DeliveryAttempt{
		WebhookID: sub.ID,
		EventType: eventType,
		Payload:   payload,
		CreatedAt: clock.Now(),
	}

	code, latency, err := d.post(ctx, sub.URL, payload)
	if err != nil {
		msg := err.Error()
		attempt.ErrorMessage = &msg
		metrics.WebhookDeliveries.WithLabelValues(string(eventType), "transport_error").Inc()
		logger.Warn("webhook delivery failed", "error", err)
	} else {
		ms := latency.Milliseconds()
		attempt.ResponseCode = &code
		attempt.ResponseTimeMS = &ms
		outcome := "success"
		if !attempt.Succeeded() {
			outcome = "http_error"
		}
		metrics.WebhookDeliveries.WithLabelValues(string(eventType), outcome).Inc()
		metrics.WebhookLatency.WithLabelValues(string(eventType)).Observe(latency.Seconds())
		logger.Info("webhook delivered", "status", code, "latency_ms", ms)
	}

	if err := d.attempts.Record(context.WithoutCancel(ctx), &attempt); err != nil {
		logger.Error("failed to record delivery attempt", "error", err)
	}

	return attempt
}

// post sends payload and returns the status code and the time until the
// response body was drained.
func (d *Dispatcher) post(ctx context.Context, url string, payload []byte) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.config.UserAgent)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return resp.StatusCode, time.Since(start), nil
}
