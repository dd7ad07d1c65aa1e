package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

// QueueWebhooks is the river queue dispatch jobs run on.
const QueueWebhooks = "webhooks"

// DispatchArgs schedules one dispatch. WebhookID targets a single subscriber;
// zero fans out to every active subscriber of EventType.
type DispatchArgs struct {
	EventType events.Type     `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	WebhookID int64           `json:"webhook_id,omitempty"`
}

func (DispatchArgs) Kind() string { return "webhook_dispatch" }

// InsertOpts runs each trigger exactly once: a retry would add a second
// attempt for the same trigger.
func (DispatchArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueWebhooks, MaxAttempts: 1}
}

// DispatchWorker executes queued dispatches.
type DispatchWorker struct {
	river.WorkerDefaults[DispatchArgs]

	dispatcher  *Dispatcher
	subscribers SubscriberGetter
	logger      *slog.Logger
}

// NewDispatchWorker creates a DispatchWorker.
func NewDispatchWorker(dispatcher *Dispatcher, subscribers SubscriberGetter, logger *slog.Logger) *DispatchWorker {
	return &DispatchWorker{
		dispatcher:  dispatcher,
		subscribers: subscribers,
		logger:      logger.With("component", "dispatch-worker"),
	}
}

// Timeout disables river's job deadline; each delivery carries its own.
func (w *DispatchWorker) Timeout(*river.Job[DispatchArgs]) time.Duration {
	return -1
}

// Work delivers the event. Delivery failures are logged attempts, not job errors.
func (w *DispatchWorker) Work(ctx context.Context, job *river.Job[DispatchArgs]) error {
	args := job.Args
	logger := w.logger.With("event_type", args.EventType, "river_job_id", job.ID)

	var attempts []DeliveryAttempt
	if args.WebhookID != 0 {
		sub, err := w.subscribers.Get(ctx, args.WebhookID)
		if err != nil {
			if errors.Is(err, ErrWebhookNotFound) {
				logger.Warn("target webhook no longer exists", "webhook_id", args.WebhookID)
				return nil
			}
			return river.JobCancel(fmt.Errorf("failed to load webhook %d: %w", args.WebhookID, err))
		}
		attempts = w.dispatcher.DispatchTo(ctx, []Subscriber{*sub}, args.EventType, args.Payload)
	} else {
		attempts = w.dispatcher.Dispatch(ctx, args.EventType, args.Payload)
	}

	succeeded := 0
	for i := range attempts {
		if attempts[i].Succeeded() {
			succeeded++
		}
	}
	logger.Info("dispatch finished", "attempts", len(attempts), "succeeded", succeeded)
	return nil
}

// QueueSink is an events.Publisher that turns every event into a queued
// dispatch, keeping HTTP delivery off the emitting code path.
type QueueSink struct {
	queue Enqueuer
}

// NewQueueSink creates a QueueSink over queue.
func NewQueueSink(queue Enqueuer) *QueueSink {
	return &QueueSink{queue: queue}
}

// Publish enqueues a fan-out dispatch of env.
func (s *QueueSink) Publish(ctx context.Context, env *events.Envelope) error {
	if err := s.queue.EnqueueDispatch(ctx, DispatchArgs{EventType: env.Type, Payload: env.Payload}); err != nil {
		return fmt.Errorf("failed to enqueue %s dispatch: %w", env.Type, err)
	}
	return nil
}
