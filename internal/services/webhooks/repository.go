package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

var (
	// ErrWebhookNotFound is returned when a subscriber does not exist.
	ErrWebhookNotFound = errors.New("webhook not found")

	// ErrInvalidInput is returned for rejected webhook registrations.
	ErrInvalidInput = errors.New("invalid input")
)

// Subscriber is an external endpoint registered for one event type.
type Subscriber struct {
	ID        int64       `json:"id"`
	URL       string      `json:"url"`
	EventType events.Type `json:"event_type"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
}

// DeliveryAttempt is the append-only record of one delivery. Either
// ResponseCode and ResponseTimeMS are set, or ErrorMessage is.
type DeliveryAttempt struct {
	ID             int64           `json:"id"`
	WebhookID      int64           `json:"webhook_id"`
	EventType      events.Type     `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	ResponseCode   *int            `json:"response_code"`
	ResponseTimeMS *int64          `json:"response_time_ms"`
	ErrorMessage   *string         `json:"error_message"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Succeeded reports whether the endpoint answered with a 2xx status.
func (a *DeliveryAttempt) Succeeded() bool {
	return a.ResponseCode != nil && *a.ResponseCode >= 200 && *a.ResponseCode < 300
}

// Registry resolves the subscribers for an event type as a point-in-time snapshot.
type Registry interface {
	ActiveSubscribers(ctx context.Context, eventType events.Type) ([]Subscriber, error)
}

// AttemptLog appends delivery attempts.
type AttemptLog interface {
	Record(ctx context.Context, attempt *DeliveryAttempt) error
}

// SubscriberGetter loads one subscriber by id.
type SubscriberGetter interface {
	Get(ctx context.Context, id int64) (*Subscriber, error)
}

// WebhookStore is the management surface over registered subscribers.
type WebhookStore interface {
	Registry
	SubscriberGetter
	Create(ctx context.Context, sub *Subscriber) error
	List(ctx context.Context) ([]Subscriber, error)
	Update(ctx context.Context, sub *Subscriber) error
	Delete(ctx context.Context, id int64) error
	Attempts(ctx context.Context, webhookID int64, limit int) ([]DeliveryAttempt, error)
}

// Enqueuer schedules a dispatch on the task queue.
type Enqueuer interface {
	EnqueueDispatch(ctx context.Context, args DispatchArgs) error
}
