package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/clock"
)

// Type is the discriminator of a catalog or job event.
type Type string

// The event taxonomy is closed. Subscribers pick one of these per registration.
const (
	ProductCreated  Type = "product.created"
	ProductUpdated  Type = "product.updated"
	ProductDeleted  Type = "product.deleted"
	UploadCompleted Type = "upload.completed"
)

// Types lists every known event type in a stable order.
func Types() []Type {
	return []Type{ProductCreated, ProductUpdated, ProductDeleted, UploadCompleted}
}

// ParseType validates s against the taxonomy.
func ParseType(s string) (Type, error) {
	for _, t := range Types() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// Envelope is the common structure handed to every event sink.
// The payload is exactly the JSON body delivered to webhook subscribers.
type Envelope struct {
	// EventID is the unique identifier for this event (UUIDv7)
	EventID uuid.UUID `json:"event_id"`

	// Type is the event discriminator
	Type Type `json:"event_type"`

	// OccurredAt is when the event was emitted
	OccurredAt time.Time `json:"occurred_at"`

	// Payload contains the event-specific data
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope creates an envelope with a generated ID and the current clock time.
func NewEnvelope(eventType Type, payload any) (*Envelope, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event id: %w", err)
	}

	return &Envelope{
		EventID:    id,
		Type:       eventType,
		OccurredAt: clock.Now(),
		Payload:    payloadBytes,
	}, nil
}

// ParsePayload unmarshals the payload into the provided type.
func (e *Envelope) ParsePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
