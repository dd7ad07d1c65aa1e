package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/clock"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// Service manages webhook registrations.
type Service struct {
	store  WebhookStore
	queue  Enqueuer
	logger *slog.Logger
}

// NewService creates a new webhook management service.
func NewService(store WebhookStore, queue Enqueuer, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		queue:  queue,
		logger: logger.With("service", "webhooks"),
	}
}

// CreateRequest registers a subscriber. IsActive defaults to true.
type CreateRequest struct {
	URL       string `json:"url"`
	EventType string `json:"event_type"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

// UpdateRequest changes the fields that are set.
type UpdateRequest struct {
	URL       *string `json:"url,omitempty"`
	EventType *string `json:"event_type,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// TestPayload is the body delivered by a test trigger.
type TestPayload struct {
	Test      bool      `json:"test"`
	WebhookID int64     `json:"webhook_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Create validates and stores a new subscriber.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Subscriber, error) {
	target, err := validateURL(req.URL)
	if err != nil {
		return nil, err
	}
	eventType, err := events.ParseType(strings.TrimSpace(req.EventType))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	sub := &Subscriber{URL: target, EventType: eventType, IsActive: true}
	if req.IsActive != nil {
		sub.IsActive = *req.IsActive
	}

	if err := s.store.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	s.logger.Info("webhook registered", "webhook_id", sub.ID, "event_type", sub.EventType)
	return sub, nil
}

// Get returns one subscriber.
func (s *Service) Get(ctx context.Context, id int64) (*Subscriber, error) {
	return s.store.Get(ctx, id)
}

// List returns every subscriber, active or not.
func (s *Service) List(ctx context.Context) ([]Subscriber, error) {
	return s.store.List(ctx)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Subscriber, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.URL != nil {
		target, err := validateURL(*req.URL)
		if err != nil {
			return nil, err
		}
		sub.URL = target
	}
	if req.EventType != nil {
		eventType, err := events.ParseType(strings.TrimSpace(*req.EventType))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		sub.EventType = eventType
	}
	if req.IsActive != nil {
		sub.IsActive = *req.IsActive
	}

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}
	return sub, nil
}

// Delete removes a subscriber and its attempt log.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("webhook deleted", "webhook_id", id)
	return nil
}

// Test queues a test delivery to this subscriber only, whether or not it is active.
func (s *Service) Test(ctx context.Context, id int64) error {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(TestPayload{Test: true, WebhookID: sub.ID, Timestamp: clock.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal test payload: %w", err)
	}

	if err := s.queue.EnqueueDispatch(ctx, DispatchArgs{EventType: sub.EventType, Payload: payload, WebhookID: sub.ID}); err != nil {
		return fmt.Errorf("failed to enqueue test dispatch: %w", err)
	}
	return nil
}

// Logs returns the most recent attempts for a subscriber, newest first.
func (s *Service) Logs(ctx context.Context, id int64, limit int) ([]DeliveryAttempt, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	return s.store.Attempts(ctx, id, limit)
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || raw == "" {
		return "", fmt.Errorf("%w: url is required and must be valid", ErrInvalidInput)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: url must use http or https", ErrInvalidInput)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: url must include a host", ErrInvalidInput)
	}
	return raw, nil
}
