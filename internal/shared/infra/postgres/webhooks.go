package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cornjacket/catalog-ingest/internal/services/webhooks"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/clock"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

const webhookColumns = `id, url, event_type, is_active, created_at`

// WebhookRepo implements webhooks.WebhookStore and webhooks.AttemptLog using PostgreSQL.
type WebhookRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(pool *pgxpool.Pool, logger *slog.Logger) *WebhookRepo {
	return &WebhookRepo{
		pool:   pool,
		logger: logger.With("repository", "webhooks"),
	}
}

// ActiveSubscribers returns the active subscribers of eventType in id order.
func (r *WebhookRepo) ActiveSubscribers(ctx context.Context, eventType events.Type) ([]webhooks.Subscriber, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE event_type = $1 AND is_active ORDER BY id`,
		string(eventType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	return collectSubscribers(rows)
}

// Get retrieves a subscriber by id.
func (r *WebhookRepo) Get(ctx context.Context, id int64) (*webhooks.Subscriber, error) {
	sub, err := scanSubscriber(r.pool.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, webhooks.ErrWebhookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return sub, nil
}

// Create inserts a subscriber and fills in its id and creation time.
func (r *WebhookRepo) Create(ctx context.Context, sub *webhooks.Subscriber) error {
	sub.CreatedAt = clock.Now()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO webhooks (url, event_type, is_active, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		sub.URL, string(sub.EventType), sub.IsActive, sub.CreatedAt,
	).Scan(&sub.ID)
	if err != nil {
		return fmt.Errorf("failed to insert webhook: %w", err)
	}
	return nil
}

// List returns every subscriber in id order.
func (r *WebhookRepo) List(ctx context.Context) ([]webhooks.Subscriber, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+webhookColumns+` FROM webhooks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhooks: %w", err)
	}
	return collectSubscribers(rows)
}

// Update writes url, event type and active flag.
func (r *WebhookRepo) Update(ctx context.Context, sub *webhooks.Subscriber) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE webhooks SET url = $2, event_type = $3, is_active = $4 WHERE id = $1`,
		sub.ID, sub.URL, string(sub.EventType), sub.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	if result.RowsAffected() == 0 {
		return webhooks.ErrWebhookNotFound
	}
	return nil
}

// Delete removes a subscriber. Its attempt log goes with it.
func (r *WebhookRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	if result.RowsAffected() == 0 {
		return webhooks.ErrWebhookNotFound
	}
	return nil
}

// Record appends one delivery attempt.
func (r *WebhookRepo) Record(ctx context.Context, a *webhooks.DeliveryAttempt) error {
	payload := []byte(a.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO webhook_logs (webhook_id, event_type, payload, response_code, response_time_ms, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		a.WebhookID, string(a.EventType), payload, a.ResponseCode, a.ResponseTimeMS, a.ErrorMessage, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to insert webhook log: %w", err)
	}
	return nil
}

// Attempts returns the most recent attempts for a subscriber, newest first.
func (r *WebhookRepo) Attempts(ctx context.Context, webhookID int64, limit int) ([]webhooks.DeliveryAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, webhook_id, event_type, payload, response_code, response_time_ms, error_message, created_at
		FROM webhook_logs
		WHERE webhook_id = $1
		ORDER BY id DESC
		LIMIT $2`, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook logs: %w", err)
	}
	defer rows.Close()

	var attempts []webhooks.DeliveryAttempt
	for rows.Next() {
		var (
			a         webhooks.DeliveryAttempt
			eventType string
			payload   []byte
		)
		if err := rows.Scan(
			&a.ID,
			&a.WebhookID,
			&eventType,
			&payload,
			&a.ResponseCode,
			&a.ResponseTimeMS,
			&a.ErrorMessage,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan webhook log: %w", err)
		}
		a.EventType = events.Type(eventType)
		a.Payload = payload
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook logs: %w", err)
	}
	return attempts, nil
}

func collectSubscribers(rows pgx.Rows) ([]webhooks.Subscriber, error) {
	defer rows.Close()

	var subs []webhooks.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhooks: %w", err)
	}
	return subs, nil
}

func scanSubscriber(row pgx.Row) (*webhooks.Subscriber, error) {
	var (
		sub       webhooks.Subscriber
		eventType string
	)
	if err := row.Scan(&sub.ID, &sub.URL, &eventType, &sub.IsActive, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.EventType = events.Type(eventType)
	return &sub, nil
}

var (
	_ webhooks.WebhookStore = (*WebhookRepo)(nil)
	_ webhooks.AttemptLog   = (*WebhookRepo)(nil)
)
