package events

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSinkTimeout bounds one Publish call when FanoutEmitter.SinkTimeout is unset.
const DefaultSinkTimeout = 5 * time.Second

// ProductRef is the payload of the product.* events.
type ProductRef struct {
	ID   int64  `json:"id"`
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

// UploadSummary is the payload of upload.completed.
type UploadSummary struct {
	JobID     int64 `json:"job_id"`
	TotalRows int   `json:"total_rows"`
}

// Emitter is the single place catalog mutation sites and the ingestion
// pipeline announce events. Emission is fire-and-forget: methods never fail
// the caller.
type Emitter interface {
	ProductCreated(ctx context.Context, p ProductRef)
	ProductUpdated(ctx context.Context, p ProductRef)
	ProductDeleted(ctx context.Context, p ProductRef)
	UploadCompleted(ctx context.Context, jobID int64, totalRows int)
}

// Publisher is a sink for built envelopes (webhook queue, event stream).
type Publisher interface {
	Publish(ctx context.Context, env *Envelope) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, env *Envelope) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, env *Envelope) error {
	return f(ctx, env)
}

// FanoutEmitter builds an envelope per event and hands it to every sink in order.
// Sink errors are logged and do not stop the remaining sinks. Each Publish runs
// under its own SinkTimeout, detached from the caller's cancellation, so an
// unreachable sink delays the caller by at most SinkTimeout per sink and a
// disconnected HTTP client does not drop the event.
type FanoutEmitter struct {
	SinkTimeout time.Duration

	sinks  []Publisher
	logger *slog.Logger
}

// NewFanoutEmitter creates an emitter over the given sinks. Nil sinks are ignored.
func NewFanoutEmitter(logger *slog.Logger, sinks ...Publisher) *FanoutEmitter {
	e := &FanoutEmitter{
		SinkTimeout: DefaultSinkTimeout,
		logger:      logger.With("component", "event-emitter"),
	}
	for _, s := range sinks {
		if s != nil {
			e.sinks = append(e.sinks, s)
		}
	}
	return e
}

func (e *FanoutEmitter) ProductCreated(ctx context.Context, p ProductRef) {
	e.emit(ctx, ProductCreated, p)
}

func (e *FanoutEmitter) ProductUpdated(ctx context.Context, p ProductRef) {
	e.emit(ctx, ProductUpdated, p)
}

func (e *FanoutEmitter) ProductDeleted(ctx context.Context, p ProductRef) {
	e.emit(ctx, ProductDeleted, p)
}

func (e *FanoutEmitter) UploadCompleted(ctx context.Context, jobID int64, totalRows int) {
	e.emit(ctx, UploadCompleted, UploadSummary{JobID: jobID, TotalRows: totalRows})
}

func (e *FanoutEmitter) emit(ctx context.Context, eventType Type, payload any) {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		e.logger.Error("failed to build event", "event_type", eventType, "error", err)
		return
	}

	base := context.WithoutCancel(ctx)
	for _, sink := range e.sinks {
		if err := e.publish(base, sink, env); err != nil {
			e.logger.Error("failed to publish event",
				"event_type", eventType,
				"event_id", env.EventID,
				"error", err,
			)
		}
	}
}

func (e *FanoutEmitter) publish(ctx context.Context, sink Publisher, env *Envelope) error {
	timeout := e.SinkTimeout
	if timeout <= 0 {
		timeout = DefaultSinkTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sink.Publish(ctx, env)
}

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) ProductCreated(context.Context, ProductRef)  {}
func (NopEmitter) ProductUpdated(context.Context, ProductRef)  {}
func (NopEmitter) ProductDeleted(context.Context, ProductRef)  {}
func (NopEmitter) UploadCompleted(context.Context, int64, int) {}
