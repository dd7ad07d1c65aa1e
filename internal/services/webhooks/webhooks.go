package webhooks

import (
	"log/slog"
	"net/http"
)

// Config holds configuration for the webhooks service.
type Config struct {
	Dispatcher DispatcherConfig
}

// Module is the wired webhooks service.
type Module struct {
	Service    *Service
	Dispatcher *Dispatcher
	Worker     *DispatchWorker
	Handler    *Handler
	Sink       *QueueSink
}

// New wires the webhook components. store resolves subscribers, attempts
// receives every delivery. client may be nil.
func New(cfg Config, store WebhookStore, attempts AttemptLog, queue Enqueuer, client *http.Client, logger *slog.Logger) *Module {
	dispatcher := NewDispatcher(store, attempts, client, cfg.Dispatcher, logger)
	svc := NewService(store, queue, logger)

	return &Module{
		Service:    svc,
		Dispatcher: dispatcher,
		Worker:     NewDispatchWorker(dispatcher, store, logger),
		Handler:    NewHandler(svc, logger),
		Sink:       NewQueueSink(queue),
	}
}
