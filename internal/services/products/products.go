package products

import (
	"log/slog"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

// Store is everything the products module needs from persistence.
type Store interface {
	ProductStore
	Truncator
}

// Module is the wired products service.
type Module struct {
	Service *Service
	Handler *Handler
	Purge   *PurgeWorker
}

// New wires the product API and its purge worker.
func New(store Store, purger Purger, emitter events.Emitter, logger *slog.Logger) *Module {
	svc := NewService(store, purger, emitter, logger)
	return &Module{
		Service: svc,
		Handler: NewHandler(svc, logger),
		Purge:   NewPurgeWorker(store, logger),
	}
}
