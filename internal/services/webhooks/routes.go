package webhooks

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers the webhook management routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Post("/{id}/test", h.HandleTest)
		r.Get("/{id}/logs", h.HandleLogs)
	})
}
