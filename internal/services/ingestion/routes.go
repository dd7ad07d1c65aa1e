package ingestion

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers the upload routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/uploads", func(r chi.Router) {
		r.With(h.throttle).Post("/", h.HandleUpload)
		r.Get("/{id}/progress", h.HandleProgress)
	})
}
