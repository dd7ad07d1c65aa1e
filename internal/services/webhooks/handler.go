package webhooks

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cornjacket/catalog-ingest/internal/shared/logging"
)

// Handler handles HTTP requests for webhook management.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new webhooks HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("handler", "webhooks"),
	}
}

// HandleList handles GET /api/v1/webhooks
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if subs == nil {
		subs = []Subscriber{}
	}
	h.writeJSON(w, http.StatusOK, subs)
}

// HandleCreate handles POST /api/v1/webhooks
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	sub, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, sub)
}

// HandleGet handles GET /api/v1/webhooks/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.webhookID(w, r)
	if !ok {
		return
	}
	sub, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}

// HandleUpdate handles PUT /api/v1/webhooks/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.webhookID(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	sub, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}

// HandleDelete handles DELETE /api/v1/webhooks/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.webhookID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTest handles POST /api/v1/webhooks/{id}/test
func (h *Handler) HandleTest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.webhookID(w, r)
	if !ok {
		return
	}
	if err := h.service.Test(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "test_sent"})
}

// HandleLogs handles GET /api/v1/webhooks/{id}/logs?limit=
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := h.webhookID(w, r)
	if !ok {
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = l
	}

	attempts, err := h.service.Logs(r.Context(), id, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []DeliveryAttempt{}
	}
	h.writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) webhookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid webhook id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrWebhookNotFound):
		h.writeError(w, http.StatusNotFound, "webhook not found")
	default:
		logging.FromContext(r.Context(), h.logger).Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
