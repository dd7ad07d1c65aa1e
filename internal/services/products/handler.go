package products

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/catalog"
	"github.com/cornjacket/catalog-ingest/internal/shared/logging"
)

// Handler handles HTTP requests for the product API.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new products HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("handler", "products"),
	}
}

// HandleList handles GET /api/v1/products?search=&is_active=&page=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := ListQuery{Search: params.Get("search"), Page: 1}

	if s := params.Get("is_active"); s != "" {
		active, err := strconv.ParseBool(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid is_active")
			return
		}
		q.IsActive = &active
	}
	if s := params.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		q.Page = page
	}

	page, err := h.service.List(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// HandleCreate handles POST /api/v1/products
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	item, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, item)
}

// HandleGet handles GET /api/v1/products/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

// HandleUpdate handles PUT /api/v1/products/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	item, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

// HandleDelete handles DELETE /api/v1/products/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleBulkDelete handles POST /api/v1/products/bulk-delete
func (h *Handler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	taskID, err := h.service.BulkDelete(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "status": "started"})
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, catalog.ErrDuplicateSKU):
		h.writeError(w, http.StatusConflict, err.Error())
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
