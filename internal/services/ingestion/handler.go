package ingestion

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/cornjacket/catalog-ingest/internal/shared/logging"
)

// multipart overhead allowed on top of the file itself
const multipartSlack = 1 << 20

// Handler handles HTTP requests for the ingestion service.
type Handler struct {
	service     *Service
	limiter     *rate.Limiter
	maxFileSize int64
	logger      *slog.Logger
}

// NewHandler creates a new ingestion HTTP handler. uploadsPerMinute <= 0
// disables upload throttling.
func NewHandler(service *Service, maxFileSize int64, uploadsPerMinute int, logger *slog.Logger) *Handler {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if uploadsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(uploadsPerMinute)), uploadsPerMinute)
	}
	return &Handler{
		service:     service,
		limiter:     limiter,
		maxFileSize: maxFileSize,
		logger:      logger.With("handler", "ingestion"),
	}
}

// UploadResponse is returned when an upload is accepted.
type UploadResponse struct {
	JobID  int64  `json:"job_id"`
	Status string `json:"status"`
}

// HandleUpload handles POST /api/v1/uploads (multipart field "file").
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartSlack)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	job, err := h.service.Submit(r.Context(), header.Filename, content)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, UploadResponse{JobID: job.ID, Status: "started"})
}

// HandleProgress handles GET /api/v1/uploads/{id}/progress
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	progress, err := h.service.Progress(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, progress)
}

// throttle rejects uploads beyond the configured rate with 429.
func (h *Handler) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			w.Header().Set("Retry-After", "60")
			h.writeError(w, http.StatusTooManyRequests, "too many uploads, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrJobNotFound):
		h.writeError(w, http.StatusNotFound, "job not found")
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
