// Package httpserver assembles the HTTP surface shared by every service.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cornjacket/catalog-ingest/internal/shared/logging"
	"github.com/cornjacket/catalog-ingest/internal/shared/metrics"
)

// Routes is implemented by every service handler.
type Routes interface {
	RegisterRoutes(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds configuration for the HTTP server.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RunningServer represents a started HTTP server.
type RunningServer struct {
	// Shutdown stops the HTTP server gracefully.
	Shutdown func(ctx context.Context) error
}

// NewRouter builds the chi router with the common middleware stack, /health,
// /metrics and every service's routes.
func NewRouter(logger *slog.Logger, health HealthCheck, services ...Routes) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status, body := http.StatusOK, map[string]string{"status": "healthy"}
		if health != nil {
			if err := health(req.Context()); err != nil {
				logging.FromContext(req.Context(), logger).Warn("health check failed", "error", err)
				status, body = http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	for _, s := range services {
		s.RegisterRoutes(r)
	}
	return r
}

// Start serves handler on cfg.Port in the background. Serve failures are
// sent to errorCh.
func Start(cfg Config, handler http.Handler, logger *slog.Logger, errorCh chan<- error) *RunningServer {
	logger = logger.With("component", "http-server")

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 2 * time.Minute
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			errorCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	return &RunningServer{
		Shutdown: func(shutdownCtx context.Context) error {
			logger.Info("shutting down HTTP server")
			return server.Shutdown(shutdownCtx)
		},
	}
}
