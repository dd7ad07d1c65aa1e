package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cornjacket/catalog-ingest/internal/services/ingestion/worker"
	"github.com/cornjacket/catalog-ingest/internal/shared/httpserver"
	"github.com/cornjacket/catalog-ingest/internal/shared/infra/postgres"
	"github.com/cornjacket/catalog-ingest/internal/shared/infra/queue"
)

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before starting")
	return cmd
}

func runServe(ctx context.Context, migrate bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	logger.Info("starting catalogd",
		"port", a.cfg.Port,
		"ingest_workers", a.cfg.QueueIngestWorkers,
		"webhook_workers", a.cfg.QueueWebhookWorkers,
		"event_stream", a.producer != nil,
	)

	if migrate {
		if err := applyMigrations(ctx, a.pg, logger); err != nil {
			return err
		}
	}

	runner, err := queue.NewRunner(a.pg.Pool(), queue.Config{
		IngestWorkers:  a.cfg.QueueIngestWorkers,
		WebhookWorkers: a.cfg.QueueWebhookWorkers,
	}, queue.Workers{
		Ingest:   worker.NewIngestWorker(a.ingestion.Jobs, a.ingestion.Orchestrator, a.cfg.IngestTimeout, logger),
		Dispatch: a.webhooks.Worker,
		Purge:    a.products.Purge,
	}, logger)
	if err != nil {
		return err
	}
	if err := runner.Start(ctx); err != nil {
		return err
	}

	router := httpserver.NewRouter(logger, a.pg.Health,
		a.ingestion.Handler,
		a.products.Handler,
		a.webhooks.Handler,
	)
	errorCh := make(chan error, 1)
	server := httpserver.Start(httpserver.Config{Port: a.cfg.Port}, router, logger, errorCh)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case serveErr = <-errorCh:
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	// Graceful shutdown (reverse order)
	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := runner.Stop(shutdownCtx); err != nil {
		logger.Error("queue runner shutdown error", "error", err)
	}

	logger.Info("catalogd stopped")
	return serveErr
}

func applyMigrations(ctx context.Context, pg *postgres.Client, logger *slog.Logger) error {
	version, err := postgres.Migrate(ctx, pg.Pool(), logger)
	if err != nil {
		return err
	}
	logger.Info("catalog schema migrated", "version", version)

	if err := queue.Migrate(ctx, pg.Pool(), logger); err != nil {
		return fmt.Errorf("failed to migrate queue: %w", err)
	}
	return nil
}
