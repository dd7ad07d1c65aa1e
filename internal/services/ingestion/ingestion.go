package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

// Config holds configuration for the ingestion service.
type Config struct {
	BatchSize        int
	MaxFileSize      int64
	UploadsPerMinute int
}

// Module is the wired ingestion service: the HTTP boundary plus the
// orchestrator run by background workers and the import command.
type Module struct {
	Service      *Service
	Orchestrator *Orchestrator
	Handler      *Handler
	Jobs         JobStore
}

// New wires the ingestion components over the given stores. The emitter
// receives upload.completed events.
func New(cfg Config, jobs JobStore, catalogStore CatalogStore, queue JobQueue, emitter events.Emitter, logger *slog.Logger) *Module {
	reconciler := NewReconciler(catalogStore, logger)
	tracker := NewTracker(jobs, logger)
	orchestrator := NewOrchestrator(reconciler, tracker, emitter, cfg.BatchSize, logger)

	svc := NewService(jobs, queue, cfg.MaxFileSize, logger)
	handler := NewHandler(svc, cfg.MaxFileSize, cfg.UploadsPerMinute, logger)

	return &Module{
		Service:      svc,
		Orchestrator: orchestrator,
		Handler:      handler,
		Jobs:         jobs,
	}
}

// Import runs content through the pipeline in-process, the same path a queued
// job takes, and returns the final progress. A failed run still returns the
// progress snapshot alongside the error.
func (m *Module) Import(ctx context.Context, fileName string, content []byte) (*Progress, error) {
	if err := m.Service.validate(fileName, content); err != nil {
		return nil, err
	}

	job, err := m.Jobs.Create(ctx, fileName, content)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	runErr := m.Orchestrator.Run(ctx, job.ID, content)

	progress, err := m.Service.Progress(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		return nil, err
	}
	return progress, runErr
}
