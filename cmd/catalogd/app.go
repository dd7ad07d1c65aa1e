package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cornjacket/catalog-ingest/internal/services/ingestion"
	"github.com/cornjacket/catalog-ingest/internal/services/products"
	"github.com/cornjacket/catalog-ingest/internal/services/webhooks"
	"github.com/cornjacket/catalog-ingest/internal/shared/config"
	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
	"github.com/cornjacket/catalog-ingest/internal/shared/infra/postgres"
	"github.com/cornjacket/catalog-ingest/internal/shared/infra/queue"
	"github.com/cornjacket/catalog-ingest/internal/shared/infra/redpanda"
	"github.com/cornjacket/catalog-ingest/internal/shared/logging"
)

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	pg     *postgres.Client

	submitter *queue.Submitter
	producer  *redpanda.Producer

	ingestion *ingestion.Module
	webhooks  *webhooks.Module
	products  *products.Module
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newApp connects to Postgres and wires every service. Close releases it.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	pg, err := postgres.NewClient(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, pg: pg}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	pool := a.pg.Pool()

	submitter, err := queue.NewSubmitter(pool, a.logger)
	if err != nil {
		return err
	}
	a.submitter = submitter

	jobs := postgres.NewJobRepo(pool, a.logger)
	catalogRepo := postgres.NewCatalogRepo(pool, a.logger)
	webhookRepo := postgres.NewWebhookRepo(pool, a.logger)

	a.webhooks = webhooks.New(webhooks.Config{
		Dispatcher: webhooks.DispatcherConfig{
			Timeout:     a.cfg.WebhookTimeout,
			MaxParallel: a.cfg.WebhookMaxParallel,
		},
	}, webhookRepo, webhookRepo, submitter, &http.Client{}, a.logger)

	sinks := []events.Publisher{a.webhooks.Sink}
	if brokers := a.cfg.Brokers(); brokers != nil {
		producer, err := redpanda.NewProducer(brokers, a.cfg.RedpandaTopic, a.logger)
		if err != nil {
			return err
		}
		a.producer = producer
		sinks = append(sinks, producer)
	}
	emitter := events.NewFanoutEmitter(a.logger, sinks...)
	emitter.SinkTimeout = a.cfg.EventSinkTimeout

	a.ingestion = ingestion.New(ingestion.Config{
		BatchSize:        a.cfg.IngestBatchSize,
		MaxFileSize:      a.cfg.UploadMaxFileSize,
		UploadsPerMinute: a.cfg.UploadRatePerMinute,
	}, jobs, catalogRepo, queue.NewIngestQueue(pool, jobs, submitter), emitter, a.logger)

	a.products = products.New(catalogRepo, submitter, emitter, a.logger)
	return nil
}

// Close releases the event stream and the pool.
func (a *app) Close() {
	if a.producer != nil {
		a.producer.Close()
	}
	a.pg.Close()
}
