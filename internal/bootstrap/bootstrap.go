package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/purchase-insights/internal/config"
	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/core/ports"
	"github.com/kirillkom/purchase-insights/internal/core/usecase"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/classifier"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/export"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/extractor/markup"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/extractor/rules"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/queue/nats"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/queue/noop"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/repository/memory"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/resilience"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/purchase-insights/internal/observability/metrics"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Repo   ports.RecordRepository
	Events ports.EventPublisher
	// Subscriber is nil when no NATS URL is configured.
	Subscriber ports.EventSubscriber

	IngestUC    ports.DocumentIngestor
	DocumentsUC ports.DocumentReader
	AnalyticsUC ports.AnalyticsService
	CategoryUC  ports.CategoryMapper
	AuditUC     *usecase.AuditUseCase
	Exporters   map[string]ports.TableExporter

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	httpMetrics := metrics.NewHTTPServerMetrics("api")

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	repo, categories, closeRepo, err := newRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeRepo)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	ruleSet, err := rules.Load(cfg.ExtractionRulePath)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("load extraction rules: %w", err)
	}
	dateOrder := rules.DateOrder(cfg.DateOrder)
	if dateOrder != rules.DayFirst && dateOrder != rules.MonthFirst {
		closeAll()
		return nil, fmt.Errorf("unsupported date order %q", cfg.DateOrder)
	}
	extractors := map[domain.FileType]ports.Extractor{
		domain.FileTypePage:   pdf.NewExtractor(ruleSet, cfg.DecimalSeparator, dateOrder, logger),
		domain.FileTypeMarkup: markup.NewExtractor(ruleSet, cfg.DecimalSeparator, dateOrder),
	}

	var (
		events     ports.EventPublisher = noop.NewPublisher(logger)
		subscriber ports.EventSubscriber
	)
	if cfg.NATSURL != "" {
		executor, err := resilience.NewExecutor(publishPolicy(cfg), logger, httpMetrics)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init event publishing: %w", err)
		}
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			FlushTimeout:       cfg.NATSFlushTimeout,
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		closers = append(closers, queue.Close)
		events, subscriber = queue, queue
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: httpMetrics,

		Repo:       repo,
		Events:     events,
		Subscriber: subscriber,

		IngestUC: usecase.NewIngestUseCase(
			classifier.New(),
			extractors,
			repo,
			storage,
			events,
			cfg.IngestParallelism,
			logger,
		),
		DocumentsUC: usecase.NewDocumentUseCase(repo, storage, logger),
		AnalyticsUC: usecase.NewAnalyticsUseCase(repo, categories, usecase.ForecastConfig{
			HorizonMonths:  cfg.ForecastHorizonMonths,
			RiseRatio:      cfg.ForecastRiseRatio,
			FallRatio:      cfg.ForecastFallRatio,
			DominanceShare: cfg.ForecastDominanceShare,
		}),
		CategoryUC: usecase.NewCategoryUseCase(categories),
		AuditUC:    usecase.NewAuditUseCase(repo, logger),
		Exporters: map[string]ports.TableExporter{
			"csv":  export.NewCSVExporter(),
			"xlsx": export.NewXLSXExporter(logger),
		},

		closeFn: closeAll,
	}, nil
}

func newRepositories(ctx context.Context, cfg config.Config) (ports.RecordRepository, ports.CategoryStore, func(), error) {
	switch cfg.RepositoryBackend {
	case BackendMemory, "":
		return memory.NewRecordRepository(), memory.NewCategoryStore(), func() {}, nil
	case BackendPostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return postgres.NewRecordRepository(db), postgres.NewCategoryStore(db), closeDB(db), nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported repository backend %q", cfg.RepositoryBackend)
	}
}

func closeDB(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// publishPolicy guards the document-ingested publish that follows every stored upload.
func publishPolicy(cfg config.Config) resilience.Policy {
	return resilience.Policy{
		Retry: resilience.RetryPolicy{
			Attempts:   cfg.PublishRetryAttempts,
			Backoff:    cfg.PublishRetryBackoff,
			MaxBackoff: cfg.PublishRetryMaxBackoff,
		},
		Breaker: resilience.BreakerPolicy{
			Enabled:          cfg.PublishBreakerEnabled,
			MinRequests:      uint32(max(cfg.PublishBreakerMinCalls, 0)),
			FailureRatio:     cfg.PublishBreakerFailRatio,
			OpenFor:          cfg.PublishBreakerOpenFor,
			HalfOpenRequests: uint32(max(cfg.PublishBreakerHalfOpen, 0)),
		},
	}
}
