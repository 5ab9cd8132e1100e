package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/purchase-insights/internal/bootstrap"
	"github.com/kirillkom/purchase-insights/internal/config"
	"github.com/kirillkom/purchase-insights/internal/observability/logging"
	"github.com/kirillkom/purchase-insights/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RepositoryBackend != bootstrap.BackendPostgres {
		logger.Error("worker_requires_postgres", "backend", cfg.RepositoryBackend)
		os.Exit(1)
	}

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Subscriber == nil {
		logger.Error("worker_requires_nats", "hint", "set NATS_URL")
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	err = app.Subscriber.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID int64) error {
		auditCtx, cancel := context.WithTimeout(handlerCtx, time.Minute)
		defer cancel()

		workerMetrics.StartDocument()
		start := time.Now()
		report, err := app.AuditUC.AuditByID(auditCtx, documentID)
		workerMetrics.FinishDocument(service, time.Since(start), err)
		if err != nil {
			return err
		}
		workerMetrics.ObserveQueueLag(service, start.Sub(report.UploadedAt))
		workerMetrics.RecordMissingFields(service, string(report.FileType), report.MissingFields)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
