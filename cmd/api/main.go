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

	httpadapter "github.com/kirillkom/purchase-insights/internal/adapters/http"
	mcpadapter "github.com/kirillkom/purchase-insights/internal/adapters/mcp"
	"github.com/kirillkom/purchase-insights/internal/bootstrap"
	"github.com/kirillkom/purchase-insights/internal/config"
	"github.com/kirillkom/purchase-insights/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	opts := []httpadapter.Option{
		httpadapter.WithMetrics(app.Metrics),
		httpadapter.WithLogger(logger),
	}
	if cfg.MCPEnabled {
		tools := mcpadapter.New(app.AnalyticsUC, app.DocumentsUC, app.Metrics, logger)
		opts = append(opts, httpadapter.WithMCPHandler(tools.Handler()))
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Ingest:     app.IngestUC,
		Documents:  app.DocumentsUC,
		Analytics:  app.AnalyticsUC,
		Categories: app.CategoryUC,
		Exporters:  app.Exporters,
	}, opts...).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "backend", cfg.RepositoryBackend, "mcp", cfg.MCPEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
