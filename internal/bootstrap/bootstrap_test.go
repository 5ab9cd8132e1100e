package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/purchase-insights/internal/config"
	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		RepositoryBackend:      BackendMemory,
		StoragePath:            t.TempDir(),
		IngestParallelism:      2,
		DecimalSeparator:       ',',
		DateOrder:              "dmy",
		ForecastHorizonMonths:  3,
		ForecastRiseRatio:      1.5,
		ForecastFallRatio:      0.5,
		ForecastDominanceShare: 0.8,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWiresMemoryBackendWithoutBroker(t *testing.T) {
	app, err := New(context.Background(), testConfig(t), quietLogger())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer app.Close()

	if app.Subscriber != nil {
		t.Fatalf("expected no subscriber without NATS URL")
	}
	if _, ok := app.Exporters["xlsx"]; !ok {
		t.Fatalf("expected xlsx exporter")
	}

	results := app.IngestUC.IngestBatch(context.Background(), []domain.Upload{
		{Filename: "a.xml", Content: []byte(`<Invoice><Folio>7</Folio><Detalle><NmbItem>Widget</NmbItem><QtyItem>1</QtyItem><PrcItem>3</PrcItem></Detalle></Invoice>`)},
	})
	if len(results) != 1 || !results[0].OK() {
		t.Fatalf("expected stored document, got %+v", results)
	}

	report, err := app.AuditUC.AuditByID(context.Background(), results[0].DocumentID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if report.LineItems != 1 {
		t.Fatalf("expected one line item, got %+v", report)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.RepositoryBackend = "cassandra"

	_, err := New(context.Background(), cfg, quietLogger())
	if err == nil || !strings.Contains(err.Error(), "cassandra") {
		t.Fatalf("expected unsupported backend error, got %v", err)
	}
}

func TestNewRejectsUnknownDateOrder(t *testing.T) {
	cfg := testConfig(t)
	cfg.DateOrder = "ymd"

	if _, err := New(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatalf("expected date order error")
	}
}

func TestPublishPolicyFollowsConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.PublishRetryAttempts = 4
	cfg.PublishRetryBackoff = 50 * time.Millisecond
	cfg.PublishRetryMaxBackoff = 800 * time.Millisecond
	cfg.PublishBreakerEnabled = true
	cfg.PublishBreakerMinCalls = 6
	cfg.PublishBreakerFailRatio = 0.25
	cfg.PublishBreakerOpenFor = 10 * time.Second
	cfg.PublishBreakerHalfOpen = 1

	p := publishPolicy(cfg)
	if p.Retry.Attempts != 4 || p.Retry.Backoff != 50*time.Millisecond || p.Retry.MaxBackoff != 800*time.Millisecond {
		t.Fatalf("unexpected retry policy: %+v", p.Retry)
	}
	if !p.Breaker.Enabled || p.Breaker.MinRequests != 6 || p.Breaker.FailureRatio != 0.25 ||
		p.Breaker.OpenFor != 10*time.Second || p.Breaker.HalfOpenRequests != 1 {
		t.Fatalf("unexpected breaker policy: %+v", p.Breaker)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid policy, got %v", err)
	}
}

func TestNewRejectsInvalidPublishPolicyBeforeConnecting(t *testing.T) {
	cfg := testConfig(t)
	cfg.NATSURL = "nats://127.0.0.1:1"
	cfg.PublishRetryAttempts = 0

	_, err := New(context.Background(), cfg, quietLogger())
	if err == nil || !strings.Contains(err.Error(), "event publishing") {
		t.Fatalf("expected publish policy error, got %v", err)
	}
}
