package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/purchase-insights/internal/config"
	"github.com/kirillkom/purchase-insights/internal/core/ports"
)

const serviceName = "api"

// Services groups the inbound ports served by the router.
type Services struct {
	Ingest     ports.DocumentIngestor
	Documents  ports.DocumentReader
	Analytics  ports.AnalyticsService
	Categories ports.CategoryMapper
	// Exporters is keyed by the export format query value (csv, xlsx).
	Exporters map[string]ports.TableExporter
}

// Metrics is the slice of the Prometheus collector set the router reports to.
type Metrics interface {
	Middleware(service string, next http.Handler) http.Handler
	Handler() http.Handler
	RecordThrottled(service, reason string)
	RecordIngest(service, fileType, outcome string, sizeBytes int64, lineItems int)
	ObserveAnalytics(service, query string, duration time.Duration)
	RecordExport(service, format string, rows int)
}

type Option func(*Router)

func WithMetrics(m Metrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

// WithMCPHandler mounts a streamable MCP endpoint at /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(rt *Router) { rt.mcp = h }
}

func WithLogger(logger *slog.Logger) Option {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  Metrics
	mcp      http.Handler
	logger   *slog.Logger

	specOnce sync.Once
	spec     *openapi3.T
	specErr  error
}

func NewRouter(cfg config.Config, services Services, opts ...Option) *Router {
	rt := &Router{
		cfg:      cfg,
		services: services,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPIDocument)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	if rt.mcp != nil {
		mux.Handle("/mcp", rt.mcp)
	}

	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocuments)
	mux.HandleFunc("DELETE /v1/documents", rt.deleteAllDocuments)
	mux.HandleFunc("GET /v1/documents/export", rt.exportDocuments)
	mux.HandleFunc("GET /v1/documents/{document_id}", rt.getDocument)
	mux.HandleFunc("DELETE /v1/documents/{document_id}", rt.deleteDocument)
	mux.HandleFunc("GET /v1/documents/{document_id}/download", rt.downloadDocument)

	mux.HandleFunc("GET /v1/stats/dashboard", rt.dashboard)
	mux.HandleFunc("GET /v1/stats/suppliers", rt.supplierUsage)
	mux.HandleFunc("GET /v1/stats/products", rt.productSummary)
	mux.HandleFunc("GET /v1/stats/products/monthly", rt.productMonthlySeries)
	mux.HandleFunc("GET /v1/stats/categories", rt.categorySummary)
	mux.HandleFunc("GET /v1/products", rt.productNames)
	mux.HandleFunc("GET /v1/document-types", rt.documentTypes)
	mux.HandleFunc("GET /v1/forecast", rt.forecast)

	mux.HandleFunc("GET /v1/categories", rt.listCategories)
	mux.HandleFunc("GET /v1/categories/lookup", rt.lookupCategory)
	mux.HandleFunc("POST /v1/categories/assign", rt.assignCategory)

	var handler http.Handler = mux
	handler = backpressureMiddlewareWithHook(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait, rt.throttled("overloaded"))
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, rt.throttled("rate_limited"))
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) throttled(reason string) func() {
	if rt.metrics == nil {
		return nil
	}
	return func() { rt.metrics.RecordThrottled(serviceName, reason) }
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
