package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/core/ports"
)

const (
	serverName    = "purchase-insights"
	serverVersion = "1.0.0"
	serviceName   = "api"
)

// Metrics counts tool invocations by outcome.
type Metrics interface {
	RecordToolCall(service, tool, status string)
}

type toolHandler func(ctx context.Context, req mcp.CallToolRequest) (any, error)

// Server exposes read-only analytics as MCP tools.
type Server struct {
	analytics ports.AnalyticsService
	documents ports.DocumentReader
	metrics   Metrics
	logger    *slog.Logger
	mcp       *server.MCPServer
}

func New(analytics ports.AnalyticsService, documents ports.DocumentReader, metrics Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		analytics: analytics,
		documents: documents,
		metrics:   metrics,
		logger:    logger,
		mcp:       server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.register()
	return s
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func (s *Server) register() {
	s.add(mcp.NewTool("product_summary",
		append(filterOptions(),
			mcp.WithDescription("Total quantity and value per product, ranked by value or quantity."),
			mcp.WithString("sort", mcp.Description("value or quantity"), mcp.Enum("value", "quantity")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of products; 0 returns all.")),
		)...,
	), s.productSummary)

	s.add(mcp.NewTool("category_summary",
		append(filterOptions(),
			mcp.WithDescription("Totals per product category; unassigned products fall into uncategorized."),
		)...,
	), s.categorySummary)

	s.add(mcp.NewTool("product_monthly_series",
		append(filterOptions(),
			mcp.WithDescription("Monthly quantity, value and average unit price of one product."),
			mcp.WithString("product", mcp.Required(), mcp.Description("Exact product name.")),
		)...,
	), s.productMonthlySeries)

	s.add(mcp.NewTool("forecast",
		mcp.WithDescription("Projected demand per product and purchasing suggestions."),
		mcp.WithNumber("horizon", mcp.Description("Months ahead to project; 0 uses the configured default.")),
	), s.forecast)

	s.add(mcp.NewTool("list_documents",
		append(filterOptions(),
			mcp.WithDescription("Stored purchase documents matching the filter."),
		)...,
	), s.listDocuments)
}

func filterOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("from", mcp.Description("First month, YYYY-MM.")),
		mcp.WithString("to", mcp.Description("Last month, YYYY-MM, inclusive.")),
		mcp.WithNumber("supplier_id", mcp.Description("Restrict to one supplier.")),
		mcp.WithString("type", mcp.Description("Comma-separated document types: page, markup.")),
		mcp.WithString("invoice", mcp.Description("Case-insensitive invoice number substring.")),
	}
}

func (s *Server) add(tool mcp.Tool, handle toolHandler) {
	s.mcp.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.call(ctx, tool.Name, req, handle), nil
	})
}

func (s *Server) call(ctx context.Context, name string, req mcp.CallToolRequest, handle toolHandler) *mcp.CallToolResult {
	result, err := handle(ctx, req)
	if err != nil {
		s.record(name, domain.FailureReason(err))
		s.logger.Warn("mcp_tool_failed", "tool", name, "error", err)
		return mcp.NewToolResultError(err.Error())
	}
	payload, err := json.Marshal(result)
	if err != nil {
		s.record(name, "internal_error")
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	s.record(name, "ok")
	return mcp.NewToolResultText(string(payload))
}

func (s *Server) record(tool, status string) {
	if s.metrics != nil {
		s.metrics.RecordToolCall(serviceName, tool, status)
	}
}

func (s *Server) productSummary(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	filter, err := filterFromRequest(req)
	if err != nil {
		return nil, err
	}
	sortBy := domain.ProductSort(strings.ToLower(req.GetString("sort", string(domain.SortByValue))))
	if sortBy != domain.SortByValue && sortBy != domain.SortByQuantity {
		return nil, domain.WrapError(domain.ErrInvalidInput, "product summary", fmt.Errorf("unknown sort %q", sortBy))
	}
	return s.analytics.ProductSummary(ctx, filter, sortBy, req.GetInt("limit", 0))
}

func (s *Server) categorySummary(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	filter, err := filterFromRequest(req)
	if err != nil {
		return nil, err
	}
	return s.analytics.CategorySummary(ctx, filter)
}

func (s *Server) productMonthlySeries(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	product, err := req.RequireString("product")
	if err != nil || strings.TrimSpace(product) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "product monthly series", fmt.Errorf("product is required"))
	}
	filter, err := filterFromRequest(req)
	if err != nil {
		return nil, err
	}
	return s.analytics.ProductMonthlySeries(ctx, filter, strings.TrimSpace(product))
}

func (s *Server) forecast(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return s.analytics.Forecast(ctx, req.GetInt("horizon", 0))
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	filter, err := filterFromRequest(req)
	if err != nil {
		return nil, err
	}
	return s.documents.List(ctx, filter)
}

func filterFromRequest(req mcp.CallToolRequest) (domain.DocumentFilter, error) {
	var filter domain.DocumentFilter
	if id := req.GetInt("supplier_id", 0); id > 0 {
		filter.SupplierIDs = []int64{int64(id)}
	}
	for _, part := range strings.Split(req.GetString("type", ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			filter.Types = append(filter.Types, domain.FileType(part))
		}
	}
	filter.InvoiceContains = strings.TrimSpace(req.GetString("invoice", ""))

	for key, dest := range map[string]**domain.Month{"from": &filter.From, "to": &filter.To} {
		raw := strings.TrimSpace(req.GetString(key, ""))
		if raw == "" {
			continue
		}
		m, err := domain.ParseMonth(raw)
		if err != nil {
			return domain.DocumentFilter{}, err
		}
		*dest = &m
	}
	return filter, filter.Validate()
}
