package mcpadapter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/core/ports"
)

type analyticsFake struct {
	ports.AnalyticsService
	filter  domain.DocumentFilter
	sortBy  domain.ProductSort
	limit   int
	product string
	horizon int
}

func (f *analyticsFake) ProductSummary(_ context.Context, filter domain.DocumentFilter, sortBy domain.ProductSort, limit int) ([]domain.ProductTotals, error) {
	f.filter, f.sortBy, f.limit = filter, sortBy, limit
	return []domain.ProductTotals{{Product: "Widget", TotalQuantity: decimal.NewFromInt(5), TotalValue: decimal.NewFromInt(50)}}, nil
}

func (f *analyticsFake) CategorySummary(_ context.Context, filter domain.DocumentFilter) ([]domain.CategoryTotals, error) {
	f.filter = filter
	return []domain.CategoryTotals{{Category: domain.Uncategorized}}, nil
}

func (f *analyticsFake) ProductMonthlySeries(_ context.Context, filter domain.DocumentFilter, product string) ([]domain.MonthlyPoint, error) {
	f.filter, f.product = filter, product
	return nil, nil
}

func (f *analyticsFake) Forecast(_ context.Context, horizon int) (domain.Forecast, error) {
	f.horizon = horizon
	if horizon > 36 {
		return domain.Forecast{}, domain.WrapError(domain.ErrInvalidInput, "forecast", io.EOF)
	}
	return domain.Forecast{Suggestions: []string{"buy more"}}, nil
}

type documentsFake struct {
	ports.DocumentReader
	filter domain.DocumentFilter
}

func (f *documentsFake) List(_ context.Context, filter domain.DocumentFilter) ([]domain.DocumentSummary, error) {
	f.filter = filter
	return []domain.DocumentSummary{{ID: 1, Filename: "a.xml"}}, nil
}

type toolMetricsFake struct {
	calls []string
}

func (m *toolMetricsFake) RecordToolCall(_, tool, status string) {
	m.calls = append(m.calls, tool+":"+status)
}

func newTestServer() (*Server, *analyticsFake, *documentsFake, *toolMetricsFake) {
	analytics := &analyticsFake{}
	documents := &documentsFake{}
	metrics := &toolMetricsFake{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(analytics, documents, metrics, logger), analytics, documents, metrics
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestProductSummaryToolPassesFilter(t *testing.T) {
	s, analytics, _, metrics := newTestServer()

	res := s.call(context.Background(), "product_summary", callRequest("product_summary", map[string]any{
		"from":        "2024-01",
		"to":          "2024-03",
		"supplier_id": float64(7),
		"type":        "markup, page",
		"sort":        "quantity",
		"limit":       float64(3),
	}), s.productSummary)

	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	var totals []domain.ProductTotals
	if err := json.Unmarshal([]byte(resultText(t, res)), &totals); err != nil {
		t.Fatalf("decode tool output: %v", err)
	}
	if len(totals) != 1 || totals[0].Product != "Widget" {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if analytics.sortBy != domain.SortByQuantity || analytics.limit != 3 {
		t.Fatalf("unexpected ranking args: sort=%s limit=%d", analytics.sortBy, analytics.limit)
	}
	f := analytics.filter
	if f.From == nil || f.From.String() != "2024-01" || f.To == nil || f.To.String() != "2024-03" {
		t.Fatalf("unexpected date range: %+v", f)
	}
	if len(f.SupplierIDs) != 1 || f.SupplierIDs[0] != 7 || len(f.Types) != 2 {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if len(metrics.calls) != 1 || metrics.calls[0] != "product_summary:ok" {
		t.Fatalf("unexpected metrics: %v", metrics.calls)
	}
}

func TestToolRejectsInvalidFilter(t *testing.T) {
	s, _, _, metrics := newTestServer()

	res := s.call(context.Background(), "category_summary", callRequest("category_summary", map[string]any{
		"from": "2024-05",
		"to":   "2024-01",
	}), s.categorySummary)

	if !res.IsError {
		t.Fatalf("expected tool error for inverted range")
	}
	if metrics.calls[0] != "category_summary:invalid_input" {
		t.Fatalf("unexpected metrics: %v", metrics.calls)
	}
}

func TestMonthlySeriesToolRequiresProduct(t *testing.T) {
	s, analytics, _, _ := newTestServer()

	res := s.call(context.Background(), "product_monthly_series", callRequest("product_monthly_series", map[string]any{}), s.productMonthlySeries)
	if !res.IsError {
		t.Fatalf("expected error without product")
	}

	res = s.call(context.Background(), "product_monthly_series", callRequest("product_monthly_series", map[string]any{
		"product": " Widget ",
	}), s.productMonthlySeries)
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, res))
	}
	if analytics.product != "Widget" {
		t.Fatalf("expected trimmed product, got %q", analytics.product)
	}
}

func TestForecastToolUsesHorizon(t *testing.T) {
	s, analytics, _, _ := newTestServer()

	res := s.call(context.Background(), "forecast", callRequest("forecast", map[string]any{"horizon": float64(6)}), s.forecast)
	if res.IsError || analytics.horizon != 6 {
		t.Fatalf("expected horizon 6, got %d (error=%v)", analytics.horizon, res.IsError)
	}

	res = s.call(context.Background(), "forecast", callRequest("forecast", map[string]any{"horizon": float64(99)}), s.forecast)
	if !res.IsError {
		t.Fatalf("expected error for out-of-range horizon")
	}
}

func TestListDocumentsTool(t *testing.T) {
	s, _, documents, _ := newTestServer()

	res := s.call(context.Background(), "list_documents", callRequest("list_documents", map[string]any{"invoice": "F-1"}), s.listDocuments)
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, res))
	}
	if documents.filter.InvoiceContains != "F-1" {
		t.Fatalf("expected invoice filter, got %+v", documents.filter)
	}
}

func TestHandlerIsMountable(t *testing.T) {
	s, _, _, _ := newTestServer()
	if s.Handler() == nil {
		t.Fatalf("expected streamable http handler")
	}
}
