package ports

import (
	"context"
	"io"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

// DocumentIngestor is the inbound contract for multi-file uploads.
type DocumentIngestor interface {
	IngestBatch(ctx context.Context, uploads []domain.Upload) []domain.IngestResult
}

// DocumentReader lists, fetches, exports and removes stored documents.
type DocumentReader interface {
	List(ctx context.Context, filter domain.DocumentFilter) ([]domain.DocumentSummary, error)
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	Download(ctx context.Context, id int64) (io.ReadCloser, string, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int, error)
	ExportRows(ctx context.Context, filter domain.DocumentFilter) ([]string, [][]string, error)
}

// AnalyticsService answers filtered aggregation queries.
type AnalyticsService interface {
	Dashboard(ctx context.Context) (domain.DashboardStats, error)
	SupplierUsage(ctx context.Context, filter domain.DocumentFilter, limit int) ([]domain.SupplierUsage, error)
	ProductSummary(ctx context.Context, filter domain.DocumentFilter, sortBy domain.ProductSort, limit int) ([]domain.ProductTotals, error)
	CategorySummary(ctx context.Context, filter domain.DocumentFilter) ([]domain.CategoryTotals, error)
	ProductMonthlySeries(ctx context.Context, filter domain.DocumentFilter, product string) ([]domain.MonthlyPoint, error)
	ProductNames(ctx context.Context) ([]string, error)
	DocumentTypes(ctx context.Context) ([]domain.FileType, error)
	Forecast(ctx context.Context, horizonMonths int) (domain.Forecast, error)
}

// CategoryMapper is the inbound contract for user-edited product categories.
type CategoryMapper interface {
	Assign(ctx context.Context, products []string, category string) error
	Lookup(ctx context.Context, product string) (string, error)
	ListCategories(ctx context.Context) ([]string, error)
	Assignments(ctx context.Context) ([]domain.CategoryAssignment, error)
}
