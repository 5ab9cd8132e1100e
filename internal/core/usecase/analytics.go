package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/core/ports"
)

type AnalyticsUseCase struct {
	repo       ports.RecordRepository
	categories ports.CategoryStore
	forecast   ForecastConfig
}

func NewAnalyticsUseCase(
	repo ports.RecordRepository,
	categories ports.CategoryStore,
	forecast ForecastConfig,
) *AnalyticsUseCase {
	return &AnalyticsUseCase{
		repo:       repo,
		categories: categories,
		forecast:   forecast,
	}
}

func (uc *AnalyticsUseCase) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	docs, err := uc.repo.Query(ctx, domain.DocumentFilter{})
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("query documents: %w", err)
	}
	return dashboardStats(docs), nil
}

func (uc *AnalyticsUseCase) SupplierUsage(ctx context.Context, filter domain.DocumentFilter, limit int) ([]domain.SupplierUsage, error) {
	docs, err := uc.snapshot(ctx, filter)
	if err != nil {
		return nil, err
	}
	suppliers, err := uc.supplierIndex(ctx)
	if err != nil {
		return nil, err
	}
	usage := supplierUsage(docs, suppliers)
	if limit > 0 && len(usage) > limit {
		usage = usage[:limit]
	}
	return usage, nil
}

func (uc *AnalyticsUseCase) ProductSummary(
	ctx context.Context,
	filter domain.DocumentFilter,
	sortBy domain.ProductSort,
	limit int,
) ([]domain.ProductTotals, error) {
	switch sortBy {
	case "":
		sortBy = domain.SortByValue
	case domain.SortByValue, domain.SortByQuantity:
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "product summary", fmt.Errorf("unknown sort %q", sortBy))
	}

	docs, err := uc.snapshot(ctx, filter)
	if err != nil {
		return nil, err
	}
	return rankProducts(productTotals(docs), sortBy, limit), nil
}

func (uc *AnalyticsUseCase) CategorySummary(ctx context.Context, filter domain.DocumentFilter) ([]domain.CategoryTotals, error) {
	docs, err := uc.snapshot(ctx, filter)
	if err != nil {
		return nil, err
	}
	assignments, err := uc.categories.Assignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list category assignments: %w", err)
	}
	mapping := make(map[string]string, len(assignments))
	for _, a := range assignments {
		mapping[a.Product] = a.Category
	}
	return categoryTotals(docs, mapping), nil
}

func (uc *AnalyticsUseCase) ProductMonthlySeries(ctx context.Context, filter domain.DocumentFilter, product string) ([]domain.MonthlyPoint, error) {
	if strings.TrimSpace(product) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "product monthly series", fmt.Errorf("product is required"))
	}
	docs, err := uc.snapshot(ctx, filter)
	if err != nil {
		return nil, err
	}
	return monthlySeries(docs, product), nil
}

func (uc *AnalyticsUseCase) ProductNames(ctx context.Context) ([]string, error) {
	docs, err := uc.snapshot(ctx, domain.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	return productNames(docs), nil
}

func (uc *AnalyticsUseCase) DocumentTypes(ctx context.Context) ([]domain.FileType, error) {
	docs, err := uc.snapshot(ctx, domain.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	return documentTypes(docs), nil
}

// Forecast projects every dated product and collects advisory suggestions.
// A zero horizon selects the configured one; negative horizons are rejected.
func (uc *AnalyticsUseCase) Forecast(ctx context.Context, horizonMonths int) (domain.Forecast, error) {
	if horizonMonths == 0 {
		horizonMonths = uc.forecast.HorizonMonths
	}
	if horizonMonths <= 0 || horizonMonths > maxForecastHorizon {
		return domain.Forecast{}, domain.WrapError(
			domain.ErrInvalidInput, "forecast",
			fmt.Errorf("horizon must be between 1 and %d months", maxForecastHorizon),
		)
	}

	docs, err := uc.snapshot(ctx, domain.DocumentFilter{})
	if err != nil {
		return domain.Forecast{}, err
	}
	suppliers, err := uc.supplierIndex(ctx)
	if err != nil {
		return domain.Forecast{}, err
	}

	out := domain.Forecast{
		Products:    make([]domain.ProductForecast, 0),
		Suggestions: make([]string, 0),
	}
	products := make([]string, 0)
	for _, totals := range productTotals(docs) {
		products = append(products, totals.Product)
		series := monthlySeries(docs, totals.Product)
		if len(series) == 0 {
			continue
		}
		projection := projectSeries(totals.Product, series, horizonMonths)
		out.Products = append(out.Products, projection)
		if text, ok := trendSuggestion(projection, uc.forecast); ok {
			out.Suggestions = append(out.Suggestions, text)
		}
	}
	out.Suggestions = append(out.Suggestions, dominanceSuggestions(docs, suppliers, products, uc.forecast.DominanceShare)...)
	return out, nil
}

func (uc *AnalyticsUseCase) snapshot(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	docs, err := uc.repo.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return docs, nil
}

func (uc *AnalyticsUseCase) supplierIndex(ctx context.Context) (map[int64]domain.Supplier, error) {
	suppliers, err := uc.repo.ListSuppliers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	out := make(map[int64]domain.Supplier, len(suppliers))
	for _, s := range suppliers {
		out[s.ID] = s
	}
	return out, nil
}
