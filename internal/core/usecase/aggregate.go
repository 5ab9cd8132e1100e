package usecase

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

// Aggregations below are pure over an already filtered document slice.
// Orderings derive from slice order only, never from map iteration.

var storedTypes = []domain.FileType{domain.FileTypePage, domain.FileTypeMarkup}

func dashboardStats(docs []domain.Document) domain.DashboardStats {
	counts := make(map[domain.FileType]int, len(storedTypes))
	sizes := make([]int64, 0, len(docs))
	var (
		pages     int
		pagedDocs int
	)
	for _, doc := range docs {
		counts[doc.FileType]++
		sizes = append(sizes, doc.SizeBytes)
		if doc.FileType == domain.FileTypePage && doc.PageCount != nil {
			pages += *doc.PageCount
			pagedDocs++
		}
	}

	out := domain.DashboardStats{
		TypeCounts:    make([]domain.TypeCount, 0, len(storedTypes)),
		Sizes:         sizes,
		DocumentCount: len(docs),
	}
	for _, t := range storedTypes {
		out.TypeCounts = append(out.TypeCounts, domain.TypeCount{FileType: t, Count: counts[t]})
	}
	if pagedDocs > 0 {
		avg := float64(pages) / float64(pagedDocs)
		out.AveragePageCount = &avg
	}
	return out
}

func supplierUsage(docs []domain.Document, suppliers map[int64]domain.Supplier) []domain.SupplierUsage {
	index := make(map[int64]int)
	out := make([]domain.SupplierUsage, 0)
	for _, doc := range docs {
		if doc.SupplierID == nil {
			continue
		}
		id := *doc.SupplierID
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, domain.SupplierUsage{SupplierID: id, SupplierName: suppliers[id].Name})
		}
		out[i].DocumentCount++
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].DocumentCount > out[b].DocumentCount
	})
	return out
}

// productTotals sums quantity and value per product name in first-encounter order.
func productTotals(docs []domain.Document) []domain.ProductTotals {
	index := make(map[string]int)
	out := make([]domain.ProductTotals, 0)
	for _, doc := range docs {
		for _, item := range doc.LineItems {
			i, ok := index[item.Product]
			if !ok {
				i = len(out)
				index[item.Product] = i
				out = append(out, domain.ProductTotals{Product: item.Product})
			}
			out[i].TotalQuantity = out[i].TotalQuantity.Add(item.Quantity)
			out[i].TotalValue = out[i].TotalValue.Add(item.LineTotal)
		}
	}
	return out
}

func rankProducts(totals []domain.ProductTotals, sortBy domain.ProductSort, limit int) []domain.ProductTotals {
	metric := func(p domain.ProductTotals) decimal.Decimal { return p.TotalValue }
	if sortBy == domain.SortByQuantity {
		metric = func(p domain.ProductTotals) decimal.Decimal { return p.TotalQuantity }
	}
	return topN(totals, metric, limit)
}

// categoryTotals partitions every line item into exactly one category bucket.
// Products without a mapping land in domain.Uncategorized.
func categoryTotals(docs []domain.Document, mapping map[string]string) []domain.CategoryTotals {
	index := make(map[string]int)
	seen := make(map[string]map[string]bool)
	out := make([]domain.CategoryTotals, 0)
	for _, doc := range docs {
		for _, item := range doc.LineItems {
			category := resolveCategory(mapping[item.Product])
			i, ok := index[category]
			if !ok {
				i = len(out)
				index[category] = i
				seen[category] = make(map[string]bool)
				out = append(out, domain.CategoryTotals{Category: category, Products: []string{}})
			}
			out[i].TotalQuantity = out[i].TotalQuantity.Add(item.Quantity)
			out[i].TotalValue = out[i].TotalValue.Add(item.LineTotal)
			if !seen[category][item.Product] {
				seen[category][item.Product] = true
				out[i].Products = append(out[i].Products, item.Product)
			}
		}
	}
	return topN(out, func(c domain.CategoryTotals) decimal.Decimal { return c.TotalValue }, 0)
}

// monthlySeries buckets one product's line items by month, oldest first.
// Items without a date are skipped and buckets with zero quantity are omitted.
func monthlySeries(docs []domain.Document, product string) []domain.MonthlyPoint {
	buckets := make(map[domain.Month]*domain.MonthlyPoint)
	for _, doc := range docs {
		for _, item := range doc.LineItems {
			if item.Product != product {
				continue
			}
			date := itemDate(doc, item)
			if date == nil {
				continue
			}
			m := domain.MonthOf(*date)
			point, ok := buckets[m]
			if !ok {
				point = &domain.MonthlyPoint{Month: m}
				buckets[m] = point
			}
			point.TotalQuantity = point.TotalQuantity.Add(item.Quantity)
			point.TotalValue = point.TotalValue.Add(item.LineTotal)
		}
	}

	out := make([]domain.MonthlyPoint, 0, len(buckets))
	for _, point := range buckets {
		if point.TotalQuantity.IsZero() {
			continue
		}
		point.AverageUnitPrice = point.TotalValue.DivRound(point.TotalQuantity, 4)
		out = append(out, *point)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].Month.Before(out[b].Month)
	})
	return out
}

func productNames(docs []domain.Document) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, doc := range docs {
		for _, item := range doc.LineItems {
			if !seen[item.Product] {
				seen[item.Product] = true
				out = append(out, item.Product)
			}
		}
	}
	sort.Strings(out)
	return out
}

func documentTypes(docs []domain.Document) []domain.FileType {
	present := make(map[domain.FileType]bool, len(storedTypes))
	for _, doc := range docs {
		present[doc.FileType] = true
	}
	out := make([]domain.FileType, 0, len(storedTypes))
	for _, t := range storedTypes {
		if present[t] {
			out = append(out, t)
		}
	}
	return out
}

func itemDate(doc domain.Document, item domain.LineItem) *time.Time {
	if item.DocumentDate != nil {
		return item.DocumentDate
	}
	return doc.DocumentDate
}

// topN orders by metric descending and keeps input order among ties.
// A non-positive limit keeps every element.
func topN[T any](items []T, metric func(T) decimal.Decimal, limit int) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(a, b int) bool {
		return metric(out[a]).GreaterThan(metric(out[b]))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
