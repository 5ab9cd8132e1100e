package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

type categoriesResponse struct {
	Categories  []string                    `json:"categories"`
	Assignments []domain.CategoryAssignment `json:"assignments"`
}

type categoryLookupResponse struct {
	Product  string `json:"product"`
	Category string `json:"category"`
}

type assignCategoryRequest struct {
	Products []string `json:"products"`
	Category string   `json:"category"`
}

// timed reports the latency of one analytics query to metrics.
func (rt *Router) timed(query string) func() {
	if rt.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() { rt.metrics.ObserveAnalytics(serviceName, query, time.Since(start)) }
}

func (rt *Router) dashboard(w http.ResponseWriter, r *http.Request) {
	defer rt.timed("dashboard")()
	stats, err := rt.services.Analytics.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) supplierUsage(w http.ResponseWriter, r *http.Request) {
	defer rt.timed("suppliers")()
	filter, err := bindFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := bindLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	usage, err := rt.services.Analytics.SupplierUsage(r.Context(), filter, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(usage))
}

func (rt *Router) productSummary(w http.ResponseWriter, r *http.Request) {
	defer rt.timed("products")()
	filter, err := bindFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sortBy, err := bindProductSort(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := bindLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	totals, err := rt.services.Analytics.ProductSummary(r.Context(), filter, sortBy, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(totals))
}

func (rt *Router) productMonthlySeries(w http.ResponseWriter, r *http.Request) {
	defer rt.timed("product_monthly")()
	product, err := bindString(r, "product")
	if err != nil {
		writeError(w, err)
		return
	}
	if product == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "product monthly series", errors.New("query parameter 'product' is required")))
		return
	}
	filter, err := bindFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	points, err := rt.services.Analytics.ProductMonthlySeries(r.Context(), filter, product)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(points))
}

func (rt *Router) categorySummary(w http.ResponseWriter, r *http.Request) {
	defer rt.timed("categories")()
	filter, err := bindFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	totals, err := rt.services.Analytics.CategorySummary(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(totals))
}

func (rt *Router) productNames(w http.ResponseWriter, r *http.Request) {
	names, err := rt.services.Analytics.ProductNames(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(names))
}

func (rt *Router) documentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := rt.services.Analytics.DocumentTypes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(types))
}

func (rt *Router) forecast(w http.ResponseWriter, r *http.Request) {
	defer rt.timed("forecast")()
	var horizon *int
	if err := bindQuery(r, "horizon", &horizon); err != nil {
		writeError(w, err)
		return
	}
	months := 0
	if horizon != nil {
		if *horizon <= 0 {
			writeError(w, domain.WrapError(domain.ErrInvalidInput, "bind horizon", fmt.Errorf("horizon must be positive, got %d", *horizon)))
			return
		}
		months = *horizon
	}
	result, err := rt.services.Analytics.Forecast(r.Context(), months)
	if err != nil {
		writeError(w, err)
		return
	}
	result.Products = nonNil(result.Products)
	result.Suggestions = nonNil(result.Suggestions)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := rt.services.Categories.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	assignments, err := rt.services.Categories.Assignments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categoriesResponse{
		Categories:  nonNil(categories),
		Assignments: nonNil(assignments),
	})
}

// lookupCategory resolves one product; unassigned products report the uncategorized label.
func (rt *Router) lookupCategory(w http.ResponseWriter, r *http.Request) {
	product, err := bindString(r, "product")
	if err != nil {
		writeError(w, err)
		return
	}
	if product == "" {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "lookup category", errors.New("query parameter 'product' is required")))
		return
	}
	category, err := rt.services.Categories.Lookup(r.Context(), product)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryLookupResponse{Product: product, Category: category})
}

func (rt *Router) assignCategory(w http.ResponseWriter, r *http.Request) {
	var req assignCategoryRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.services.Categories.Assign(r.Context(), req.Products, req.Category); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": req.Category,
		"products": len(req.Products),
	})
}

// nonNil keeps empty collections encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

const maxJSONBody = 1 << 20

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request body", err)
	}
	return nil
}
