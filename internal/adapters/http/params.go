package httpadapter

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

// filterParams mirrors the shared query parameters of the list, stats and
// export endpoints.
type filterParams struct {
	ID         []int64  `json:"id,omitempty"`
	SupplierID []int64  `json:"supplier_id,omitempty"`
	Type       []string `json:"type,omitempty"`
	Invoice    *string  `json:"invoice,omitempty"`
	From       *string  `json:"from,omitempty"`
	To         *string  `json:"to,omitempty"`
}

func bindQuery(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "bind query parameter", fmt.Errorf("%s: %w", name, err))
	}
	return nil
}

func bindFilter(r *http.Request) (domain.DocumentFilter, error) {
	var params filterParams
	for name, dest := range map[string]any{
		"id":          &params.ID,
		"supplier_id": &params.SupplierID,
		"type":        &params.Type,
		"invoice":     &params.Invoice,
		"from":        &params.From,
		"to":          &params.To,
	} {
		if err := bindQuery(r, name, dest); err != nil {
			return domain.DocumentFilter{}, err
		}
	}

	filter := domain.DocumentFilter{
		IDs:         params.ID,
		SupplierIDs: params.SupplierID,
	}
	for _, raw := range params.Type {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Types = append(filter.Types, domain.FileType(part))
			}
		}
	}
	if params.Invoice != nil {
		filter.InvoiceContains = strings.TrimSpace(*params.Invoice)
	}
	var err error
	if filter.From, err = parseMonthParam(params.From); err != nil {
		return domain.DocumentFilter{}, err
	}
	if filter.To, err = parseMonthParam(params.To); err != nil {
		return domain.DocumentFilter{}, err
	}
	if err := filter.Validate(); err != nil {
		return domain.DocumentFilter{}, err
	}
	return filter, nil
}

func parseMonthParam(raw *string) (*domain.Month, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	m, err := domain.ParseMonth(*raw)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func bindLimit(r *http.Request) (int, error) {
	var limit *int
	if err := bindQuery(r, "limit", &limit); err != nil {
		return 0, err
	}
	if limit == nil {
		return 0, nil
	}
	if *limit < 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "bind query parameter", fmt.Errorf("limit must be non-negative"))
	}
	return *limit, nil
}

func bindString(r *http.Request, name string) (string, error) {
	var value *string
	if err := bindQuery(r, name, &value); err != nil {
		return "", err
	}
	if value == nil {
		return "", nil
	}
	return strings.TrimSpace(*value), nil
}

func bindProductSort(r *http.Request) (domain.ProductSort, error) {
	raw, err := bindString(r, "sort")
	if err != nil {
		return "", err
	}
	switch domain.ProductSort(strings.ToLower(raw)) {
	case "", domain.SortByValue:
		return domain.SortByValue, nil
	case domain.SortByQuantity:
		return domain.SortByQuantity, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "bind query parameter", fmt.Errorf("sort must be value or quantity, got %q", raw))
	}
}
