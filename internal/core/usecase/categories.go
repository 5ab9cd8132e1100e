package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/core/ports"
)

type CategoryUseCase struct {
	store ports.CategoryStore
}

func NewCategoryUseCase(store ports.CategoryStore) *CategoryUseCase {
	return &CategoryUseCase{store: store}
}

// Assign maps every listed product to category. Product names are not
// checked against stored line items.
func (uc *CategoryUseCase) Assign(ctx context.Context, products []string, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return domain.WrapError(domain.ErrInvalidInput, "assign category", errors.New("category is required"))
	}
	if strings.EqualFold(category, domain.Uncategorized) {
		return domain.WrapError(domain.ErrInvalidInput, "assign category", fmt.Errorf("%q is reserved", domain.Uncategorized))
	}

	seen := make(map[string]bool, len(products))
	names := make([]string, 0, len(products))
	for _, p := range products {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		names = append(names, p)
	}
	if len(names) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "assign category", errors.New("at least one product is required"))
	}

	if err := uc.store.Assign(ctx, names, category); err != nil {
		return fmt.Errorf("store category assignment: %w", err)
	}
	return nil
}

func (uc *CategoryUseCase) Lookup(ctx context.Context, product string) (string, error) {
	category, ok, err := uc.store.Lookup(ctx, product)
	if err != nil {
		return "", fmt.Errorf("lookup category: %w", err)
	}
	if !ok {
		category = ""
	}
	return resolveCategory(category), nil
}

func (uc *CategoryUseCase) ListCategories(ctx context.Context) ([]string, error) {
	labels, err := uc.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return labels, nil
}

func (uc *CategoryUseCase) Assignments(ctx context.Context) ([]domain.CategoryAssignment, error) {
	assignments, err := uc.store.Assignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list category assignments: %w", err)
	}
	return assignments, nil
}

// resolveCategory maps an absent assignment to the uncategorized bucket.
func resolveCategory(assigned string) string {
	if assigned == "" {
		return domain.Uncategorized
	}
	return assigned
}
