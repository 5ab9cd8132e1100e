package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/repository/memory"
)

func TestCategoryAssignValidatesInput(t *testing.T) {
	uc := NewCategoryUseCase(memory.NewCategoryStore())
	ctx := context.Background()

	if err := uc.Assign(ctx, []string{"Widget"}, "   "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty category, got %v", err)
	}
	if err := uc.Assign(ctx, []string{" ", ""}, "Tools"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without products, got %v", err)
	}
	if err := uc.Assign(ctx, []string{"Widget"}, "Uncategorized"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected reserved label rejection, got %v", err)
	}
}

func TestCategoryAssignIsIdempotentAndTrims(t *testing.T) {
	uc := NewCategoryUseCase(memory.NewCategoryStore())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := uc.Assign(ctx, []string{"Widget", "", "Widget", "Unknown Thing"}, "  Tools "); err != nil {
			t.Fatalf("Assign() error = %v", err)
		}
	}

	got, _ := uc.Lookup(ctx, "Widget")
	if got != "Tools" {
		t.Fatalf("expected Tools, got %q", got)
	}
	if got, _ := uc.Lookup(ctx, "Bolt"); got != domain.Uncategorized {
		t.Fatalf("expected uncategorized, got %q", got)
	}

	assignments, _ := uc.Assignments(ctx)
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %+v", assignments)
	}
	labels, _ := uc.ListCategories(ctx)
	if len(labels) != 1 || labels[0] != "Tools" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}
