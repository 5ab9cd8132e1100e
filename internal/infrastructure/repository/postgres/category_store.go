package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

type CategoryStore struct {
	db *sql.DB
}

func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) Assign(ctx context.Context, products []string, category string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "assign category", fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO category_labels (label, created_at) VALUES ($1, $2)
ON CONFLICT (label) DO NOTHING
`, category, now); err != nil {
		return domain.WrapError(domain.ErrTemporary, "assign category", err)
	}

	for _, product := range products {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO product_categories (product, category, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (product) DO UPDATE SET category = EXCLUDED.category, updated_at = EXCLUDED.updated_at
`, product, category, now); err != nil {
			return domain.WrapError(domain.ErrTemporary, "assign category", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "assign category", fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *CategoryStore) Lookup(ctx context.Context, product string) (string, bool, error) {
	var category string
	err := s.db.QueryRowContext(ctx, `SELECT category FROM product_categories WHERE product = $1`, product).Scan(&category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, domain.WrapError(domain.ErrTemporary, "lookup category", err)
	}
	return category, true, nil
}

func (s *CategoryStore) Assignments(ctx context.Context) ([]domain.CategoryAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT product, category FROM product_categories ORDER BY seq`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list assignments", err)
	}
	defer rows.Close()

	out := make([]domain.CategoryAssignment, 0)
	for rows.Next() {
		var a domain.CategoryAssignment
		if err := rows.Scan(&a.Product, &a.Category); err != nil {
			return nil, domain.WrapError(domain.ErrTemporary, "list assignments", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list assignments", err)
	}
	return out, nil
}

func (s *CategoryStore) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label FROM category_labels ORDER BY label`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list categories", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, domain.WrapError(domain.ErrTemporary, "list categories", err)
		}
		out = append(out, label)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list categories", err)
	}
	return out, nil
}
