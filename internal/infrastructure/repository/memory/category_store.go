package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

// CategoryStore is an upsert-only product to category mapping. Labels are
// remembered even after no product points at them any more.
type CategoryStore struct {
	mu       sync.RWMutex
	mapping  map[string]string
	order    []string
	labels   map[string]struct{}
	labelSeq []string
}

func NewCategoryStore() *CategoryStore {
	return &CategoryStore{
		mapping: make(map[string]string),
		labels:  make(map[string]struct{}),
	}
}

func (s *CategoryStore) Assign(_ context.Context, products []string, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.labels[category]; !ok {
		s.labels[category] = struct{}{}
		s.labelSeq = append(s.labelSeq, category)
	}
	for _, p := range products {
		if _, ok := s.mapping[p]; !ok {
			s.order = append(s.order, p)
		}
		s.mapping[p] = category
	}
	return nil
}

func (s *CategoryStore) Lookup(_ context.Context, product string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, ok := s.mapping[product]
	return category, ok, nil
}

func (s *CategoryStore) Assignments(_ context.Context) ([]domain.CategoryAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CategoryAssignment, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, domain.CategoryAssignment{Product: p, Category: s.mapping[p]})
	}
	return out, nil
}

func (s *CategoryStore) ListCategories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]string(nil), s.labelSeq...)
	sort.Strings(out)
	return out, nil
}
