package catalog

import (
	"context"
	"errors"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns storefront products. Inactive products are only included when
// the caller explicitly asks for them (admin views).
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	if filters.Source != "" && !ValidSource(filters.Source) {
		return nil, 0, errors.New("unknown source filter")
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Stats(ctx context.Context, source string) (Stats, error) {
	if !ValidSource(source) {
		return Stats{}, errors.New("unknown source")
	}
	return s.repo.Stats(ctx, source)
}
