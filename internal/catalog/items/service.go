package items

import (
	"context"
	"time"

	"github.com/nusapos/nusapos/internal/shared"
)

// Service wraps repository access with validation.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// GetMany loads a batch of items keyed by id. Missing ids are simply absent
// from the map; the cost rollup decides how to treat them.
func (s *Service) GetMany(ctx context.Context, ids []int64) (map[int64]Item, error) {
	return s.repo.GetMany(ctx, ids)
}

func (s *Service) Create(ctx context.Context, item Item) (Item, error) {
	if err := s.validate(item); err != nil {
		return Item{}, err
	}
	return s.repo.Create(ctx, item)
}

func (s *Service) Update(ctx context.Context, id int64, item Item) error {
	if id <= 0 {
		return ErrNotFound
	}
	if err := s.validate(item); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, item)
}

// Archive tombstones an item. The row stays queryable when callers ask for
// archived records explicitly.
func (s *Service) Archive(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	return s.repo.Archive(ctx, id, time.Now().UTC())
}
