package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nusapos/nusapos/internal/shared"
)

// ErrValidation wraps field-level validation failures.
var ErrValidation = errors.New("products: validation failed")

// Service wraps repository access with validation.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

// Update maintains the descriptive fields and price. Cost is deliberately not
// writable here; it changes only through the pricing flow.
func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return ErrNotFound
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

// ListActiveIDs feeds bulk recalculation.
func (s *Service) ListActiveIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListActiveIDs(ctx)
}

func (s *Service) validate(product Product) error {
	if strings.TrimSpace(product.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrValidation)
	}
	if strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if product.Price < 0 {
		return fmt.Errorf("%w: price must be >= 0", ErrValidation)
	}
	return nil
}
