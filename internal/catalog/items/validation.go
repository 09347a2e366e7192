package items

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation wraps field-level validation failures.
var ErrValidation = errors.New("items: validation failed")

func (s *Service) validate(item Item) error {
	if strings.TrimSpace(item.SKU) == "" {
		return fmt.Errorf("%w: sku is required", ErrValidation)
	}
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(item.Unit) == "" {
		return fmt.Errorf("%w: unit is required", ErrValidation)
	}
	if item.CostPerUnit < 0 {
		return fmt.Errorf("%w: cost per unit must be >= 0", ErrValidation)
	}
	return nil
}
