package products

import (
	"errors"
	"time"
)

// Product is a sellable menu product. Cost holds the last committed HPP;
// Price is the sale price. Both are updated only through the pricing flow.
type Product struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Cost      float64   `json:"cost"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates an unknown product id.
	ErrNotFound = errors.New("products: product not found")
	// ErrDuplicateCode indicates a code collision.
	ErrDuplicateCode = errors.New("products: code already in use")
)
