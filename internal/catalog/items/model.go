package items

import (
	"errors"
	"time"
)

// Item is the master record for a stocked ingredient or raw material.
// CostPerUnit is the flat reference cost used when no purchase history or
// composition override applies.
type Item struct {
	ID          int64      `json:"id"`
	SKU         string     `json:"sku"`
	Name        string     `json:"name"`
	Unit        string     `json:"unit"`
	CostPerUnit float64    `json:"cost_per_unit"`
	Active      bool       `json:"is_active"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Archived reports whether the item carries a tombstone. Callers decide
// explicitly whether archived rows are wanted; queries never filter silently.
func (i Item) Archived() bool {
	return i.ArchivedAt != nil
}

var (
	// ErrNotFound indicates an unknown item id.
	ErrNotFound = errors.New("items: item not found")
	// ErrDuplicateSKU indicates a SKU collision on create/update.
	ErrDuplicateSKU = errors.New("items: sku already in use")
)
