package composition

import "errors"

// Link is one bill-of-materials edge. The component is either a raw item
// (ItemID set) or a base product with its own composition (ComponentProductID
// set); exactly one of the two is non-zero.
type Link struct {
	ID                 int64    `json:"id"`
	ProductID          int64    `json:"product_id"`
	ItemID             int64    `json:"item_id,omitempty"`
	ComponentProductID int64    `json:"component_product_id,omitempty"`
	QuantityNeeded     float64  `json:"quantity_needed"`
	Unit               string   `json:"unit"`
	CostOverride       *float64 `json:"cost_override,omitempty"`
	Critical           bool     `json:"is_critical"`
}

// Requirement is a fully expanded BOM line: the item and the total quantity
// needed per unit of the finished product, with duplicate links summed.
type Requirement struct {
	ItemID         int64
	QuantityNeeded float64
	Unit           string
	CostOverride   *float64
	Critical       bool
}

var (
	// ErrProductNotFound indicates an unknown product id.
	ErrProductNotFound = errors.New("composition: product not found")
	// ErrCycle indicates that recursive expansion would loop.
	ErrCycle = errors.New("composition: cycle detected in bill of materials")
	// ErrInvalidLink indicates a malformed composition edge.
	ErrInvalidLink = errors.New("composition: link must target exactly one item or base product with a positive quantity")
)
