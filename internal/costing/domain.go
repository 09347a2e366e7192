package costing

import (
	"errors"
	"time"
)

// Method selects how component unit costs are valued when rolling up HPP.
type Method string

const (
	// MethodCurrent values components at the item's flat reference cost.
	MethodCurrent Method = "current"
	// MethodLatest values components at the most recent purchase cost.
	MethodLatest Method = "latest"
	// MethodAverage values components at the average historical purchase cost.
	MethodAverage Method = "average"
)

// Valid reports whether m is one of the known valuation methods.
func (m Method) Valid() bool {
	switch m {
	case MethodCurrent, MethodLatest, MethodAverage:
		return true
	}
	return false
}

// Line cost sources. Callers can tell a purchase-history valuation apart
// from the flat-cost fallback used when an item has no purchase lines yet.
const (
	SourceOverride        = "override"
	SourceFlat            = "flat"
	SourcePurchaseHistory = "purchase_history"
)

// Line is one component of a cost breakdown.
type Line struct {
	ItemID         int64   `json:"item_id"`
	ItemName       string  `json:"item_name"`
	Unit           string  `json:"unit"`
	QuantityNeeded float64 `json:"quantity_needed"`
	UnitCost       float64 `json:"unit_cost"`
	LineTotal      float64 `json:"line_total"`
	Source         string  `json:"source"`
}

// Breakdown is the full HPP rollup for a product under one valuation
// method. It is a point-in-time computed value with no lifecycle of its own.
type Breakdown struct {
	ProductID    int64     `json:"product_id"`
	Method       Method    `json:"method"`
	Lines        []Line    `json:"lines"`
	TotalHPP     float64   `json:"total_hpp"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// PriceSuggestion is the result of a markup based price derivation.
type PriceSuggestion struct {
	HPP            float64 `json:"hpp"`
	MarkupPct      float64 `json:"markup_percentage"`
	SuggestedPrice float64 `json:"suggested_price"`
	ProfitMargin   float64 `json:"profit_margin"`
}

// ApplyResult reports the committed pricing change.
type ApplyResult struct {
	ProductID  int64   `json:"product_id"`
	OldCost    float64 `json:"old_cost"`
	NewCost    float64 `json:"new_cost"`
	NewPrice   float64 `json:"new_price"`
	Difference float64 `json:"difference"`
}

var (
	// ErrProductNotFound indicates an unknown product id.
	ErrProductNotFound = errors.New("costing: product not found")
	// ErrItemNotFound indicates a composition link pointing at a missing item.
	ErrItemNotFound = errors.New("costing: composition references unknown item")
	// ErrCompositionCycle indicates the bill of materials loops.
	ErrCompositionCycle = errors.New("costing: composition cycle")
	// ErrUnknownMethod indicates an unrecognised valuation method.
	ErrUnknownMethod = errors.New("costing: unknown valuation method")
	// ErrInvalidMarkup indicates a negative markup percentage.
	ErrInvalidMarkup = errors.New("costing: markup percentage must be >= 0")
	// ErrInvalidHPP indicates a zero HPP where a markup must be derived.
	ErrInvalidHPP = errors.New("costing: hpp must be non-zero to derive markup")
	// ErrPriceInputRequired indicates neither a markup nor a target price was given.
	ErrPriceInputRequired = errors.New("costing: markup percentage or target price required")
)
