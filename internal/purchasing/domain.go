package purchasing

import (
	"errors"
	"time"
)

// PurchaseLine is one historical purchase of an item. The "latest" and
// "average" valuation methods read these rows; they are never updated.
type PurchaseLine struct {
	ID         int64     `json:"id"`
	ItemID     int64     `json:"item_id"`
	SupplierID int64     `json:"supplier_id,omitempty"`
	Quantity   float64   `json:"quantity"`
	UnitCost   float64   `json:"unit_cost"`
	RefID      string    `json:"ref_id,omitempty"`
	Note       string    `json:"note,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// ReceiptInput describes a goods receipt to post.
type ReceiptInput struct {
	ItemID         int64
	Quantity       float64
	UnitCost       float64
	SupplierID     int64
	RefID          string
	Note           string
	ActorID        int64
	IdempotencyKey string
}

// Receipt is the posting result.
type Receipt struct {
	Line         PurchaseLine
	InventoryID  int64
	CurrentStock float64
	AverageCost  float64
}

var (
	// ErrInvalidQuantity indicates a non-positive receipt quantity.
	ErrInvalidQuantity = errors.New("purchasing: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("purchasing: unit cost must be >= 0")
	// ErrItemRequired indicates a missing item id.
	ErrItemRequired = errors.New("purchasing: item id required")
)
