package inventory

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement from a purchase receipt.
	MovementIn MovementType = "in"
	// MovementOut represents an outbound movement from order fulfillment.
	MovementOut MovementType = "out"
	// MovementAdjustment indicates a manual stock correction.
	MovementAdjustment MovementType = "adjustment"
	// MovementTransfer marks stock leaving for another location.
	MovementTransfer MovementType = "transfer"
	// MovementReturn restocks goods returned by a customer.
	MovementReturn MovementType = "return"
	// MovementDamaged writes off damaged goods.
	MovementDamaged MovementType = "damaged"
	// MovementExpired writes off expired goods.
	MovementExpired MovementType = "expired"
)

// OutboundType reports whether t is a valid reason for RemoveStock.
func OutboundType(t MovementType) bool {
	switch t {
	case MovementOut, MovementTransfer, MovementDamaged, MovementExpired:
		return true
	}
	return false
}

// StockStatus classifies a record's balance against its thresholds.
type StockStatus string

const (
	StatusOutOfStock StockStatus = "out_of_stock"
	StatusLowStock   StockStatus = "low_stock"
	StatusOverstock  StockStatus = "overstock"
	StatusInStock    StockStatus = "in_stock"
)

// Record is the per-item inventory balance row. Balances are mutated only
// through ledger operations, never directly.
type Record struct {
	ID            int64
	ItemID        int64
	CurrentStock  float64
	ReservedStock float64
	ReorderLevel  float64
	MaxStockLevel *float64
	AverageCost   float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AvailableStock is current stock minus reservations.
func (r Record) AvailableStock() float64 {
	return r.CurrentStock - r.ReservedStock
}

// Status derives the stock status from the persisted balances.
func (r Record) Status() StockStatus {
	switch {
	case r.CurrentStock <= 0:
		return StatusOutOfStock
	case r.CurrentStock <= r.ReorderLevel:
		return StatusLowStock
	case r.MaxStockLevel != nil && r.CurrentStock >= *r.MaxStockLevel:
		return StatusOverstock
	default:
		return StatusInStock
	}
}

// Movement is one immutable ledger entry. Quantity is always stored positive;
// the type plus StockBefore/StockAfter carry the direction.
type Movement struct {
	ID          int64
	InventoryID int64
	Type        MovementType
	Quantity    float64
	StockBefore float64
	StockAfter  float64
	UnitCost    float64
	TotalCost   float64
	RefModule   string
	RefID       string
	Note        string
	ActorID     int64
	PostedAt    time.Time
}

// Balance is the snapshot returned by every mutating ledger operation.
type Balance struct {
	InventoryID   int64
	ItemID        int64
	CurrentStock  float64
	ReservedStock float64
	AverageCost   float64
	Status        StockStatus
}

// AddStockInput describes an inbound posting.
type AddStockInput struct {
	InventoryID    int64
	Quantity       float64
	UnitCost       float64
	RefModule      string
	RefID          string
	Note           string
	ActorID        int64
	IdempotencyKey string
}

// ReturnInput restocks returned goods at the current average cost.
type ReturnInput struct {
	InventoryID    int64
	Quantity       float64
	RefModule      string
	RefID          string
	Note           string
	ActorID        int64
	IdempotencyKey string
}

// RemoveStockInput describes an outbound posting.
type RemoveStockInput struct {
	InventoryID    int64
	Quantity       float64
	Type           MovementType
	RefModule      string
	RefID          string
	Note           string
	ActorID        int64
	IdempotencyKey string
}

// AdjustInput sets the balance to an absolute counted value.
type AdjustInput struct {
	InventoryID    int64
	NewStock       float64
	Reason         string
	ActorID        int64
	IdempotencyKey string
}

// MovementFilter filters ledger history queries.
type MovementFilter struct {
	InventoryID int64
	From        time.Time
	To          time.Time
	Limit       int
}

// Ledger errors.
var (
	ErrInvalidQuantity     = errors.New("inventory: quantity must be positive")
	ErrInvalidUnitCost     = errors.New("inventory: unit cost must be >= 0")
	ErrInvalidMovementType = errors.New("inventory: movement type not valid for operation")
	ErrInsufficientStock   = errors.New("inventory: insufficient stock")
	ErrInsufficientReserve = errors.New("inventory: release exceeds reserved stock")
	ErrRecordNotFound      = errors.New("inventory: record not found")
	ErrConcurrencyConflict = errors.New("inventory: concurrent update conflict, retry the operation")
)
