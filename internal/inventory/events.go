package inventory

import (
	"context"
	"time"
)

// LowStockEvent is emitted after a committed movement leaves a record at or
// below its reorder level.
type LowStockEvent struct {
	InventoryID  int64
	ItemID       int64
	CurrentStock float64
	ReorderLevel float64
	Status       StockStatus
	OccurredAt   time.Time
}

// LowStockNotifier receives low stock events for alerting or dashboards.
type LowStockNotifier interface {
	HandleLowStock(ctx context.Context, evt LowStockEvent) error
}
