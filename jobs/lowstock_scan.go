package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nusapos/nusapos/internal/inventory"
	jobmetrics "github.com/nusapos/nusapos/internal/jobs"
)

// TaskLowStockScan sweeps inventory records for low stock alerts. Movement
// commits already notify inline; the scan catches records that dropped below
// their reorder level through a level change rather than a movement.
const TaskLowStockScan = "inventory:lowstock-scan"

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the scan.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// LowStockLister serves records at or below their reorder level.
type LowStockLister interface {
	ListBelowReorder(ctx context.Context, limit int) ([]inventory.Record, error)
}

// LowStockScanJob walks low records and pushes an event per record.
type LowStockScanJob struct {
	Ledger   LowStockLister
	Notifier inventory.LowStockNotifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(ledger LowStockLister, notifier inventory.LowStockNotifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Ledger: ledger, Notifier: notifier, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("lowstock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	records, err := j.Ledger.ListBelowReorder(ctx, 0)
	if err != nil {
		resultErr = err
		j.logger().Error("list low stock", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddLowStockAlerts(len(records))

	now := time.Now().UTC()
	for _, rec := range records {
		j.logger().Warn("low stock",
			slog.Int64("inventory_id", rec.ID),
			slog.Int64("item_id", rec.ItemID),
			slog.Float64("current_stock", rec.CurrentStock),
			slog.Float64("reorder_level", rec.ReorderLevel),
		)
		if j.Notifier == nil {
			continue
		}
		_ = j.Notifier.HandleLowStock(ctx, inventory.LowStockEvent{
			InventoryID:  rec.ID,
			ItemID:       rec.ItemID,
			CurrentStock: rec.CurrentStock,
			ReorderLevel: rec.ReorderLevel,
			Status:       rec.Status(),
			OccurredAt:   now,
		})
	}
	return resultErr
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
