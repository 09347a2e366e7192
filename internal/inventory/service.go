package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nusapos/nusapos/internal/platform/db"
	"github.com/nusapos/nusapos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, inventoryID int64) (Record, error)
	GetByItem(ctx context.Context, itemID int64) (Record, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	ListBelowReorder(ctx context.Context, limit int) ([]Record, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort records ledger metrics.
type MetricsPort interface {
	ObserveMovement(movementType string)
	ObserveConflictRetry()
}

// Service is the single writer path for stock balances. Every mutation locks
// the inventory record, updates the balance and appends exactly one movement
// in the same transaction.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	notifier    LowStockNotifier
	metrics     MetricsPort
	allowNeg    bool
	retryLimit  int
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
	RetryLimit         int
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, notifier LowStockNotifier, metrics MetricsPort, cfg ServiceConfig) *Service {
	retry := cfg.RetryLimit
	if retry <= 0 {
		retry = 3
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		notifier:    notifier,
		metrics:     metrics,
		allowNeg:    cfg.AllowNegativeStock,
		retryLimit:  retry,
	}
}

// AddStock posts an inbound movement and recomputes the moving-average cost.
func (s *Service) AddStock(ctx context.Context, input AddStockInput) (Balance, error) {
	if input.Quantity <= 0 {
		return Balance{}, ErrInvalidQuantity
	}
	if input.UnitCost < 0 {
		return Balance{}, ErrInvalidUnitCost
	}
	if err := validateRef(input.RefID); err != nil {
		return Balance{}, err
	}
	now := time.Now().UTC()
	return s.execute(ctx, input.InventoryID, input.IdempotencyKey, input.ActorID, "add_stock", func(rec Record) (Record, *Movement, error) {
		newAvg := rec.AverageCost
		if rec.CurrentStock <= 0 {
			newAvg = input.UnitCost
		} else {
			newAvg = (rec.CurrentStock*rec.AverageCost + input.Quantity*input.UnitCost) / (rec.CurrentStock + input.Quantity)
		}
		before := rec.CurrentStock
		rec.CurrentStock += input.Quantity
		rec.AverageCost = newAvg
		mv := &Movement{
			InventoryID: rec.ID,
			Type:        MovementIn,
			Quantity:    input.Quantity,
			StockBefore: before,
			StockAfter:  rec.CurrentStock,
			UnitCost:    input.UnitCost,
			TotalCost:   input.Quantity * input.UnitCost,
			RefModule:   input.RefModule,
			RefID:       input.RefID,
			Note:        input.Note,
			ActorID:     input.ActorID,
			PostedAt:    now,
		}
		return rec, mv, nil
	})
}

// AddStockReturn restocks returned goods at the current average cost. The
// average is unchanged because the goods re-enter at the cost they left with.
func (s *Service) AddStockReturn(ctx context.Context, input ReturnInput) (Balance, error) {
	if input.Quantity <= 0 {
		return Balance{}, ErrInvalidQuantity
	}
	if err := validateRef(input.RefID); err != nil {
		return Balance{}, err
	}
	now := time.Now().UTC()
	return s.execute(ctx, input.InventoryID, input.IdempotencyKey, input.ActorID, "add_stock_return", func(rec Record) (Record, *Movement, error) {
		before := rec.CurrentStock
		rec.CurrentStock += input.Quantity
		mv := &Movement{
			InventoryID: rec.ID,
			Type:        MovementReturn,
			Quantity:    input.Quantity,
			StockBefore: before,
			StockAfter:  rec.CurrentStock,
			UnitCost:    rec.AverageCost,
			TotalCost:   input.Quantity * rec.AverageCost,
			RefModule:   input.RefModule,
			RefID:       input.RefID,
			Note:        input.Note,
			ActorID:     input.ActorID,
			PostedAt:    now,
		}
		return rec, mv, nil
	})
}

// RemoveStock posts an outbound movement at the current average cost.
func (s *Service) RemoveStock(ctx context.Context, input RemoveStockInput) (Balance, error) {
	if input.Quantity <= 0 {
		return Balance{}, ErrInvalidQuantity
	}
	movementType := input.Type
	if movementType == "" {
		movementType = MovementOut
	}
	if !OutboundType(movementType) {
		return Balance{}, ErrInvalidMovementType
	}
	if err := validateRef(input.RefID); err != nil {
		return Balance{}, err
	}
	now := time.Now().UTC()
	return s.execute(ctx, input.InventoryID, input.IdempotencyKey, input.ActorID, "remove_stock", func(rec Record) (Record, *Movement, error) {
		if !s.allowNeg && input.Quantity > rec.CurrentStock {
			return Record{}, nil, ErrInsufficientStock
		}
		before := rec.CurrentStock
		rec.CurrentStock -= input.Quantity
		if math.Abs(rec.CurrentStock) < 1e-9 {
			rec.CurrentStock = 0
		}
		mv := &Movement{
			InventoryID: rec.ID,
			Type:        movementType,
			Quantity:    input.Quantity,
			StockBefore: before,
			StockAfter:  rec.CurrentStock,
			UnitCost:    rec.AverageCost,
			TotalCost:   input.Quantity * rec.AverageCost,
			RefModule:   input.RefModule,
			RefID:       input.RefID,
			Note:        input.Note,
			ActorID:     input.ActorID,
			PostedAt:    now,
		}
		return rec, mv, nil
	})
}

// Adjust sets the balance to a counted absolute value, recording the delta.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Balance, error) {
	if input.NewStock < 0 {
		return Balance{}, ErrInvalidQuantity
	}
	now := time.Now().UTC()
	return s.execute(ctx, input.InventoryID, input.IdempotencyKey, input.ActorID, "adjust", func(rec Record) (Record, *Movement, error) {
		delta := input.NewStock - rec.CurrentStock
		if math.Abs(delta) < 1e-9 {
			// Counted value matches the books: nothing to record.
			return rec, nil, nil
		}
		before := rec.CurrentStock
		rec.CurrentStock = input.NewStock
		mv := &Movement{
			InventoryID: rec.ID,
			Type:        MovementAdjustment,
			Quantity:    math.Abs(delta),
			StockBefore: before,
			StockAfter:  rec.CurrentStock,
			UnitCost:    rec.AverageCost,
			TotalCost:   math.Abs(delta) * rec.AverageCost,
			RefModule:   "inventory",
			Note:        input.Reason,
			ActorID:     input.ActorID,
			PostedAt:    now,
		}
		return rec, mv, nil
	})
}

// ReserveStock earmarks quantity for a pending order. Reservations are not
// stock events, so no movement is appended.
func (s *Service) ReserveStock(ctx context.Context, inventoryID int64, quantity float64, actorID int64) (Balance, error) {
	if quantity <= 0 {
		return Balance{}, ErrInvalidQuantity
	}
	return s.execute(ctx, inventoryID, "", actorID, "reserve_stock", func(rec Record) (Record, *Movement, error) {
		if quantity > rec.AvailableStock() {
			return Record{}, nil, ErrInsufficientStock
		}
		rec.ReservedStock += quantity
		return rec, nil, nil
	})
}

// ReleaseReservedStock gives earmarked quantity back to availability.
func (s *Service) ReleaseReservedStock(ctx context.Context, inventoryID int64, quantity float64, actorID int64) (Balance, error) {
	if quantity <= 0 {
		return Balance{}, ErrInvalidQuantity
	}
	return s.execute(ctx, inventoryID, "", actorID, "release_reserved_stock", func(rec Record) (Record, *Movement, error) {
		if quantity > rec.ReservedStock {
			return Record{}, nil, ErrInsufficientReserve
		}
		rec.ReservedStock -= quantity
		return rec, nil, nil
	})
}

// SetLevels maintains the reorder and max stock thresholds.
func (s *Service) SetLevels(ctx context.Context, inventoryID int64, reorderLevel float64, maxStockLevel *float64, actorID int64) (Balance, error) {
	if reorderLevel < 0 {
		return Balance{}, ErrInvalidQuantity
	}
	if maxStockLevel != nil && *maxStockLevel <= 0 {
		return Balance{}, ErrInvalidQuantity
	}
	return s.execute(ctx, inventoryID, "", actorID, "set_levels", func(rec Record) (Record, *Movement, error) {
		rec.ReorderLevel = reorderLevel
		rec.MaxStockLevel = maxStockLevel
		return rec, nil, nil
	})
}

// EnsureRecord returns the inventory record for an item, creating a zero
// balance row the first time the item is stocked.
func (s *Service) EnsureRecord(ctx context.Context, itemID int64) (Record, error) {
	if itemID <= 0 {
		return Record{}, errors.New("inventory: item id required")
	}
	var rec Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetByItemForUpdate(ctx, itemID)
		if err == nil {
			rec = existing
			return nil
		}
		if !errors.Is(err, ErrRecordNotFound) {
			return err
		}
		rec, err = tx.Create(ctx, itemID)
		return err
	})
	return rec, err
}

// GetRecord loads a record with derived fields computed on demand.
func (s *Service) GetRecord(ctx context.Context, inventoryID int64) (Record, error) {
	if inventoryID <= 0 {
		return Record{}, ErrRecordNotFound
	}
	return s.repo.Get(ctx, inventoryID)
}

// StockStatus derives the status classification for a record.
func (s *Service) StockStatus(ctx context.Context, inventoryID int64) (StockStatus, error) {
	rec, err := s.GetRecord(ctx, inventoryID)
	if err != nil {
		return "", err
	}
	return rec.Status(), nil
}

// ListMovements lists ledger history for a record.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.InventoryID <= 0 {
		return nil, ErrRecordNotFound
	}
	return s.repo.ListMovements(ctx, filter)
}

// ListBelowReorder lists records needing replenishment.
func (s *Service) ListBelowReorder(ctx context.Context, limit int) ([]Record, error) {
	return s.repo.ListBelowReorder(ctx, limit)
}

// execute wraps a balance mutation with idempotency, bounded conflict retry,
// the movement append, audit logging and low stock notification.
func (s *Service) execute(ctx context.Context, inventoryID int64, idemKey string, actorID int64, action string, apply func(Record) (Record, *Movement, error)) (Balance, error) {
	if inventoryID <= 0 {
		return Balance{}, ErrRecordNotFound
	}

	insertedKey := false
	if idemKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "inventory"); err != nil {
			return Balance{}, err
		}
		insertedKey = true
	}

	var (
		updated  Record
		movement *Movement
	)
	run := func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			rec, err := tx.GetForUpdate(ctx, inventoryID)
			if err != nil {
				return err
			}
			newRec, mv, err := apply(rec)
			if err != nil {
				return err
			}
			if mv != nil {
				if _, err := tx.InsertMovement(ctx, *mv); err != nil {
					return err
				}
			}
			if err := tx.UpdateBalance(ctx, newRec); err != nil {
				return err
			}
			updated = newRec
			movement = mv
			return nil
		})
	}

	var err error
	for attempt := 0; attempt < s.retryLimit; attempt++ {
		err = run()
		if err == nil || !db.IsSerializationFailure(err) {
			break
		}
		if s.metrics != nil {
			s.metrics.ObserveConflictRetry()
		}
	}
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		if db.IsSerializationFailure(err) {
			return Balance{}, fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
		}
		return Balance{}, err
	}

	if movement != nil && s.metrics != nil {
		s.metrics.ObserveMovement(string(movement.Type))
	}
	if s.audit != nil {
		meta := map[string]any{
			"inventory_id":  updated.ID,
			"item_id":       updated.ItemID,
			"current_stock": updated.CurrentStock,
			"reserved":      updated.ReservedStock,
		}
		if movement != nil {
			meta["movement_type"] = string(movement.Type)
			meta["quantity"] = movement.Quantity
		}
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   fmt.Sprintf("inventory:%s", action),
			Entity:   "inventory_record",
			EntityID: fmt.Sprintf("%d", updated.ID),
			Meta:     meta,
		})
	}
	if s.notifier != nil && movement != nil && updated.CurrentStock <= updated.ReorderLevel {
		_ = s.notifier.HandleLowStock(ctx, LowStockEvent{
			InventoryID:  updated.ID,
			ItemID:       updated.ItemID,
			CurrentStock: updated.CurrentStock,
			ReorderLevel: updated.ReorderLevel,
			Status:       updated.Status(),
			OccurredAt:   time.Now().UTC(),
		})
	}

	return Balance{
		InventoryID:   updated.ID,
		ItemID:        updated.ItemID,
		CurrentStock:  updated.CurrentStock,
		ReservedStock: updated.ReservedStock,
		AverageCost:   updated.AverageCost,
		Status:        updated.Status(),
	}, nil
}

func validateRef(refID string) error {
	if refID == "" {
		return nil
	}
	if _, err := uuid.Parse(refID); err != nil {
		return fmt.Errorf("inventory: invalid ref id: %w", err)
	}
	return nil
}
