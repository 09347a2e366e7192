package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nusapos/nusapos/internal/inventory"
	"github.com/nusapos/nusapos/internal/shared"
)

// RepositoryPort abstracts the purchase line store.
type RepositoryPort interface {
	InsertLine(ctx context.Context, line PurchaseLine) (PurchaseLine, error)
	DeleteLine(ctx context.Context, id int64) error
	ListByItem(ctx context.Context, itemID int64, limit int) ([]PurchaseLine, error)
	LatestUnitCost(ctx context.Context, itemID int64) (float64, bool, error)
	AverageUnitCost(ctx context.Context, itemID int64) (float64, bool, error)
}

// LedgerPort is the slice of the stock ledger a receipt needs.
type LedgerPort interface {
	EnsureRecord(ctx context.Context, itemID int64) (inventory.Record, error)
	AddStock(ctx context.Context, input inventory.AddStockInput) (inventory.Balance, error)
}

// CostCachePort invalidates cached cost breakdowns after a receipt changes
// the purchase history valuation inputs.
type CostCachePort interface {
	Bump(ctx context.Context) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service posts goods receipts and serves valuation queries.
type Service struct {
	repo      RepositoryPort
	ledger    LedgerPort
	costCache CostCachePort
	audit     AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger LedgerPort, costCache CostCachePort, audit AuditPort) *Service {
	return &Service{repo: repo, ledger: ledger, costCache: costCache, audit: audit}
}

// RecordReceipt posts a goods receipt: the purchase line first, then the
// stock ledger movement carrying the idempotency guard. A failed movement
// unwinds the line, so stock never moves without a matching purchase line.
func (s *Service) RecordReceipt(ctx context.Context, input ReceiptInput) (Receipt, error) {
	if input.ItemID <= 0 {
		return Receipt{}, ErrItemRequired
	}
	if input.Quantity <= 0 {
		return Receipt{}, ErrInvalidQuantity
	}
	if input.UnitCost < 0 {
		return Receipt{}, ErrInvalidUnitCost
	}
	if input.RefID != "" {
		if _, err := uuid.Parse(input.RefID); err != nil {
			return Receipt{}, fmt.Errorf("purchasing: invalid ref id: %w", err)
		}
	}

	rec, err := s.ledger.EnsureRecord(ctx, input.ItemID)
	if err != nil {
		return Receipt{}, err
	}

	line, err := s.repo.InsertLine(ctx, PurchaseLine{
		ItemID:     input.ItemID,
		SupplierID: input.SupplierID,
		Quantity:   input.Quantity,
		UnitCost:   input.UnitCost,
		RefID:      input.RefID,
		Note:       input.Note,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		return Receipt{}, err
	}

	balance, err := s.ledger.AddStock(ctx, inventory.AddStockInput{
		InventoryID:    rec.ID,
		Quantity:       input.Quantity,
		UnitCost:       input.UnitCost,
		RefModule:      "purchasing",
		RefID:          input.RefID,
		Note:           input.Note,
		ActorID:        input.ActorID,
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		// The movement is the commit point; without it the line must not
		// feed the valuation methods.
		_ = s.repo.DeleteLine(ctx, line.ID)
		return Receipt{}, err
	}

	if s.costCache != nil {
		// Stale breakdowns also expire by TTL; a failed bump never fails the receipt.
		_ = s.costCache.Bump(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "purchasing:receipt",
			Entity:   "purchase_line",
			EntityID: fmt.Sprintf("%d", line.ID),
			Meta: map[string]any{
				"item_id":   input.ItemID,
				"quantity":  input.Quantity,
				"unit_cost": input.UnitCost,
			},
		})
	}

	return Receipt{
		Line:         line,
		InventoryID:  balance.InventoryID,
		CurrentStock: balance.CurrentStock,
		AverageCost:  balance.AverageCost,
	}, nil
}

// ListByItem returns purchase history, newest first.
func (s *Service) ListByItem(ctx context.Context, itemID int64, limit int) ([]PurchaseLine, error) {
	if itemID <= 0 {
		return nil, ErrItemRequired
	}
	return s.repo.ListByItem(ctx, itemID, limit)
}

// LatestUnitCost serves the "latest" valuation method.
func (s *Service) LatestUnitCost(ctx context.Context, itemID int64) (float64, bool, error) {
	return s.repo.LatestUnitCost(ctx, itemID)
}

// AverageUnitCost serves the "average" valuation method.
func (s *Service) AverageUnitCost(ctx context.Context, itemID int64) (float64, bool, error) {
	return s.repo.AverageUnitCost(ctx, itemID)
}
