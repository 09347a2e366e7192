package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	records   map[int64]Record
	movements []Movement
	nextID    int64
	nextMvID  int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[int64]Record)}
}

func (r *memoryRepo) seed(rec Record) Record {
	r.nextID++
	rec.ID = r.nextID
	r.records[rec.ID] = rec
	return rec
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, inventoryID int64) (Record, error) {
	rec, ok := r.records[inventoryID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (r *memoryRepo) GetByItem(ctx context.Context, itemID int64) (Record, error) {
	for _, rec := range r.records {
		if rec.ItemID == itemID {
			return rec, nil
		}
	}
	return Record{}, ErrRecordNotFound
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	result := []Movement{}
	for _, mv := range r.movements {
		if mv.InventoryID == filter.InventoryID {
			result = append(result, mv)
		}
	}
	return result, nil
}

func (r *memoryRepo) ListBelowReorder(ctx context.Context, limit int) ([]Record, error) {
	result := []Record{}
	for _, rec := range r.records {
		if rec.CurrentStock <= rec.ReorderLevel {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, inventoryID int64) (Record, error) {
	return tx.repo.Get(ctx, inventoryID)
}

func (tx *memoryTx) GetByItemForUpdate(ctx context.Context, itemID int64) (Record, error) {
	return tx.repo.GetByItem(ctx, itemID)
}

func (tx *memoryTx) Create(ctx context.Context, itemID int64) (Record, error) {
	return tx.repo.seed(Record{ItemID: itemID}), nil
}

func (tx *memoryTx) UpdateBalance(ctx context.Context, rec Record) error {
	tx.repo.records[rec.ID] = rec
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	tx.repo.nextMvID++
	mv.ID = tx.repo.nextMvID
	tx.repo.movements = append(tx.repo.movements, mv)
	return mv.ID, nil
}

type capturedLowStock struct {
	events []LowStockEvent
}

func (c *capturedLowStock) HandleLowStock(ctx context.Context, evt LowStockEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, nil, nil, ServiceConfig{})
}

func TestMovingAverageCost(t *testing.T) {
	repo := newMemoryRepo()
	rec := repo.seed(Record{ItemID: 1})
	svc := newTestService(repo)
	ctx := context.Background()

	bal, err := svc.AddStock(ctx, AddStockInput{InventoryID: rec.ID, Quantity: 100, UnitCost: 12, ActorID: 7})
	require.NoError(t, err)
	require.InDelta(t, 100.0, bal.CurrentStock, 1e-9)
	require.InDelta(t, 12.0, bal.AverageCost, 1e-9)

	bal, err = svc.AddStock(ctx, AddStockInput{InventoryID: rec.ID, Quantity: 50, UnitCost: 15, ActorID: 7})
	require.NoError(t, err)
	require.InDelta(t, 150.0, bal.CurrentStock, 1e-9)
	require.InDelta(t, 13.0, bal.AverageCost, 1e-9)

	// Removal keeps the average and books the cost at removal time.
	bal, err = svc.RemoveStock(ctx, RemoveStockInput{InventoryID: rec.ID, Quantity: 30, ActorID: 7})
	require.NoError(t, err)
	require.InDelta(t, 120.0, bal.CurrentStock, 1e-9)
	require.InDelta(t, 13.0, bal.AverageCost, 1e-9)

	last := repo.movements[len(repo.movements)-1]
	require.Equal(t, MovementOut, last.Type)
	require.InDelta(t, 13.0, last.UnitCost, 1e-9)
	require.InDelta(t, 390.0, last.TotalCost, 1e-9)
}

func TestInsufficientStockLeavesStateUntouched(t *testing.T) {
	repo := newMemoryRepo()
	rec := repo.seed(Record{ItemID: 1, CurrentStock: 5, AverageCost: 10})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RemoveStock(ctx, RemoveStockInput{InventoryID: rec.ID, Quantity: 6, ActorID: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)

	after, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.InDelta(t, 5.0, after.CurrentStock, 1e-9)
	require.InDelta(t, 10.0, after.AverageCost, 1e-9)
	require.Empty(t, repo.movements)
}

func TestInvalidQuantityRejected(t *testing.T) {
	repo := newMemoryRepo()
	rec := repo.seed(Record{ItemID: 1})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{InventoryID: rec.ID, Quantity: 0, UnitCost: 5, ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddStock(ctx, AddStockInput{InventoryID: rec.ID, Quantity: -2, UnitCost: 5, ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddStock(ctx, AddStockInput{InventoryID: rec.ID, Quantity: 2, UnitCost: -1, ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidUnitCost)

	_, err = svc.RemoveStock(ctx, RemoveStockInput{InventoryID: rec.ID, Quantity: 1, Type: MovementReturn, ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidMovementType)
}

func TestLedgerContiguityAndConservation(t *testing.T) {
	repo := newMemoryRepo()
	rec := repo.seed(Record{ItemID: 1})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{InventoryID: rec.ID, Quantity: 40, UnitCost: 8, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.RemoveStock(ctx, RemoveStockInput{InventoryID: rec.ID, Quantity: 15, ActorID: 1})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, AdjustInput{InventoryID: rec.ID, NewStock: 30, Reason: "opname", ActorID: 1})
	require.NoError(t, err)
	_, err = svc.RemoveStock(ctx, RemoveStockInput{InventoryID: rec.ID, Quantity: 12, Type: MovementDamaged, ActorID: 1})
	require.NoError(t, err)

	movements, err := svc.ListMovements(ctx, MovementFilter{InventoryID: rec.ID})
	require.NoError(t, err)
	require.Len(t, movements, 4)

	// stock_after of each movement equals stock_before of the next.
	for i := 1; i < len(movements); i++ {
		require.InDelta(t, movements[i-1].StockAfter, movements[i].StockBefore, 1e-9)
	}

	// Final balance equals the sum of signed movement quantities.
	signed := 0.0
	for _, mv := range movements {
		if mv.StockAfter >= mv.StockBefore {
			signed += mv.Quantity
		} else {
			signed -= mv.Quantity
		}
	}
	final, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.InDelta(t, signed, final.CurrentStock, 1e-9)
	require.GreaterOrEqual(t, final.CurrentStock, 0.0)
}

func TestAdjustRecordsAbsoluteDelta(t *testing.T) {
	repo := newMemoryRepo()
	rec := repo.seed(Record{ItemID: 1, CurrentStock: 20, AverageCost: 5})
	svc := newTestService(repo)
	ctx := context.Background()

	bal, err := svc.Adjust(ctx, AdjustInput{InventoryID: rec.ID, NewStock: 12, Reason: "stock opname", ActorID: 3})
	require.NoError(t, err)
	require.InDelta(t, 12.0, bal.CurrentStock, 1e-9)

	mv := repo.movements[0]
	require.Equal(t, MovementAdjustment, mv.Type)
	require.InDelta(t, 8.0, mv.Quantity, 1e-9)
	require.InDelta(t, 20.0, mv.StockBefore, 1e-9)
	require.InDelta(t, 12.0, mv.StockAfter, 1e-9)
	require.InDelta(t, 5.0, mv.UnitCost, 1e-9)

	// No-op count posts no movement.
	_, err = svc.Adjust(ctx, AdjustInput{InventoryID: rec.ID, NewStock: 12, Reason: "recount", ActorID: 3})
	require.NoError(t, err)
	require.Len(t, repo.movements, 1)

	_, err = svc.Adjust(ctx, AdjustInput{InventoryID: rec.ID, NewStock: -1, Reason: "bad", ActorID: 3})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestReservationBound(t *testing.T) {
	repo := newMemoryRepo()
	rec := repo.seed(Record{ItemID: 1, CurrentStock: 10})
	svc := newTestService(repo)
	ctx := context.Background()

	bal, err := svc.ReserveStock(ctx, rec.ID, 6, 1)
	require.NoError(t, err)
	require.InDelta(t, 6.0, bal.ReservedStock, 1e-9)
	require.InDelta(t, 10.0, bal.CurrentStock, 1e-9)

	// Only 4 available now.
	_, err = svc.ReserveStock(ctx, rec.ID, 5, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)

	after, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.0, after.CurrentStock, 1e-9)
	require.InDelta(t, 6.0, after.ReservedStock, 1e-9)
	require.Empty(t, repo.movements)

	_, err = svc.ReleaseReservedStock(ctx, rec.ID, 7, 1)
	require.ErrorIs(t, err, ErrInsufficientReserve)

	bal, err = svc.ReleaseReservedStock(ctx, rec.ID, 6, 1)
	require.NoError(t, err)
	require.InDelta(t, 0.0, bal.ReservedStock, 1e-9)
}

func TestReturnKeepsAverage(t *testing.T) {
	repo := newMemoryRepo()
	rec := repo.seed(Record{ItemID: 1, CurrentStock: 10, AverageCost: 13})
	svc := newTestService(repo)
	ctx := context.Background()

	bal, err := svc.AddStockReturn(ctx, ReturnInput{InventoryID: rec.ID, Quantity: 2, ActorID: 1})
	require.NoError(t, err)
	require.InDelta(t, 12.0, bal.CurrentStock, 1e-9)
	require.InDelta(t, 13.0, bal.AverageCost, 1e-9)
	require.Equal(t, MovementReturn, repo.movements[0].Type)
	require.InDelta(t, 13.0, repo.movements[0].UnitCost, 1e-9)
}

func TestStockStatusThresholds(t *testing.T) {
	maxLevel := 100.0
	cases := []struct {
		name   string
		rec    Record
		status StockStatus
	}{
		{"out of stock", Record{CurrentStock: 0, ReorderLevel: 5}, StatusOutOfStock},
		{"low stock", Record{CurrentStock: 4, ReorderLevel: 5}, StatusLowStock},
		{"in stock", Record{CurrentStock: 50, ReorderLevel: 5}, StatusInStock},
		{"overstock", Record{CurrentStock: 120, ReorderLevel: 5, MaxStockLevel: &maxLevel}, StatusOverstock},
		{"no max set", Record{CurrentStock: 120, ReorderLevel: 5}, StatusInStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.status, tc.rec.Status())
		})
	}
}

func TestLowStockNotification(t *testing.T) {
	repo := newMemoryRepo()
	rec := repo.seed(Record{ItemID: 9, CurrentStock: 10, ReorderLevel: 8, AverageCost: 2})
	notifier := &capturedLowStock{}
	svc := NewService(repo, nil, nil, notifier, nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RemoveStock(ctx, RemoveStockInput{InventoryID: rec.ID, Quantity: 1, ActorID: 1})
	require.NoError(t, err)
	require.Empty(t, notifier.events)

	_, err = svc.RemoveStock(ctx, RemoveStockInput{InventoryID: rec.ID, Quantity: 2, ActorID: 1})
	require.NoError(t, err)
	require.Len(t, notifier.events, 1)
	require.Equal(t, int64(9), notifier.events[0].ItemID)
	require.InDelta(t, 7.0, notifier.events[0].CurrentStock, 1e-9)
}

func TestEnsureRecordCreatesZeroBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	rec, err := svc.EnsureRecord(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), rec.ItemID)
	require.InDelta(t, 0.0, rec.CurrentStock, 1e-9)

	again, err := svc.EnsureRecord(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, rec.ID, again.ID)
}
