package purchasing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nusapos/nusapos/internal/inventory"
)

type memoryLines struct {
	lines  []PurchaseLine
	nextID int64
}

func (m *memoryLines) InsertLine(_ context.Context, line PurchaseLine) (PurchaseLine, error) {
	m.nextID++
	line.ID = m.nextID
	m.lines = append(m.lines, line)
	return line, nil
}

func (m *memoryLines) DeleteLine(_ context.Context, id int64) error {
	for i, l := range m.lines {
		if l.ID == id {
			m.lines = append(m.lines[:i], m.lines[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memoryLines) ListByItem(_ context.Context, itemID int64, limit int) ([]PurchaseLine, error) {
	var out []PurchaseLine
	for i := len(m.lines) - 1; i >= 0; i-- {
		if m.lines[i].ItemID == itemID {
			out = append(out, m.lines[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memoryLines) LatestUnitCost(_ context.Context, itemID int64) (float64, bool, error) {
	for i := len(m.lines) - 1; i >= 0; i-- {
		if m.lines[i].ItemID == itemID {
			return m.lines[i].UnitCost, true, nil
		}
	}
	return 0, false, nil
}

func (m *memoryLines) AverageUnitCost(_ context.Context, itemID int64) (float64, bool, error) {
	var sum float64
	var n int
	for _, l := range m.lines {
		if l.ItemID == itemID {
			sum += l.UnitCost
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return sum / float64(n), true, nil
}

type fakeLedger struct {
	records map[int64]inventory.Record
	adds    []inventory.AddStockInput
	addErr  error
}

func (f *fakeLedger) EnsureRecord(_ context.Context, itemID int64) (inventory.Record, error) {
	rec, ok := f.records[itemID]
	if !ok {
		rec = inventory.Record{ID: itemID * 10, ItemID: itemID}
		f.records[itemID] = rec
	}
	return rec, nil
}

func (f *fakeLedger) AddStock(_ context.Context, input inventory.AddStockInput) (inventory.Balance, error) {
	if f.addErr != nil {
		return inventory.Balance{}, f.addErr
	}
	f.adds = append(f.adds, input)
	return inventory.Balance{
		InventoryID:  input.InventoryID,
		CurrentStock: input.Quantity,
		AverageCost:  input.UnitCost,
	}, nil
}

type countingBump struct{ n int }

func (c *countingBump) Bump(context.Context) error {
	c.n++
	return nil
}

func TestRecordReceiptPostsLedgerMovementAndLine(t *testing.T) {
	repo := &memoryLines{}
	ledger := &fakeLedger{records: map[int64]inventory.Record{}}
	bump := &countingBump{}
	svc := NewService(repo, ledger, bump, nil)

	receipt, err := svc.RecordReceipt(context.Background(), ReceiptInput{
		ItemID:   7,
		Quantity: 25,
		UnitCost: 12.5,
		ActorID:  1,
	})
	require.NoError(t, err)
	require.Equal(t, int64(70), receipt.InventoryID)
	require.Len(t, ledger.adds, 1)
	require.Equal(t, "purchasing", ledger.adds[0].RefModule)
	require.Len(t, repo.lines, 1)
	require.Equal(t, 1, bump.n, "receipt should invalidate cost cache")
}

func TestRecordReceiptUnwindsLineWhenMovementFails(t *testing.T) {
	repo := &memoryLines{}
	ledger := &fakeLedger{
		records: map[int64]inventory.Record{},
		addErr:  inventory.ErrConcurrencyConflict,
	}
	bump := &countingBump{}
	svc := NewService(repo, ledger, bump, nil)

	_, err := svc.RecordReceipt(context.Background(), ReceiptInput{
		ItemID:   7,
		Quantity: 10,
		UnitCost: 9.5,
		ActorID:  1,
	})
	require.ErrorIs(t, err, inventory.ErrConcurrencyConflict)
	require.Empty(t, repo.lines, "failed movement must not leave a purchase line behind")
	require.Zero(t, bump.n)

	// Valuation never sees the unwound line.
	_, ok, err := svc.LatestUnitCost(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecordReceiptRejectsBadInput(t *testing.T) {
	svc := NewService(&memoryLines{}, &fakeLedger{records: map[int64]inventory.Record{}}, nil, nil)

	_, err := svc.RecordReceipt(context.Background(), ReceiptInput{ItemID: 0, Quantity: 1, ActorID: 1})
	require.ErrorIs(t, err, ErrItemRequired)

	_, err = svc.RecordReceipt(context.Background(), ReceiptInput{ItemID: 1, Quantity: 0, ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.RecordReceipt(context.Background(), ReceiptInput{ItemID: 1, Quantity: 1, UnitCost: -2, ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidUnitCost)
}

func TestValuationHelpers(t *testing.T) {
	repo := &memoryLines{}
	ledger := &fakeLedger{records: map[int64]inventory.Record{}}
	svc := NewService(repo, ledger, nil, nil)

	for _, cost := range []float64{10, 14} {
		_, err := svc.RecordReceipt(context.Background(), ReceiptInput{ItemID: 3, Quantity: 5, UnitCost: cost, ActorID: 1})
		require.NoError(t, err)
	}

	latest, ok, err := svc.LatestUnitCost(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 14, latest, 0.001)

	avg, ok, err := svc.AverageUnitCost(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 12, avg, 0.001)

	_, ok, err = svc.LatestUnitCost(context.Background(), 99)
	require.NoError(t, err)
	require.False(t, ok)
}
