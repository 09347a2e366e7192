package purchasing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists purchase lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertLine appends a purchase line.
func (r *Repository) InsertLine(ctx context.Context, line PurchaseLine) (PurchaseLine, error) {
	if r == nil {
		return PurchaseLine{}, errors.New("purchasing repository not initialised")
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO purchase_lines (item_id, supplier_id, quantity, unit_cost, ref_id, note, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		line.ItemID, nullInt(line.SupplierID), line.Quantity, line.UnitCost, nullStr(line.RefID), line.Note, line.ReceivedAt).Scan(&line.ID)
	return line, err
}

// DeleteLine removes a purchase line. Used to unwind a receipt whose ledger
// movement failed after the line was written.
func (r *Repository) DeleteLine(ctx context.Context, id int64) error {
	if r == nil {
		return errors.New("purchasing repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM purchase_lines WHERE id = $1`, id)
	return err
}

// ListByItem returns purchase history for an item, newest first.
func (r *Repository) ListByItem(ctx context.Context, itemID int64, limit int) ([]PurchaseLine, error) {
	if r == nil {
		return nil, errors.New("purchasing repository not initialised")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, COALESCE(supplier_id, 0), quantity, unit_cost, COALESCE(ref_id::text, ''), note, received_at
FROM purchase_lines
WHERE item_id = $1
ORDER BY received_at DESC, id DESC
LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []PurchaseLine{}
	for rows.Next() {
		var line PurchaseLine
		if err := rows.Scan(&line.ID, &line.ItemID, &line.SupplierID, &line.Quantity, &line.UnitCost, &line.RefID, &line.Note, &line.ReceivedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// LatestUnitCost returns the unit cost of the most recent purchase. The
// second return is false when the item has no purchase history.
func (r *Repository) LatestUnitCost(ctx context.Context, itemID int64) (float64, bool, error) {
	if r == nil {
		return 0, false, errors.New("purchasing repository not initialised")
	}
	var cost float64
	err := r.pool.QueryRow(ctx, `SELECT unit_cost FROM purchase_lines WHERE item_id = $1 ORDER BY received_at DESC, id DESC LIMIT 1`, itemID).Scan(&cost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return cost, true, nil
}

// AverageUnitCost returns the arithmetic mean unit cost across all purchases.
func (r *Repository) AverageUnitCost(ctx context.Context, itemID int64) (float64, bool, error) {
	if r == nil {
		return 0, false, errors.New("purchasing repository not initialised")
	}
	var avg *float64
	err := r.pool.QueryRow(ctx, `SELECT AVG(unit_cost) FROM purchase_lines WHERE item_id = $1`, itemID).Scan(&avg)
	if err != nil {
		return 0, false, err
	}
	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}
