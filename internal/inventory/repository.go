package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. The
// balance read locks the row so concurrent movements on the same record
// serialize instead of losing updates.
type TxRepository interface {
	GetForUpdate(ctx context.Context, inventoryID int64) (Record, error)
	GetByItemForUpdate(ctx context.Context, itemID int64) (Record, error)
	Create(ctx context.Context, itemID int64) (Record, error)
	UpdateBalance(ctx context.Context, rec Record) error
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const recordColumns = `id, item_id, current_stock, reserved_stock, reorder_level, max_stock_level, average_cost, created_at, updated_at`

// Get loads a single record without locking.
func (r *Repository) Get(ctx context.Context, inventoryID int64) (Record, error) {
	if r == nil {
		return Record{}, errors.New("inventory repository not initialised")
	}
	return scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE id=$1`, inventoryID))
}

// GetByItem loads the record stocked for an item.
func (r *Repository) GetByItem(ctx context.Context, itemID int64) (Record, error) {
	if r == nil {
		return Record{}, errors.New("inventory repository not initialised")
	}
	return scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE item_id=$1`, itemID))
}

// ListMovements returns ledger entries ordered by posting time.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, inventory_id, movement_type, quantity, stock_before, stock_after, unit_cost, total_cost, ref_module, ref_id, note, actor_id, posted_at
FROM stock_movements
WHERE inventory_id=$1 AND posted_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY posted_at ASC, id ASC
LIMIT $4`, filter.InventoryID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var mv Movement
		if err := rows.Scan(&mv.ID, &mv.InventoryID, &mv.Type, &mv.Quantity, &mv.StockBefore, &mv.StockAfter, &mv.UnitCost, &mv.TotalCost, &mv.RefModule, &mv.RefID, &mv.Note, &mv.ActorID, &mv.PostedAt); err != nil {
			return nil, err
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

// ListBelowReorder returns records at or below their reorder level,
// lowest coverage first.
func (r *Repository) ListBelowReorder(ctx context.Context, limit int) ([]Record, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM inventory_records
WHERE current_stock <= reorder_level
ORDER BY current_stock - reorder_level ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []Record{}
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *txRepository) GetForUpdate(ctx context.Context, inventoryID int64) (Record, error) {
	return scanRecord(r.tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE id=$1 FOR UPDATE`, inventoryID))
}

func (r *txRepository) GetByItemForUpdate(ctx context.Context, itemID int64) (Record, error) {
	return scanRecord(r.tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE item_id=$1 FOR UPDATE`, itemID))
}

func (r *txRepository) Create(ctx context.Context, itemID int64) (Record, error) {
	return scanRecord(r.tx.QueryRow(ctx, `INSERT INTO inventory_records (item_id, current_stock, reserved_stock, reorder_level, average_cost, created_at, updated_at)
VALUES ($1, 0, 0, 0, 0, NOW(), NOW())
RETURNING `+recordColumns, itemID))
}

func (r *txRepository) UpdateBalance(ctx context.Context, rec Record) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_records
SET current_stock=$2, reserved_stock=$3, reorder_level=$4, max_stock_level=$5, average_cost=$6, updated_at=NOW()
WHERE id=$1`, rec.ID, rec.CurrentStock, rec.ReservedStock, rec.ReorderLevel, rec.MaxStockLevel, rec.AverageCost)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (inventory_id, movement_type, quantity, stock_before, stock_after, unit_cost, total_cost, ref_module, ref_id, note, actor_id, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		mv.InventoryID, string(mv.Type), mv.Quantity, mv.StockBefore, mv.StockAfter, mv.UnitCost, mv.TotalCost, mv.RefModule, mv.RefID, mv.Note, nullInt(mv.ActorID), mv.PostedAt).Scan(&id)
	return id, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.ItemID, &rec.CurrentStock, &rec.ReservedStock, &rec.ReorderLevel, &rec.MaxStockLevel, &rec.AverageCost, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func scanRecordRows(rows pgx.Rows) (Record, error) {
	var rec Record
	err := rows.Scan(&rec.ID, &rec.ItemID, &rec.CurrentStock, &rec.ReservedStock, &rec.ReorderLevel, &rec.MaxStockLevel, &rec.AverageCost, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
