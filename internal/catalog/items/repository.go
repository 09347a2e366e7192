package items

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nusapos/nusapos/internal/shared"
)

// Repository persists item master data.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error)
	Get(ctx context.Context, id int64) (Item, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]Item, error)
	Create(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, id int64, item Item) error
	Archive(ctx context.Context, id int64, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const itemColumns = `id, sku, name, unit, cost_per_unit, is_active, archived_at, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM items WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		cond := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Active != nil {
		argCount++
		cond := ` AND is_active = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, *filters.Active)
	}
	if !filters.IncludeArchived {
		query += ` AND archived_at IS NULL`
		countQuery += ` AND archived_at IS NULL`
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
	if filters.Limit > 0 {
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		query += ` LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
		args = append(args, filters.Limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, item)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	return scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
}

func (r *repository) GetMany(ctx context.Context, ids []int64) (map[int64]Item, error) {
	result := make(map[int64]Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result[item.ID] = item
	}
	return result, rows.Err()
}

func (r *repository) Create(ctx context.Context, item Item) (Item, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO items (sku, name, unit, cost_per_unit, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		item.SKU, item.Name, item.Unit, item.CostPerUnit, item.Active).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, mapItemError(err)
	}
	return item, nil
}

func (r *repository) Update(ctx context.Context, id int64, item Item) error {
	tag, err := r.db.Exec(ctx, `UPDATE items SET sku=$2, name=$3, unit=$4, cost_per_unit=$5, is_active=$6, updated_at=NOW() WHERE id=$1`,
		id, item.SKU, item.Name, item.Unit, item.CostPerUnit, item.Active)
	if err != nil {
		return mapItemError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Archive(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE items SET archived_at=$2, is_active=FALSE, updated_at=NOW() WHERE id=$1 AND archived_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.SKU, &item.Name, &item.Unit, &item.CostPerUnit, &item.Active, &item.ArchivedAt, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func mapItemError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateSKU
	}
	return err
}
