package costing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nusapos/nusapos/internal/platform/db"
)

// Repository holds the product-row access the pricing commit needs. It locks
// and writes the products table directly so the HPP read and the price write
// share one transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProductRow is the slice of the product row the commit touches.
type ProductRow struct {
	ID    int64
	Cost  float64
	Price float64
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

// GetProductForUpdate locks the product row for the rest of the transaction.
func (r *Repository) GetProductForUpdate(ctx context.Context, tx pgx.Tx, productID int64) (ProductRow, error) {
	var p ProductRow
	err := tx.QueryRow(ctx, `
        SELECT id, cost, price
        FROM products
        WHERE id = $1
        FOR UPDATE
    `, productID).Scan(&p.ID, &p.Cost, &p.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductRow{}, ErrProductNotFound
	}
	if err != nil {
		return ProductRow{}, fmt.Errorf("costing: lock product: %w", err)
	}
	return p, nil
}

// UpdateProductCosting commits the new price, and the new cost when
// updateCost is set, on the locked row.
func (r *Repository) UpdateProductCosting(ctx context.Context, tx pgx.Tx, productID int64, cost, price float64, updateCost bool) error {
	var tag string
	var args []any
	if updateCost {
		tag = `UPDATE products SET cost = $2, price = $3, updated_at = NOW() WHERE id = $1`
		args = []any{productID, cost, price}
	} else {
		tag = `UPDATE products SET price = $2, updated_at = NOW() WHERE id = $1`
		args = []any{productID, price}
	}
	ct, err := tx.Exec(ctx, tag, args...)
	if err != nil {
		return fmt.Errorf("costing: update product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}
