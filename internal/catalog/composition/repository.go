package composition

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads composition edges. The rows are owned by the product
// management module; this package only reads them.
type Repository interface {
	ListByProduct(ctx context.Context, productID int64) ([]Link, error)
	ProductExists(ctx context.Context, productID int64) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ListByProduct(ctx context.Context, productID int64) ([]Link, error) {
	if r == nil {
		return nil, errors.New("composition repository not initialised")
	}
	rows, err := r.db.Query(ctx, `SELECT id, product_id, COALESCE(item_id, 0), COALESCE(component_product_id, 0), quantity_needed, unit, cost_override, is_critical
FROM product_compositions
WHERE product_id = $1
ORDER BY id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	links := []Link{}
	for rows.Next() {
		var link Link
		if err := rows.Scan(&link.ID, &link.ProductID, &link.ItemID, &link.ComponentProductID, &link.QuantityNeeded, &link.Unit, &link.CostOverride, &link.Critical); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *repository) ProductExists(ctx context.Context, productID int64) (bool, error) {
	if r == nil {
		return false, errors.New("composition repository not initialised")
	}
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	return exists, err
}
