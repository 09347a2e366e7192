package composition

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nusapos/nusapos/internal/platform/db"
)

// CostCachePort invalidates cached cost breakdowns after a recipe changes.
type CostCachePort interface {
	Bump(ctx context.Context) error
}

// Store writes composition rows. A product's composition is replaced as a
// whole; partial edits would leave half-updated recipes visible to rollups.
type Store struct {
	pool      *pgxpool.Pool
	costCache CostCachePort
}

// NewStore constructs the PostgreSQL-backed store. costCache may be nil.
func NewStore(pool *pgxpool.Pool, costCache CostCachePort) *Store {
	return &Store{pool: pool, costCache: costCache}
}

// Replace swaps the product's composition for the given links in one
// transaction. Each link must target exactly one of an item or a base
// product; a link pointing the product at itself is rejected outright.
func (s *Store) Replace(ctx context.Context, productID int64, links []Link) error {
	for _, link := range links {
		targets := 0
		if link.ItemID != 0 {
			targets++
		}
		if link.ComponentProductID != 0 {
			targets++
		}
		if targets != 1 || link.QuantityNeeded <= 0 {
			return ErrInvalidLink
		}
		if link.ComponentProductID == productID {
			return fmt.Errorf("%w: product %d", ErrCycle, productID)
		}
	}

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrProductNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM product_compositions WHERE product_id = $1`, productID); err != nil {
			return err
		}
		for _, link := range links {
			_, err := tx.Exec(ctx, `INSERT INTO product_compositions (product_id, item_id, component_product_id, quantity_needed, unit, cost_override, is_critical)
VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), $4, $5, $6, $7)`,
				productID, link.ItemID, link.ComponentProductID, link.QuantityNeeded, link.Unit, link.CostOverride, link.Critical)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.costCache != nil {
		// Stale breakdowns also expire by TTL; a failed bump never fails the swap.
		_ = s.costCache.Bump(ctx)
	}
	return nil
}
