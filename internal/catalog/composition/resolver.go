package composition

import (
	"context"
	"fmt"
)

// Resolver translates a product id into its bill of materials.
type Resolver struct {
	repo Repository
}

// NewResolver builds Resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the product's direct composition links, unexpanded. A
// product with no composition yields an empty slice, not an error; its HPP
// is zero and callers may treat that as undefined.
func (r *Resolver) Resolve(ctx context.Context, productID int64) ([]Link, error) {
	exists, err := r.repo.ProductExists(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrProductNotFound
	}
	return r.repo.ListByProduct(ctx, productID)
}

// ResolveRequirements expands the composition down to raw items. Links that
// point at base products recurse with quantities multiplied down the tree;
// duplicate items are summed. Expansion refuses to loop: a product reachable
// from itself returns ErrCycle.
func (r *Resolver) ResolveRequirements(ctx context.Context, productID int64) ([]Requirement, error) {
	exists, err := r.repo.ProductExists(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrProductNotFound
	}

	merged := map[int64]*Requirement{}
	order := []int64{}
	visiting := map[int64]bool{}

	var expand func(productID int64, multiplier float64) error
	expand = func(productID int64, multiplier float64) error {
		if visiting[productID] {
			return fmt.Errorf("%w: product %d", ErrCycle, productID)
		}
		visiting[productID] = true
		defer delete(visiting, productID)

		links, err := r.repo.ListByProduct(ctx, productID)
		if err != nil {
			return err
		}
		for _, link := range links {
			qty := link.QuantityNeeded * multiplier
			if link.ComponentProductID != 0 {
				if err := expand(link.ComponentProductID, qty); err != nil {
					return err
				}
				continue
			}
			req, ok := merged[link.ItemID]
			if !ok {
				merged[link.ItemID] = &Requirement{
					ItemID:         link.ItemID,
					QuantityNeeded: qty,
					Unit:           link.Unit,
					CostOverride:   link.CostOverride,
					Critical:       link.Critical,
				}
				order = append(order, link.ItemID)
				continue
			}
			req.QuantityNeeded += qty
			req.Critical = req.Critical || link.Critical
			// Conflicting overrides cancel out; the valuation method decides.
			if req.CostOverride != nil && (link.CostOverride == nil || *link.CostOverride != *req.CostOverride) {
				req.CostOverride = nil
			}
		}
		return nil
	}

	if err := expand(productID, 1); err != nil {
		return nil, err
	}

	result := make([]Requirement, 0, len(order))
	for _, itemID := range order {
		result = append(result, *merged[itemID])
	}
	return result, nil
}
