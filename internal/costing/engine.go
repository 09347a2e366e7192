package costing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nusapos/nusapos/internal/catalog/composition"
	"github.com/nusapos/nusapos/internal/catalog/items"
)

// BOMPort expands a product into its raw-item requirements.
type BOMPort interface {
	ResolveRequirements(ctx context.Context, productID int64) ([]composition.Requirement, error)
}

// ItemCatalogPort serves item master data for breakdown lines.
type ItemCatalogPort interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]items.Item, error)
}

// ValuationPort serves purchase-history unit costs. The bool result reports
// whether any purchase line exists for the item.
type ValuationPort interface {
	LatestUnitCost(ctx context.Context, itemID int64) (float64, bool, error)
	AverageUnitCost(ctx context.Context, itemID int64) (float64, bool, error)
}

// MetricsPort counts HPP computations.
type MetricsPort interface {
	ObserveHPP(method string)
}

// Engine rolls product compositions up into an HPP breakdown.
type Engine struct {
	bom       BOMPort
	catalog   ItemCatalogPort
	valuation ValuationPort
	cache     *Cache
	metrics   MetricsPort
	now       func() time.Time
}

// NewEngine builds Engine. cache and metrics may be nil.
func NewEngine(bom BOMPort, catalog ItemCatalogPort, valuation ValuationPort, cache *Cache, metrics MetricsPort) *Engine {
	return &Engine{
		bom:       bom,
		catalog:   catalog,
		valuation: valuation,
		cache:     cache,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ComputeHPP resolves the product's bill of materials and values every line
// under the given method. Item archival does not exclude a line: a recipe
// referencing an archived item still has that item's cost in its rollup.
func (e *Engine) ComputeHPP(ctx context.Context, productID int64, method Method) (Breakdown, error) {
	if !method.Valid() {
		return Breakdown{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	reqs, err := e.bom.ResolveRequirements(ctx, productID)
	if err != nil {
		switch {
		case errors.Is(err, composition.ErrProductNotFound):
			return Breakdown{}, ErrProductNotFound
		case errors.Is(err, composition.ErrCycle):
			return Breakdown{}, fmt.Errorf("%w: %v", ErrCompositionCycle, err)
		}
		return Breakdown{}, err
	}

	ids := make([]int64, 0, len(reqs))
	for _, req := range reqs {
		ids = append(ids, req.ItemID)
	}
	catalog, err := e.catalog.GetMany(ctx, ids)
	if err != nil {
		return Breakdown{}, err
	}

	total := decimal.Zero
	lines := make([]Line, 0, len(reqs))
	for _, req := range reqs {
		item, ok := catalog[req.ItemID]
		if !ok {
			return Breakdown{}, fmt.Errorf("%w: item %d", ErrItemNotFound, req.ItemID)
		}
		unitCost, source, err := e.unitCost(ctx, req, item, method)
		if err != nil {
			return Breakdown{}, err
		}
		lineTotal := decimal.NewFromFloat(req.QuantityNeeded).
			Mul(decimal.NewFromFloat(unitCost)).
			Round(2)
		total = total.Add(lineTotal)
		lines = append(lines, Line{
			ItemID:         req.ItemID,
			ItemName:       item.Name,
			Unit:           req.Unit,
			QuantityNeeded: req.QuantityNeeded,
			UnitCost:       unitCost,
			LineTotal:      lineTotal.InexactFloat64(),
			Source:         source,
		})
	}

	if e.metrics != nil {
		e.metrics.ObserveHPP(string(method))
	}
	return Breakdown{
		ProductID:    productID,
		Method:       method,
		Lines:        lines,
		TotalHPP:     total.Round(2).InexactFloat64(),
		CalculatedAt: e.now(),
	}, nil
}

// CachedHPP serves a breakdown through the Redis cache when one is wired,
// falling back to a fresh computation on a miss. ApplyToProduct never reads
// through here; a committed price is always based on a fresh rollup.
func (e *Engine) CachedHPP(ctx context.Context, productID int64, method Method) (Breakdown, error) {
	if e.cache == nil {
		return e.ComputeHPP(ctx, productID, method)
	}
	key, err := e.cache.BreakdownKey(ctx, productID, method)
	if err != nil {
		return e.ComputeHPP(ctx, productID, method)
	}
	var breakdown Breakdown
	err = e.cache.FetchJSON(ctx, key, &breakdown, func(ctx context.Context) (any, error) {
		return e.ComputeHPP(ctx, productID, method)
	})
	if err != nil {
		return Breakdown{}, err
	}
	return breakdown, nil
}

// unitCost picks the cost for one requirement. A composition-level override
// applies only under the current method; latest and average always consult
// purchase history, falling back to the item's flat cost when no purchase
// line exists yet.
func (e *Engine) unitCost(ctx context.Context, req composition.Requirement, item items.Item, method Method) (float64, string, error) {
	switch method {
	case MethodCurrent:
		if req.CostOverride != nil {
			return *req.CostOverride, SourceOverride, nil
		}
	case MethodLatest:
		cost, ok, err := e.valuation.LatestUnitCost(ctx, req.ItemID)
		if err != nil {
			return 0, "", err
		}
		if ok {
			return cost, SourcePurchaseHistory, nil
		}
	case MethodAverage:
		cost, ok, err := e.valuation.AverageUnitCost(ctx, req.ItemID)
		if err != nil {
			return 0, "", err
		}
		if ok {
			return cost, SourcePurchaseHistory, nil
		}
	}
	return item.CostPerUnit, SourceFlat, nil
}
