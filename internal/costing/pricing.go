package costing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nusapos/nusapos/internal/shared"
)

// SuggestPrice derives a sale price from an HPP and a markup percentage.
func SuggestPrice(hpp, markupPct float64) (PriceSuggestion, error) {
	if markupPct < 0 {
		return PriceSuggestion{}, ErrInvalidMarkup
	}
	price := decimal.NewFromFloat(hpp).
		Mul(decimal.NewFromFloat(1 + markupPct/100)).
		Round(2)
	margin := price.Sub(decimal.NewFromFloat(hpp)).Round(2)
	return PriceSuggestion{
		HPP:            hpp,
		MarkupPct:      markupPct,
		SuggestedPrice: price.InexactFloat64(),
		ProfitMargin:   margin.InexactFloat64(),
	}, nil
}

// SuggestMarkup derives the markup percentage a target price implies.
func SuggestMarkup(hpp, targetPrice float64) (float64, error) {
	if hpp == 0 {
		return 0, ErrInvalidHPP
	}
	markup := decimal.NewFromFloat(targetPrice).
		Sub(decimal.NewFromFloat(hpp)).
		Div(decimal.NewFromFloat(hpp)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	return markup.InexactFloat64(), nil
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Advisor turns cost breakdowns into pricing guidance and commits it.
type Advisor struct {
	engine *Engine
	repo   *Repository
	audit  AuditPort
}

// NewAdvisor builds Advisor. audit may be nil.
func NewAdvisor(engine *Engine, repo *Repository, audit AuditPort) *Advisor {
	return &Advisor{engine: engine, repo: repo, audit: audit}
}

// ApplyInput describes a pricing commit. Exactly one of MarkupPct or
// TargetPrice drives the price derivation.
type ApplyInput struct {
	ProductID   int64
	Method      Method
	MarkupPct   *float64
	TargetPrice *float64
	UpdateCost  bool
	ActorID     int64
}

// ApplyToProduct recomputes HPP and commits the derived price, and the new
// cost when requested, in one transaction. The product row stays locked from
// before the HPP read until the write, so no other commit for the same
// product can interleave. The breakdown is always computed fresh; the cache
// is never consulted here.
func (a *Advisor) ApplyToProduct(ctx context.Context, input ApplyInput) (ApplyResult, error) {
	if !input.Method.Valid() {
		return ApplyResult{}, fmt.Errorf("%w: %q", ErrUnknownMethod, input.Method)
	}
	if input.MarkupPct == nil && input.TargetPrice == nil {
		return ApplyResult{}, ErrPriceInputRequired
	}

	var result ApplyResult
	err := a.repo.WithTx(ctx, func(tx pgx.Tx) error {
		product, err := a.repo.GetProductForUpdate(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}

		breakdown, err := a.engine.ComputeHPP(ctx, input.ProductID, input.Method)
		if err != nil {
			return err
		}
		hpp := breakdown.TotalHPP

		var newPrice float64
		switch {
		case input.MarkupPct != nil:
			suggestion, err := SuggestPrice(hpp, *input.MarkupPct)
			if err != nil {
				return err
			}
			newPrice = suggestion.SuggestedPrice
		default:
			if _, err := SuggestMarkup(hpp, *input.TargetPrice); err != nil {
				return err
			}
			newPrice = decimal.NewFromFloat(*input.TargetPrice).Round(2).InexactFloat64()
		}

		newCost := product.Cost
		if input.UpdateCost {
			newCost = hpp
		}
		if err := a.repo.UpdateProductCosting(ctx, tx, input.ProductID, newCost, newPrice, input.UpdateCost); err != nil {
			return err
		}

		result = ApplyResult{
			ProductID:  input.ProductID,
			OldCost:    product.Cost,
			NewCost:    newCost,
			NewPrice:   newPrice,
			Difference: decimal.NewFromFloat(newCost).Sub(decimal.NewFromFloat(product.Cost)).Round(2).InexactFloat64(),
		}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}

	if a.audit != nil {
		_ = a.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "costing:apply-price",
			Entity:   "product",
			EntityID: fmt.Sprintf("%d", input.ProductID),
			Meta: map[string]any{
				"method":      string(input.Method),
				"old_cost":    result.OldCost,
				"new_cost":    result.NewCost,
				"new_price":   result.NewPrice,
				"update_cost": input.UpdateCost,
			},
		})
	}
	return result, nil
}
