package composition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	links    map[int64][]Link
	products map[int64]bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{links: map[int64][]Link{}, products: map[int64]bool{}}
}

func (r *memoryRepo) add(link Link) {
	r.products[link.ProductID] = true
	if link.ComponentProductID != 0 {
		r.products[link.ComponentProductID] = true
	}
	r.links[link.ProductID] = append(r.links[link.ProductID], link)
}

func (r *memoryRepo) ListByProduct(ctx context.Context, productID int64) ([]Link, error) {
	return r.links[productID], nil
}

func (r *memoryRepo) ProductExists(ctx context.Context, productID int64) (bool, error) {
	return r.products[productID], nil
}

func TestResolveEmptyComposition(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = true
	resolver := NewResolver(repo)

	links, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, links)

	_, err = resolver.Resolve(context.Background(), 99)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestResolveRequirementsMergesDuplicates(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Link{ProductID: 1, ItemID: 10, QuantityNeeded: 2, Unit: "kg"})
	repo.add(Link{ProductID: 1, ItemID: 10, QuantityNeeded: 1, Unit: "kg"})
	repo.add(Link{ProductID: 1, ItemID: 11, QuantityNeeded: 0.5, Unit: "l", Critical: true})
	resolver := NewResolver(repo)

	reqs, err := resolver.ResolveRequirements(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	require.Equal(t, int64(10), reqs[0].ItemID)
	require.InDelta(t, 3.0, reqs[0].QuantityNeeded, 1e-9)
	require.True(t, reqs[1].Critical)
}

func TestResolveRequirementsExpandsBaseProducts(t *testing.T) {
	repo := newMemoryRepo()
	// Finished product 1 needs 2x base product 2 and 1x item 10.
	repo.add(Link{ProductID: 1, ComponentProductID: 2, QuantityNeeded: 2})
	repo.add(Link{ProductID: 1, ItemID: 10, QuantityNeeded: 1, Unit: "pcs"})
	// Base product 2 needs 3x item 11.
	repo.add(Link{ProductID: 2, ItemID: 11, QuantityNeeded: 3, Unit: "g"})
	resolver := NewResolver(repo)

	reqs, err := resolver.ResolveRequirements(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	byItem := map[int64]Requirement{}
	for _, req := range reqs {
		byItem[req.ItemID] = req
	}
	require.InDelta(t, 6.0, byItem[11].QuantityNeeded, 1e-9)
	require.InDelta(t, 1.0, byItem[10].QuantityNeeded, 1e-9)
}

func TestResolveRequirementsDetectsCycle(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Link{ProductID: 1, ComponentProductID: 2, QuantityNeeded: 1})
	repo.add(Link{ProductID: 2, ComponentProductID: 1, QuantityNeeded: 1})
	resolver := NewResolver(repo)

	_, err := resolver.ResolveRequirements(context.Background(), 1)
	require.ErrorIs(t, err, ErrCycle)
}

func TestResolveRequirementsSelfCycle(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(Link{ProductID: 1, ComponentProductID: 1, QuantityNeeded: 1})
	resolver := NewResolver(repo)

	_, err := resolver.ResolveRequirements(context.Background(), 1)
	require.ErrorIs(t, err, ErrCycle)
}

func TestConflictingOverridesCancel(t *testing.T) {
	repo := newMemoryRepo()
	a, b := 5.0, 7.0
	repo.add(Link{ProductID: 1, ItemID: 10, QuantityNeeded: 1, CostOverride: &a})
	repo.add(Link{ProductID: 1, ItemID: 10, QuantityNeeded: 1, CostOverride: &b})
	resolver := NewResolver(repo)

	reqs, err := resolver.ResolveRequirements(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Nil(t, reqs[0].CostOverride)
}
