package composition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingBump struct {
	calls int
}

func (c *countingBump) Bump(context.Context) error {
	c.calls++
	return nil
}

func TestReplaceRejectsBadLinksBeforeTouchingStorage(t *testing.T) {
	bump := &countingBump{}
	store := NewStore(nil, bump)

	err := store.Replace(context.Background(), 1, []Link{
		{ItemID: 10, ComponentProductID: 2, QuantityNeeded: 1},
	})
	require.ErrorIs(t, err, ErrInvalidLink)

	err = store.Replace(context.Background(), 1, []Link{
		{ItemID: 10, QuantityNeeded: 0},
	})
	require.ErrorIs(t, err, ErrInvalidLink)

	err = store.Replace(context.Background(), 1, []Link{
		{ComponentProductID: 1, QuantityNeeded: 2},
	})
	require.ErrorIs(t, err, ErrCycle)

	// A rejected swap leaves cached breakdowns alone.
	require.Zero(t, bump.calls)
}
