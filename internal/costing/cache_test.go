package costing

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	_ "github.com/nusapos/nusapos/testing"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheVersionInitialises(t *testing.T) {
	cache := newTestCache(t)
	ver, err := cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)
}

func TestCacheFetchJSONLoadsOnceThenServesCached(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BreakdownKey(ctx, 7, MethodCurrent)
	require.NoError(t, err)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return Breakdown{ProductID: 7, Method: MethodCurrent, TotalHPP: 200}, nil
	}

	var first Breakdown
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.InDelta(t, 200, first.TotalHPP, 0.001)

	var second Breakdown
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 1, calls, "second fetch should hit the cache")
}

func TestCacheBumpChangesKey(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BreakdownKey(ctx, 7, MethodLatest)
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BreakdownKey(ctx, 7, MethodLatest)
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestNilCacheFallsThroughToLoader(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	require.NoError(t, cache.Bump(ctx))

	key, err := cache.BreakdownKey(ctx, 3, MethodAverage)
	require.NoError(t, err)

	var out Breakdown
	err = cache.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
		return Breakdown{ProductID: 3, TotalHPP: 42}, nil
	})
	require.NoError(t, err)
	require.InDelta(t, 42, out.TotalHPP, 0.001)
}
