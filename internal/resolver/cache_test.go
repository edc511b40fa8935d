package resolver

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestFetchJSONPopulatesAndHits(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) (any, error) {
		loads++
		return []string{"panel.metricas.ver"}, nil
	}

	key, err := cache.BuildKey(ctx, "authz", "effective", "1")
	require.NoError(t, err)

	var caps []string
	require.NoError(t, cache.FetchJSON(ctx, key, &caps, loader))
	require.Equal(t, []string{"panel.metricas.ver"}, caps)
	require.Equal(t, 1, loads)

	caps = nil
	require.NoError(t, cache.FetchJSON(ctx, key, &caps, loader))
	require.Equal(t, []string{"panel.metricas.ver"}, caps)
	require.Equal(t, 1, loads)
}

func TestBumpInvalidatesOldKeys(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "authz", "effective", "1")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "authz", "effective", "1")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *Cache
	require.NoError(t, cache.Bump(context.Background()))
}
