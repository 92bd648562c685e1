package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID  uint   `json:"id"`
	URL string `json:"url"`
}

func TestMemoryProvider_RoundTrip(t *testing.T) {
	provider, err := NewMemoryProvider(1)
	require.NoError(t, err)
	defer provider.Close()

	ctx := context.Background()
	key := AssetByID.BuildID(7)
	assert.Equal(t, "asset:7", key)

	require.NoError(t, provider.Set(ctx, key, &sample{ID: 7, URL: "https://res.example.com/7.png"}, time.Minute))

	var got sample
	require.NoError(t, provider.Get(ctx, key, &got))
	assert.Equal(t, sample{ID: 7, URL: "https://res.example.com/7.png"}, got)

	exists, err := provider.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, provider.Delete(ctx, key))
	err = provider.Get(ctx, key, &got)
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryProvider_ReturnsCopies(t *testing.T) {
	provider, err := NewMemoryProvider(1)
	require.NoError(t, err)
	defer provider.Close()

	ctx := context.Background()
	require.NoError(t, provider.Set(ctx, "k", &sample{ID: 1, URL: "a"}, time.Minute))

	var first sample
	require.NoError(t, provider.Get(ctx, "k", &first))
	first.URL = "mutated"

	var second sample
	require.NoError(t, provider.Get(ctx, "k", &second))
	assert.Equal(t, "a", second.URL)
}

func TestFactory_DeleteMany(t *testing.T) {
	provider, err := NewMemoryProvider(1)
	require.NoError(t, err)
	f := NewFactoryWithProvider(provider, time.Minute)
	defer f.Close()

	ctx := context.Background()
	require.NoError(t, f.Set(ctx, AssetByID.BuildID(1), sample{ID: 1}))
	require.NoError(t, f.Set(ctx, AssetByHash.Build("abc"), sample{ID: 1}))

	require.NoError(t, f.Delete(ctx, AssetByID.BuildID(1), AssetByHash.Build("abc")))

	var got sample
	assert.True(t, IsCacheMiss(f.Get(ctx, AssetByID.BuildID(1), &got)))
	assert.True(t, IsCacheMiss(f.Get(ctx, AssetByHash.Build("abc"), &got)))
}

func TestFactory_Stats(t *testing.T) {
	provider, err := NewMemoryProvider(1)
	require.NoError(t, err)
	f := NewFactoryWithProvider(provider, time.Minute)
	defer f.Close()

	ctx := context.Background()
	require.NoError(t, f.Set(ctx, AssetByID.BuildID(1), sample{ID: 1}))

	var got sample
	require.NoError(t, f.Get(ctx, AssetByID.BuildID(1), &got))
	assert.True(t, IsCacheMiss(f.Get(ctx, AssetByID.BuildID(2), &got)))

	stats, ok := f.Stats()
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRatio, 0.001)
}

func TestKeyBuilder(t *testing.T) {
	assert.Equal(t, "asset_hash", AssetByHash.Build())
	assert.Equal(t, "asset_hash:ab:cd", AssetByHash.Build("ab", "cd"))
}
