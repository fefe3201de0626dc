package recommender_test

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessed234640/snake-shop/internal/recommender"
)

func newEngine(t *testing.T) recommender.Engine {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return recommender.Engine{R: client, Prefix: "test"}
}

func TestSuggestForRanksByCoOccurrence(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	// Product 1 is bought twice with 2, once with 3.
	require.NoError(t, eng.ProductsBought(ctx, []int64{1, 2}))
	require.NoError(t, eng.ProductsBought(ctx, []int64{1, 2}))
	require.NoError(t, eng.ProductsBought(ctx, []int64{1, 3}))

	got, err := eng.SuggestFor(ctx, []int64{1}, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, got)
}

func TestSuggestForExcludesInputProducts(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.ProductsBought(ctx, []int64{1, 2, 3}))

	got, err := eng.SuggestFor(ctx, []int64{1, 2}, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, got)
}

func TestSingleItemOrderRecordsNothing(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.ProductsBought(ctx, []int64{1}))

	got, err := eng.SuggestFor(ctx, []int64{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestForHonoursMax(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.ProductsBought(ctx, []int64{1, 2, 3, 4, 5}))

	got, err := eng.SuggestFor(ctx, []int64{1}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
