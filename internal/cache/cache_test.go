package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-quotes/internal/cache"
	"github.com/diewo77/go-quotes/internal/eligibility"
)

func TestMemory_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := cache.NewMemory(time.Minute)
	cache.SetClock(c, func() time.Time { return now })

	_, gen, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	rs := eligibility.NewRuleSet("2-100", map[string]eligibility.Rule{"Camera": {RequiredFor: []string{"Audi"}}})
	require.NoError(t, c.Set(ctx, gen, rs))

	got, _, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2-100", got.Version())

	now = now.Add(time.Minute)
	_, _, ok, _ = c.Get(ctx)
	assert.False(t, ok, "entry should expire after ttl")
}

func TestMemory_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory(0)
	require.NoError(t, c.Set(ctx, 0, eligibility.NewRuleSet("1", nil)))
	_, _, ok, _ := c.Get(ctx)
	assert.True(t, ok, "zero ttl keeps the entry")

	require.NoError(t, c.Invalidate(ctx))
	_, gen, ok, _ := c.Get(ctx)
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)
}

func TestMemory_SetAfterInvalidateIsDropped(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory(0)
	_, gen, _, _ := c.Get(ctx)

	// a write lands while the reader is loading
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, gen, eligibility.NewRuleSet("stale", nil)))

	_, current, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "snapshot loaded before invalidation must be dropped")

	require.NoError(t, c.Set(ctx, current, eligibility.NewRuleSet("fresh", nil)))
	got, _, ok, _ := c.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "fresh", got.Version())
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c cache.RuleCache = cache.Nop{}
	require.NoError(t, c.Set(ctx, 0, eligibility.NewRuleSet("1", nil)))
	_, _, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
