package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/models"
)

func newCache(t *testing.T) (OpportunityCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisOpportunityCache(config.RedisConfig{Addr: mr.Addr(), Prefix: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func opp(name, percent string) models.Opportunity {
	return models.Opportunity{
		ItemName:      name,
		BuyFrom:       "a",
		SellTo:        "b",
		ProfitAmount:  decimal.NewFromInt(5),
		ProfitPercent: decimal.RequireFromString(percent),
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewRequiresAddr(t *testing.T) {
	_, err := NewRedisOpportunityCache(config.RedisConfig{})
	assert.Error(t, err)
}

func TestGetSetRoundTrip(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "Widget")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := BestRecord{ProfitPercent: decimal.RequireFromString("12.5"), BuyFrom: "a", SellTo: "b"}
	require.NoError(t, c.Set(ctx, "Widget", rec))

	got, ok, err := c.Get(ctx, "Widget")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.ProfitPercent.Equal(rec.ProfitPercent))
	assert.Equal(t, "a", got.BuyFrom)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Regexp(t, `^test:[0-9a-f]{32}$`, keys[0])
	assert.Equal(t, defaultTTL, mr.TTL(keys[0]))
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "Widget", BestRecord{}))

	mr.FastForward(defaultTTL + time.Second)
	_, ok, err := c.Get(ctx, "Widget")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrackOnlyNewOrImproved(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	fresh, err := Track(ctx, c, opp("Widget", "10"))
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = Track(ctx, c, opp("Widget", "10"))
	require.NoError(t, err)
	assert.False(t, fresh, "same spread again")

	fresh, err = Track(ctx, c, opp("Widget", "8"))
	require.NoError(t, err)
	assert.False(t, fresh, "narrower spread")

	fresh, err = Track(ctx, c, opp("Widget", "15"))
	require.NoError(t, err)
	assert.True(t, fresh)

	got, _, err := c.Get(ctx, "Widget")
	require.NoError(t, err)
	assert.True(t, got.ProfitPercent.Equal(decimal.NewFromInt(15)))

	fresh, err = Track(ctx, nil, opp("Gadget", "1"))
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestTrackReportsRedisErrors(t *testing.T) {
	c, mr := newCache(t)
	mr.Close()
	_, err := Track(context.Background(), c, opp("Widget", "10"))
	assert.ErrorContains(t, err, "cache get")
}
