package static

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCatalogue(t *testing.T) {
	got, err := New("").Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, "static", got[0].Source)
	assert.Equal(t, "USB Cable", got[0].Name)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, "iPhone 16 256GB", got[4].Name)
	assert.True(t, got[4].Price.Equal(decimal.NewFromInt(900)))
}

func TestFetchUsesConfiguredName(t *testing.T) {
	src := New("warehouse")
	assert.Equal(t, "warehouse", src.Name())

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	for _, l := range got {
		assert.Equal(t, "warehouse", l.Source)
	}
}

func TestFetchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New("").Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
