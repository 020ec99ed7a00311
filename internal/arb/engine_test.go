package arb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/pricearb/internal/models"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func listing(source, name, price string) models.Listing {
	return models.Listing{Source: source, Name: name, Price: decimal.RequireFromString(price)}
}

func detector(threshold string) *Detector {
	d := NewDetector(decimal.RequireFromString(threshold))
	d.Now = func() time.Time { return fixedNow }
	return d
}

func TestDetectSimpleSpread(t *testing.T) {
	opps, err := detector("5").Detect([]models.Listing{
		listing("a", "Widget", "10"),
		listing("b", "Widget", "15"),
	})
	require.NoError(t, err)
	require.Len(t, opps, 1)

	o := opps[0]
	assert.Equal(t, "Widget", o.ItemName)
	assert.Equal(t, "a", o.BuyFrom)
	assert.True(t, o.BuyPrice.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "b", o.SellTo)
	assert.True(t, o.SellPrice.Equal(decimal.NewFromInt(15)))
	assert.True(t, o.ProfitAmount.Equal(decimal.NewFromInt(5)))
	assert.True(t, o.ProfitPercent.Equal(decimal.NewFromInt(50)), "got %s", o.ProfitPercent)
	assert.Equal(t, fixedNow, o.Timestamp)
}

func TestDetectBelowThreshold(t *testing.T) {
	opps, err := detector("60").Detect([]models.Listing{
		listing("a", "Widget", "10"),
		listing("b", "Widget", "15"),
	})
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestDetectThresholdIsInclusive(t *testing.T) {
	opps, err := detector("50").Detect([]models.Listing{
		listing("a", "Widget", "10"),
		listing("b", "Widget", "15"),
	})
	require.NoError(t, err)
	assert.Len(t, opps, 1)
}

func TestDetectSingleListing(t *testing.T) {
	opps, err := detector("5").Detect([]models.Listing{listing("a", "Widget", "10")})
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestDetectIgnoresMiddleListing(t *testing.T) {
	opps, err := detector("5").Detect([]models.Listing{
		listing("x", "Gadget", "20"),
		listing("y", "Gadget", "25"),
		listing("z", "Gadget", "30"),
	})
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "x", opps[0].BuyFrom)
	assert.Equal(t, "z", opps[0].SellTo)
	assert.True(t, opps[0].ProfitAmount.Equal(decimal.NewFromInt(10)))
	assert.True(t, opps[0].ProfitPercent.Equal(decimal.NewFromInt(50)))
}

func TestDetectEmptyInput(t *testing.T) {
	opps, err := detector("5").Detect(nil)
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestDetectNamesAreExact(t *testing.T) {
	opps, err := detector("0").Detect([]models.Listing{
		listing("a", "Widget", "10"),
		listing("b", "widget", "15"),
		listing("c", "Widget ", "20"),
	})
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestDetectTieBreakFirstSeen(t *testing.T) {
	in := []models.Listing{
		{Source: "a", Name: "Cable", Price: decimal.NewFromInt(5), URL: "https://a/1"},
		{Source: "b", Name: "Cable", Price: decimal.NewFromInt(5), URL: "https://b/1"},
		{Source: "c", Name: "Cable", Price: decimal.NewFromInt(9), URL: "https://c/1"},
		{Source: "d", Name: "Cable", Price: decimal.NewFromInt(9), URL: "https://d/1"},
	}
	opps, err := detector("0").Detect(in)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "https://a/1", opps[0].BuyURL)
	assert.Equal(t, "https://c/1", opps[0].SellURL)
}

func TestDetectRequiresDistinctSources(t *testing.T) {
	opps, err := detector("0").Detect([]models.Listing{
		listing("a", "Widget", "10"),
		listing("a", "Widget", "30"),
	})
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestDetectPicksWidestDistinctSourcePair(t *testing.T) {
	// "a" holds both extremes; the best cross-source pair is a(10) -> c(30).
	opps, err := detector("0").Detect([]models.Listing{
		listing("a", "Widget", "10"),
		listing("b", "Widget", "25"),
		listing("c", "Widget", "30"),
		listing("a", "Widget", "40"),
	})
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "a", opps[0].BuyFrom)
	assert.Equal(t, "c", opps[0].SellTo)
	assert.True(t, opps[0].ProfitAmount.Equal(decimal.NewFromInt(20)))
}

func TestDetectPicksSellAnchorWhenWider(t *testing.T) {
	// Buying at a(10) can only sell to c(12); buying at b(11) and selling at a(40) is wider.
	opps, err := detector("0").Detect([]models.Listing{
		listing("a", "Widget", "10"),
		listing("b", "Widget", "11"),
		listing("c", "Widget", "12"),
		listing("a", "Widget", "40"),
	})
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "b", opps[0].BuyFrom)
	assert.Equal(t, "a", opps[0].SellTo)
	assert.True(t, opps[0].ProfitAmount.Equal(decimal.NewFromInt(29)))
}

func TestDetectZeroBuyPrice(t *testing.T) {
	_, err := detector("5").Detect([]models.Listing{
		listing("a", "Freebie", "0"),
		listing("b", "Freebie", "3"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPrice))

	var priceErr *InvalidPriceError
	require.True(t, errors.As(err, &priceErr))
	assert.Equal(t, "Freebie", priceErr.ItemName)
	assert.Equal(t, "a", priceErr.Source)
}

func TestDetectAllZeroGroupSkipped(t *testing.T) {
	opps, err := detector("0").Detect([]models.Listing{
		listing("a", "Freebie", "0"),
		listing("b", "Freebie", "0"),
		listing("a", "Widget", "10"),
		listing("b", "Widget", "11"),
	})
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "Widget", opps[0].ItemName)
}

func TestDetectMalformedListing(t *testing.T) {
	cases := map[string]models.Listing{
		"missing name":   listing("a", "  ", "10"),
		"missing source": listing("", "Widget", "10"),
		"negative price": listing("a", "Widget", "-1"),
	}
	for reason, bad := range cases {
		t.Run(reason, func(t *testing.T) {
			_, err := detector("5").Detect([]models.Listing{listing("a", "Widget", "10"), bad})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedListing))

			var mErr *MalformedListingError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, 1, mErr.Index)
			assert.Contains(t, mErr.Reason, reason)
		})
	}
}

func TestDetectNegativeThreshold(t *testing.T) {
	_, err := detector("-1").Detect([]models.Listing{listing("a", "Widget", "10")})
	assert.True(t, errors.Is(err, ErrInvalidThreshold))
}

func TestDetectOrdering(t *testing.T) {
	opps, err := detector("0").Detect([]models.Listing{
		listing("a", "Low", "100"),
		listing("b", "Low", "110"),
		listing("a", "High", "10"),
		listing("b", "High", "20"),
		listing("a", "Beta", "10"),
		listing("b", "Beta", "15"),
		listing("a", "Alpha", "20"),
		listing("b", "Alpha", "30"),
	})
	require.NoError(t, err)
	require.Len(t, opps, 4)

	var names []string
	for _, o := range opps {
		names = append(names, o.ItemName)
	}
	assert.Equal(t, []string{"High", "Alpha", "Beta", "Low"}, names)
}

func TestDetectIdempotent(t *testing.T) {
	in := []models.Listing{
		listing("a", "Widget", "10"),
		listing("b", "Widget", "15"),
		listing("x", "Gadget", "20"),
		listing("z", "Gadget", "30"),
	}
	d := detector("5")
	first, err := d.Detect(in)
	require.NoError(t, err)
	second, err := d.Detect(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDetectConcurrent(t *testing.T) {
	d := detector("5")
	want, err := d.Detect([]models.Listing{listing("a", "Widget", "10"), listing("b", "Widget", "15")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := d.Detect([]models.Listing{listing("a", "Widget", "10"), listing("b", "Widget", "15")})
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestFindOpportunitiesDefaultThreshold(t *testing.T) {
	opps, err := FindOpportunities([]models.Listing{
		listing("a", "Widget", "100"),
		listing("b", "Widget", "104"),
		listing("a", "Gizmo", "100"),
		listing("b", "Gizmo", "105"),
	}, DefaultMinProfitPercent)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "Gizmo", opps[0].ItemName)
}

func TestListingsFromRecords(t *testing.T) {
	price := decimal.RequireFromString("9.99")
	got, err := ListingsFromRecords([]models.Record{{Source: "static", Name: "USB Cable", Price: &price}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Price.Equal(price))

	_, err = ListingsFromRecords([]models.Record{
		{Source: "static", Name: "USB Cable", Price: &price},
		{Source: "static", Name: "HDMI Cable"},
	})
	var mErr *MalformedListingError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, 1, mErr.Index)
	assert.Equal(t, "missing price", mErr.Reason)
}
