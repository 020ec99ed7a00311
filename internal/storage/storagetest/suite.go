// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/pricearb/internal/arb"
	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/storage"
)

// Opener returns a migrated, empty store. The suite closes it.
type Opener func(t *testing.T) storage.Store

// Run exercises the store contract against a backend.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateAndGetSnapshot", testCreateAndGetSnapshot},
		{"UnknownSnapshot", testUnknownSnapshot},
		{"AddListingValidation", testAddListingValidation},
		{"ListingsOrderAndSourceFilter", testListingsOrderAndSourceFilter},
		{"AddListingsAllOrNothing", testAddListingsAllOrNothing},
		{"SaveOpportunitiesRoundTrip", testSaveOpportunitiesRoundTrip},
		{"SaveOpportunitiesUnknownSnapshot", testSaveOpportunitiesUnknownSnapshot},
		{"OpportunityFilters", testOpportunityFilters},
		{"ReplaceOpportunities", testReplaceOpportunities},
		{"SaveOpportunitiesRollsBackMidBatch", testSaveOpportunitiesRollsBackMidBatch},
		{"ExactProfitComparisons", testExactProfitComparisons},
		{"RecentOpportunities", testRecentOpportunities},
		{"RecentFloorsBeforeLimit", testRecentFloorsBeforeLimit},
		{"ConcurrentWriters", testConcurrentWriters},
		{"ListAndLatestSnapshots", testListAndLatestSnapshots},
		{"DeleteCascades", testDeleteCascades},
		{"ListingsInWindow", testListingsInWindow},
		{"SnapshotsBefore", testSnapshotsBefore},
		{"MigrateIsIdempotent", testMigrateIsIdempotent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func listing(source, name, price, url string) models.Listing {
	return models.Listing{Source: source, Name: name, Price: dec(price), URL: url}
}

func seedSnapshot(t *testing.T, s storage.Store, description string, ls ...models.Listing) models.Snapshot {
	ctx := testContext(t)
	snap, err := s.CreateSnapshot(ctx, description)
	require.NoError(t, err)
	if len(ls) > 0 {
		_, err = s.AddListings(ctx, snap.ID, ls)
		require.NoError(t, err)
	}
	return snap
}

func testCreateAndGetSnapshot(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	before := time.Now().Add(-time.Second)

	snap, err := s.CreateSnapshot(ctx, "morning run")
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "morning run", snap.Description)
	assert.True(t, snap.Timestamp.After(before))
	assert.Zero(t, snap.ListingCount)

	_, err = s.AddListing(ctx, snap.ID, listing("static", "USB Cable", "9.99", ""))
	require.NoError(t, err)

	got, err := s.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, "morning run", got.Description)
	assert.Equal(t, 1, got.ListingCount)
	assert.WithinDuration(t, snap.Timestamp, got.Timestamp, time.Millisecond)
}

func testUnknownSnapshot(t *testing.T, s storage.Store) {
	ctx := testContext(t)

	_, err := s.GetSnapshot(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound))

	_, err = s.GetListings(ctx, "missing", "")
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound))

	_, err = s.AddListing(ctx, "missing", listing("a", "Widget", "1", ""))
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound))

	err = s.DeleteSnapshot(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound))

	_, err = s.LatestSnapshot(ctx)
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound))
}

func testAddListingValidation(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	snap := seedSnapshot(t, s, "validation")

	bad := []models.Listing{
		listing("", "Widget", "1", ""),
		listing("a", " ", "1", ""),
		listing("a", "Widget", "-0.01", ""),
	}
	for _, l := range bad {
		_, err := s.AddListing(ctx, snap.ID, l)
		require.Error(t, err)
		assert.True(t, errors.Is(err, storage.ErrInvalidListing), "got %v", err)
	}

	got, err := s.GetListings(ctx, snap.ID, "")
	require.NoError(t, err)
	assert.Empty(t, got)

	free, err := s.AddListing(ctx, snap.ID, listing("a", "Sample", "0", ""))
	require.NoError(t, err)
	assert.True(t, free.Price.IsZero())
}

func testListingsOrderAndSourceFilter(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	snap := seedSnapshot(t, s, "order",
		listing("amazon", "iPhone 16 128GB", "829.00", "https://www.amazon.com/dp/B0DHJH2GZL"),
		listing("static", "iPhone 16 128GB", "830", ""),
		listing("amazon", "Wireless Mouse", "19.999", ""),
	)
	added, err := s.AddListing(ctx, snap.ID, listing("static", "Wireless Mouse", "24.99", ""))
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, snap.ID, added.SnapshotID)

	all, err := s.GetListings(ctx, snap.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "iPhone 16 128GB", all[0].Name)
	assert.Equal(t, "https://www.amazon.com/dp/B0DHJH2GZL", all[0].URL)
	assert.True(t, all[2].Price.Equal(dec("19.999")))
	assert.Equal(t, added.ID, all[3].ID)

	static, err := s.GetListings(ctx, snap.ID, "static")
	require.NoError(t, err)
	require.Len(t, static, 2)
	for _, l := range static {
		assert.Equal(t, "static", l.Source)
		assert.Equal(t, snap.ID, l.SnapshotID)
	}
}

func testAddListingsAllOrNothing(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	snap := seedSnapshot(t, s, "batch")

	_, err := s.AddListings(ctx, snap.ID, []models.Listing{
		listing("a", "Widget", "1", ""),
		listing("a", "", "2", ""),
	})
	require.True(t, errors.Is(err, storage.ErrInvalidListing))

	got, err := s.GetListings(ctx, snap.ID, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testSaveOpportunitiesRoundTrip(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	snap := seedSnapshot(t, s, "detect",
		listing("a", "Widget", "10", "https://a.example/widget"),
		listing("b", "Widget", "15", "https://b.example/widget"),
		listing("x", "Gadget", "20", ""),
		listing("y", "Gadget", "25", ""),
		listing("z", "Gadget", "30.50", ""),
	)
	listings, err := s.GetListings(ctx, snap.ID, "")
	require.NoError(t, err)

	d := arb.NewDetector(dec("5"))
	detectedAt := time.Date(2026, 5, 4, 3, 2, 1, 123456000, time.UTC)
	d.Now = func() time.Time { return detectedAt }
	opps, err := d.Detect(listings)
	require.NoError(t, err)
	require.Len(t, opps, 2)

	saved, err := s.SaveOpportunities(ctx, snap.ID, opps)
	require.NoError(t, err)
	require.Len(t, saved, 2)

	got, err := s.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: snap.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)

	for i := range saved {
		want, have := saved[i], got[i]
		assert.NotEmpty(t, have.ID)
		assert.Equal(t, want.ID, have.ID)
		assert.Equal(t, snap.ID, have.SnapshotID)
		assert.Equal(t, want.ItemName, have.ItemName)
		assert.Equal(t, want.BuyFrom, have.BuyFrom)
		assert.Equal(t, want.BuyURL, have.BuyURL)
		assert.Equal(t, want.SellTo, have.SellTo)
		assert.Equal(t, want.SellURL, have.SellURL)
		assert.True(t, want.BuyPrice.Equal(have.BuyPrice))
		assert.True(t, want.SellPrice.Equal(have.SellPrice))
		assert.True(t, want.ProfitAmount.Equal(have.ProfitAmount))
		assert.True(t, want.ProfitPercent.Equal(have.ProfitPercent), "%s vs %s", want.ProfitPercent, have.ProfitPercent)
		assert.True(t, detectedAt.Equal(have.Timestamp), "timestamp %s", have.Timestamp)
	}
	assert.Equal(t, "Gadget", got[0].ItemName)
	assert.True(t, got[0].ProfitPercent.Equal(dec("52.5")))
	assert.Equal(t, "Widget", got[1].ItemName)
}

func testSaveOpportunitiesUnknownSnapshot(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	opps, err := arb.FindOpportunities([]models.Listing{
		listing("a", "Widget", "10", ""),
		listing("b", "Widget", "15", ""),
	}, dec("5"))
	require.NoError(t, err)

	_, err = s.SaveOpportunities(ctx, "no-such-snapshot", opps)
	require.True(t, errors.Is(err, storage.ErrSnapshotNotFound))

	got, err := s.GetOpportunities(ctx, storage.OpportunityFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func saveFixed(t *testing.T, s storage.Store, snapshotID string, opps ...models.Opportunity) []models.Opportunity {
	saved, err := s.SaveOpportunities(testContext(t), snapshotID, opps)
	require.NoError(t, err)
	return saved
}

func opportunity(name, buy, sell string, at time.Time) models.Opportunity {
	b, sl := dec(buy), dec(sell)
	amount := sl.Sub(b)
	return models.Opportunity{
		ItemName:      name,
		BuyFrom:       "a",
		BuyPrice:      b,
		SellTo:        "b",
		SellPrice:     sl,
		ProfitAmount:  amount,
		ProfitPercent: amount.Div(b).Mul(decimal.NewFromInt(100)),
		Timestamp:     at,
	}
}

func testOpportunityFilters(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	now := time.Now().UTC()
	first := seedSnapshot(t, s, "first")
	second := seedSnapshot(t, s, "second")

	saveFixed(t, s, first.ID,
		opportunity("Widget", "10", "15", now),  // 50%, 5
		opportunity("Cable", "100", "110", now), // 10%, 10
	)
	saveFixed(t, s, second.ID,
		opportunity("Mouse", "20", "21", now), // 5%, 1
		opportunity("Phone", "800", "1000", now),
	)

	all, err := s.GetOpportunities(ctx, storage.OpportunityFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].ProfitPercent.GreaterThan(all[i-1].ProfitPercent))
	}

	bySnapshot, err := s.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: second.ID})
	require.NoError(t, err)
	require.Len(t, bySnapshot, 2)
	assert.Equal(t, "Phone", bySnapshot[0].ItemName)

	byPercent, err := s.GetOpportunities(ctx, storage.OpportunityFilter{MinProfitPercent: decPtr("10")})
	require.NoError(t, err)
	assert.Len(t, byPercent, 3)

	byAmount, err := s.GetOpportunities(ctx, storage.OpportunityFilter{MinProfitAmount: decPtr("5")})
	require.NoError(t, err)
	assert.Len(t, byAmount, 3)

	both, err := s.GetOpportunities(ctx, storage.OpportunityFilter{
		MinProfitPercent: decPtr("20"),
		MinProfitAmount:  decPtr("100"),
	})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "Phone", both[0].ItemName)

	limited, err := s.GetOpportunities(ctx, storage.OpportunityFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "Widget", limited[0].ItemName)

	_, err = s.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: "missing"})
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound))
}

func testRecentOpportunities(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	now := time.Now().UTC()
	snap := seedSnapshot(t, s, "recent")
	saveFixed(t, s, snap.ID,
		opportunity("Old", "10", "20", now.AddDate(0, 0, -30)),
		opportunity("Week", "10", "20", now.AddDate(0, 0, -3)),
		opportunity("Today", "10", "11", now.Add(-time.Hour)),
	)

	recent, err := s.GetRecentOpportunities(ctx, storage.RecentFilter{SinceDays: 7})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Today", recent[0].ItemName)
	assert.Equal(t, "Week", recent[1].ItemName)

	defaulted, err := s.GetRecentOpportunities(ctx, storage.RecentFilter{})
	require.NoError(t, err)
	assert.Len(t, defaulted, 2)

	wide, err := s.GetRecentOpportunities(ctx, storage.RecentFilter{SinceDays: 60, Limit: 1})
	require.NoError(t, err)
	require.Len(t, wide, 1)
	assert.Equal(t, "Today", wide[0].ItemName)
}

func testReplaceOpportunities(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	now := time.Now().UTC()
	snap := seedSnapshot(t, s, "replace")
	other := seedSnapshot(t, s, "other")
	saveFixed(t, s, other.ID, opportunity("Lamp", "10", "20", now))

	first, err := s.ReplaceOpportunities(ctx, snap.ID, []models.Opportunity{
		opportunity("Widget", "10", "15", now),
		opportunity("Cable", "100", "110", now),
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := s.ReplaceOpportunities(ctx, snap.ID, []models.Opportunity{
		opportunity("Mouse", "20", "30", now),
	})
	require.NoError(t, err)
	require.Len(t, second, 1)

	got, err := s.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: snap.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, second[0].ID, got[0].ID)
	assert.Equal(t, "Mouse", got[0].ItemName)

	cleared, err := s.ReplaceOpportunities(ctx, snap.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, cleared)
	got, err = s.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: snap.ID})
	require.NoError(t, err)
	assert.Empty(t, got)

	untouched, err := s.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: other.ID})
	require.NoError(t, err)
	assert.Len(t, untouched, 1)

	_, err = s.ReplaceOpportunities(ctx, "missing", nil)
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound))
}

func testSaveOpportunitiesRollsBackMidBatch(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	now := time.Now().UTC()
	snap := seedSnapshot(t, s, "rollback")
	unnamed := opportunity("", "10", "12", now)

	_, err := s.SaveOpportunities(ctx, snap.ID, []models.Opportunity{
		opportunity("Widget", "10", "15", now),
		opportunity("Cable", "100", "110", now),
		unnamed,
	})
	require.Error(t, err)
	got, err := s.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: snap.ID})
	require.NoError(t, err)
	assert.Empty(t, got, "rows before the failing one are rolled back")

	kept := saveFixed(t, s, snap.ID, opportunity("Widget", "10", "15", now))
	_, err = s.ReplaceOpportunities(ctx, snap.ID, []models.Opportunity{
		opportunity("Mouse", "20", "30", now),
		unnamed,
	})
	require.Error(t, err)
	got, err = s.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: snap.ID})
	require.NoError(t, err)
	require.Len(t, got, 1, "a failed replace keeps the previous result")
	assert.Equal(t, kept[0].ID, got[0].ID)
}

func testExactProfitComparisons(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	now := time.Now().UTC()
	snap := seedSnapshot(t, s, "precision")
	// Both values round to the same float64.
	const (
		lower  = "10.000000000000000000001"
		higher = "10.000000000000000000002"
	)
	exact := func(name, value string, at time.Time) models.Opportunity {
		return models.Opportunity{
			ItemName:      name,
			BuyFrom:       "a",
			BuyPrice:      dec("100"),
			SellTo:        "b",
			SellPrice:     dec("110"),
			ProfitAmount:  dec(value),
			ProfitPercent: dec(value),
			Timestamp:     at,
		}
	}
	saveFixed(t, s, snap.ID,
		exact("Newer", lower, now),
		exact("Older", higher, now.Add(-time.Minute)),
	)

	top, err := s.GetOpportunities(ctx, storage.OpportunityFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Older", top[0].ItemName)
	assert.True(t, top[0].ProfitPercent.Equal(dec(higher)))

	all, err := s.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: snap.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Older", all[0].ItemName)
	assert.Equal(t, "Newer", all[1].ItemName)

	byPercent, err := s.GetOpportunities(ctx, storage.OpportunityFilter{MinProfitPercent: decPtr(higher)})
	require.NoError(t, err)
	require.Len(t, byPercent, 1)
	assert.Equal(t, "Older", byPercent[0].ItemName)

	byAmount, err := s.GetOpportunities(ctx, storage.OpportunityFilter{MinProfitAmount: decPtr(higher)})
	require.NoError(t, err)
	require.Len(t, byAmount, 1)
	assert.Equal(t, "Older", byAmount[0].ItemName)

	recent, err := s.GetRecentOpportunities(ctx, storage.RecentFilter{SinceDays: 1, MinProfitPercent: decPtr(higher)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Older", recent[0].ItemName)
}

func testRecentFloorsBeforeLimit(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	now := time.Now().UTC()
	snap := seedSnapshot(t, s, "floors")
	saveFixed(t, s, snap.ID,
		opportunity("Widget", "10", "15", now.Add(-3*time.Hour)),  // 50%, 5
		opportunity("Cable", "100", "102", now.Add(-2*time.Hour)), // 2%, 2
		opportunity("Mouse", "20", "20.2", now.Add(-time.Hour)),   // 1%, 0.2
		opportunity("Plug", "20", "20.1", now.Add(-time.Minute)),  // 0.5%, 0.1
	)

	byPercent, err := s.GetRecentOpportunities(ctx, storage.RecentFilter{
		SinceDays:        1,
		MinProfitPercent: decPtr("10"),
		Limit:            1,
	})
	require.NoError(t, err)
	require.Len(t, byPercent, 1)
	assert.Equal(t, "Widget", byPercent[0].ItemName)

	byAmount, err := s.GetRecentOpportunities(ctx, storage.RecentFilter{
		SinceDays:       1,
		MinProfitAmount: decPtr("1"),
		Limit:           2,
	})
	require.NoError(t, err)
	require.Len(t, byAmount, 2)
	assert.Equal(t, "Cable", byAmount[0].ItemName)
	assert.Equal(t, "Widget", byAmount[1].ItemName)

	both, err := s.GetRecentOpportunities(ctx, storage.RecentFilter{
		SinceDays:        1,
		MinProfitPercent: decPtr("1"),
		MinProfitAmount:  decPtr("0.2"),
	})
	require.NoError(t, err)
	require.Len(t, both, 3)
	assert.Equal(t, "Mouse", both[0].ItemName)
}

func testConcurrentWriters(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	now := time.Now().UTC()
	shared := seedSnapshot(t, s, "shared")
	replaced := seedSnapshot(t, s, "replaced")

	const writers = 16
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			source := fmt.Sprintf("source-%02d", i)
			if _, err := s.AddListing(ctx, shared.ID, listing(source, "Widget", "10", "")); err != nil {
				return fmt.Errorf("writer %d add listing: %w", i, err)
			}
			if _, err := s.SaveOpportunities(ctx, shared.ID, []models.Opportunity{
				opportunity("Widget", "10", "15", now),
			}); err != nil {
				return fmt.Errorf("writer %d save: %w", i, err)
			}
			if _, err := s.ReplaceOpportunities(ctx, replaced.ID, []models.Opportunity{
				opportunity("Widget", "10", "15", now),
				opportunity("Cable", "100", "110", now),
			}); err != nil {
				return fmt.Errorf("writer %d replace: %w", i, err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	listings, err := s.GetListings(ctx, shared.ID, "")
	require.NoError(t, err)
	assert.Len(t, listings, writers)

	saved, err := s.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: shared.ID})
	require.NoError(t, err)
	assert.Len(t, saved, writers)

	last, err := s.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: replaced.ID})
	require.NoError(t, err)
	assert.Len(t, last, 2, "concurrent replaces leave exactly one result")
}

func testListAndLatestSnapshots(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	var ids []string
	for _, d := range []string{"one", "two", "three"} {
		snap := seedSnapshot(t, s, d, listing("a", "Widget", "1", ""))
		ids = append(ids, snap.ID)
		time.Sleep(2 * time.Millisecond)
	}

	list, err := s.ListSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)
	assert.Equal(t, 1, list[0].ListingCount)

	latest, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)
	assert.Equal(t, "three", latest.Description)
}

func testDeleteCascades(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	doomed := seedSnapshot(t, s, "doomed",
		listing("a", "Widget", "10", ""),
		listing("b", "Widget", "15", ""),
	)
	kept := seedSnapshot(t, s, "kept", listing("a", "Widget", "10", ""))
	saveFixed(t, s, doomed.ID, opportunity("Widget", "10", "15", time.Now()))
	saveFixed(t, s, kept.ID, opportunity("Widget", "10", "12", time.Now()))

	require.NoError(t, s.DeleteSnapshot(ctx, doomed.ID))

	_, err := s.GetSnapshot(ctx, doomed.ID)
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound))
	_, err = s.GetListings(ctx, doomed.ID, "")
	assert.True(t, errors.Is(err, storage.ErrSnapshotNotFound))

	remaining, err := s.GetOpportunities(ctx, storage.OpportunityFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].SnapshotID)

	keptListings, err := s.GetListings(ctx, kept.ID, "")
	require.NoError(t, err)
	assert.Len(t, keptListings, 1)
}

func testListingsInWindow(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	start := time.Now().Add(-time.Second)
	a := seedSnapshot(t, s, "a", listing("amazon", "Widget", "10", ""))
	b := seedSnapshot(t, s, "b", listing("static", "Widget", "15", ""))

	got, err := s.ListingsInWindow(ctx, start, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].SnapshotID)
	assert.Equal(t, b.ID, got[1].SnapshotID)

	none, err := s.ListingsInWindow(ctx, start.Add(-time.Hour), start.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testSnapshotsBefore(t *testing.T, s storage.Store) {
	ctx := testContext(t)
	old := seedSnapshot(t, s, "old")
	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(5 * time.Millisecond)
	seedSnapshot(t, s, "new")

	got, err := s.SnapshotsBefore(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, old.ID, got[0].ID)
}

func testMigrateIsIdempotent(t *testing.T, s storage.Store) {
	require.NoError(t, s.Migrate(testContext(t)))
	seedSnapshot(t, s, "after migrate")
}
