package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/pricearb/internal/arb"
	"github.com/hetulpatel/pricearb/internal/hashutil"
	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/storage"
	"github.com/hetulpatel/pricearb/internal/storage/sqlite"
)

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if m.failOn != "" && strings.Contains(path, m.failOn) {
		return errors.New("bucket unavailable")
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[path] = raw
	return nil
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(sqlite.Config{Path: filepath.Join(t.TempDir(), "arb.db")})
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s storage.Store) models.Snapshot {
	t.Helper()
	ctx := context.Background()
	snap, err := s.CreateSnapshot(ctx, "old")
	require.NoError(t, err)
	listings, err := s.AddListings(ctx, snap.ID, []models.Listing{
		{Source: "a", Name: "Widget", Price: decimal.NewFromInt(10)},
		{Source: "b", Name: "Widget", Price: decimal.NewFromInt(20)},
	})
	require.NoError(t, err)
	opps, err := arb.FindOpportunities(listings, arb.DefaultMinProfitPercent)
	require.NoError(t, err)
	_, err = s.SaveOpportunities(ctx, snap.ID, opps)
	require.NoError(t, err)
	return snap
}

func later(days int) func() time.Time {
	return func() time.Time { return time.Now().AddDate(0, 0, days) }
}

func TestKey(t *testing.T) {
	snap := models.Snapshot{ID: "abc", Timestamp: time.Date(2026, 3, 9, 23, 0, 0, 0, time.FixedZone("X", -2*3600))}
	assert.Equal(t, "snapshots/2026/03/abc.json", Key("snapshots", snap))
}

func TestRunArchivesOldSnapshots(t *testing.T) {
	s := openStore(t)
	first := seed(t, s)
	second := seed(t, s)
	blob := &memBlob{}

	res, err := New(s, blob, Config{RetentionDays: 30, BatchSize: 1}, later(31)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Archived: 2}, res)
	require.Len(t, blob.objects, 2)

	raw := blob.objects[Key(defaultPrefix, first)]
	require.NotNil(t, raw)
	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, first.ID, doc.Snapshot.ID)
	assert.Len(t, doc.Listings, 2)
	assert.Equal(t, hashutil.Listings(doc.Listings), doc.ListingsDigest)
	require.Len(t, doc.Opportunities, 1)
	assert.Equal(t, "Widget", doc.Opportunities[0].ItemName)

	for _, id := range []string{first.ID, second.ID} {
		_, err := s.GetSnapshot(context.Background(), id)
		assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
	}
}

func TestRunKeepsRecentSnapshots(t *testing.T) {
	s := openStore(t)
	snap := seed(t, s)
	blob := &memBlob{}

	res, err := New(s, blob, Config{RetentionDays: 30}, later(29)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, blob.objects)

	_, err = s.GetSnapshot(context.Background(), snap.ID)
	assert.NoError(t, err)
}

func TestRunKeepsSnapshotWhenUploadFails(t *testing.T) {
	s := openStore(t)
	bad := seed(t, s)
	good := seed(t, s)
	blob := &memBlob{failOn: bad.ID}

	res, err := New(s, blob, Config{RetentionDays: 1, BatchSize: 10}, later(2)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Archived: 1, Failed: 1}, res)

	_, err = s.GetSnapshot(context.Background(), bad.ID)
	assert.NoError(t, err, "failed upload leaves the snapshot in place")
	_, err = s.GetSnapshot(context.Background(), good.ID)
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
}

func TestRunStopsWhenNothingProgresses(t *testing.T) {
	s := openStore(t)
	seed(t, s)
	seed(t, s)
	blob := &memBlob{failOn: "/"}

	res, err := New(s, blob, Config{RetentionDays: 1, BatchSize: 2}, later(2)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 2}, res)
}
