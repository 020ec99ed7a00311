package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/service"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arb.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("ARB_CONFIG", path)
}

func TestLoadConfigValidates(t *testing.T) {
	writeConfig(t, "[database]\ndriver = \"mysql\"\n")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestCanonicalizerDisabledWithoutKey(t *testing.T) {
	c, err := Canonicalizer(config.CanonConfig{Catalog: []string{"iPhone 16"}})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = Canonicalizer(config.CanonConfig{APIKey: "sk-test", Catalog: []string{"iPhone 16"}})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestOpenTrackerRecordsAndDetects(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "arb.db")
	writeConfig(t, "[database]\ndriver = \"sqlite\"\nsqlite_path = \""+filepath.ToSlash(dbPath)+"\"\n")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	ctx := context.Background()
	tracker, store, err := OpenTracker(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	_, err = tracker.Record(ctx, "test", []models.Listing{
		{Source: "static", Name: "Kindle", Price: decimal.NewFromInt(100)},
		{Source: "amazon", Name: "Kindle", Price: decimal.NewFromInt(120)},
	})
	require.NoError(t, err)

	res, err := tracker.Detect(ctx, service.DetectRequest{Latest: true})
	require.NoError(t, err)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, "Kindle", res.Opportunities[0].ItemName)
}
