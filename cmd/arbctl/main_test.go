package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "arb.toml")
	body := "[database]\ndriver = \"sqlite\"\nsqlite_path = \"" + filepath.ToSlash(filepath.Join(dir, "arb.db")) + "\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	t.Setenv("ARB_CONFIG", cfgPath)

	items := `[
		{"source": "amazon", "name": "Kindle", "price": "100.00", "url": "http://a/kindle"},
		{"source": "static", "name": "Kindle", "price": 125},
		{"source": "amazon", "name": "Mouse", "price": "20"},
		{"source": "static", "name": "Mouse", "price": "20.50"}
	]`
	itemsPath := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(itemsPath, []byte(items), 0o600))
	return itemsPath
}

func runArgs(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUnknownCommand(t *testing.T) {
	code, _, stderr := runArgs(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)
	assert.Contains(t, stderr, "history")
}

func TestNoCommandPrintsUsage(t *testing.T) {
	code, _, stderr := runArgs(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: arbctl")
}

func TestInit(t *testing.T) {
	setup(t)
	code, stdout, _ := runArgs(t, "init")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Database initialized!")
}

func TestDetectNeedsInput(t *testing.T) {
	setup(t)
	code, _, stderr := runArgs(t, "detect", "-static=false")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "nothing to analyze")
}

func TestDetectDoesNotSave(t *testing.T) {
	items := setup(t)
	code, stdout, stderr := runArgs(t, "detect", "-static=false", "-items", items, "-format", "csv")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Analyzed 4 items.")
	assert.Contains(t, stdout, "Kindle,amazon,100.00,static,125.00,25.00,25.0")
	assert.NotContains(t, stdout, "Mouse")
	assert.NotContains(t, stdout, "Saved")

	code, stdout, _ = runArgs(t, "snapshots")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "No snapshots found.")
}

func TestFindThenBrowse(t *testing.T) {
	items := setup(t)
	code, stdout, stderr := runArgs(t, "find", "-static=false", "-items", items, "-min-profit", "1", "-name", "cli run")
	require.Equal(t, 0, code, stderr)
	m := regexp.MustCompile(`Saved 2 opportunities to snapshot (\S+)`).FindStringSubmatch(stdout)
	require.Len(t, m, 2, stdout)
	id := m[1]

	code, stdout, _ = runArgs(t, "snapshots")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, id)
	assert.Contains(t, stdout, "cli run")

	code, stdout, _ = runArgs(t, "history", "-latest", "-format", "text", "-min-profit-percent", "10")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Opportunities from snapshot "+id)
	assert.Contains(t, stdout, "Kindle")
	assert.NotContains(t, stdout, "Mouse")

	code, stdout, _ = runArgs(t, "items", "-snapshot-id", id, "-source", "static")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Total: 2 products.")
	assert.Contains(t, stdout, "Price: £125.00")

	code, stdout, _ = runArgs(t, "delete", id)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Deleted snapshot "+id)

	code, _, stderr = runArgs(t, "delete", id)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not found")
}

func TestDetectWritesWorkbook(t *testing.T) {
	items := setup(t)
	out := filepath.Join(t.TempDir(), "opps.xlsx")
	code, stdout, stderr := runArgs(t, "detect", "-static=false", "-items", items, "-output", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Results saved to "+out)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestScrapeStaticWithoutSaving(t *testing.T) {
	setup(t)
	code, stdout, stderr := runArgs(t, "scrape", "-static", "-save=false")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "iPhone 16 128GB")
	assert.Contains(t, stdout, "Total: 5 products.")
	assert.NotContains(t, stdout, "Created snapshot")
}

func TestMalformedItemsFile(t *testing.T) {
	setup(t)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"source": "a", "name": "X"}]`), 0o600))
	code, _, stderr := runArgs(t, "detect", "-static=false", "-items", bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "missing price")
}
