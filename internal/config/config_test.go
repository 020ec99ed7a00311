package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Database.QueryTimeout.Duration)
	assert.True(t, cfg.Detector.MinProfit().Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "listings.snapshots", cfg.Kafka.Topic)
	assert.False(t, cfg.Canon.Enabled())
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arb.toml")
	body := `
[database]
driver = "postgres"
postgres_dsn = "postgres://arb@localhost/arb"
query_timeout = "5s"

[detector]
min_profit_percent = 12.5

[sources]
enabled = ["static", "amazon"]
amazon_urls = ["https://www.amazon.com/dp/B0DHJH2GZL"]
amazon_names = ["iPhone 16 128GB"]

[collector]
interval = "1h"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout.Duration)
	assert.Equal(t, 12.5, cfg.Detector.MinProfitPercent)
	assert.Equal(t, []string{"static", "amazon"}, cfg.Sources.Enabled)
	assert.Equal(t, time.Hour, cfg.Collector.Interval.Duration)
	// untouched sections keep their defaults
	assert.Equal(t, 8000, cfg.API.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARB_DATABASE_DRIVER", "postgres")
	t.Setenv("ARB_POSTGRES_DSN", "postgres://env@db/arb")
	t.Setenv("ARB_MIN_PROFIT_PERCENT", "7.5")
	t.Setenv("ARB_SOURCES", "static, amazon ,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ARB_API_PORT", "9090")
	t.Setenv("ARB_REQUEST_TIMEOUT", "10s")
	t.Setenv("ARB_S3_FORCE_PATH_STYLE", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://env@db/arb", cfg.Database.PostgresDSN)
	assert.Equal(t, 7.5, cfg.Detector.MinProfitPercent)
	assert.Equal(t, []string{"static", "amazon"}, cfg.Sources.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "0.0.0.0:9090", cfg.API.Addr())
	assert.Equal(t, 10*time.Second, cfg.Sources.RequestTimeout.Duration)
	assert.True(t, cfg.Archive.ForcePathStyle)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("ARB_API_PORT", "not-a-number")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.API.Port)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Driver = "mysql"
	cfg.Detector.MinProfitPercent = -1
	cfg.Sources.AmazonURLs = []string{"https://a", "https://b"}
	cfg.Sources.AmazonNames = []string{"only one"}
	cfg.API.Port = 0
	cfg.Logging.Level = "chatty"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"unknown driver", "min_profit_percent", "amazon_names", "port", "logging.level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidatePostgresNeedsDSN(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Driver = "postgres"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres_dsn")
}

func TestCanonEnabled(t *testing.T) {
	c := CanonConfig{APIKey: "sk-test"}
	assert.False(t, c.Enabled())
	c.Catalog = []string{"iPhone 16 128GB"}
	assert.True(t, c.Enabled())
}
