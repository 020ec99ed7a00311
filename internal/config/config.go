// Package config loads the tracker configuration: built-in defaults, an
// optional TOML file, a .env file and finally ARB_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration passed to every component constructor.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Detector  DetectorConfig  `toml:"detector"`
	Sources   SourcesConfig   `toml:"sources"`
	Kafka     KafkaConfig     `toml:"kafka"`
	Redis     RedisConfig     `toml:"redis"`
	Canon     CanonConfig     `toml:"canon"`
	API       APIConfig       `toml:"api"`
	Archive   ArchiveConfig   `toml:"archive"`
	Collector CollectorConfig `toml:"collector"`
	Logging   LoggingConfig   `toml:"logging"`
}

// DatabaseConfig selects and tunes the snapshot store backend.
type DatabaseConfig struct {
	Driver       string   `toml:"driver"` // sqlite | postgres
	SQLitePath   string   `toml:"sqlite_path"`
	PostgresDSN  string   `toml:"postgres_dsn"`
	QueryTimeout duration `toml:"query_timeout"`
	MaxConns     int      `toml:"max_conns"`
	MinConns     int      `toml:"min_conns"`
}

// DetectorConfig holds the default profit threshold.
type DetectorConfig struct {
	MinProfitPercent float64 `toml:"min_profit_percent"`
}

// MinProfit returns the threshold as a decimal.
func (d DetectorConfig) MinProfit() decimal.Decimal {
	return decimal.NewFromFloat(d.MinProfitPercent)
}

// SourcesConfig configures the listing source adapters.
type SourcesConfig struct {
	Enabled        []string `toml:"enabled"`
	StaticName     string   `toml:"static_name"`
	AmazonURLs     []string `toml:"amazon_urls"`
	AmazonNames    []string `toml:"amazon_names"`
	UserAgent      string   `toml:"user_agent"`
	RequestTimeout duration `toml:"request_timeout"`
	Delay          duration `toml:"delay"`
}

// KafkaConfig configures snapshot event publishing and consumption.
type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
	GroupID string   `toml:"group_id"`
	Workers int      `toml:"workers"`
}

// RedisConfig configures the opportunity dedup cache.
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	TTL      duration `toml:"ttl"`
	Prefix   string   `toml:"prefix"`
}

// CanonConfig configures LLM name canonicalization. Disabled without an API key.
type CanonConfig struct {
	APIKey  string   `toml:"api_key"`
	BaseURL string   `toml:"base_url"`
	Model   string   `toml:"model"`
	Catalog []string `toml:"catalog"`
	Timeout duration `toml:"timeout"`
}

// Enabled reports whether canonicalization should run.
func (c CanonConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != "" && len(c.Catalog) > 0
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
	ReadTimeout    duration `toml:"read_timeout"`
	WriteTimeout   duration `toml:"write_timeout"`
}

// Addr returns host:port for http.Server.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// ArchiveConfig configures S3 cold storage of old snapshots.
type ArchiveConfig struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
	RetentionDays  int    `toml:"retention_days"`
	BatchSize      int    `toml:"batch_size"`
}

// CollectorConfig configures the periodic collector daemon.
type CollectorConfig struct {
	Interval    duration `toml:"interval"`
	Description string   `toml:"description"`
}

// LoggingConfig holds the log level.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible defaults.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:       "sqlite",
			SQLitePath:   "data/arbitrage.db",
			QueryTimeout: duration{30 * time.Second},
			MaxConns:     10,
		},
		Detector: DetectorConfig{MinProfitPercent: 5.0},
		Sources: SourcesConfig{
			Enabled:        []string{"static"},
			StaticName:     "static",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			RequestTimeout: duration{30 * time.Second},
			Delay:          duration{2 * time.Second},
		},
		Kafka: KafkaConfig{
			Brokers: []string{"kafka-broker:9092"},
			Topic:   "listings.snapshots",
			GroupID: "arb-engine",
			Workers: 1,
		},
		Redis: RedisConfig{
			TTL:    duration{24 * time.Hour},
			Prefix: "item_best",
		},
		Canon: CanonConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: duration{60 * time.Second},
		},
		API: APIConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			ReadTimeout:    duration{15 * time.Second},
			WriteTimeout:   duration{90 * time.Second},
		},
		Archive: ArchiveConfig{
			Region:        "us-east-1",
			Prefix:        "snapshots",
			RetentionDays: 90,
			BatchSize:     50,
		},
		Collector: CollectorConfig{
			Interval:    duration{15 * time.Minute},
			Description: "scheduled collection",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid values and returns a combined
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Database.SQLitePath) == "" {
			errs = append(errs, "database: sqlite_path must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(c.Database.PostgresDSN) == "" {
			errs = append(errs, "database: postgres_dsn must be set for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("database: unknown driver %q (valid: sqlite, postgres)", c.Database.Driver))
	}
	if c.Database.QueryTimeout.Duration <= 0 {
		errs = append(errs, "database: query_timeout must be positive")
	}

	if c.Detector.MinProfitPercent < 0 {
		errs = append(errs, fmt.Sprintf("detector: min_profit_percent must be >= 0, got %v", c.Detector.MinProfitPercent))
	}

	if len(c.Sources.AmazonNames) > 0 && len(c.Sources.AmazonNames) != len(c.Sources.AmazonURLs) {
		errs = append(errs, "sources: amazon_names must match amazon_urls one to one")
	}
	if c.Sources.RequestTimeout.Duration <= 0 {
		errs = append(errs, "sources: request_timeout must be positive")
	}
	if c.Sources.Delay.Duration < 0 {
		errs = append(errs, "sources: delay must not be negative")
	}

	if c.Kafka.Workers < 0 {
		errs = append(errs, "kafka: workers must not be negative")
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api: port must be 1-65535, got %d", c.API.Port))
	}
	if c.API.RateLimitRPS < 0 || c.API.RateLimitBurst < 0 {
		errs = append(errs, "api: rate limit values must not be negative")
	}

	if c.Archive.RetentionDays < 0 {
		errs = append(errs, "archive: retention_days must not be negative")
	}

	if c.Collector.Interval.Duration <= 0 {
		errs = append(errs, "collector: interval must be positive")
	}

	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("unknown logging.level %q (valid: debug, info, warn, error)", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
