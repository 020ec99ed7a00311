package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (skipped when path is empty) over the
// defaults, then loads .env if present and applies ARB_* overrides. The result
// has NOT been validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// FromEnv is Load with the file path taken from ARB_CONFIG.
func FromEnv() (*Config, error) {
	return Load(os.Getenv("ARB_CONFIG"))
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Database.Driver, "ARB_DATABASE_DRIVER")
	setStr(&cfg.Database.SQLitePath, "ARB_SQLITE_PATH")
	setStr(&cfg.Database.PostgresDSN, "ARB_POSTGRES_DSN")
	setDuration(&cfg.Database.QueryTimeout, "ARB_DATABASE_QUERY_TIMEOUT")
	setInt(&cfg.Database.MaxConns, "ARB_DATABASE_MAX_CONNS")
	setInt(&cfg.Database.MinConns, "ARB_DATABASE_MIN_CONNS")

	setFloat64(&cfg.Detector.MinProfitPercent, "ARB_MIN_PROFIT_PERCENT")

	setStringSlice(&cfg.Sources.Enabled, "ARB_SOURCES")
	setStr(&cfg.Sources.StaticName, "ARB_STATIC_SOURCE_NAME")
	setStringSlice(&cfg.Sources.AmazonURLs, "ARB_AMAZON_URLS")
	setStringSlice(&cfg.Sources.AmazonNames, "ARB_AMAZON_NAMES")
	setStr(&cfg.Sources.UserAgent, "ARB_USER_AGENT")
	setDuration(&cfg.Sources.RequestTimeout, "ARB_REQUEST_TIMEOUT")
	setDuration(&cfg.Sources.Delay, "ARB_REQUEST_DELAY")

	setStringSlice(&cfg.Kafka.Brokers, "KAFKA_BROKERS")
	setStr(&cfg.Kafka.Topic, "ARB_KAFKA_TOPIC")
	setStr(&cfg.Kafka.GroupID, "ARB_KAFKA_GROUP")
	setInt(&cfg.Kafka.Workers, "ARB_ENGINE_WORKERS")

	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setDuration(&cfg.Redis.TTL, "ARB_REDIS_TTL")
	setStr(&cfg.Redis.Prefix, "ARB_REDIS_PREFIX")

	setStr(&cfg.Canon.APIKey, "ARB_CANON_API_KEY")
	setStr(&cfg.Canon.BaseURL, "ARB_CANON_BASE_URL")
	setStr(&cfg.Canon.Model, "ARB_CANON_MODEL")
	setStringSlice(&cfg.Canon.Catalog, "ARB_CANON_CATALOG")
	setDuration(&cfg.Canon.Timeout, "ARB_CANON_TIMEOUT")

	setStr(&cfg.API.Host, "ARB_API_HOST")
	setInt(&cfg.API.Port, "ARB_API_PORT")
	setFloat64(&cfg.API.RateLimitRPS, "ARB_API_RATE_LIMIT_RPS")
	setInt(&cfg.API.RateLimitBurst, "ARB_API_RATE_LIMIT_BURST")
	setDuration(&cfg.API.ReadTimeout, "ARB_API_READ_TIMEOUT")
	setDuration(&cfg.API.WriteTimeout, "ARB_API_WRITE_TIMEOUT")

	setStr(&cfg.Archive.Endpoint, "ARB_S3_ENDPOINT")
	setStr(&cfg.Archive.Region, "ARB_S3_REGION")
	setStr(&cfg.Archive.Bucket, "ARB_S3_BUCKET")
	setStr(&cfg.Archive.AccessKey, "ARB_S3_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "ARB_S3_SECRET_KEY")
	setBool(&cfg.Archive.ForcePathStyle, "ARB_S3_FORCE_PATH_STYLE")
	setStr(&cfg.Archive.Prefix, "ARB_ARCHIVE_PREFIX")
	setInt(&cfg.Archive.RetentionDays, "ARB_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Archive.BatchSize, "ARB_ARCHIVE_BATCH_SIZE")

	setDuration(&cfg.Collector.Interval, "ARB_COLLECT_INTERVAL")
	setStr(&cfg.Collector.Description, "ARB_COLLECT_DESCRIPTION")

	setStr(&cfg.Logging.Level, "LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				cleaned = append(cleaned, s)
			}
		}
		*dst = cleaned
	}
}
