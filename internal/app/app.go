// Package app holds the start-up wiring shared by the binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/pricearb/internal/canon"
	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/kafka"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/service"
	"github.com/hetulpatel/pricearb/internal/storage"
	"github.com/hetulpatel/pricearb/internal/storage/backend"
)

// LoadConfig reads ARB_CONFIG plus environment overrides, validates the
// result and applies the configured log level.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.SetLevel(cfg.Logging.Level)
	return cfg, nil
}

// Canonicalizer returns the LLM canonicalizer, or nil when it is not configured.
func Canonicalizer(cfg config.CanonConfig) (canon.Canonicalizer, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	llm, err := canon.NewLLM(canon.FromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("canonicalizer: %w", err)
	}
	return llm, nil
}

// OpenTracker opens and migrates the configured store and builds a tracker
// over it. Callers close the returned store.
func OpenTracker(ctx context.Context, cfg *config.Config) (*service.Tracker, storage.Store, error) {
	store, err := backend.OpenMigrated(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	c, err := Canonicalizer(cfg.Canon)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	var opts []service.Option
	if c != nil {
		opts = append(opts, service.WithCanonicalizer(c))
	}
	return service.New(store, cfg.Detector.MinProfit(), opts...), store, nil
}

// KafkaWriter waits for a broker and ensures the snapshot topic exists. It
// returns nil when kafka is unreachable so callers can run without events.
func KafkaWriter(ctx context.Context, cfg config.KafkaConfig, tag string) *kafkago.Writer {
	cfg = kafka.Settings(cfg)

	waitCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := kafka.WaitForBroker(waitCtx, cfg.Brokers)
	cancel()
	if err != nil {
		logging.Warnf("[%s] kafka unavailable, events disabled: %v", tag, err)
		return nil
	}

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, cfg.Brokers, cfg.Topic); err != nil {
		logging.Warnf("[%s] ensure topic warning: %v", tag, err)
	}
	cancelEnsure()

	return kafka.NewWriter(cfg)
}
