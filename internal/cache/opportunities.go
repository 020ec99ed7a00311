// Package cache remembers the best opportunity seen per item so repeated
// detections only surface new or improved spreads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/hashutil"
	"github.com/hetulpatel/pricearb/internal/models"
)

const (
	defaultTTL    = 24 * time.Hour
	defaultPrefix = "item_best"
)

// BestRecord is the widest spread recorded for one item name.
type BestRecord struct {
	ProfitPercent decimal.Decimal `json:"profit_percent"`
	ProfitAmount  decimal.Decimal `json:"profit_amount"`
	BuyFrom       string          `json:"buy_from"`
	SellTo        string          `json:"sell_to"`
	SnapshotID    string          `json:"snapshot_id,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OpportunityCache stores the best record per item name.
type OpportunityCache interface {
	Get(ctx context.Context, itemName string) (*BestRecord, bool, error)
	Set(ctx context.Context, itemName string, record BestRecord) error
	Close() error
}

type redisOpportunityCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisOpportunityCache builds a cache keyed by a hash of the item name.
func NewRedisOpportunityCache(cfg config.RedisConfig) (OpportunityCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	ttl := cfg.TTL.Duration
	if ttl <= 0 {
		ttl = defaultTTL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &redisOpportunityCache{client: client, ttl: ttl, prefix: prefix}, nil
}

func (c *redisOpportunityCache) key(itemName string) string {
	return fmt.Sprintf("%s:%s", c.prefix, hashutil.ItemKey(itemName))
}

func (c *redisOpportunityCache) Get(ctx context.Context, itemName string) (*BestRecord, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(itemName)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var record BestRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

func (c *redisOpportunityCache) Set(ctx context.Context, itemName string, record BestRecord) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(itemName), payload, c.ttl).Err()
}

func (c *redisOpportunityCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Track records o when it is the first or a wider spread for its item and
// reports whether it did. A nil cache treats every opportunity as new.
func Track(ctx context.Context, c OpportunityCache, o models.Opportunity) (bool, error) {
	if c == nil {
		return true, nil
	}
	prev, ok, err := c.Get(ctx, o.ItemName)
	if err != nil {
		return false, fmt.Errorf("cache get %q: %w", o.ItemName, err)
	}
	if ok && !o.ProfitPercent.GreaterThan(prev.ProfitPercent) {
		return false, nil
	}
	updated := o.Timestamp
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	err = c.Set(ctx, o.ItemName, BestRecord{
		ProfitPercent: o.ProfitPercent,
		ProfitAmount:  o.ProfitAmount,
		BuyFrom:       o.BuyFrom,
		SellTo:        o.SellTo,
		SnapshotID:    o.SnapshotID,
		UpdatedAt:     updated,
	})
	if err != nil {
		return false, fmt.Errorf("cache set %q: %w", o.ItemName, err)
	}
	return true, nil
}
