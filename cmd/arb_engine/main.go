package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/hetulpatel/pricearb/internal/app"
	"github.com/hetulpatel/pricearb/internal/cache"
	"github.com/hetulpatel/pricearb/internal/kafka"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/workers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		logging.Fatalf("[arb-engine] config: %v", err)
	}
	kcfg := kafka.Settings(cfg.Kafka)

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, kcfg.Brokers); err != nil {
		logging.Fatalf("[arb-engine] wait for broker: %v", err)
	}
	cancel()

	ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, kcfg.Brokers, kcfg.Topic); err != nil {
		logging.Errorf("[arb-engine] ensure topic warning: %v", err)
	}
	cancelEnsure()

	tracker, store, err := app.OpenTracker(ctx, cfg)
	if err != nil {
		logging.Fatalf("[arb-engine] %v", err)
	}
	defer store.Close()

	var best cache.OpportunityCache
	if cfg.Redis.Addr != "" {
		best, err = cache.NewRedisOpportunityCache(cfg.Redis)
		if err != nil {
			logging.Fatalf("[arb-engine] redis: %v", err)
		}
		defer best.Close()
	} else {
		logging.Warnf("[arb-engine] no redis configured, every opportunity is reported")
	}

	logging.Infof("[arb-engine] consuming %s with group %s (%d workers)", kcfg.Topic, kcfg.GroupID, kcfg.Workers)
	workers.Run(ctx, workers.KafkaReaders(kcfg), kcfg.Workers, workers.DetectHandler(tracker, best, nil))
}
