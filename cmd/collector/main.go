package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/hetulpatel/pricearb/internal/app"
	"github.com/hetulpatel/pricearb/internal/collectors"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/queue"
	"github.com/hetulpatel/pricearb/internal/sources"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		logging.Fatalf("[collector] config: %v", err)
	}
	tracker, store, err := app.OpenTracker(ctx, cfg)
	if err != nil {
		logging.Fatalf("[collector] %v", err)
	}
	defer store.Close()

	srcs, err := sources.Build(cfg.Sources)
	if err != nil {
		logging.Fatalf("[collector] build sources: %v", err)
	}

	var publisher queue.MessageWriter
	if writer := app.KafkaWriter(ctx, cfg.Kafka, "collector"); writer != nil {
		defer writer.Close()
		publisher = writer
	}

	logging.Infof("[collector] collecting %d sources every %s", len(srcs), cfg.Collector.Interval.Duration)
	collectors.RunLoop(ctx, cfg.Collector.Interval.Duration, func(ctx context.Context) error {
		res, err := tracker.Capture(ctx, cfg.Collector.Description, srcs)
		if err != nil {
			return err
		}
		ev := queue.NewSnapshotEvent(res.Snapshot, res.Listings)
		if err := queue.PublishSnapshot(ctx, publisher, ev); err != nil {
			logging.Errorf("[collector] publish error: %v", err)
		}
		return nil
	})
}
