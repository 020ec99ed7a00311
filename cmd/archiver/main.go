package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/hetulpatel/pricearb/internal/app"
	"github.com/hetulpatel/pricearb/internal/archive"
	s3blob "github.com/hetulpatel/pricearb/internal/blob/s3"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/storage/backend"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		logging.Fatalf("[archiver] config: %v", err)
	}
	if cfg.Archive.Bucket == "" {
		logging.Fatalf("[archiver] archive.bucket is not set")
	}

	store, err := backend.OpenMigrated(ctx, cfg.Database)
	if err != nil {
		logging.Fatalf("[archiver] open store: %v", err)
	}
	defer store.Close()

	client, err := s3blob.New(ctx, s3blob.FromConfig(cfg.Archive))
	if err != nil {
		logging.Fatalf("[archiver] s3: %v", err)
	}
	defer client.Close()

	healthCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err = client.Health(healthCtx)
	cancel()
	if err != nil {
		logging.Fatalf("[archiver] bucket %s unreachable: %v", client.Bucket(), err)
	}

	res, err := archive.New(store, s3blob.NewWriter(client), archive.ConfigFrom(cfg.Archive), nil).Run(ctx)
	if err != nil {
		logging.Fatalf("[archiver] run: %v (archived %d, failed %d)", err, res.Archived, res.Failed)
	}
	logging.Infof("[archiver] archived %d snapshots to s3://%s (%d failed)", res.Archived, client.Bucket(), res.Failed)
}
