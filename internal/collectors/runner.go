package collectors

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/models"
)

// Collect fetches every source concurrently and concatenates the results in
// source order. The first failure cancels the remaining fetches.
func Collect(ctx context.Context, sources []Source) ([]models.Listing, error) {
	results := make([][]models.Listing, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			listings, err := src.Fetch(ctx)
			if err != nil {
				return fmt.Errorf("[%s] fetch: %w", src.Name(), err)
			}
			logging.Debugf("[collector] %s returned %d listings", src.Name(), len(listings))
			results[i] = listings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []models.Listing
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// RunLoop calls fn immediately and then once per interval until ctx ends.
// Errors are logged and the loop carries on.
func RunLoop(ctx context.Context, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logging.Errorf("[collector] cycle failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
