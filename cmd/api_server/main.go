package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hetulpatel/pricearb/internal/api"
	"github.com/hetulpatel/pricearb/internal/app"
	"github.com/hetulpatel/pricearb/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		logging.Fatalf("[api] config: %v", err)
	}
	tracker, store, err := app.OpenTracker(ctx, cfg)
	if err != nil {
		logging.Fatalf("[api] %v", err)
	}
	defer store.Close()

	server := api.NewServer(api.ConfigFrom(cfg.API), tracker, cfg.Sources)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf("[api] server error: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Errorf("[api] shutdown error: %v", err)
		}
	}
}
