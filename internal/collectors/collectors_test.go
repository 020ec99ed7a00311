package collectors

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/models"
)

type fakeSource struct {
	name     string
	listings []models.Listing
	err      error
	delay    time.Duration
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Fetch(ctx context.Context) ([]models.Listing, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.listings, f.err
}

func one(source, name string, price int64) []models.Listing {
	return []models.Listing{{Source: source, Name: name, Price: decimal.NewFromInt(price)}}
}

func TestCollectKeepsSourceOrder(t *testing.T) {
	got, err := Collect(context.Background(), []Source{
		fakeSource{name: "slow", listings: one("slow", "Widget", 1), delay: 20 * time.Millisecond},
		fakeSource{name: "fast", listings: one("fast", "Widget", 2)},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "slow", got[0].Source)
	assert.Equal(t, "fast", got[1].Source)
}

func TestCollectFailureNamesSource(t *testing.T) {
	boom := errors.New("boom")
	_, err := Collect(context.Background(), []Source{
		fakeSource{name: "ok", listings: one("ok", "Widget", 1)},
		fakeSource{name: "broken", err: boom},
		fakeSource{name: "waiting", delay: time.Minute},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "[broken]")
}

func TestCollectEmpty(t *testing.T) {
	got, err := Collect(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("static", func(cfg config.SourcesConfig) (Source, error) {
		return fakeSource{name: cfg.StaticName}, nil
	})
	r.Register("Amazon", func(config.SourcesConfig) (Source, error) {
		return nil, errors.New("no urls")
	})
	assert.Equal(t, []string{"amazon", "static"}, r.Names())

	src, err := r.Build(" STATIC ", config.SourcesConfig{StaticName: "fixtures"})
	require.NoError(t, err)
	assert.Equal(t, "fixtures", src.Name())

	_, err = r.Build("ebay", config.SourcesConfig{})
	assert.ErrorContains(t, err, `unknown source "ebay"`)

	_, err = r.BuildAll([]string{"static", "amazon"}, config.SourcesConfig{})
	assert.ErrorContains(t, err, "no urls")
}

func TestRunLoopRunsUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		RunLoop(ctx, 5*time.Millisecond, func(context.Context) error {
			if calls.Add(1) == 3 {
				cancel()
			}
			return errors.New("logged and ignored")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunLoop did not stop")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}
