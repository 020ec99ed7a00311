package workers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/pricearb/internal/arb"
	"github.com/hetulpatel/pricearb/internal/cache"
	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/queue"
	"github.com/hetulpatel/pricearb/internal/service"
	"github.com/hetulpatel/pricearb/internal/storage/sqlite"
)

// chanReader replays queued messages, then reports EOF.
type chanReader struct {
	msgs   chan kafkago.Message
	closed bool
	mu     sync.Mutex
}

func (r *chanReader) ReadMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	case m, ok := <-r.msgs:
		if !ok {
			<-ctx.Done()
			return kafkago.Message{}, io.EOF
		}
		return m, nil
	}
}

func (r *chanReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// failingReader fails every read without blocking.
type failingReader struct {
	reads atomic.Int32
}

func (r *failingReader) ReadMessage(context.Context) (kafkago.Message, error) {
	r.reads.Add(1)
	return kafkago.Message{}, errors.New("broker unreachable")
}

func (r *failingReader) Close() error { return nil }

func message(t *testing.T, v any) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return kafkago.Message{Value: payload}
}

func TestRunDispatchesDecodedEvents(t *testing.T) {
	reader := &chanReader{msgs: make(chan kafkago.Message, 4)}
	reader.msgs <- message(t, queue.SnapshotEvent{SnapshotID: "s1", ListingCount: 2})
	reader.msgs <- kafkago.Message{Value: []byte("garbage")}
	reader.msgs <- message(t, queue.SnapshotEvent{SnapshotID: "s2"})
	close(reader.msgs)

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu  sync.Mutex
		got []string
	)
	handler := func(_ context.Context, ev queue.SnapshotEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.SnapshotID)
		if len(got) == 2 {
			cancel()
		}
		return errors.New("handler errors are logged, not fatal")
	}

	done := make(chan struct{})
	go func() {
		Run(ctx, func() MessageReader { return reader }, 1, handler)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, []string{"s1", "s2"}, got)
	assert.True(t, reader.closed)
}

func TestRunBacksOffOnReadErrors(t *testing.T) {
	prev := readBackoff
	readBackoff = 20 * time.Millisecond
	t.Cleanup(func() { readBackoff = prev })

	reader := &failingReader{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, func() MessageReader { return reader }, 1, func(context.Context, queue.SnapshotEvent) error {
			t.Error("handler called without a message")
			return nil
		})
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	reads := reader.reads.Load()
	assert.GreaterOrEqual(t, reads, int32(2), "reads are retried")
	assert.LessOrEqual(t, reads, int32(20), "reads are paced by the backoff")
}

func TestRunStopsDuringBackoff(t *testing.T) {
	prev := readBackoff
	readBackoff = time.Hour
	t.Cleanup(func() { readBackoff = prev })

	reader := &failingReader{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, func() MessageReader { return reader }, 2, nil)
		close(done)
	}()

	require.Eventually(t, func() bool { return reader.reads.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop while backing off")
	}
	assert.EqualValues(t, 2, reader.reads.Load())
}

func TestDetectHandlerSavesAndDedups(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(sqlite.Config{Path: filepath.Join(t.TempDir(), "arb.db")})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	mr := miniredis.RunT(t)
	best, err := cache.NewRedisOpportunityCache(config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = best.Close() })

	tracker := service.New(store, arb.DefaultMinProfitPercent)
	record := func() queue.SnapshotEvent {
		res, err := tracker.Record(ctx, "", []models.Listing{
			{Source: "a", Name: "Widget", Price: decimal.NewFromInt(10)},
			{Source: "b", Name: "Widget", Price: decimal.NewFromInt(20)},
		})
		require.NoError(t, err)
		return queue.NewSnapshotEvent(res.Snapshot, res.Listings)
	}

	var notified []models.Opportunity
	h := DetectHandler(tracker, best, func(_ context.Context, o models.Opportunity) {
		notified = append(notified, o)
	})

	first := record()
	require.NoError(t, h(ctx, first))
	require.Len(t, notified, 1)
	assert.Equal(t, first.SnapshotID, notified[0].SnapshotID)

	require.NoError(t, h(ctx, record()))
	assert.Len(t, notified, 1, "same spread on a later snapshot is not new")

	require.NoError(t, h(ctx, first))
	assert.Len(t, notified, 1, "a redelivered event is not new")

	hist, err := tracker.History(ctx, service.HistoryRequest{SnapshotID: first.SnapshotID})
	require.NoError(t, err)
	assert.Len(t, hist.Opportunities, 1)

	assert.Error(t, h(ctx, queue.SnapshotEvent{SnapshotID: "missing"}))
}
