package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/pricearb/internal/models"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func TestNewSnapshotEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))
	ev := NewSnapshotEvent(models.Snapshot{ID: "snap-1", Timestamp: at}, []models.Listing{
		{Source: "amazon"}, {Source: "static"}, {Source: "amazon"},
	})
	assert.Equal(t, "snap-1", ev.SnapshotID)
	assert.Equal(t, 3, ev.ListingCount)
	assert.Equal(t, []string{"amazon", "static"}, ev.Sources)
	assert.Equal(t, time.UTC, ev.CapturedAt.Location())
	assert.True(t, ev.CapturedAt.Equal(at))
}

func TestPublishAndDecode(t *testing.T) {
	w := &recordingWriter{}
	ev := SnapshotEvent{
		SnapshotID:   "snap-1",
		CapturedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ListingCount: 2,
		Sources:      []string{"a", "b"},
	}
	require.NoError(t, PublishSnapshot(context.Background(), w, ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "snap-1", string(w.msgs[0].Key))
	assert.JSONEq(t,
		`{"snapshot_id":"snap-1","captured_at":"2026-03-01T12:00:00Z","listing_count":2,"sources":["a","b"]}`,
		string(w.msgs[0].Value))

	got, err := DecodeSnapshotEvent(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestPublishNilWriterAndErrors(t *testing.T) {
	assert.NoError(t, PublishSnapshot(context.Background(), nil, SnapshotEvent{SnapshotID: "x"}))

	w := &recordingWriter{err: errors.New("broker down")}
	assert.ErrorContains(t, PublishSnapshot(context.Background(), w, SnapshotEvent{SnapshotID: "x"}), "broker down")

	_, err := DecodeSnapshotEvent([]byte(`{"listing_count":1}`))
	assert.ErrorContains(t, err, "missing snapshot_id")
	_, err = DecodeSnapshotEvent([]byte(`not json`))
	assert.Error(t, err)
}
