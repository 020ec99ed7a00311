// Package queue defines the snapshot event exchanged between the collector and
// the detection engine.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/pricearb/internal/models"
)

// SnapshotEvent announces a stored snapshot.
type SnapshotEvent struct {
	SnapshotID   string    `json:"snapshot_id"`
	CapturedAt   time.Time `json:"captured_at"`
	ListingCount int       `json:"listing_count"`
	Sources      []string  `json:"sources"`
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewSnapshotEvent describes snap and the sources present in listings, in
// order of first appearance.
func NewSnapshotEvent(snap models.Snapshot, listings []models.Listing) SnapshotEvent {
	seen := make(map[string]bool)
	var sources []string
	for _, l := range listings {
		if !seen[l.Source] {
			seen[l.Source] = true
			sources = append(sources, l.Source)
		}
	}
	return SnapshotEvent{
		SnapshotID:   snap.ID,
		CapturedAt:   snap.Timestamp.UTC(),
		ListingCount: len(listings),
		Sources:      sources,
	}
}

// PublishSnapshot writes ev keyed by its snapshot id. A nil writer disables
// publishing.
func PublishSnapshot(ctx context.Context, writer MessageWriter, ev SnapshotEvent) error {
	if writer == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal snapshot event %s: %w", ev.SnapshotID, err)
	}
	return writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.SnapshotID), Value: payload})
}

// DecodeSnapshotEvent parses a message value.
func DecodeSnapshotEvent(value []byte) (SnapshotEvent, error) {
	var ev SnapshotEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return SnapshotEvent{}, fmt.Errorf("decode snapshot event: %w", err)
	}
	if ev.SnapshotID == "" {
		return SnapshotEvent{}, errors.New("decode snapshot event: missing snapshot_id")
	}
	return ev, nil
}
