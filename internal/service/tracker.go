// Package service holds the tracker workflows shared by the CLI, the HTTP API
// and the pipeline workers: capture a snapshot, detect opportunities and
// query history.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/arb"
	"github.com/hetulpatel/pricearb/internal/canon"
	"github.com/hetulpatel/pricearb/internal/collectors"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/storage"
)

// DefaultDetectDescription labels snapshots created only to hold saved
// opportunities.
const DefaultDetectDescription = "Opportunity detection"

var (
	ErrNoListings     = errors.New("no listings collected")
	ErrInvalidRequest = errors.New("invalid request")
)

// Tracker runs the workflows against one store.
type Tracker struct {
	store     storage.Store
	canon     canon.Canonicalizer
	minProfit decimal.Decimal
	now       func() time.Time
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithCanonicalizer rewrites freshly collected listing names before they are
// stored or compared.
func WithCanonicalizer(c canon.Canonicalizer) Option {
	return func(t *Tracker) { t.canon = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New returns a tracker whose default threshold is minProfitPercent.
func New(store storage.Store, minProfitPercent decimal.Decimal, opts ...Option) *Tracker {
	t := &Tracker{store: store, minProfit: minProfitPercent, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Store exposes the underlying store.
func (t *Tracker) Store() storage.Store { return t.store }

// CaptureResult is a stored snapshot and its listings.
type CaptureResult struct {
	Snapshot models.Snapshot  `json:"snapshot"`
	Listings []models.Listing `json:"items"`
}

// Capture collects every source, canonicalizes names and stores the batch as
// one snapshot.
func (t *Tracker) Capture(ctx context.Context, description string, sources []collectors.Source) (CaptureResult, error) {
	listings, err := t.collect(ctx, sources)
	if err != nil {
		return CaptureResult{}, err
	}
	return t.Record(ctx, description, listings)
}

// Record stores already collected listings as a new snapshot. If the batch
// insert fails the empty snapshot is removed again.
func (t *Tracker) Record(ctx context.Context, description string, listings []models.Listing) (CaptureResult, error) {
	if len(listings) == 0 {
		return CaptureResult{}, ErrNoListings
	}
	snap, err := t.store.CreateSnapshot(ctx, description)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("create snapshot: %w", err)
	}
	saved, err := t.store.AddListings(ctx, snap.ID, listings)
	if err != nil {
		if derr := t.store.DeleteSnapshot(context.WithoutCancel(ctx), snap.ID); derr != nil {
			logging.Warnf("[tracker] cleanup of snapshot %s failed: %v", snap.ID, derr)
		}
		return CaptureResult{}, fmt.Errorf("store listings: %w", err)
	}
	snap.ListingCount = len(saved)
	logging.Infof("[tracker] snapshot %s stored with %d listings", snap.ID, len(saved))
	return CaptureResult{Snapshot: snap, Listings: saved}, nil
}

// DetectRequest selects the listings to analyze. Stored listings come from
// SnapshotID, else the latest snapshot when Latest is set, else every
// listing captured within Since. Live sources are fetched and, like
// Listings, added on top.
type DetectRequest struct {
	SnapshotID       string
	Latest           bool
	Since            time.Duration
	Live             []collectors.Source
	Listings         []models.Listing
	MinProfitPercent *decimal.Decimal
	Save             bool
	// Description labels the snapshot created when saving without one.
	Description string
}

// DetectResult is the outcome of one detection pass.
type DetectResult struct {
	SnapshotID    string               `json:"snapshot_id,omitempty"`
	Listings      []models.Listing     `json:"-"`
	Opportunities []models.Opportunity `json:"opportunities"`
	Saved         bool                 `json:"saved"`
}

// Detect gathers listings, runs the detector and optionally persists the
// result. Saving replaces the opportunities the snapshot held before; saving
// without a snapshot creates one holding the live and caller-supplied listings.
func (t *Tracker) Detect(ctx context.Context, req DetectRequest) (DetectResult, error) {
	threshold := t.minProfit
	if req.MinProfitPercent != nil {
		threshold = *req.MinProfitPercent
	}
	if threshold.IsNegative() {
		return DetectResult{}, fmt.Errorf("%w: %s", arb.ErrInvalidThreshold, threshold.String())
	}

	var (
		res    DetectResult
		stored []models.Listing
		live   []models.Listing
		err    error
	)
	switch {
	case req.SnapshotID != "":
		if _, err = t.store.GetSnapshot(ctx, req.SnapshotID); err != nil {
			return DetectResult{}, err
		}
		res.SnapshotID = req.SnapshotID
	case req.Latest:
		snap, err := t.store.LatestSnapshot(ctx)
		if err != nil {
			return DetectResult{}, err
		}
		res.SnapshotID = snap.ID
	case req.Since > 0:
		now := t.now().UTC()
		if stored, err = t.store.ListingsInWindow(ctx, now.Add(-req.Since), now); err != nil {
			return DetectResult{}, err
		}
	}
	if res.SnapshotID != "" {
		if stored, err = t.store.GetListings(ctx, res.SnapshotID, ""); err != nil {
			return DetectResult{}, err
		}
	}
	if len(req.Live) > 0 {
		if live, err = t.collect(ctx, req.Live); err != nil {
			return DetectResult{}, err
		}
	}
	live = append(live, req.Listings...)

	res.Listings = append(stored, live...)
	if len(res.Listings) == 0 {
		return res, nil
	}

	d := &arb.Detector{MinProfitPercent: threshold, Now: t.now}
	opps, err := d.Detect(res.Listings)
	if err != nil {
		return DetectResult{}, err
	}
	res.Opportunities = opps
	if !req.Save {
		return res, nil
	}
	// A stored snapshot's result is replaced even when empty. Without a
	// snapshot, nothing found means nothing to record.
	if res.SnapshotID == "" && len(opps) == 0 {
		return res, nil
	}

	if res.SnapshotID == "" {
		desc := req.Description
		if strings.TrimSpace(desc) == "" {
			desc = DefaultDetectDescription
		}
		if len(live) > 0 {
			captured, err := t.Record(ctx, desc, live)
			if err != nil {
				return DetectResult{}, err
			}
			res.SnapshotID = captured.Snapshot.ID
		} else {
			snap, err := t.store.CreateSnapshot(ctx, desc)
			if err != nil {
				return DetectResult{}, fmt.Errorf("create snapshot: %w", err)
			}
			res.SnapshotID = snap.ID
		}
	}
	saved, err := t.store.ReplaceOpportunities(ctx, res.SnapshotID, opps)
	if err != nil {
		return DetectResult{}, fmt.Errorf("save opportunities: %w", err)
	}
	res.Opportunities = saved
	res.Saved = true
	logging.Infof("[tracker] saved %d opportunities to snapshot %s", len(saved), res.SnapshotID)
	return res, nil
}

// HistoryRequest selects stored opportunities: from SnapshotID, else from the
// latest snapshot when Latest is set, else from the last Days days.
type HistoryRequest struct {
	SnapshotID       string
	Latest           bool
	Days             int
	MinProfitPercent *decimal.Decimal
	MinProfitAmount  *decimal.Decimal
	Limit            int
}

// HistoryResult carries the snapshot the opportunities were read from, if any.
type HistoryResult struct {
	SnapshotID    string               `json:"snapshot_id,omitempty"`
	Opportunities []models.Opportunity `json:"opportunities"`
}

// History returns stored opportunities.
func (t *Tracker) History(ctx context.Context, req HistoryRequest) (HistoryResult, error) {
	if err := checkFloor("min profit percent", req.MinProfitPercent); err != nil {
		return HistoryResult{}, err
	}
	if err := checkFloor("min profit amount", req.MinProfitAmount); err != nil {
		return HistoryResult{}, err
	}

	snapshotID := req.SnapshotID
	if snapshotID == "" && req.Latest {
		snap, err := t.store.LatestSnapshot(ctx)
		if err != nil {
			return HistoryResult{}, err
		}
		snapshotID = snap.ID
	}
	if snapshotID != "" {
		opps, err := t.store.GetOpportunities(ctx, storage.OpportunityFilter{
			SnapshotID:       snapshotID,
			MinProfitPercent: req.MinProfitPercent,
			MinProfitAmount:  req.MinProfitAmount,
			Limit:            req.Limit,
		})
		if err != nil {
			return HistoryResult{}, err
		}
		return HistoryResult{SnapshotID: snapshotID, Opportunities: opps}, nil
	}

	opps, err := t.store.GetRecentOpportunities(ctx, storage.RecentFilter{
		SinceDays:        req.Days,
		MinProfitPercent: req.MinProfitPercent,
		MinProfitAmount:  req.MinProfitAmount,
		Limit:            req.Limit,
	})
	if err != nil {
		return HistoryResult{}, err
	}
	return HistoryResult{Opportunities: opps}, nil
}

// ItemsRequest selects listings from one snapshot, the latest when SnapshotID
// is empty.
type ItemsRequest struct {
	SnapshotID string
	Source     string
	Limit      int
}

// Items returns the listings of a snapshot, truncated to Limit when positive.
func (t *Tracker) Items(ctx context.Context, req ItemsRequest) (models.Snapshot, []models.Listing, error) {
	var (
		snap models.Snapshot
		err  error
	)
	if req.SnapshotID != "" {
		snap, err = t.store.GetSnapshot(ctx, req.SnapshotID)
	} else {
		snap, err = t.store.LatestSnapshot(ctx)
	}
	if err != nil {
		return models.Snapshot{}, nil, err
	}
	listings, err := t.store.GetListings(ctx, snap.ID, req.Source)
	if err != nil {
		return models.Snapshot{}, nil, err
	}
	if req.Limit > 0 && len(listings) > req.Limit {
		listings = listings[:req.Limit]
	}
	return snap, listings, nil
}

// Snapshots lists snapshots newest first.
func (t *Tracker) Snapshots(ctx context.Context, limit int) ([]models.Snapshot, error) {
	return t.store.ListSnapshots(ctx, limit)
}

// Snapshot returns one snapshot.
func (t *Tracker) Snapshot(ctx context.Context, id string) (models.Snapshot, error) {
	return t.store.GetSnapshot(ctx, id)
}

// DeleteSnapshot removes a snapshot with its listings and opportunities.
func (t *Tracker) DeleteSnapshot(ctx context.Context, id string) error {
	return t.store.DeleteSnapshot(ctx, id)
}

func (t *Tracker) collect(ctx context.Context, sources []collectors.Source) ([]models.Listing, error) {
	listings, err := collectors.Collect(ctx, sources)
	if err != nil {
		return nil, err
	}
	return canon.Apply(ctx, t.canon, listings)
}

func checkFloor(name string, v *decimal.Decimal) error {
	if v != nil && v.IsNegative() {
		return fmt.Errorf("%w: %s must be >= 0, got %s", ErrInvalidRequest, name, v.String())
	}
	return nil
}
