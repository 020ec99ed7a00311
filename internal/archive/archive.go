// Package archive moves old snapshots out of the primary store into object
// storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/hashutil"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/storage"
)

const (
	defaultPrefix    = "snapshots"
	defaultRetention = 90
	defaultBatchSize = 50
	// exportLimit caps the opportunities exported per snapshot.
	exportLimit = 1 << 20
)

// BlobWriter uploads one object.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Document is the archived form of one snapshot.
type Document struct {
	Snapshot      models.Snapshot      `json:"snapshot"`
	Listings      []models.Listing     `json:"items"`
	Opportunities []models.Opportunity `json:"opportunities"`
	// ListingsDigest is hashutil.Listings over Listings.
	ListingsDigest string    `json:"listings_digest"`
	ArchivedAt     time.Time `json:"archived_at"`
}

// Config controls which snapshots are archived and where.
type Config struct {
	Prefix        string
	RetentionDays int
	BatchSize     int
}

// ConfigFrom adapts the archive config section.
func ConfigFrom(cfg config.ArchiveConfig) Config {
	return Config{Prefix: cfg.Prefix, RetentionDays: cfg.RetentionDays, BatchSize: cfg.BatchSize}
}

// Result counts the snapshots handled by one run.
type Result struct {
	Archived int
	Failed   int
}

// Archiver exports snapshots older than the retention window and then
// deletes them from the store. A snapshot whose upload fails is kept.
type Archiver struct {
	store storage.Store
	blob  BlobWriter
	cfg   Config
	now   func() time.Time
}

// New returns an archiver. now may be nil.
func New(store storage.Store, blob BlobWriter, cfg Config, now func() time.Time) *Archiver {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetention
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if now == nil {
		now = time.Now
	}
	return &Archiver{store: store, blob: blob, cfg: cfg, now: now}
}

// Key is the object path for snap: <prefix>/<yyyy>/<mm>/<id>.json.
func Key(prefix string, snap models.Snapshot) string {
	ts := snap.Timestamp.UTC()
	return path.Join(prefix, fmt.Sprintf("%04d", ts.Year()), fmt.Sprintf("%02d", int(ts.Month())), snap.ID+".json")
}

// Run archives every snapshot older than the retention window, batch by
// batch, until none are left or a batch makes no progress.
func (a *Archiver) Run(ctx context.Context) (Result, error) {
	cutoff := a.now().UTC().AddDate(0, 0, -a.cfg.RetentionDays)
	var res Result
	for {
		snaps, err := a.store.SnapshotsBefore(ctx, cutoff, a.cfg.BatchSize)
		if err != nil {
			return res, fmt.Errorf("archive: list snapshots: %w", err)
		}
		if len(snaps) == 0 {
			break
		}
		progress := 0
		for _, snap := range snaps {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if err := a.archiveOne(ctx, snap); err != nil {
				res.Failed++
				logging.Warnf("[archive] snapshot %s: %v", snap.ID, err)
				continue
			}
			res.Archived++
			progress++
		}
		if progress == 0 || len(snaps) < a.cfg.BatchSize {
			break
		}
	}
	logging.Infof("[archive] archived %d snapshots older than %s (%d failed)",
		res.Archived, cutoff.Format(time.RFC3339), res.Failed)
	return res, nil
}

func (a *Archiver) archiveOne(ctx context.Context, snap models.Snapshot) error {
	listings, err := a.store.GetListings(ctx, snap.ID, "")
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}
	opps, err := a.store.GetOpportunities(ctx, storage.OpportunityFilter{SnapshotID: snap.ID, Limit: exportLimit})
	if err != nil {
		return fmt.Errorf("load opportunities: %w", err)
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}

	payload, err := json.Marshal(Document{
		Snapshot:       snap,
		Listings:       listings,
		Opportunities:  opps,
		ListingsDigest: hashutil.Listings(listings),
		ArchivedAt:     a.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	key := Key(a.cfg.Prefix, snap)
	if err := a.blob.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := a.store.DeleteSnapshot(ctx, snap.ID); err != nil {
		return fmt.Errorf("delete after upload: %w", err)
	}
	logging.Debugf("[archive] %s -> %s", snap.ID, key)
	return nil
}
