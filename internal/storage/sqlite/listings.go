package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/storage"
)

const insertListingSQL = `
INSERT INTO listings (id, snapshot_id, position, source, name, price, url)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// AddListing appends one listing to an existing snapshot.
func (s *Store) AddListing(ctx context.Context, snapshotID string, l models.Listing) (models.Listing, error) {
	out, err := s.AddListings(ctx, snapshotID, []models.Listing{l})
	if err != nil {
		return models.Listing{}, err
	}
	return out[0], nil
}

// AddListings appends a batch of listings atomically.
func (s *Store) AddListings(ctx context.Context, snapshotID string, ls []models.Listing) ([]models.Listing, error) {
	for i, l := range ls {
		if err := storage.ValidateListing(l); err != nil {
			return nil, fmt.Errorf("listing %d: %w", i, err)
		}
	}

	out := make([]models.Listing, 0, len(ls))
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.ensureSnapshot(ctx, tx, snapshotID); err != nil {
			return err
		}
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM listings WHERE snapshot_id = ?`, snapshotID,
		).Scan(&next); err != nil {
			return fmt.Errorf("sqlite: next listing position: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, insertListingSQL)
		if err != nil {
			return fmt.Errorf("sqlite: prepare listing insert: %w", err)
		}
		defer stmt.Close()

		for i, l := range ls {
			l.ID = storage.NewID()
			l.SnapshotID = snapshotID
			if _, err := stmt.ExecContext(ctx,
				l.ID, l.SnapshotID, next+i, l.Source, l.Name, l.Price.String(), l.URL,
			); err != nil {
				return fmt.Errorf("sqlite: insert listing %q: %w", l.Name, err)
			}
			out = append(out, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetListings returns a snapshot's listings in insertion order, optionally
// restricted to one source.
func (s *Store) GetListings(ctx context.Context, snapshotID, source string) ([]models.Listing, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.ensureSnapshot(ctx, s.db, snapshotID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, snapshot_id, source, name, price, url
FROM listings
WHERE snapshot_id = ? AND (? = '' OR source = ?)
ORDER BY position`, snapshotID, source, source)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get listings %s: %w", snapshotID, err)
	}
	return collectListings(rows)
}

// ListingsInWindow returns listings of every snapshot taken within [from, to].
// A zero to means now.
func (s *Store) ListingsInWindow(ctx context.Context, from, to time.Time) ([]models.Listing, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	if to.IsZero() {
		to = s.now()
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT l.id, l.snapshot_id, l.source, l.name, l.price, l.url
FROM listings l
JOIN snapshots s ON s.id = l.snapshot_id
WHERE s.timestamp >= ? AND s.timestamp <= ?
ORDER BY s.timestamp, s.rowid, l.position`, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("sqlite: listings in window: %w", err)
	}
	return collectListings(rows)
}

func collectListings(rows *sql.Rows) ([]models.Listing, error) {
	defer rows.Close()
	var out []models.Listing
	for rows.Next() {
		var (
			l     models.Listing
			price string
		)
		if err := rows.Scan(&l.ID, &l.SnapshotID, &l.Source, &l.Name, &price, &l.URL); err != nil {
			return nil, fmt.Errorf("sqlite: scan listing: %w", err)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("sqlite: listing %s price %q: %w", l.ID, price, err)
		}
		l.Price = p
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: listing rows: %w", err)
	}
	return out, nil
}
