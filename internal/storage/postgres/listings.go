package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/storage"
)

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
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// Lock the parent row so concurrent batches get distinct positions.
		var one int
		err := tx.QueryRow(ctx, `SELECT 1 FROM snapshots WHERE id = $1 FOR UPDATE`, snapshotID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", storage.ErrSnapshotNotFound, snapshotID)
		}
		if err != nil {
			return fmt.Errorf("postgres: lock snapshot %s: %w", snapshotID, err)
		}
		var next int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM listings WHERE snapshot_id = $1`, snapshotID,
		).Scan(&next); err != nil {
			return fmt.Errorf("postgres: next listing position: %w", err)
		}

		for i, l := range ls {
			l.ID = storage.NewID()
			l.SnapshotID = snapshotID
			if _, err := tx.Exec(ctx, `
INSERT INTO listings (id, snapshot_id, position, source, name, price, url)
VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7)`,
				l.ID, l.SnapshotID, next+i, l.Source, l.Name, l.Price.String(), l.URL,
			); err != nil {
				return fmt.Errorf("postgres: insert listing %q: %w", l.Name, err)
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

	if err := ensureSnapshot(ctx, s.pool, snapshotID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, snapshot_id, source, name, price::text, url
FROM listings
WHERE snapshot_id = $1 AND ($2 = '' OR source = $2)
ORDER BY position`, snapshotID, source)
	if err != nil {
		return nil, fmt.Errorf("postgres: get listings %s: %w", snapshotID, err)
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
	rows, err := s.pool.Query(ctx, `
SELECT l.id, l.snapshot_id, l.source, l.name, l.price::text, l.url
FROM listings l
JOIN snapshots s ON s.id = l.snapshot_id
WHERE s.timestamp >= $1 AND s.timestamp <= $2
ORDER BY s.timestamp, s.seq, l.position`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: listings in window: %w", err)
	}
	return collectListings(rows)
}

func collectListings(rows pgx.Rows) ([]models.Listing, error) {
	defer rows.Close()
	var out []models.Listing
	for rows.Next() {
		var (
			l     models.Listing
			price string
		)
		if err := rows.Scan(&l.ID, &l.SnapshotID, &l.Source, &l.Name, &price, &l.URL); err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("postgres: listing %s price %q: %w", l.ID, price, err)
		}
		l.Price = p
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: listing rows: %w", err)
	}
	return out, nil
}
