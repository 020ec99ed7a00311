package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/storage"
)

const snapshotSelect = `
SELECT s.id, s.timestamp, s.description,
	(SELECT COUNT(*) FROM listings l WHERE l.snapshot_id = s.id)
FROM snapshots s`

// CreateSnapshot inserts an empty snapshot stamped with the current time.
func (s *Store) CreateSnapshot(ctx context.Context, description string) (models.Snapshot, error) {
	// Postgres keeps microseconds; truncate so callers see what is stored.
	snap := models.NewSnapshot(description, s.now().Truncate(time.Microsecond))
	snap.ID = storage.NewID()
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO snapshots (id, timestamp, description) VALUES ($1, $2, $3)`,
			snap.ID, snap.Timestamp, snap.Description,
		); err != nil {
			return fmt.Errorf("postgres: insert snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// GetSnapshot returns one snapshot with its listing count.
func (s *Store) GetSnapshot(ctx context.Context, id string) (models.Snapshot, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap, err := scanSnapshot(s.pool.QueryRow(ctx, snapshotSelect+` WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Snapshot{}, fmt.Errorf("%w: %s", storage.ErrSnapshotNotFound, id)
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("postgres: get snapshot %s: %w", id, err)
	}
	return snap, nil
}

// LatestSnapshot returns the most recently created snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (models.Snapshot, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap, err := scanSnapshot(s.pool.QueryRow(ctx, snapshotSelect+` ORDER BY s.timestamp DESC, s.seq DESC LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Snapshot{}, fmt.Errorf("%w: no snapshots stored", storage.ErrSnapshotNotFound)
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("postgres: latest snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns snapshots newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]models.Snapshot, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, snapshotSelect+` ORDER BY s.timestamp DESC, s.seq DESC LIMIT $1`, storage.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	return collectSnapshots(rows)
}

// SnapshotsBefore returns snapshots older than cutoff, oldest first.
func (s *Store) SnapshotsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Snapshot, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		snapshotSelect+` WHERE s.timestamp < $1 ORDER BY s.timestamp ASC, s.seq ASC LIMIT $2`,
		cutoff.UTC(), storage.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshots before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return collectSnapshots(rows)
}

// DeleteSnapshot removes a snapshot; listings and opportunities cascade.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	return s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM snapshots WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("postgres: delete snapshot %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", storage.ErrSnapshotNotFound, id)
		}
		return nil
	})
}

func scanSnapshot(row pgx.Row) (models.Snapshot, error) {
	var snap models.Snapshot
	var count int64
	if err := row.Scan(&snap.ID, &snap.Timestamp, &snap.Description, &count); err != nil {
		return models.Snapshot{}, err
	}
	snap.Timestamp = snap.Timestamp.UTC()
	snap.ListingCount = int(count)
	return snap, nil
}

func collectSnapshots(rows pgx.Rows) ([]models.Snapshot, error) {
	defer rows.Close()
	var out []models.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: snapshot rows: %w", err)
	}
	return out, nil
}
