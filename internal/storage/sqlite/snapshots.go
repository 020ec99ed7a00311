package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/storage"
)

const snapshotSelect = `
SELECT s.id, s.timestamp, s.description,
	(SELECT COUNT(*) FROM listings l WHERE l.snapshot_id = s.id)
FROM snapshots s`

// CreateSnapshot inserts an empty snapshot stamped with the current time.
func (s *Store) CreateSnapshot(ctx context.Context, description string) (models.Snapshot, error) {
	snap := models.NewSnapshot(description, s.now())
	snap.ID = storage.NewID()
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (id, timestamp, description) VALUES (?, ?, ?)`,
			snap.ID, formatTime(snap.Timestamp), snap.Description,
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert snapshot: %w", err)
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

	row := s.db.QueryRowContext(ctx, snapshotSelect+` WHERE s.id = ?`, id)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return models.Snapshot{}, fmt.Errorf("%w: %s", storage.ErrSnapshotNotFound, id)
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("sqlite: get snapshot %s: %w", id, err)
	}
	return snap, nil
}

// LatestSnapshot returns the most recently created snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (models.Snapshot, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, snapshotSelect+` ORDER BY s.timestamp DESC, s.rowid DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return models.Snapshot{}, fmt.Errorf("%w: no snapshots stored", storage.ErrSnapshotNotFound)
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("sqlite: latest snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns snapshots newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]models.Snapshot, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		snapshotSelect+` ORDER BY s.timestamp DESC, s.rowid DESC LIMIT ?`, storage.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list snapshots: %w", err)
	}
	return collectSnapshots(rows)
}

// SnapshotsBefore returns snapshots older than cutoff, oldest first.
func (s *Store) SnapshotsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Snapshot, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		snapshotSelect+` WHERE s.timestamp < ? ORDER BY s.timestamp ASC, s.rowid ASC LIMIT ?`,
		formatTime(cutoff), storage.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: snapshots before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return collectSnapshots(rows)
}

// DeleteSnapshot removes a snapshot together with its listings and opportunities.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	return s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.ensureSnapshot(ctx, tx, id); err != nil {
			return err
		}
		stmts := []string{
			`DELETE FROM opportunities WHERE snapshot_id = ?`,
			`DELETE FROM listings WHERE snapshot_id = ?`,
			`DELETE FROM snapshots WHERE id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("sqlite: delete snapshot %s: %w", id, err)
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (models.Snapshot, error) {
	var (
		snap models.Snapshot
		ts   string
	)
	if err := row.Scan(&snap.ID, &ts, &snap.Description, &snap.ListingCount); err != nil {
		return models.Snapshot{}, err
	}
	t, err := parseTime(ts)
	if err != nil {
		return models.Snapshot{}, err
	}
	snap.Timestamp = t
	return snap, nil
}

func collectSnapshots(rows *sql.Rows) ([]models.Snapshot, error) {
	defer rows.Close()
	var out []models.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: snapshot rows: %w", err)
	}
	return out, nil
}
