// Package postgres implements storage.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hetulpatel/pricearb/internal/storage"
	"github.com/hetulpatel/pricearb/internal/storage/migrations"
)

// Config holds connection parameters for the pool.
type Config struct {
	DSN          string
	MaxConns     int
	MinConns     int
	QueryTimeout time.Duration
}

// Store wraps a pgxpool.Pool.
type Store struct {
	pool    *pgxpool.Pool
	dsn     string
	timeout time.Duration
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open connects and pings the database. Call Migrate before use.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool, dsn: cfg.DSN, timeout: cfg.QueryTimeout, now: time.Now}, nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close shuts down the connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema migrations over a separate connection.
func (s *Store) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := migrations.Postgres(s.dsn)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()
	if err := migrations.Up(m); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func ensureSnapshot(ctx context.Context, q querier, id string) error {
	return checkSnapshot(ctx, q, `SELECT 1 FROM snapshots WHERE id = $1`, id)
}

// lockSnapshot is ensureSnapshot holding the snapshot row until the
// transaction ends, so writers to one snapshot's opportunities serialize.
func lockSnapshot(ctx context.Context, tx pgx.Tx, id string) error {
	return checkSnapshot(ctx, tx, `SELECT 1 FROM snapshots WHERE id = $1 FOR UPDATE`, id)
}

func checkSnapshot(ctx context.Context, q querier, query, id string) error {
	var one int
	err := q.QueryRow(ctx, query, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", storage.ErrSnapshotNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("postgres: check snapshot %s: %w", id, err)
	}
	return nil
}
