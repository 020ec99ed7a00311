package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/storage"
)

const opportunityCols = `id, snapshot_id, item_name, buy_from, buy_price::text, buy_url,
	sell_to, sell_price::text, sell_url, profit_amount::text, profit_percent::text, timestamp`

// SaveOpportunities appends opportunities to a snapshot. Either all rows
// are written or none.
func (s *Store) SaveOpportunities(ctx context.Context, snapshotID string, opps []models.Opportunity) ([]models.Opportunity, error) {
	return s.writeOpportunities(ctx, snapshotID, opps, false)
}

// ReplaceOpportunities drops the snapshot's stored opportunities and writes
// opps in their place, atomically.
func (s *Store) ReplaceOpportunities(ctx context.Context, snapshotID string, opps []models.Opportunity) ([]models.Opportunity, error) {
	return s.writeOpportunities(ctx, snapshotID, opps, true)
}

func (s *Store) writeOpportunities(ctx context.Context, snapshotID string, opps []models.Opportunity, replace bool) ([]models.Opportunity, error) {
	out := make([]models.Opportunity, 0, len(opps))
	err := s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := lockSnapshot(ctx, tx, snapshotID); err != nil {
			return err
		}
		next := 0
		if replace {
			if _, err := tx.Exec(ctx, `DELETE FROM opportunities WHERE snapshot_id = $1`, snapshotID); err != nil {
				return fmt.Errorf("postgres: clear opportunities of %s: %w", snapshotID, err)
			}
		} else if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(rank) + 1, 0) FROM opportunities WHERE snapshot_id = $1`, snapshotID,
		).Scan(&next); err != nil {
			return fmt.Errorf("postgres: next opportunity rank: %w", err)
		}

		now := s.now().UTC()
		for i, o := range opps {
			o.ID = storage.NewID()
			o.SnapshotID = snapshotID
			if o.Timestamp.IsZero() {
				o.Timestamp = now
			}
			o.Timestamp = o.Timestamp.UTC().Truncate(time.Microsecond)
			if _, err := tx.Exec(ctx, `
INSERT INTO opportunities (
	id, snapshot_id, rank, item_name, buy_from, buy_price, buy_url,
	sell_to, sell_price, sell_url, profit_amount, profit_percent, timestamp
) VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9::text::numeric, $10,
	$11::text::numeric, $12::text::numeric, $13)`,
				o.ID, o.SnapshotID, next+i, o.ItemName,
				o.BuyFrom, o.BuyPrice.String(), o.BuyURL,
				o.SellTo, o.SellPrice.String(), o.SellURL,
				o.ProfitAmount.String(), o.ProfitPercent.String(), o.Timestamp,
			); err != nil {
				return fmt.Errorf("postgres: insert opportunity %q: %w", o.ItemName, err)
			}
			out = append(out, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetOpportunities returns stored opportunities, best profit percent first.
func (s *Store) GetOpportunities(ctx context.Context, f storage.OpportunityFilter) ([]models.Opportunity, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.SnapshotID != "" {
		if err := ensureSnapshot(ctx, s.pool, f.SnapshotID); err != nil {
			return nil, err
		}
		where = append(where, "snapshot_id = "+arg(f.SnapshotID))
	}
	if f.MinProfitPercent != nil {
		where = append(where, "profit_percent >= "+arg(f.MinProfitPercent.String())+"::text::numeric")
	}
	if f.MinProfitAmount != nil {
		where = append(where, "profit_amount >= "+arg(f.MinProfitAmount.String())+"::text::numeric")
	}

	query := `SELECT ` + opportunityCols + ` FROM opportunities`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY profit_percent DESC, timestamp DESC, rank ASC LIMIT " + arg(storage.Limit(f.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: get opportunities: %w", err)
	}
	return collectOpportunities(rows)
}

// GetRecentOpportunities returns opportunities detected in the last
// f.SinceDays days across all snapshots, newest first. The profit floors are
// applied before the limit.
func (s *Store) GetRecentOpportunities(ctx context.Context, f storage.RecentFilter) ([]models.Opportunity, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := []any{storage.RecentSince(s.now(), f.SinceDays)}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	where := []string{"timestamp >= $1"}
	if f.MinProfitPercent != nil {
		where = append(where, "profit_percent >= "+arg(f.MinProfitPercent.String())+"::text::numeric")
	}
	if f.MinProfitAmount != nil {
		where = append(where, "profit_amount >= "+arg(f.MinProfitAmount.String())+"::text::numeric")
	}
	query := `SELECT ` + opportunityCols + ` FROM opportunities WHERE ` + strings.Join(where, " AND ") +
		" ORDER BY timestamp DESC, rank ASC LIMIT " + arg(storage.Limit(f.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent opportunities: %w", err)
	}
	return collectOpportunities(rows)
}

func collectOpportunities(rows pgx.Rows) ([]models.Opportunity, error) {
	defer rows.Close()
	var out []models.Opportunity
	for rows.Next() {
		var (
			o                          models.Opportunity
			buy, sell, amount, percent string
		)
		if err := rows.Scan(
			&o.ID, &o.SnapshotID, &o.ItemName, &o.BuyFrom, &buy, &o.BuyURL,
			&o.SellTo, &sell, &o.SellURL, &amount, &percent, &o.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		var err error
		if o.BuyPrice, err = decimal.NewFromString(buy); err != nil {
			return nil, fmt.Errorf("postgres: opportunity %s buy price: %w", o.ID, err)
		}
		if o.SellPrice, err = decimal.NewFromString(sell); err != nil {
			return nil, fmt.Errorf("postgres: opportunity %s sell price: %w", o.ID, err)
		}
		if o.ProfitAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("postgres: opportunity %s profit amount: %w", o.ID, err)
		}
		if o.ProfitPercent, err = decimal.NewFromString(percent); err != nil {
			return nil, fmt.Errorf("postgres: opportunity %s profit percent: %w", o.ID, err)
		}
		o.Timestamp = o.Timestamp.UTC()
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return out, nil
}
