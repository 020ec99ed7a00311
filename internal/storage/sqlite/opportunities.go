package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/models"
	"github.com/hetulpatel/pricearb/internal/storage"
)

const opportunityCols = `id, snapshot_id, item_name, buy_from, buy_price, buy_url,
	sell_to, sell_price, sell_url, profit_amount, profit_percent, timestamp`

const insertOpportunitySQL = `
INSERT INTO opportunities (
	id, snapshot_id, rank, item_name, buy_from, buy_price, buy_url,
	sell_to, sell_price, sell_url, profit_amount, profit_percent, timestamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

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
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.ensureSnapshot(ctx, tx, snapshotID); err != nil {
			return err
		}
		next := 0
		if replace {
			if _, err := tx.ExecContext(ctx, `DELETE FROM opportunities WHERE snapshot_id = ?`, snapshotID); err != nil {
				return fmt.Errorf("sqlite: clear opportunities of %s: %w", snapshotID, err)
			}
		} else if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(rank) + 1, 0) FROM opportunities WHERE snapshot_id = ?`, snapshotID,
		).Scan(&next); err != nil {
			return fmt.Errorf("sqlite: next opportunity rank: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, insertOpportunitySQL)
		if err != nil {
			return fmt.Errorf("sqlite: prepare opportunity insert: %w", err)
		}
		defer stmt.Close()

		now := s.now().UTC()
		for i, o := range opps {
			o.ID = storage.NewID()
			o.SnapshotID = snapshotID
			if o.Timestamp.IsZero() {
				o.Timestamp = now
			}
			if _, err := stmt.ExecContext(ctx,
				o.ID, o.SnapshotID, next+i, o.ItemName,
				o.BuyFrom, o.BuyPrice.String(), o.BuyURL,
				o.SellTo, o.SellPrice.String(), o.SellURL,
				o.ProfitAmount.String(), o.ProfitPercent.String(), formatTime(o.Timestamp),
			); err != nil {
				return fmt.Errorf("sqlite: insert opportunity %q: %w", o.ItemName, err)
			}
			o.Timestamp = o.Timestamp.UTC()
			out = append(out, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// floorClauses narrows rows by the profit floors at float precision. The
// bounds are widened by storage.FloatSlack so no qualifying row is dropped;
// callers recheck each row against the exact decimals.
func floorClauses(minPercent, minAmount *decimal.Decimal) (where []string, args []any) {
	if minPercent != nil {
		where = append(where, "CAST(profit_percent AS REAL) >= ?")
		args = append(args, lowerBound(*minPercent))
	}
	if minAmount != nil {
		where = append(where, "CAST(profit_amount AS REAL) >= ?")
		args = append(args, lowerBound(*minAmount))
	}
	return where, args
}

func lowerBound(d decimal.Decimal) float64 {
	f := d.InexactFloat64()
	return f - storage.FloatSlack(f)
}

// GetOpportunities returns stored opportunities, best profit percent first.
// SQLite only orders the TEXT decimals as floats, so rows are read in float
// order and the page is settled on the exact values.
func (s *Store) GetOpportunities(ctx context.Context, f storage.OpportunityFilter) ([]models.Opportunity, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if f.SnapshotID != "" {
		if err := s.ensureSnapshot(ctx, s.db, f.SnapshotID); err != nil {
			return nil, err
		}
		where = append(where, "snapshot_id = ?")
		args = append(args, f.SnapshotID)
	}
	floors, floorArgs := floorClauses(f.MinProfitPercent, f.MinProfitAmount)
	where = append(where, floors...)
	args = append(args, floorArgs...)

	query := `SELECT ` + opportunityCols + `, CAST(profit_percent AS REAL) FROM opportunities`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY CAST(profit_percent AS REAL) DESC, timestamp DESC, rank ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get opportunities: %w", err)
	}
	defer rows.Close()

	var (
		limit  = storage.Limit(f.Limit)
		cutoff float64
		out    []models.Opportunity
	)
	for rows.Next() {
		var approx float64
		o, err := scanOpportunity(rows, &approx)
		if err != nil {
			return nil, err
		}
		// Past the limit, a row whose float sits clearly below the last
		// kept one is exactly below it too, and so is every row after it.
		if len(out) >= limit && approx < cutoff-storage.FloatSlack(cutoff) {
			break
		}
		if !f.Keep(o) {
			continue
		}
		out = append(out, o)
		if len(out) == limit {
			cutoff = approx
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: opportunity rows: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ProfitPercent.GreaterThan(out[j].ProfitPercent)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetRecentOpportunities returns opportunities detected in the last
// f.SinceDays days across all snapshots, newest first. The profit floors are
// applied before the limit.
func (s *Store) GetRecentOpportunities(ctx context.Context, f storage.RecentFilter) ([]models.Opportunity, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	since := storage.RecentSince(s.now(), f.SinceDays)
	where := []string{"timestamp >= ?"}
	args := []any{formatTime(since)}
	floors, floorArgs := floorClauses(f.MinProfitPercent, f.MinProfitAmount)
	where = append(where, floors...)
	args = append(args, floorArgs...)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+opportunityCols+` FROM opportunities WHERE `+strings.Join(where, " AND ")+`
ORDER BY timestamp DESC, rank ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent opportunities: %w", err)
	}
	defer rows.Close()

	limit := storage.Limit(f.Limit)
	var out []models.Opportunity
	for len(out) < limit && rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		if f.Keep(o) {
			out = append(out, o)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: recent opportunity rows: %w", err)
	}
	return out, nil
}

// scanOpportunity reads the opportunityCols of the current row followed by
// any extra columns.
func scanOpportunity(rows *sql.Rows, extra ...any) (models.Opportunity, error) {
	var (
		o                                   models.Opportunity
		buy, sell, amount, percent, stamped string
	)
	dest := []any{
		&o.ID, &o.SnapshotID, &o.ItemName, &o.BuyFrom, &buy, &o.BuyURL,
		&o.SellTo, &sell, &o.SellURL, &amount, &percent, &stamped,
	}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return o, fmt.Errorf("sqlite: scan opportunity: %w", err)
	}
	var err error
	if o.BuyPrice, err = decimal.NewFromString(buy); err != nil {
		return o, fmt.Errorf("sqlite: opportunity %s buy price: %w", o.ID, err)
	}
	if o.SellPrice, err = decimal.NewFromString(sell); err != nil {
		return o, fmt.Errorf("sqlite: opportunity %s sell price: %w", o.ID, err)
	}
	if o.ProfitAmount, err = decimal.NewFromString(amount); err != nil {
		return o, fmt.Errorf("sqlite: opportunity %s profit amount: %w", o.ID, err)
	}
	if o.ProfitPercent, err = decimal.NewFromString(percent); err != nil {
		return o, fmt.Errorf("sqlite: opportunity %s profit percent: %w", o.ID, err)
	}
	if o.Timestamp, err = parseTime(stamped); err != nil {
		return o, err
	}
	return o, nil
}
