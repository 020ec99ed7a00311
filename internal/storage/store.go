// Package storage defines the snapshot store contract shared by the SQLite and
// Postgres backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/models"
)

const (
	// DefaultLimit caps opportunity and snapshot queries when callers pass 0.
	DefaultLimit = 100
	// DefaultRecentDays is the window used by GetRecentOpportunities when SinceDays <= 0.
	DefaultRecentDays = 7
	// DefaultQueryTimeout bounds every store operation.
	DefaultQueryTimeout = 30 * time.Second
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrInvalidListing   = errors.New("invalid listing")
)

// InvalidListingError names the listing field that failed validation.
type InvalidListingError struct {
	Source string
	Name   string
	Reason string
}

func (e *InvalidListingError) Error() string {
	return fmt.Sprintf("invalid listing (source=%q name=%q): %s", e.Source, e.Name, e.Reason)
}

func (e *InvalidListingError) Unwrap() error { return ErrInvalidListing }

// OpportunityFilter selects stored opportunities. Zero values mean "no filter",
// except Limit which falls back to DefaultLimit.
type OpportunityFilter struct {
	SnapshotID       string
	MinProfitPercent *decimal.Decimal
	MinProfitAmount  *decimal.Decimal
	Limit            int
}

// RecentFilter selects opportunities detected in the last SinceDays days
// across all snapshots. The profit floors apply before Limit.
type RecentFilter struct {
	SinceDays        int
	MinProfitPercent *decimal.Decimal
	MinProfitAmount  *decimal.Decimal
	Limit            int
}

// Keep reports whether o passes the profit floors.
func (f RecentFilter) Keep(o models.Opportunity) bool {
	return passesFloors(o, f.MinProfitPercent, f.MinProfitAmount)
}

// Keep reports whether o passes the profit floors. SnapshotID is not checked.
func (f OpportunityFilter) Keep(o models.Opportunity) bool {
	return passesFloors(o, f.MinProfitPercent, f.MinProfitAmount)
}

func passesFloors(o models.Opportunity, minPercent, minAmount *decimal.Decimal) bool {
	if minPercent != nil && o.ProfitPercent.LessThan(*minPercent) {
		return false
	}
	if minAmount != nil && o.ProfitAmount.LessThan(*minAmount) {
		return false
	}
	return true
}

// Store persists snapshots, their listings and the opportunities detected on them.
// Every write runs in one transaction.
type Store interface {
	CreateSnapshot(ctx context.Context, description string) (models.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (models.Snapshot, error)
	LatestSnapshot(ctx context.Context) (models.Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]models.Snapshot, error)
	SnapshotsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error

	AddListing(ctx context.Context, snapshotID string, l models.Listing) (models.Listing, error)
	AddListings(ctx context.Context, snapshotID string, ls []models.Listing) ([]models.Listing, error)
	GetListings(ctx context.Context, snapshotID, source string) ([]models.Listing, error)
	ListingsInWindow(ctx context.Context, from, to time.Time) ([]models.Listing, error)

	// SaveOpportunities appends opps to the snapshot.
	SaveOpportunities(ctx context.Context, snapshotID string, opps []models.Opportunity) ([]models.Opportunity, error)
	// ReplaceOpportunities swaps the snapshot's stored opportunities for opps
	// in one transaction. An empty opps clears them.
	ReplaceOpportunities(ctx context.Context, snapshotID string, opps []models.Opportunity) ([]models.Opportunity, error)
	GetOpportunities(ctx context.Context, f OpportunityFilter) ([]models.Opportunity, error)
	GetRecentOpportunities(ctx context.Context, f RecentFilter) ([]models.Opportunity, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ValidateListing applies the write-side listing checks.
func ValidateListing(l models.Listing) error {
	var reason string
	switch {
	case strings.TrimSpace(l.Source) == "":
		reason = "empty source"
	case strings.TrimSpace(l.Name) == "":
		reason = "empty name"
	case l.Price.IsNegative():
		reason = "negative price " + l.Price.String()
	}
	if reason != "" {
		return &InvalidListingError{Source: l.Source, Name: l.Name, Reason: reason}
	}
	return nil
}

// NewID returns a fresh random identifier for a stored row.
func NewID() string {
	return uuid.NewString()
}

// Limit normalises a caller supplied limit.
func Limit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}

// FloatSlack is how far a float64 rendering of a stored decimal may sit from
// the float64 rendering of the same value computed elsewhere. Backends that
// compare decimals as floats widen their bounds by it and recheck exactly.
func FloatSlack(f float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(f))
}

// RecentSince returns the cutoff for GetRecentOpportunities.
func RecentSince(now time.Time, sinceDays int) time.Time {
	if sinceDays <= 0 {
		sinceDays = DefaultRecentDays
	}
	return now.UTC().AddDate(0, 0, -sinceDays)
}

// WithTimeout bounds ctx by d, or DefaultQueryTimeout when d <= 0.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, d)
}
