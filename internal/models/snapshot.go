package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time batch of listings collected together.
type Snapshot struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Description  string    `json:"description,omitempty"`
	ListingCount int       `json:"item_count"`
}

// Listing is one price observation for one product from one source.
type Listing struct {
	ID         string          `json:"id,omitempty"`
	SnapshotID string          `json:"snapshot_id,omitempty"`
	Source     string          `json:"source"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	URL        string          `json:"url,omitempty"`
}

// Opportunity is a cheapest-vs-most-expensive pair for one product name.
type Opportunity struct {
	ID            string          `json:"id,omitempty"`
	SnapshotID    string          `json:"snapshot_id,omitempty"`
	ItemName      string          `json:"item_name"`
	BuyFrom       string          `json:"buy_from"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	BuyURL        string          `json:"buy_url,omitempty"`
	SellTo        string          `json:"sell_to"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	SellURL       string          `json:"sell_url,omitempty"`
	ProfitAmount  decimal.Decimal `json:"profit_amount"`
	ProfitPercent decimal.Decimal `json:"profit_percent"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewSnapshot builds an unsaved snapshot stamped in UTC.
func NewSnapshot(description string, capturedAt time.Time) Snapshot {
	return Snapshot{
		Description: description,
		Timestamp:   capturedAt.UTC(),
	}
}
