package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is the untrusted wire shape produced by adapters and API clients.
// Price is a pointer so a missing price can be told apart from zero.
type Record struct {
	Source string           `json:"source"`
	Name   string           `json:"name"`
	Price  *decimal.Decimal `json:"price"`
	URL    string           `json:"url,omitempty"`
}

// Problem reports why a record cannot become a Listing, or "" when it can.
func (r Record) Problem() string {
	switch {
	case strings.TrimSpace(r.Source) == "":
		return "missing source"
	case strings.TrimSpace(r.Name) == "":
		return "missing name"
	case r.Price == nil:
		return "missing price"
	case r.Price.IsNegative():
		return fmt.Sprintf("negative price %s", r.Price.String())
	}
	return ""
}

// Listing converts the record without validating it. Call Problem first.
func (r Record) Listing() Listing {
	l := Listing{Source: r.Source, Name: r.Name, URL: r.URL}
	if r.Price != nil {
		l.Price = *r.Price
	}
	return l
}

// RecordOf is the inverse of Record.Listing.
func RecordOf(l Listing) Record {
	price := l.Price
	return Record{Source: l.Source, Name: l.Name, Price: &price, URL: l.URL}
}
