// Package static serves a fixed product catalogue, useful for demos and as the
// second side of a comparison when only one live source is configured.
package static

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/models"
)

const DefaultName = "static"

type product struct {
	name  string
	price string
	url   string
}

var catalogue = []product{
	{"USB Cable", "9.99", "http://example.com/product1"},
	{"HDMI Cable", "14.99", "http://example.com/product2"},
	{"Wireless Mouse", "24.99", "http://example.com/product3"},
	{"iPhone 16 128GB", "830", "http://example.com/product4"},
	{"iPhone 16 256GB", "900", "http://example.com/product5"},
}

// Source returns the catalogue labelled with a configurable source name.
type Source struct {
	name string
}

// New returns a static source; an empty name means DefaultName.
func New(name string) *Source {
	if name == "" {
		name = DefaultName
	}
	return &Source{name: name}
}

func (s *Source) Name() string { return s.name }

// Fetch never fails unless ctx is already done.
func (s *Source) Fetch(ctx context.Context) ([]models.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Listing, 0, len(catalogue))
	for _, p := range catalogue {
		out = append(out, models.Listing{
			Source: s.name,
			Name:   p.name,
			Price:  decimal.RequireFromString(p.price),
			URL:    p.url,
		})
	}
	return out, nil
}
