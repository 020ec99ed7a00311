package arb

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hetulpatel/pricearb/internal/models"
)

// DefaultMinProfitPercent is used when callers do not pick a threshold.
var DefaultMinProfitPercent = decimal.NewFromInt(5)

var hundred = decimal.NewFromInt(100)

// Detector ranks cross-source price spreads. It holds no mutable state and is
// safe for concurrent use.
type Detector struct {
	MinProfitPercent decimal.Decimal
	// Now stamps detected opportunities. Defaults to time.Now.
	Now func() time.Time
}

// NewDetector returns a detector with the given threshold.
func NewDetector(minProfitPercent decimal.Decimal) *Detector {
	return &Detector{MinProfitPercent: minProfitPercent}
}

// FindOpportunities runs a default detector with the given threshold.
func FindOpportunities(listings []models.Listing, minProfitPercent decimal.Decimal) ([]models.Opportunity, error) {
	return NewDetector(minProfitPercent).Detect(listings)
}

// Detect groups listings by exact name and returns one opportunity per name
// whose spread meets the threshold, highest percent first (item name breaks
// ties). Within a group the cheapest and dearest listings are chosen in input
// order when prices tie, and both sides must come from different sources.
func (d *Detector) Detect(listings []models.Listing) ([]models.Opportunity, error) {
	if d.MinProfitPercent.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidThreshold, d.MinProfitPercent.String())
	}
	if err := validate(listings); err != nil {
		return nil, err
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	detectedAt := now().UTC()

	var out []models.Opportunity
	for _, g := range groupByName(listings) {
		if len(g) < 2 {
			continue
		}
		buy, sell, ok := widestPair(g)
		if !ok {
			continue
		}
		amount := sell.Price.Sub(buy.Price)
		if buy.Price.IsZero() {
			if amount.IsZero() {
				continue
			}
			return nil, &InvalidPriceError{ItemName: buy.Name, Source: buy.Source, Price: buy.Price}
		}
		percent := amount.Div(buy.Price).Mul(hundred)
		if percent.LessThan(d.MinProfitPercent) {
			continue
		}
		out = append(out, models.Opportunity{
			ItemName:      buy.Name,
			BuyFrom:       buy.Source,
			BuyPrice:      buy.Price,
			BuyURL:        buy.URL,
			SellTo:        sell.Source,
			SellPrice:     sell.Price,
			SellURL:       sell.URL,
			ProfitAmount:  amount,
			ProfitPercent: percent,
			Timestamp:     detectedAt,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].ProfitPercent.Cmp(out[j].ProfitPercent); c != 0 {
			return c > 0
		}
		return out[i].ItemName < out[j].ItemName
	})
	return out, nil
}

// ListingsFromRecords validates untrusted records and converts them.
func ListingsFromRecords(records []models.Record) ([]models.Listing, error) {
	out := make([]models.Listing, 0, len(records))
	for i, r := range records {
		if reason := r.Problem(); reason != "" {
			return nil, &MalformedListingError{Index: i, Source: r.Source, Name: r.Name, Reason: reason}
		}
		out = append(out, r.Listing())
	}
	return out, nil
}

func validate(listings []models.Listing) error {
	for i, l := range listings {
		var reason string
		switch {
		case strings.TrimSpace(l.Source) == "":
			reason = "missing source"
		case strings.TrimSpace(l.Name) == "":
			reason = "missing name"
		case l.Price.IsNegative():
			reason = "negative price " + l.Price.String()
		}
		if reason != "" {
			return &MalformedListingError{Index: i, Source: l.Source, Name: l.Name, Reason: reason}
		}
	}
	return nil
}

// groupByName keeps groups in order of first appearance.
func groupByName(listings []models.Listing) [][]models.Listing {
	index := make(map[string]int)
	var groups [][]models.Listing
	for _, l := range listings {
		i, ok := index[l.Name]
		if !ok {
			i = len(groups)
			index[l.Name] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], l)
	}
	return groups
}

// widestPair returns the distinct-source pair with the largest spread. The
// best pair always contains the overall cheapest or the overall dearest
// listing, so only those two anchors are tried; the cheapest anchor wins ties.
func widestPair(g []models.Listing) (buy, sell models.Listing, ok bool) {
	lo, hi := 0, 0
	for i := range g {
		if g[i].Price.LessThan(g[lo].Price) {
			lo = i
		}
		if g[i].Price.GreaterThan(g[hi].Price) {
			hi = i
		}
	}
	a := highestExcluding(g, g[lo].Source)
	b := lowestExcluding(g, g[hi].Source)
	if a < 0 || b < 0 {
		return buy, sell, false
	}
	spreadA := g[a].Price.Sub(g[lo].Price)
	spreadB := g[hi].Price.Sub(g[b].Price)
	if spreadA.GreaterThanOrEqual(spreadB) {
		return g[lo], g[a], true
	}
	return g[b], g[hi], true
}

func highestExcluding(g []models.Listing, source string) int {
	best := -1
	for i := range g {
		if g[i].Source == source {
			continue
		}
		if best < 0 || g[i].Price.GreaterThan(g[best].Price) {
			best = i
		}
	}
	return best
}

func lowestExcluding(g []models.Listing, source string) int {
	best := -1
	for i := range g {
		if g[i].Source == source {
			continue
		}
		if best < 0 || g[i].Price.LessThan(g[best].Price) {
			best = i
		}
	}
	return best
}
