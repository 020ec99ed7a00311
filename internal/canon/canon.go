// Package canon maps free-form product titles onto a fixed catalogue of names
// so the same product groups together across sources.
package canon

import (
	"context"

	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/models"
)

// Canonicalizer resolves a scraped title. ok is false when the title matches
// nothing in the catalogue.
type Canonicalizer interface {
	Canonical(ctx context.Context, name string) (canonical string, ok bool, err error)
}

// Apply returns a copy of listings with names replaced by their canonical form.
// Listings that match nothing keep their name. A nil Canonicalizer is a no-op.
// Lookup failures are logged and leave the name unchanged; only a done context
// aborts the pass.
func Apply(ctx context.Context, c Canonicalizer, listings []models.Listing) ([]models.Listing, error) {
	if c == nil {
		return listings, nil
	}
	resolved := make(map[string]string)
	out := make([]models.Listing, len(listings))
	renamed := 0
	for i, l := range listings {
		out[i] = l
		name, seen := resolved[l.Name]
		if !seen {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			canonical, ok, err := c.Canonical(ctx, l.Name)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logging.Warnf("[canon] %q: %v", l.Name, err)
				name = l.Name
			case ok:
				name = canonical
			default:
				name = l.Name
			}
			resolved[l.Name] = name
		}
		if name != l.Name {
			renamed++
		}
		out[i].Name = name
	}
	logging.Debugf("[canon] renamed %d of %d listings", renamed, len(listings))
	return out, nil
}
