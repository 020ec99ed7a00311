// Package hashutil derives stable identifiers from item names and listing sets.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/hetulpatel/pricearb/internal/models"
)

// ItemKey is a fixed-length key for an item name. Names are hashed verbatim
// because grouping is by exact name.
func ItemKey(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:16])
}

// Listings fingerprints a set of listings. Order and storage ids do not
// matter; any change to a source, name, price or URL does.
func Listings(listings []models.Listing) string {
	lines := make([]string, 0, len(listings))
	for _, l := range listings {
		lines = append(lines, strings.Join([]string{l.Source, l.Name, l.Price.String(), l.URL}, "\x1f"))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
