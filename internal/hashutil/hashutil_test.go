package hashutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/hetulpatel/pricearb/internal/models"
)

func TestItemKey(t *testing.T) {
	a := ItemKey("iPhone 16 128GB")
	assert.Len(t, a, 32)
	assert.Equal(t, a, ItemKey("iPhone 16 128GB"))
	assert.NotEqual(t, a, ItemKey("iPhone 16 256GB"))
	assert.NotEqual(t, a, ItemKey("iphone 16 128gb"))
}

func TestListingsIgnoresOrderAndIDs(t *testing.T) {
	a := models.Listing{ID: "1", Source: "amazon", Name: "Kindle", Price: decimal.RequireFromString("99.99")}
	b := models.Listing{ID: "2", Source: "static", Name: "Kindle", Price: decimal.NewFromInt(120), URL: "http://x"}

	first := Listings([]models.Listing{a, b})
	a.ID, b.ID = "", ""
	assert.Equal(t, first, Listings([]models.Listing{b, a}))
	assert.Len(t, first, 64)

	b.Price = decimal.NewFromInt(121)
	assert.NotEqual(t, first, Listings([]models.Listing{a, b}))
}

func TestListingsEmpty(t *testing.T) {
	assert.Equal(t, Listings(nil), Listings([]models.Listing{}))
}
