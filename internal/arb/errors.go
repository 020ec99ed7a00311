package arb

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformedListing = errors.New("malformed listing")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidThreshold = errors.New("invalid profit threshold")
)

// MalformedListingError identifies the offending input record by position.
type MalformedListingError struct {
	Index  int
	Source string
	Name   string
	Reason string
}

func (e *MalformedListingError) Error() string {
	return fmt.Sprintf("malformed listing #%d (source=%q name=%q): %s", e.Index, e.Source, e.Name, e.Reason)
}

func (e *MalformedListingError) Unwrap() error { return ErrMalformedListing }

// InvalidPriceError is returned when a group would need a division by a zero buy price.
type InvalidPriceError struct {
	ItemName string
	Source   string
	Price    decimal.Decimal
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid buy price %s for %q from %s", e.Price.String(), e.ItemName, e.Source)
}

func (e *InvalidPriceError) Unwrap() error { return ErrInvalidPrice }
