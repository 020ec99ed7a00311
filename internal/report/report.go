// Package report renders opportunities for terminals, CSV files and
// spreadsheets.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hetulpatel/pricearb/internal/models"
)

// Format names an output layout.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
)

// Currency prefixes every printed amount.
const Currency = "£"

const (
	maxNameWidth = 40

	longTime  = "2006-01-02 15:04:05"
	shortTime = "2006-01-02 15:04"
)

// EmptyMessage is written instead of an empty report.
const EmptyMessage = "No arbitrage opportunities found."

var headers = []string{"Product", "Buy From", "Buy Price", "Sell To", "Sell Price", "Profit", "Profit %"}

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatTable, FormatCSV:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, table or csv)", s)
	}
}

// Write renders opps in the given format.
func Write(w io.Writer, format Format, opps []models.Opportunity, includeTimestamp bool) error {
	if len(opps) == 0 {
		_, err := fmt.Fprintln(w, EmptyMessage)
		return err
	}
	switch format {
	case FormatText:
		return writeText(w, opps, includeTimestamp)
	case FormatCSV:
		return writeCSV(w, opps, includeTimestamp)
	case FormatTable, "":
		return writeTable(w, opps, includeTimestamp)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeText(w io.Writer, opps []models.Opportunity, includeTimestamp bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d opportunities:\n", len(opps))
	for i, o := range opps {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, o.ItemName)
		fmt.Fprintf(&b, "   Buy from %s for %s%s\n", o.BuyFrom, Currency, o.BuyPrice.StringFixed(2))
		fmt.Fprintf(&b, "   Sell to %s for %s%s\n", o.SellTo, Currency, o.SellPrice.StringFixed(2))
		fmt.Fprintf(&b, "   Profit: %s%s (%s%%)\n", Currency, o.ProfitAmount.StringFixed(2), o.ProfitPercent.StringFixed(1))
		if includeTimestamp && !o.Timestamp.IsZero() {
			fmt.Fprintf(&b, "   Date: %s\n", o.Timestamp.UTC().Format(longTime))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeCSV(w io.Writer, opps []models.Opportunity, includeTimestamp bool) error {
	cw := csv.NewWriter(w)
	head := headers
	if includeTimestamp {
		head = append(append([]string(nil), headers...), "Timestamp")
	}
	if err := cw.Write(head); err != nil {
		return err
	}
	for _, o := range opps {
		row := []string{
			o.ItemName,
			o.BuyFrom,
			o.BuyPrice.StringFixed(2),
			o.SellTo,
			o.SellPrice.StringFixed(2),
			o.ProfitAmount.StringFixed(2),
			o.ProfitPercent.StringFixed(1) + "%",
		}
		if includeTimestamp {
			row = append(row, formatTime(o, longTime))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTable(w io.Writer, opps []models.Opportunity, includeTimestamp bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	head := headers
	if includeTimestamp {
		head = append(append([]string(nil), headers...), "Date")
	}
	fmt.Fprintln(tw, strings.Join(head, "\t"))
	for _, o := range opps {
		row := []string{
			truncate(o.ItemName, maxNameWidth),
			o.BuyFrom,
			Currency + o.BuyPrice.StringFixed(2),
			o.SellTo,
			Currency + o.SellPrice.StringFixed(2),
			Currency + o.ProfitAmount.StringFixed(2),
			o.ProfitPercent.StringFixed(1) + "%",
		}
		if includeTimestamp {
			row = append(row, formatTime(o, shortTime))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func formatTime(o models.Opportunity, layout string) string {
	if o.Timestamp.IsZero() {
		return ""
	}
	return o.Timestamp.UTC().Format(layout)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
