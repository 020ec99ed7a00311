package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/hetulpatel/pricearb/internal/models"
)

// SheetName is the worksheet WriteXLSX fills.
const SheetName = "Opportunities"

// WriteXLSX writes opps as a single-sheet workbook. Prices stay numeric so
// the sheet can be sorted and summed.
func WriteXLSX(w io.Writer, opps []models.Opportunity, includeTimestamp bool) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	head := make([]interface{}, 0, len(headers)+1)
	for _, h := range headers {
		head = append(head, h)
	}
	if includeTimestamp {
		head = append(head, "Timestamp")
	}
	if err := f.SetSheetRow(SheetName, "A1", &head); err != nil {
		return fmt.Errorf("xlsx: header: %w", err)
	}

	for i, o := range opps {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			o.ItemName,
			o.BuyFrom,
			o.BuyPrice.InexactFloat64(),
			o.SellTo,
			o.SellPrice.InexactFloat64(),
			o.ProfitAmount.InexactFloat64(),
			o.ProfitPercent.Round(1).InexactFloat64(),
		}
		if includeTimestamp {
			row = append(row, formatTime(o, longTime))
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("xlsx: row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx: write: %w", err)
	}
	return nil
}
