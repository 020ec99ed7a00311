package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hetulpatel/pricearb/internal/models"
)

func sample() []models.Opportunity {
	at := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)
	return []models.Opportunity{
		{
			ItemName: "iPhone 16 128GB", BuyFrom: "amazon", BuyPrice: decimal.NewFromInt(790),
			SellTo: "static", SellPrice: decimal.NewFromInt(830),
			ProfitAmount: decimal.NewFromInt(40), ProfitPercent: decimal.RequireFromString("5.0632911392"),
			Timestamp: at,
		},
		{
			ItemName: "An extraordinarily long product title that will not fit", BuyFrom: "a",
			BuyPrice: decimal.RequireFromString("10.5"), SellTo: "b", SellPrice: decimal.NewFromInt(21),
			ProfitAmount: decimal.RequireFromString("10.5"), ProfitPercent: decimal.NewFromInt(100),
			Timestamp: at,
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"text": FormatText, " CSV ": FormatCSV, "table": FormatTable, "": FormatTable} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("yaml")
	assert.Error(t, err)
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, nil, false))
	assert.Equal(t, EmptyMessage+"\n", buf.String())
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, sample()[:1], true))
	want := "Found 1 opportunities:\n" +
		"\n1. iPhone 16 128GB\n" +
		"   Buy from amazon for £790.00\n" +
		"   Sell to static for £830.00\n" +
		"   Profit: £40.00 (5.1%)\n" +
		"   Date: 2026-03-01 12:30:45\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sample(), false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Product,Buy From,Buy Price,Sell To,Sell Price,Profit,Profit %", lines[0])
	assert.Equal(t, "iPhone 16 128GB,amazon,790.00,static,830.00,40.00,5.1%", lines[1])

	buf.Reset()
	require.NoError(t, Write(&buf, FormatCSV, sample()[:1], true))
	assert.Contains(t, buf.String(), ",Timestamp\n")
	assert.Contains(t, buf.String(), ",5.1%,2026-03-01 12:30:45\n")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTable, sample(), true))
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Product"))
	assert.Contains(t, lines[0], "Date")
	assert.Contains(t, lines[1], "£790.00")
	assert.Contains(t, lines[1], "2026-03-01 12:30")
	assert.Contains(t, lines[2], "An extraordinarily long product title...")
	assert.NotContains(t, out, "will not fit")
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, Format("yaml"), sample(), false))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sample(), true))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Product", "Buy From", "Buy Price", "Sell To", "Sell Price", "Profit", "Profit %", "Timestamp"}, rows[0])
	assert.Equal(t, "iPhone 16 128GB", rows[1][0])
	assert.Equal(t, "790", rows[1][2])
	assert.Equal(t, "5.1", rows[1][6])
	assert.Equal(t, "10.5", rows[2][2])
	assert.Equal(t, "2026-03-01 12:30:45", rows[2][7])
}
