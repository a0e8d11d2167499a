package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName        = "Belege"
	minMerchantWidth = 10
)

// columnWidths are fixed widths for every column but the merchant
var columnWidths = []struct {
	from, to string
	width    float64
}{
	{"A", "A", 38}, // id
	{"C", "F", 12}, // amounts
	{"G", "G", 8},
	{"H", "H", 12},
	{"I", "J", 18},
	{"K", "K", 10},
	{"L", "M", 12},
}

// renderXLSX writes a single sheet with header and data rows
func renderXLSX(buf *bytes.Buffer, doc *document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#2F5597"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", style); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	merchantWidth := minMerchantWidth
	for i, row := range doc.rows {
		values := row.Values()
		cells := make([]any, len(values))
		for j, v := range values {
			cells[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
		if n := utf8.RuneCountInString(row.Merchant); n > merchantWidth {
			merchantWidth = n
		}
	}

	if err := f.SetColWidth(sheetName, "B", "B", float64(min(merchantWidth, excelize.MaxColumnWidth))); err != nil {
		return fmt.Errorf("sizing merchant column: %w", err)
	}
	for _, c := range columnWidths {
		if err := f.SetColWidth(sheetName, c.from, c.to, c.width); err != nil {
			return fmt.Errorf("sizing columns %s:%s: %w", c.from, c.to, err)
		}
	}
	lastCell, _ := excelize.CoordinatesToCellName(len(Columns), len(doc.rows)+1)
	if err := f.AutoFilter(sheetName, "A1:"+lastCell, nil); err != nil {
		return fmt.Errorf("adding filter: %w", err)
	}

	if _, err := f.WriteTo(buf); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
