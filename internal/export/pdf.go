package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin     = 10.0
	pdfRowHeight  = 6.0
	pdfLineHeight = 4.0
	pdfFontSize   = 7.0
	// summaryHeight covers the gap above the summary line and the line itself
	summaryHeight = 9.0
)

// pdfColumnWidths in mm; they add up to the A4 landscape width inside the margins.
// The id column fits a UUID on one line.
var pdfColumnWidths = []float64{52, 38, 18, 18, 16, 16, 12, 18, 21, 19, 13, 18, 18}

// numericColumns are right aligned
var numericColumns = map[int]bool{2: true, 3: true, 4: true, 5: true}

// renderPDF writes an A4 landscape table, repeating the header band on every page
func renderPDF(buf *bytes.Buffer, doc *document) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	// fixed metadata keeps identical input byte-identical
	pdf.SetCreationDate(doc.exportedAt)
	pdf.SetModificationDate(doc.exportedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Belege", true)
	pdf.SetCreator("easy-receipt", true)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	_, pageHeight := pdf.GetPageSize()

	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() == 1 {
			pdf.SetFont("Helvetica", "B", 16)
			pdf.CellFormat(0, 9, tr("Belege"), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 9)
			pdf.CellFormat(0, 6, tr("Exportiert am: "+doc.exportedAt.Format("02.01.2006 15:04")), "", 1, "L", false, 0, "")
			pdf.Ln(3)
		}
		pdf.SetFont("Helvetica", "B", pdfFontSize)
		pdf.SetFillColor(47, 85, 151)
		pdf.SetTextColor(255, 255, 255)
		for i, label := range columnLabels {
			pdf.CellFormat(pdfColumnWidths[i], pdfRowHeight+1, tr(label), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", pdfFontSize)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont("Helvetica", "", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("Seite %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	bottom := pageHeight - pdfMargin - 6

	pdf.SetFillColor(235, 240, 248)
	for n, row := range doc.rows {
		cells := wrapCells(pdf, tr, row.Values())
		height := rowHeight(cells)
		if pdf.GetY()+height > bottom {
			pdf.AddPage()
			pdf.SetFillColor(235, 240, 248)
		}
		drawRow(pdf, cells, height, n%2 == 1)
	}

	if pdf.GetY()+summaryHeight > bottom {
		pdf.AddPage()
	}
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 9)
	if len(doc.rows) == 0 {
		pdf.CellFormat(0, 6, tr("Keine genehmigten Belege."), "", 1, "L", false, 0, "")
	} else {
		summary := fmt.Sprintf("%d Belege, Summe brutto: %s EUR", len(doc.rows), doc.grossTotal.StringFixed(2))
		pdf.CellFormat(0, 6, tr(summary), "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(buf); err != nil {
		return fmt.Errorf("pdf write: %w", err)
	}
	return nil
}

// wrapCells splits every value into lines that fit its column, breaking words
// without spaces where needed so no character is dropped
func wrapCells(pdf *fpdf.Fpdf, tr func(string) string, values []string) [][]string {
	cells := make([][]string, len(values))
	for i, v := range values {
		for _, line := range pdf.SplitLines([]byte(tr(v)), pdfColumnWidths[i]) {
			cells[i] = append(cells[i], string(line))
		}
	}
	return cells
}

func rowHeight(cells [][]string) float64 {
	lines := 1
	for _, c := range cells {
		lines = max(lines, len(c))
	}
	return max(pdfRowHeight, float64(lines)*pdfLineHeight+2)
}

// drawRow frames each cell at the full row height and centres its lines vertically
func drawRow(pdf *fpdf.Fpdf, cells [][]string, height float64, fill bool) {
	left, top := pdf.GetXY()
	style := "D"
	if fill {
		style = "FD"
	}
	x := left
	for i, lines := range cells {
		width := pdfColumnWidths[i]
		pdf.Rect(x, top, width, height, style)
		align := "L"
		if numericColumns[i] {
			align = "R"
		}
		y := top + (height-float64(len(lines))*pdfLineHeight)/2
		for k, line := range lines {
			pdf.SetXY(x, y+float64(k)*pdfLineHeight)
			pdf.CellFormat(width, pdfLineHeight, line, "", 0, align, false, 0, "")
		}
		x += width
	}
	pdf.SetXY(left, top+height)
}
