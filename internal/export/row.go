package export

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/zombor/easy-receipt/internal/receipt"
	"github.com/zombor/easy-receipt/internal/vat"
)

// Columns is the shared column order of every format
var Columns = []string{
	"id",
	"merchant",
	"gross_amount",
	"net_amount",
	"vat_at_19",
	"vat_at_7",
	"vat_rate_label",
	"date",
	"category",
	"invoice_number",
	"is_deductible",
	"status",
	"created_at",
}

// columnLabels are the German headings used in the human-readable formats
var columnLabels = []string{
	"ID",
	"Händler",
	"Brutto",
	"Netto",
	"MwSt 19%",
	"MwSt 7%",
	"Satz",
	"Datum",
	"Kategorie",
	"Rechnungsnr.",
	"Absetzbar",
	"Status",
	"Erfasst am",
}

const (
	absent          = "-"
	createdAtLayout = "02.01.2006"
)

// Row is one receipt projected to display strings
type Row struct {
	ID            string
	Merchant      string
	Gross         string
	Net           string
	VAT19         string
	VAT7          string
	RateLabel     string
	Date          string
	Category      string
	InvoiceNumber string
	Deductible    string
	Status        string
	CreatedAt     string
}

// Values returns the row in Columns order
func (r Row) Values() []string {
	return []string{
		r.ID,
		r.Merchant,
		r.Gross,
		r.Net,
		r.VAT19,
		r.VAT7,
		r.RateLabel,
		r.Date,
		r.Category,
		r.InvoiceNumber,
		r.Deductible,
		r.Status,
		r.CreatedAt,
	}
}

// project derives the row for r, returning the rounded gross amount as well
func project(r *receipt.Receipt, loc *time.Location) (Row, decimal.Decimal, error) {
	b, err := vat.Decompose(r.Amount, r.VATRate, r.VATAmount)
	if err != nil {
		return Row{}, decimal.Zero, fmt.Errorf("receipt %s: %w", r.ID, err)
	}
	split := vat.SplitByRate(r.VATRate, r.VATAmount)

	row := Row{
		ID:            r.ID,
		Merchant:      singleLine(r.Merchant),
		Gross:         b.Gross.StringFixed(2),
		Net:           b.Net.StringFixed(2),
		VAT19:         split.VAT19.StringFixed(2),
		VAT7:          split.VAT7.StringFixed(2),
		RateLabel:     absent,
		Date:          absent,
		Category:      singleLine(r.Category),
		InvoiceNumber: absent,
		Deductible:    "Nein",
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt.In(loc).Format(createdAtLayout),
	}
	if r.VATRate != nil {
		row.RateLabel = r.VATRate.Label()
	}
	if !r.Date.IsZero() {
		row.Date = r.Date.String()
	}
	if n := singleLine(r.InvoiceNumber); n != "" {
		row.InvoiceNumber = n
	}
	if r.IsDeductible {
		row.Deductible = "Ja"
	}

	for i, v := range row.Values() {
		if !utf8.ValidString(v) {
			return Row{}, decimal.Zero, fmt.Errorf("receipt %s: %s is not valid UTF-8", r.ID, Columns[i])
		}
	}
	return row, b.Gross, nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// singleLine keeps every record on one output line and every value in one text column
func singleLine(s string) string {
	return strings.TrimSpace(lineBreaks.Replace(s))
}
