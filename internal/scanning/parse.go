package scanning

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order when the model ignores the requested format
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"2006/01/02",
	"02/01/2006",
}

// rawReceipt mirrors the model output before normalization
type rawReceipt struct {
	Merchant      string           `json:"merchant"`
	Amount        *decimal.Decimal `json:"amount"`
	Date          string           `json:"date"`
	VATRate       *float64         `json:"vat_rate"`
	VATAmount     *decimal.Decimal `json:"vat_amount"`
	InvoiceNumber json.RawMessage  `json:"invoice_number"`
	Category      string           `json:"category"`

	ConfidenceOverall  float64 `json:"confidence_overall"`
	ConfidenceMerchant float64 `json:"confidence_merchant"`
	ConfidenceAmount   float64 `json:"confidence_amount"`
	ConfidenceDate     float64 `json:"confidence_date"`
}

// parseReceiptJSON parses the JSON object a model returned
func parseReceiptJSON(text string) (*ReceiptData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var raw rawReceipt
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data := &ReceiptData{
		Merchant:           strings.TrimSpace(raw.Merchant),
		Amount:             raw.Amount,
		Date:               normalizeDate(raw.Date),
		VATAmount:          raw.VATAmount,
		InvoiceNumber:      invoiceNumber(raw.InvoiceNumber),
		Category:           strings.TrimSpace(raw.Category),
		ConfidenceOverall:  clampConfidence(raw.ConfidenceOverall),
		ConfidenceMerchant: clampConfidence(raw.ConfidenceMerchant),
		ConfidenceAmount:   clampConfidence(raw.ConfidenceAmount),
		ConfidenceDate:     clampConfidence(raw.ConfidenceDate),
	}
	if raw.VATRate != nil {
		rate := int(math.Round(*raw.VATRate))
		data.VATRate = &rate
	}
	return data, nil
}

// normalizeDate returns YYYY-MM-DD, or "" when the date is unreadable.
// An unreadable date is left for the reviewer instead of guessed.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}

// invoiceNumber accepts both "RE-123" and 123
func invoiceNumber(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func clampConfidence(v float64) int {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(math.Round(v))
}
