package scanning

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrRecognition marks failures of the recognition backend
var ErrRecognition = errors.New("recognition failed")

// ReceiptData contains extracted information from a receipt.
// Optional values are nil or "" when the scanner could not read them.
type ReceiptData struct {
	Merchant      string           `json:"merchant"`
	Amount        *decimal.Decimal `json:"amount"`   // gross, including VAT
	Date          string           `json:"date"`     // ISO 8601 format
	VATRate       *int             `json:"vat_rate"` // percent
	VATAmount     *decimal.Decimal `json:"vat_amount"`
	InvoiceNumber string           `json:"invoice_number"`
	Category      string           `json:"category"`

	ConfidenceOverall  int `json:"confidence_overall"`
	ConfidenceMerchant int `json:"confidence_merchant"`
	ConfidenceAmount   int `json:"confidence_amount"`
	ConfidenceDate     int `json:"confidence_date"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts metadata
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error)
	// Close closes the scanner and releases resources
	Close() error
}

func recognitionError(operation string, err error) error {
	return fmt.Errorf("%s: %w: %w", operation, ErrRecognition, err)
}
