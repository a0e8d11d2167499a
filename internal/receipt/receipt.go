package receipt

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/easy-receipt/internal/vat"
)

// Status is the review state of a receipt
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
)

// Confidence holds the recognition scores (0-100) attached at ingestion.
// They are never recomputed or edited afterwards.
type Confidence struct {
	Overall  int `json:"confidence_overall"`
	Merchant int `json:"confidence_merchant"`
	Amount   int `json:"confidence_amount"`
	Date     int `json:"confidence_date"`
}

// Receipt is a scanned purchase receipt moving through review
type Receipt struct {
	ID            string           `json:"id"`
	Seq           uint64           `json:"seq"` // creation order, assigned by the store
	Merchant      string           `json:"merchant"`
	Amount        decimal.Decimal  `json:"amount"` // gross, including VAT
	VATRate       *vat.Rate        `json:"vat_rate"`
	VATAmount     *decimal.Decimal `json:"vat_amount"`
	Date          Date             `json:"date"`
	Category      string           `json:"category"`
	InvoiceNumber string           `json:"invoice_number"`
	IsDeductible  bool             `json:"is_deductible"`
	Status        Status           `json:"status"`
	NeedsReview   bool             `json:"needs_review"`
	Confidence

	OriginalFilename string    `json:"original_filename"`
	FileType         string    `json:"file_type"`
	StorageRef       string    `json:"storage_ref"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Breakdown splits the gross amount into net and VAT
func (r *Receipt) Breakdown() (vat.Breakdown, error) {
	return vat.Decompose(r.Amount, r.VATRate, r.VATAmount)
}

// Missing lists the fields that must be filled in before approval
func (r *Receipt) Missing() []string {
	var missing []string
	if strings.TrimSpace(r.Merchant) == "" {
		missing = append(missing, "merchant")
	}
	if !r.Amount.IsPositive() {
		missing = append(missing, "amount")
	}
	if r.Date.IsZero() {
		missing = append(missing, "date")
	}
	return missing
}

func (r *Receipt) clone() *Receipt {
	c := *r
	if r.VATRate != nil {
		rate := *r.VATRate
		c.VATRate = &rate
	}
	if r.VATAmount != nil {
		amount := *r.VATAmount
		c.VATAmount = &amount
	}
	return &c
}

// Fields are the values the recognition oracle extracted from a file
type Fields struct {
	Merchant      string
	Amount        *decimal.Decimal
	Date          Date
	VATRate       *vat.Rate
	VATAmount     *decimal.Decimal
	InvoiceNumber string
	Category      string
}

// FileMeta describes the original upload
type FileMeta struct {
	OriginalFilename string
	FileType         string
	StorageRef       string
}

// Patch is a field-level change to a receipt. Nil fields are left untouched.
type Patch struct {
	Merchant      *string
	Amount        *decimal.Decimal
	VATRate       *vat.Rate
	VATAmount     *decimal.Decimal
	ClearVAT      bool // unsets vat_rate and vat_amount together
	Date          *Date
	Category      *string
	InvoiceNumber *string
	IsDeductible  *bool

	// Approve asks for the PENDING -> APPROVED transition in the same call
	Approve bool
}

// ExportRun records one export handed out to a caller
type ExportRun struct {
	ID         string          `json:"id"`
	Seq        uint64          `json:"seq"`
	Format     string          `json:"format"`
	Filename   string          `json:"filename"`
	ReceiptIDs []string        `json:"receipt_ids"`
	Rows       int             `json:"rows"`
	GrossTotal decimal.Decimal `json:"gross_total"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Stats summarises the receipt store
type Stats struct {
	Total          int             `json:"total"`
	Pending        int             `json:"pending"`
	Approved       int             `json:"approved"`
	NeedsReview    int             `json:"needs_review"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
}
