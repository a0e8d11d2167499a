package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/easy-receipt/internal/scanning"
	"github.com/zombor/easy-receipt/internal/vat"
)

// IDGenerator generates unique IDs for receipts and export runs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Option configures a Service
type Option func(*Service)

// WithReviewPolicy replaces the default 80/60 review thresholds
func WithReviewPolicy(p ReviewPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithDefaultCategory sets the category used when none is known
func WithDefaultCategory(category string) Option {
	return func(s *Service) {
		if c, ok := CanonicalCategory(category); ok {
			s.defaultCategory = c
		}
	}
}

// Service owns every state transition of a receipt
type Service struct {
	db              DB
	scanner         scanning.Scanner
	storage         Storage
	idGenerator     IDGenerator
	timeSource      TimeSource
	policy          ReviewPolicy
	defaultCategory string
	locks           *idLocks
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, opts ...Option) *Service {
	return NewServiceWithDeps(db, scanner, storage, &defaultIDGenerator{}, &defaultTimeSource{}, opts...)
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource, opts ...Option) *Service {
	s := &Service{
		db:              db,
		scanner:         scanner,
		storage:         storage,
		idGenerator:     idGen,
		timeSource:      timeSrc,
		policy:          DefaultReviewPolicy(),
		defaultCategory: DefaultCategory,
		locks:           newIDLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
	plainExtension      = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	// Remove special characters, keep only alphanumeric, spaces, hyphens, and underscores
	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// Truncate to reasonable length (50 chars for base, plus extension)
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	if !plainExtension.MatchString(ext) {
		ext = ""
	}
	return base + ext
}

// Ingest stores an upload, runs it through the scanner and creates the receipt.
// Nothing is left behind when any step fails.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte, contentType string) (*Receipt, error) {
	if len(data) == 0 {
		return nil, &IngestionError{Filename: filename, Err: errors.New("file is empty")}
	}

	id := s.idGenerator.Generate()

	// Sanitize filename to clean up phone-generated long filenames
	ref, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, &IngestionError{Filename: filename, Err: fmt.Errorf("saving file: %w", err)}
	}

	scanned, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.discardBlob(ref)
		return nil, &IngestionError{Filename: filename, Err: fmt.Errorf("scanning receipt: %w", err)}
	}

	fields, conf := fieldsFromScan(scanned)
	receipt, err := s.create(id, fields, conf, FileMeta{
		OriginalFilename: filename,
		FileType:         contentType,
		StorageRef:       ref,
	})
	if err != nil {
		s.discardBlob(ref)
		return nil, err
	}
	return receipt, nil
}

// Create records a receipt from already extracted fields
func (s *Service) Create(ctx context.Context, fields Fields, conf Confidence, meta FileMeta) (*Receipt, error) {
	return s.create(s.idGenerator.Generate(), fields, conf, meta)
}

func (s *Service) create(id string, fields Fields, conf Confidence, meta FileMeta) (*Receipt, error) {
	if err := checkFileMeta(meta); err != nil {
		return nil, &IngestionError{Filename: meta.OriginalFilename, Err: err}
	}
	if err := checkConfidence(conf); err != nil {
		return nil, &IngestionError{Filename: meta.OriginalFilename, Err: err}
	}

	now := s.timeSource.Now()
	receipt := &Receipt{
		ID:               id,
		Merchant:         strings.TrimSpace(fields.Merchant),
		Date:             fields.Date,
		Category:         s.category(fields.Category),
		InvoiceNumber:    strings.TrimSpace(fields.InvoiceNumber),
		IsDeductible:     true,
		Status:           StatusPending,
		Confidence:       conf,
		OriginalFilename: meta.OriginalFilename,
		FileType:         meta.FileType,
		StorageRef:       meta.StorageRef,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if fields.Amount != nil && fields.Amount.IsPositive() {
		receipt.Amount = fields.Amount.Round(2)
	}
	receipt.VATRate, receipt.VATAmount = scannedVAT(receipt.Amount, fields.VATRate, fields.VATAmount)
	receipt.NeedsReview = s.policy.NeedsReview(receipt)

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, &IngestionError{Filename: meta.OriginalFilename, Err: fmt.Errorf("saving receipt to database: %w", err)}
	}

	slog.Info("Receipt created",
		"id", receipt.ID,
		"merchant", receipt.Merchant,
		"needs_review", receipt.NeedsReview,
		"confidence_overall", conf.Overall,
	)
	return receipt.clone(), nil
}

// Get retrieves a receipt by ID
func (s *Service) Get(ctx context.Context, id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// List returns the receipts matching f in creation order
func (s *Service) List(ctx context.Context, f Filter) ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return Select(receipts, f), nil
}

// Update applies a patch. Status only changes when the patch asks for approval.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Receipt, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}

	next := current.clone()
	if err := s.applyPatch(next, patch); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(next); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	if patch.Approve && current.Status != StatusApproved {
		slog.Info("Receipt approved", "id", id)
	}
	return next, nil
}

// Approve applies an optional patch and moves the receipt to APPROVED
func (s *Service) Approve(ctx context.Context, id string, patch Patch) (*Receipt, error) {
	patch.Approve = true
	return s.Update(ctx, id, patch)
}

// Delete removes a receipt and its file for good
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}
	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	s.discardBlob(receipt.StorageRef)
	return nil
}

// File retrieves the original upload of a receipt
func (s *Service) File(ctx context.Context, id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.StorageRef)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, receipt.FileType, nil
}

// Stats summarises all stored receipts
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	stats := &Stats{TotalAmount: decimal.Zero, ApprovedAmount: decimal.Zero}
	for _, r := range receipts {
		stats.Total++
		stats.TotalAmount = stats.TotalAmount.Add(r.Amount)
		switch r.Status {
		case StatusApproved:
			stats.Approved++
			stats.ApprovedAmount = stats.ApprovedAmount.Add(r.Amount)
		default:
			stats.Pending++
		}
		if r.NeedsReview && r.Status != StatusApproved {
			stats.NeedsReview++
		}
	}
	return stats, nil
}

// RecordExport appends a finished export to the history
func (s *Service) RecordExport(ctx context.Context, run *ExportRun) (*ExportRun, error) {
	saved := *run
	saved.ID = s.idGenerator.Generate()
	saved.Seq = 0
	saved.CreatedAt = s.timeSource.Now()
	if err := s.db.SaveExportRun(&saved); err != nil {
		return nil, fmt.Errorf("saving export run: %w", err)
	}
	return &saved, nil
}

// ListExports returns the export history, oldest first
func (s *Service) ListExports(ctx context.Context) ([]*ExportRun, error) {
	runs, err := s.db.ListExportRuns()
	if err != nil {
		return nil, fmt.Errorf("listing export runs: %w", err)
	}
	return runs, nil
}

func (s *Service) discardBlob(ref string) {
	if ref == "" {
		return
	}
	if err := s.storage.Delete(ref); err != nil {
		slog.Warn("Failed to delete file", "storage_ref", ref, "error", err)
	}
}

// category maps recognizer output onto the catalogue, falling back to the default
func (s *Service) category(input string) string {
	if c, ok := CanonicalCategory(input); ok {
		return c
	}
	return s.defaultCategory
}

// applyPatch changes r in place and reports every offending field at once
func (s *Service) applyPatch(r *Receipt, p Patch) error {
	var probs problems

	if p.Merchant != nil {
		r.Merchant = strings.TrimSpace(*p.Merchant)
	}
	if p.Amount != nil {
		switch {
		case p.Amount.IsNegative():
			probs.add("amount", "must not be negative")
		case !p.Amount.Equal(p.Amount.Round(2)):
			probs.add("amount", "must have at most 2 decimal places")
		default:
			r.Amount = p.Amount.Round(2)
		}
	}

	if p.ClearVAT {
		if p.VATRate != nil || p.VATAmount != nil {
			probs.add("vat_rate", "cannot be set and cleared in the same change")
		}
		r.VATRate, r.VATAmount = nil, nil
	}
	if p.VATRate != nil {
		if p.VATRate.Valid() {
			rate := *p.VATRate
			r.VATRate = &rate
		} else {
			probs.add("vat_rate", "must be one of 0, 7, 19, got %d", int(*p.VATRate))
		}
	}
	if p.VATAmount != nil {
		switch {
		case p.VATAmount.IsNegative():
			probs.add("vat_amount", "must not be negative")
		case !p.VATAmount.Equal(p.VATAmount.Round(2)):
			probs.add("vat_amount", "must have at most 2 decimal places")
		default:
			amount := p.VATAmount.Round(2)
			r.VATAmount = &amount
		}
	}

	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Category != nil {
		switch c := strings.TrimSpace(*p.Category); {
		case c == "":
			r.Category = s.defaultCategory
		default:
			canonical, ok := CanonicalCategory(c)
			if !ok {
				probs.add("category", "unknown category %q", c)
				break
			}
			r.Category = canonical
		}
	}
	if p.InvoiceNumber != nil {
		r.InvoiceNumber = strings.TrimSpace(*p.InvoiceNumber)
	}
	if p.IsDeductible != nil {
		r.IsDeductible = *p.IsDeductible
	}

	if len(probs) > 0 {
		return probs.err(r.ID)
	}

	checkVATPair(r, &probs)
	if p.Approve || r.Status == StatusApproved {
		// an approved receipt stays complete, whether approved now or earlier
		for _, field := range r.Missing() {
			probs.add(field, "is required for approval")
		}
	}
	if err := probs.err(r.ID); err != nil {
		return err
	}

	if p.Approve {
		r.Status = StatusApproved
	}
	return nil
}

// checkVATPair enforces that rate and amount travel together and fit the gross amount
func checkVATPair(r *Receipt, probs *problems) {
	switch {
	case r.VATRate == nil && r.VATAmount == nil:
		return
	case r.VATRate == nil:
		probs.add("vat_rate", "must be set together with vat_amount")
		return
	case r.VATAmount == nil:
		probs.add("vat_amount", "must be set together with vat_rate")
		return
	}
	if *r.VATRate == vat.Rate0 && !r.VATAmount.IsZero() {
		probs.add("vat_amount", "must be 0.00 at a 0%% rate, got %s", r.VATAmount.StringFixed(2))
		return
	}
	if _, err := vat.Decompose(r.Amount, r.VATRate, r.VATAmount); err != nil {
		probs.add("vat_amount", "%s exceeds amount %s", r.VATAmount.StringFixed(2), r.Amount.StringFixed(2))
	}
}

func checkFileMeta(meta FileMeta) error {
	var missing []string
	if strings.TrimSpace(meta.OriginalFilename) == "" {
		missing = append(missing, "original_filename")
	}
	if strings.TrimSpace(meta.FileType) == "" {
		missing = append(missing, "file_type")
	}
	if strings.TrimSpace(meta.StorageRef) == "" {
		missing = append(missing, "storage_ref")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing file metadata: %s", strings.Join(missing, ", "))
	}
	return nil
}

func checkConfidence(c Confidence) error {
	for _, score := range []struct {
		name  string
		value int
	}{
		{"confidence_overall", c.Overall},
		{"confidence_merchant", c.Merchant},
		{"confidence_amount", c.Amount},
		{"confidence_date", c.Date},
	} {
		if score.value < 0 || score.value > 100 {
			return fmt.Errorf("%s %d is outside 0..100", score.name, score.value)
		}
	}
	return nil
}

// scannedVAT keeps the recognized VAT pair only when it is consistent.
// 0% without an amount means no VAT was charged. Anything else
// contradictory is dropped so a reviewer fills it in.
func scannedVAT(gross decimal.Decimal, rate *vat.Rate, amount *decimal.Decimal) (*vat.Rate, *decimal.Decimal) {
	if rate == nil || !rate.Valid() {
		return nil, nil
	}
	r := *rate
	if amount == nil {
		if r != vat.Rate0 {
			return nil, nil
		}
		zero := decimal.Zero
		return &r, &zero
	}
	a := amount.Round(2)
	if r == vat.Rate0 && !a.IsZero() {
		return nil, nil
	}
	if _, err := vat.Decompose(gross, &r, &a); err != nil {
		return nil, nil
	}
	return &r, &a
}

// fieldsFromScan converts scanner output into receipt fields
func fieldsFromScan(d *scanning.ReceiptData) (Fields, Confidence) {
	fields := Fields{
		Merchant:      d.Merchant,
		Amount:        d.Amount,
		VATAmount:     d.VATAmount,
		InvoiceNumber: d.InvoiceNumber,
		Category:      d.Category,
	}
	if date, err := ParseDate(d.Date); err == nil {
		fields.Date = date
	}
	if d.VATRate != nil {
		rate := vat.Rate(*d.VATRate)
		fields.VATRate = &rate
	}
	return fields, Confidence{
		Overall:  d.ConfidenceOverall,
		Merchant: d.ConfidenceMerchant,
		Amount:   d.ConfidenceAmount,
		Date:     d.ConfidenceDate,
	}
}
