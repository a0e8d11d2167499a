// Package export renders approved receipts into bookkeeping files.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/easy-receipt/internal/receipt"
)

// ErrRender marks failures to serialise an export
var ErrRender = errors.New("render failed")

// RenderError reports which format could not be produced
type RenderError struct {
	Format Format
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s export: %v", e.Format, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Is(target error) bool { return target == ErrRender }

// Format is an export file type
type Format string

const (
	FormatTXT  Format = "txt"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// Formats lists every supported format
var Formats = []Format{FormatTXT, FormatCSV, FormatXLSX, FormatPDF}

// ParseFormat parses a format name, ignoring case
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", &receipt.ValidationError{Problems: []receipt.FieldProblem{{
		Field:   "format",
		Message: fmt.Sprintf("must be one of txt, csv, xlsx, pdf, got %q", s),
	}}}
}

// ContentType returns the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case FormatTXT:
		return "text/plain; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Result is one rendered export
type Result struct {
	Data        []byte
	Filename    string
	ContentType string
	Format      Format
	Rows        int
	ReceiptIDs  []string
	GrossTotal  decimal.Decimal
}

// Empty reports whether no receipt was eligible. The file is still well-formed.
func (r *Result) Empty() bool { return r.Rows == 0 }

type renderer func(buf *bytes.Buffer, doc *document) error

// document is what every renderer receives
type document struct {
	rows       []Row
	exportedAt time.Time
	grossTotal decimal.Decimal
}

// Option configures an Engine
type Option func(*Engine)

// WithLocation sets the zone used for dates in the output
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithPrefix sets the file name prefix
func WithPrefix(prefix string) Option {
	return func(e *Engine) {
		if prefix != "" {
			e.prefix = prefix
		}
	}
}

// Engine projects approved receipts into one of the export formats
type Engine struct {
	loc       *time.Location
	now       func() time.Time
	prefix    string
	renderers map[Format]renderer
}

// NewEngine creates an Engine writing "belege_<date>.<ext>" files in UTC
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		loc:    time.UTC,
		now:    time.Now,
		prefix: "belege",
	}
	for _, opt := range opts {
		opt(e)
	}
	e.renderers = map[Format]renderer{
		FormatTXT:  renderText,
		FormatCSV:  renderCSV,
		FormatXLSX: renderXLSX,
		FormatPDF:  renderPDF,
	}
	return e
}

// Export renders the approved receipts passing filter. Receipts that are not
// approved are skipped; zero eligible receipts yields an empty but valid file.
func (e *Engine) Export(ctx context.Context, receipts []*receipt.Receipt, format Format, filter receipt.Filter) (*Result, error) {
	start := time.Now()
	render, ok := e.renderers[format]
	if !ok {
		_, err := ParseFormat(string(format))
		return nil, err
	}

	exportedAt := e.now().In(e.loc)
	doc := &document{exportedAt: exportedAt, grossTotal: decimal.Zero}
	ids := make([]string, 0)
	for _, r := range receipt.Select(receipts, filter) {
		if r.Status != receipt.StatusApproved {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, gross, err := project(r, e.loc)
		if err != nil {
			return nil, &RenderError{Format: format, Err: err}
		}
		doc.rows = append(doc.rows, row)
		doc.grossTotal = doc.grossTotal.Add(gross)
		ids = append(ids, r.ID)
	}

	var buf bytes.Buffer
	if err := render(&buf, doc); err != nil {
		return nil, &RenderError{Format: format, Err: err}
	}

	result := &Result{
		Data:        buf.Bytes(),
		Filename:    fmt.Sprintf("%s_%s.%s", e.prefix, exportedAt.Format(receipt.DateFormat), format),
		ContentType: format.ContentType(),
		Format:      format,
		Rows:        len(doc.rows),
		ReceiptIDs:  ids,
		GrossTotal:  doc.grossTotal,
	}

	slog.Info("export.ok",
		"format", string(format),
		"rows", result.Rows,
		"bytes", len(result.Data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
