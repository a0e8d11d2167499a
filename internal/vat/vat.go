package vat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalid is returned when an amount or rate cannot be decomposed
var ErrInvalid = errors.New("invalid vat input")

// Rate is a VAT percentage permitted on a receipt
type Rate int

const (
	Rate0  Rate = 0
	Rate7  Rate = 7
	Rate19 Rate = 19
)

// Valid reports whether r is one of the permitted rates
func (r Rate) Valid() bool {
	switch r {
	case Rate0, Rate7, Rate19:
		return true
	}
	return false
}

// Label returns the percentage label used in exports, e.g. "19%"
func (r Rate) Label() string {
	return strconv.Itoa(int(r)) + "%"
}

// ParseRate parses "19", "19%" or " 7 " into a Rate
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: rate %q is not a number", ErrInvalid, s)
	}
	r := Rate(n)
	if !r.Valid() {
		return 0, fmt.Errorf("%w: rate %d%% is not permitted (0, 7, 19)", ErrInvalid, n)
	}
	return r, nil
}

// Breakdown is a gross amount split into its VAT and net parts
type Breakdown struct {
	Gross decimal.Decimal
	VAT   decimal.Decimal
	Net   decimal.Decimal
}

// Split holds the VAT amount bucketed by rate
type Split struct {
	VAT19 decimal.Decimal
	VAT7  decimal.Decimal
}

// Decompose derives the net amount from a gross amount and its VAT.
// Amounts are rounded to cents half away from zero before subtracting,
// so Net+VAT always equals Gross.
func Decompose(gross decimal.Decimal, rate *Rate, vatAmount *decimal.Decimal) (Breakdown, error) {
	if rate != nil && !rate.Valid() {
		return Breakdown{}, fmt.Errorf("%w: rate %d%% is not permitted (0, 7, 19)", ErrInvalid, int(*rate))
	}

	g := gross.Round(2)
	v := decimal.Zero
	if vatAmount != nil {
		v = vatAmount.Round(2)
	}
	if v.IsNegative() {
		return Breakdown{}, fmt.Errorf("%w: vat %s is negative", ErrInvalid, v.StringFixed(2))
	}
	if v.GreaterThan(g) {
		return Breakdown{}, fmt.Errorf("%w: vat %s exceeds gross %s", ErrInvalid, v.StringFixed(2), g.StringFixed(2))
	}

	return Breakdown{Gross: g, VAT: v, Net: g.Sub(v)}, nil
}

// SplitByRate places the VAT amount in the bucket matching its rate.
// A 0% rate or an unset rate leaves both buckets at zero.
func SplitByRate(rate *Rate, vatAmount *decimal.Decimal) Split {
	s := Split{VAT19: decimal.Zero, VAT7: decimal.Zero}
	if rate == nil || vatAmount == nil {
		return s
	}
	switch *rate {
	case Rate19:
		s.VAT19 = vatAmount.Round(2)
	case Rate7:
		s.VAT7 = vatAmount.Round(2)
	}
	return s
}
