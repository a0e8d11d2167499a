package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zombor/easy-receipt/internal/receipt"
	"github.com/zombor/easy-receipt/internal/vat"
)

// patchRequest is the body of PUT /api/receipts/{id} and POST .../approve.
// Keys that are absent leave the field untouched; "" or null clears it.
// Keys outside the editable set (confidences, file metadata, timestamps) are ignored.
type patchRequest map[string]json.RawMessage

// decodePatch turns a JSON body into a receipt patch. An empty body is an empty patch.
func decodePatch(body []byte) (receipt.Patch, error) {
	var patch receipt.Patch
	if len(bytes.TrimSpace(body)) == 0 {
		return patch, nil
	}

	var req patchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return patch, &receipt.ValidationError{Problems: []receipt.FieldProblem{
			{Field: "body", Message: "must be a JSON object"},
		}}
	}

	var probs []receipt.FieldProblem
	fail := func(field, format string, args ...any) {
		probs = append(probs, receipt.FieldProblem{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	for _, key := range []string{"merchant", "category", "invoice_number"} {
		raw, ok := req[key]
		if !ok {
			continue
		}
		s, _, err := textValue(raw)
		if err != nil {
			fail(key, "must be a string")
			continue
		}
		switch key {
		case "merchant":
			patch.Merchant = &s
		case "category":
			patch.Category = &s
		case "invoice_number":
			patch.InvoiceNumber = &s
		}
	}

	if raw, ok := req["amount"]; ok {
		amount, set, err := decimalValue(raw)
		switch {
		case err != nil:
			fail("amount", "must be a number")
		case !set:
			zero := decimal.Zero
			patch.Amount = &zero
		default:
			patch.Amount = &amount
		}
	}

	if raw, ok := req["vat_rate"]; ok {
		rate, set, err := rateValue(raw)
		switch {
		case err != nil:
			fail("vat_rate", "must be one of 0, 7, 19")
		case !set:
			patch.ClearVAT = true
		default:
			patch.VATRate = &rate
		}
	}
	if raw, ok := req["vat_amount"]; ok {
		amount, set, err := decimalValue(raw)
		switch {
		case err != nil:
			fail("vat_amount", "must be a number")
		case !set:
			patch.ClearVAT = true
		default:
			patch.VATAmount = &amount
		}
	}

	if raw, ok := req["date"]; ok {
		s, _, err := textValue(raw)
		if err != nil {
			fail("date", "must be a string in YYYY-MM-DD format")
		} else if d, err := receipt.ParseDate(s); err != nil {
			fail("date", "must be in YYYY-MM-DD format, got %q", s)
		} else {
			patch.Date = &d
		}
	}

	if raw, ok := req["is_deductible"]; ok {
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			fail("is_deductible", "must be true or false")
		} else {
			patch.IsDeductible = &b
		}
	}

	if raw, ok := req["status"]; ok {
		s, set, err := textValue(raw)
		if err != nil {
			fail("status", "must be a string")
		} else if set {
			status, err := receipt.ParseStatus(s)
			switch {
			case err != nil:
				fail("status", "must be PENDING or APPROVED, got %q", s)
			case status == receipt.StatusApproved:
				patch.Approve = true
			}
		}
	}

	if len(probs) > 0 {
		return receipt.Patch{}, &receipt.ValidationError{Problems: probs}
	}
	return patch, nil
}

// textValue reads a JSON string or null. set is false for null and blank strings.
func textValue(raw json.RawMessage) (string, bool, error) {
	if isNull(raw) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, err
	}
	return s, strings.TrimSpace(s) != "", nil
}

// decimalValue reads a JSON number or a numeric string such as "12,50"
func decimalValue(raw json.RawMessage) (decimal.Decimal, bool, error) {
	if isNull(raw) {
		return decimal.Zero, false, nil
	}
	text := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(text, `"`) {
		s, set, err := textValue(raw)
		if err != nil || !set {
			return decimal.Zero, false, err
		}
		text = strings.TrimSpace(s)
		if !strings.Contains(text, ".") {
			text = strings.Replace(text, ",", ".", 1)
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

// rateValue reads 19, "19" or "19%". Out-of-catalogue numbers are returned
// as they are so the lifecycle check can report them.
func rateValue(raw json.RawMessage) (vat.Rate, bool, error) {
	if isNull(raw) {
		return 0, false, nil
	}
	text := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(text, `"`) {
		s, set, err := textValue(raw)
		if err != nil || !set {
			return 0, false, err
		}
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, false, err
	}
	return vat.Rate(n), true, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
