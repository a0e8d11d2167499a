package receipt

import "strings"

// Filter narrows a receipt listing. Zero fields match everything.
type Filter struct {
	Status   Status
	Category string
}

// ParseStatus parses a status name, ignoring case
func ParseStatus(s string) (Status, error) {
	switch {
	case strings.EqualFold(strings.TrimSpace(s), string(StatusPending)):
		return StatusPending, nil
	case strings.EqualFold(strings.TrimSpace(s), string(StatusApproved)):
		return StatusApproved, nil
	}
	var p problems
	p.add("status", "must be PENDING or APPROVED, got %q", s)
	return "", p.err("")
}

// NewFilter builds a Filter from raw query values. "" and "ALL" match any status.
func NewFilter(status, category string) (Filter, error) {
	f := Filter{Category: strings.TrimSpace(category)}
	if s := strings.TrimSpace(status); s != "" && !strings.EqualFold(s, "ALL") {
		parsed, err := ParseStatus(s)
		if err != nil {
			return Filter{}, err
		}
		f.Status = parsed
	}
	return f, nil
}

// Match reports whether r passes the filter
func (f Filter) Match(r *Receipt) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Category != "" && !strings.EqualFold(r.Category, f.Category) {
		return false
	}
	return true
}

// Select returns the receipts passing f, keeping their order
func Select(receipts []*Receipt, f Filter) []*Receipt {
	out := make([]*Receipt, 0, len(receipts))
	for _, r := range receipts {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
