package receipt

// ReviewPolicy decides whether a freshly scanned receipt needs a human
type ReviewPolicy struct {
	// OverallThreshold flags receipts whose overall confidence is below it
	OverallThreshold int
	// FieldThreshold flags a filled-in merchant, amount or date scored below it
	FieldThreshold int
}

// DefaultReviewPolicy returns the 80/60 thresholds
func DefaultReviewPolicy() ReviewPolicy {
	return ReviewPolicy{OverallThreshold: 80, FieldThreshold: 60}
}

// NeedsReview reports whether r must be checked before it can be filed
func (p ReviewPolicy) NeedsReview(r *Receipt) bool {
	if r.Confidence.Overall < p.OverallThreshold {
		return true
	}
	if len(r.Missing()) > 0 {
		return true
	}
	// fields are present here, so only their scores are left to check
	return r.Confidence.Merchant < p.FieldThreshold ||
		r.Confidence.Amount < p.FieldThreshold ||
		r.Confidence.Date < p.FieldThreshold
}
