package receipt

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("ReviewPolicy", func() {
	var (
		policy  ReviewPolicy
		receipt *Receipt
	)

	BeforeEach(func() {
		policy = DefaultReviewPolicy()
		receipt = &Receipt{
			Merchant:   "Bauhaus",
			Amount:     decimal.RequireFromString("49.99"),
			Date:       NewDate(2024, time.April, 2),
			Confidence: Confidence{Overall: 95, Merchant: 90, Amount: 90, Date: 90},
		}
	})

	It("files a confident complete receipt", func() {
		Expect(policy.NeedsReview(receipt)).To(BeFalse())
	})

	It("flags a low overall confidence", func() {
		receipt.Confidence.Overall = 55
		Expect(policy.NeedsReview(receipt)).To(BeTrue())
	})

	It("treats the threshold itself as confident", func() {
		receipt.Confidence.Overall = 80
		Expect(policy.NeedsReview(receipt)).To(BeFalse())
	})

	DescribeTable("flags missing fields regardless of confidence",
		func(mutate func(r *Receipt)) {
			mutate(receipt)
			Expect(policy.NeedsReview(receipt)).To(BeTrue())
		},
		Entry("merchant", func(r *Receipt) { r.Merchant = "" }),
		Entry("amount", func(r *Receipt) { r.Amount = decimal.Zero }),
		Entry("date", func(r *Receipt) { r.Date = Date{} }),
	)

	DescribeTable("flags a suspect field",
		func(mutate func(r *Receipt)) {
			mutate(receipt)
			Expect(policy.NeedsReview(receipt)).To(BeTrue())
		},
		Entry("merchant", func(r *Receipt) { r.Confidence.Merchant = 59 }),
		Entry("amount", func(r *Receipt) { r.Confidence.Amount = 10 }),
		Entry("date", func(r *Receipt) { r.Confidence.Date = 0 }),
	)

	It("follows configured thresholds", func() {
		policy = ReviewPolicy{OverallThreshold: 50, FieldThreshold: 20}
		receipt.Confidence = Confidence{Overall: 55, Merchant: 30, Amount: 30, Date: 30}
		Expect(policy.NeedsReview(receipt)).To(BeFalse())
	})
})
