package receipt

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Date", func() {
	It("parses ISO dates", func() {
		d, err := ParseDate("2024-02-29")
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(NewDate(2024, time.February, 29)))
		Expect(d.String()).To(Equal("2024-02-29"))
	})

	It("treats an empty string as no date", func() {
		d, err := ParseDate("  ")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.IsZero()).To(BeTrue())
	})

	It("rejects other layouts", func() {
		_, err := ParseDate("29.02.2024")
		Expect(err).To(MatchError(ContainSubstring("YYYY-MM-DD")))
	})

	It("serialises to JSON as a string or null", func() {
		type wrapper struct {
			A Date `json:"a"`
			B Date `json:"b"`
		}
		data, err := json.Marshal(wrapper{A: NewDate(2024, time.March, 1)})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"a":"2024-03-01","b":null}`))

		var back wrapper
		Expect(json.Unmarshal(data, &back)).To(Succeed())
		Expect(back.A).To(Equal(NewDate(2024, time.March, 1)))
		Expect(back.B.IsZero()).To(BeTrue())
	})
})

var _ = Describe("CanonicalCategory", func() {
	DescribeTable("mapping input onto the catalogue",
		func(input, expected string, ok bool) {
			got, found := CanonicalCategory(input)
			Expect(found).To(Equal(ok))
			Expect(got).To(Equal(expected))
		},
		Entry("exact", "Baumarkt", "Baumarkt", true),
		Entry("case-insensitive", "GESCHÄFTLICH", "Geschäftlich", true),
		Entry("synonym", "Tanken", "Tankstelle", true),
		Entry("unknown", "Spielwaren", "", false),
		Entry("empty", "", "", false),
	)
})

var _ = Describe("Receipt", func() {
	It("uses one snake_case name per field", func() {
		r := &Receipt{
			ID:         "r1",
			Merchant:   "OBI",
			Amount:     decimal.RequireFromString("119"),
			Status:     StatusPending,
			Confidence: Confidence{Overall: 90},
		}
		data, err := json.Marshal(r)
		Expect(err).NotTo(HaveOccurred())

		var fields map[string]any
		Expect(json.Unmarshal(data, &fields)).To(Succeed())
		Expect(fields).To(HaveKey("vat_amount"))
		Expect(fields).To(HaveKey("vat_rate"))
		Expect(fields).To(HaveKey("invoice_number"))
		Expect(fields).To(HaveKey("is_deductible"))
		Expect(fields).To(HaveKeyWithValue("confidence_overall", BeNumerically("==", 90)))
		Expect(fields).NotTo(HaveKey("vatAmount"))
		Expect(fields).NotTo(HaveKey("Confidence"))
	})

	It("lists what blocks approval", func() {
		r := &Receipt{Amount: decimal.RequireFromString("-1")}
		Expect(r.Missing()).To(Equal([]string{"merchant", "amount", "date"}))
	})
})
