package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Filter", func() {
	var receipts []*Receipt

	BeforeEach(func() {
		receipts = []*Receipt{
			{ID: "1", Status: StatusPending, Category: "Baumarkt"},
			{ID: "2", Status: StatusApproved, Category: "Lebensmittel"},
			{ID: "3", Status: StatusApproved, Category: "Baumarkt"},
			{ID: "4", Status: StatusPending, Category: "Lebensmittel"},
		}
	})

	ids := func(rs []*Receipt) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	DescribeTable("Select",
		func(status, category string, expected []string) {
			f, err := NewFilter(status, category)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(Select(receipts, f))).To(Equal(expected))
		},
		Entry("no filter matches all in order", "", "", []string{"1", "2", "3", "4"}),
		Entry("ALL matches every status", "all", "", []string{"1", "2", "3", "4"}),
		Entry("status ignores case", "approved", "", []string{"2", "3"}),
		Entry("category", "", "baumarkt", []string{"1", "3"}),
		Entry("both", "PENDING", "Lebensmittel", []string{"4"}),
		Entry("nothing matches", "APPROVED", "KFZ", []string{}),
	)

	It("rejects an unknown status", func() {
		_, err := NewFilter("DELETED", "")
		Expect(err).To(MatchError(ErrValidation))
		Expect(validationFields(err)).To(ConsistOf("status"))
	})

	It("does not modify its input", func() {
		_ = Select(receipts, Filter{Status: StatusApproved})
		Expect(ids(receipts)).To(Equal([]string{"1", "2", "3", "4"}))
	})
})
