package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/easy-receipt/internal/vat"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	newReceipt := func(id, merchant string) *Receipt {
		rate := vat.Rate7
		vatAmount := decimal.RequireFromString("0.65")
		return &Receipt{
			ID:               id,
			Merchant:         merchant,
			Amount:           decimal.RequireFromString("9.95"),
			VATRate:          &rate,
			VATAmount:        &vatAmount,
			Date:             NewDate(2024, time.January, 15),
			Category:         "Lebensmittel",
			IsDeductible:     true,
			Status:           StatusPending,
			Confidence:       Confidence{Overall: 81, Merchant: 70, Amount: 90, Date: 65},
			OriginalFilename: "kassenbon.jpg",
			FileType:         "image/jpeg",
			StorageRef:       id + "_kassenbon.jpg",
			CreatedAt:        time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
			UpdatedAt:        time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		}
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveReceipt and GetReceipt", func() {
		var (
			saved *Receipt
			got   *Receipt
			err   error
		)

		BeforeEach(func() {
			saved = newReceipt("test-id", "Edeka")
		})

		JustBeforeEach(func() {
			Expect(db.SaveReceipt(saved)).To(Succeed())
			got, err = db.GetReceipt("test-id")
		})

		It("assigns the first sequence number", func() {
			Expect(saved.Seq).To(Equal(uint64(1)))
		})

		It("round-trips every field", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Merchant).To(Equal("Edeka"))
			Expect(got.Amount.Equal(saved.Amount)).To(BeTrue())
			Expect(*got.VATRate).To(Equal(vat.Rate7))
			Expect(got.VATAmount.StringFixed(2)).To(Equal("0.65"))
			Expect(got.Date).To(Equal(saved.Date))
			Expect(got.Confidence).To(Equal(saved.Confidence))
			Expect(got.StorageRef).To(Equal("test-id_kassenbon.jpg"))
			Expect(got.CreatedAt.Equal(saved.CreatedAt)).To(BeTrue())
		})

		When("the receipt is saved again", func() {
			JustBeforeEach(func() {
				got.Merchant = "Edeka Center"
				Expect(db.SaveReceipt(got)).To(Succeed())
			})

			It("keeps its sequence number", func() {
				again, getErr := db.GetReceipt("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(again.Seq).To(Equal(uint64(1)))
				Expect(again.Merchant).To(Equal("Edeka Center"))
			})
		})

		When("the VAT fields are unset", func() {
			BeforeEach(func() {
				saved.VATRate = nil
				saved.VATAmount = nil
				saved.Date = Date{}
			})

			It("keeps them unset", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(got.VATRate).To(BeNil())
				Expect(got.VATAmount).To(BeNil())
				Expect(got.Date.IsZero()).To(BeTrue())
			})
		})
	})

	Describe("GetReceipt", func() {
		It("returns not found for an unknown id", func() {
			_, err := db.GetReceipt("nonexistent")
			Expect(err).To(MatchError(ErrNotFound))
			Expect(err).To(MatchError(ContainSubstring("nonexistent")))
		})
	})

	Describe("ListReceipts", func() {
		When("receipts exist", func() {
			BeforeEach(func() {
				// ids sort the other way round than creation
				for _, id := range []string{"zz", "mm", "aa"} {
					Expect(db.SaveReceipt(newReceipt(id, "Merchant "+id))).To(Succeed())
				}
			})

			It("returns them in creation order", func() {
				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(HaveLen(3))
				Expect(receipts[0].ID).To(Equal("zz"))
				Expect(receipts[1].ID).To(Equal("mm"))
				Expect(receipts[2].ID).To(Equal("aa"))
			})
		})

		When("no receipts exist", func() {
			It("returns an empty list", func() {
				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(BeEmpty())
			})
		})
	})

	Describe("DeleteReceipt", func() {
		BeforeEach(func() {
			Expect(db.SaveReceipt(newReceipt("test-id", "Rossmann"))).To(Succeed())
		})

		It("removes the receipt", func() {
			Expect(db.DeleteReceipt("test-id")).To(Succeed())
			_, err := db.GetReceipt("test-id")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("fails the second time", func() {
			Expect(db.DeleteReceipt("test-id")).To(Succeed())
			Expect(db.DeleteReceipt("test-id")).To(MatchError(ErrNotFound))
		})
	})

	Describe("export runs", func() {
		BeforeEach(func() {
			for _, id := range []string{"run-b", "run-a"} {
				Expect(db.SaveExportRun(&ExportRun{
					ID:         id,
					Format:     "csv",
					Filename:   "belege_2024-03-15.csv",
					ReceiptIDs: []string{"r1", "r2"},
					Rows:       2,
					GrossTotal: decimal.RequireFromString("131.50"),
					CreatedAt:  time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
				})).To(Succeed())
			}
		})

		It("lists them oldest first", func() {
			runs, err := db.ListExportRuns()
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(2))
			Expect(runs[0].ID).To(Equal("run-b"))
			Expect(runs[1].ID).To(Equal("run-a"))
			Expect(runs[0].ReceiptIDs).To(Equal([]string{"r1", "r2"}))
			Expect(runs[0].GrossTotal.StringFixed(2)).To(Equal("131.50"))
		})
	})

	Describe("reopening the file", func() {
		It("keeps data and the sequence", func() {
			Expect(db.SaveReceipt(newReceipt("first", "OBI"))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			second := newReceipt("second", "Hornbach")
			Expect(db.SaveReceipt(second)).To(Succeed())
			Expect(second.Seq).To(Equal(uint64(2)))

			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(2))
		})
	})
})
