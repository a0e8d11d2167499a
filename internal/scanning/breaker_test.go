package scanning

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sony/gobreaker/v2"
)

type mockScanner struct {
	calls  int
	data   *ReceiptData
	err    error
	closed bool
}

func (m *mockScanner) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error) {
	m.calls++
	return m.data, m.err
}

func (m *mockScanner) Close() error {
	m.closed = true
	return nil
}

var _ = Describe("Breaker", func() {
	var (
		next    *mockScanner
		breaker *Breaker
	)

	BeforeEach(func() {
		next = &mockScanner{}
		breaker = NewBreaker("test", next, BreakerConfig{
			MinRequests:      2,
			FailureRatio:     0.5,
			OpenTimeout:      time.Hour,
			HalfOpenMaxCalls: 1,
		})
	})

	When("the backend succeeds", func() {
		BeforeEach(func() {
			next.data = &ReceiptData{Merchant: "OBI"}
		})

		It("returns its data", func() {
			data, err := breaker.ScanReceipt(context.Background(), []byte("x"), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Merchant).To(Equal("OBI"))
			Expect(breaker.State()).To(Equal(gobreaker.StateClosed))
		})
	})

	When("the backend keeps failing", func() {
		BeforeEach(func() {
			next.err = recognitionError("generating content", errors.New("boom"))
			for i := 0; i < 2; i++ {
				_, err := breaker.ScanReceipt(context.Background(), []byte("x"), "image/png")
				Expect(err).To(MatchError(ErrRecognition))
			}
		})

		It("opens the circuit", func() {
			Expect(breaker.State()).To(Equal(gobreaker.StateOpen))
		})

		It("rejects further calls without reaching the backend", func() {
			_, err := breaker.ScanReceipt(context.Background(), []byte("x"), "image/png")
			Expect(err).To(MatchError(ErrRecognition))
			Expect(IsCircuitOpen(err)).To(BeTrue())
			Expect(next.calls).To(Equal(2))
		})
	})

	When("callers cancel", func() {
		BeforeEach(func() {
			next.err = context.Canceled
		})

		It("does not count against the backend", func() {
			for i := 0; i < 3; i++ {
				_, _ = breaker.ScanReceipt(context.Background(), []byte("x"), "image/png")
			}
			Expect(breaker.State()).To(Equal(gobreaker.StateClosed))
		})
	})

	It("closes the wrapped scanner", func() {
		Expect(breaker.Close()).To(Succeed())
		Expect(next.closed).To(BeTrue())
	})
})
