package scanning

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		pngData []byte
		data    *ReceiptData
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL()+"/", "llava", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(png.Encode(&buf, testImage())).To(Succeed())
		pngData = buf.Bytes()
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		data, err = scanner.ScanReceipt(context.Background(), pngData, "image/png")
	})

	When("the model answers with receipt JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Done: true,
					Message: ollamaMessage{
						Role:    "assistant",
						Content: `{"merchant": "dm", "amount": 8.97, "date": "2024-05-02", "vat_rate": 19, "vat_amount": 1.43, "confidence_overall": 85}`,
					},
				}),
			))
		})

		It("returns the parsed receipt", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Merchant).To(Equal("dm"))
			Expect(data.Amount.String()).To(Equal("8.97"))
			Expect(*data.VATRate).To(Equal(19))
			Expect(data.ConfidenceOverall).To(Equal(85))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns a recognition error", func() {
			Expect(err).To(MatchError(ErrRecognition))
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "I cannot read this receipt."},
			}))
		})

		It("returns a recognition error", func() {
			Expect(err).To(MatchError(ErrRecognition))
		})
	})
})
