package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

var _ = Describe("Metrics", func() {
	var m *Metrics

	BeforeEach(func() {
		m = New()
	})

	Describe("Middleware", func() {
		It("labels requests with the route pattern", func() {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/receipts/{id}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})
			handler := m.Middleware(mux)

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/receipts/abc", nil))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/receipts/def", nil))

			Expect(testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "GET /api/receipts/{id}", "404"))).To(Equal(2.0))
			Expect(testutil.ToFloat64(m.requestInFlight)).To(Equal(0.0))
		})

		It("groups unknown paths", func() {
			handler := m.Middleware(http.NewServeMux())
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
			Expect(testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "unmatched", "404"))).To(Equal(1.0))
		})
	})

	Describe("domain counters", func() {
		It("counts ingestions and review flags", func() {
			m.RecordIngest(nil, true)
			m.RecordIngest(nil, false)
			m.RecordIngest(errors.New("scanner down"), false)

			Expect(testutil.ToFloat64(m.ingestTotal.WithLabelValues("success"))).To(Equal(2.0))
			Expect(testutil.ToFloat64(m.ingestTotal.WithLabelValues("error"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(m.reviewFlagged)).To(Equal(1.0))
		})

		It("tells empty exports from failed ones", func() {
			m.RecordExport("csv", 0, nil)
			m.RecordExport("csv", 3, nil)
			m.RecordExport("pdf", 0, errors.New("render"))

			Expect(testutil.ToFloat64(m.exportTotal.WithLabelValues("csv", "empty"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(m.exportTotal.WithLabelValues("csv", "success"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(m.exportTotal.WithLabelValues("pdf", "error"))).To(Equal(1.0))
		})
	})

	It("serves the registry", func() {
		m.RecordApproval()
		m.RecordDeletion()

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		body, err := io.ReadAll(rec.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(strings.Contains(string(body), "easy_receipt_receipts_approved_total 1")).To(BeTrue())
		Expect(string(body)).To(ContainSubstring("easy_receipt_receipts_deleted_total 1"))
	})
})
