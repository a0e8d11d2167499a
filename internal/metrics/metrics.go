// Package metrics exposes Prometheus metrics for the receipt server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "easy_receipt"

// Metrics holds every collector on a private registry
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ingestTotal    *prometheus.CounterVec
	reviewFlagged  prometheus.Counter
	approvalsTotal prometheus.Counter
	deletionsTotal prometheus.Counter
	exportTotal    *prometheus.CounterVec
	exportRows     *prometheus.HistogramVec
}

// New registers all collectors, plus Go runtime and process collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Number of in-flight HTTP requests.",
			},
		),
		ingestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "receipts",
				Name:      "ingested_total",
				Help:      "Uploaded receipts by outcome.",
			},
			[]string{"status"},
		),
		reviewFlagged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "receipts",
				Name:      "review_flagged_total",
				Help:      "Ingested receipts flagged for human review.",
			},
		),
		approvalsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "receipts",
				Name:      "approved_total",
				Help:      "Successful approvals.",
			},
		),
		deletionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "receipts",
				Name:      "deleted_total",
				Help:      "Deleted receipts.",
			},
		),
		exportTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "export",
				Name:      "runs_total",
				Help:      "Export runs by format and outcome.",
			},
			[]string{"format", "outcome"},
		),
		exportRows: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "export",
				Name:      "rows",
				Help:      "Rows per successful export.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"format"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.ingestTotal,
		m.reviewFlagged,
		m.approvalsTotal,
		m.deletionsTotal,
		m.exportTotal,
		m.exportRows,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records count and latency per route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		// the mux fills in the matched pattern, which keeps ids out of the labels
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordIngest counts one upload and whether it was flagged for review
func (m *Metrics) RecordIngest(err error, needsReview bool) {
	if err != nil {
		m.ingestTotal.WithLabelValues("error").Inc()
		return
	}
	m.ingestTotal.WithLabelValues("success").Inc()
	if needsReview {
		m.reviewFlagged.Inc()
	}
}

// RecordApproval counts one approval
func (m *Metrics) RecordApproval() {
	m.approvalsTotal.Inc()
}

// RecordDeletion counts one deletion
func (m *Metrics) RecordDeletion() {
	m.deletionsTotal.Inc()
}

// RecordExport counts an export run. Empty exports are counted apart from failures.
func (m *Metrics) RecordExport(format string, rows int, err error) {
	switch {
	case err != nil:
		m.exportTotal.WithLabelValues(format, "error").Inc()
		return
	case rows == 0:
		m.exportTotal.WithLabelValues(format, "empty").Inc()
	default:
		m.exportTotal.WithLabelValues(format, "success").Inc()
	}
	m.exportRows.WithLabelValues(format).Observe(float64(rows))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
