// Package server exposes the receipt lifecycle and exports over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zombor/easy-receipt/internal/export"
	"github.com/zombor/easy-receipt/internal/metrics"
	"github.com/zombor/easy-receipt/internal/receipt"
)

// ReceiptService is the part of receipt.Service the handlers need
type ReceiptService interface {
	Ingest(ctx context.Context, filename string, data []byte, contentType string) (*receipt.Receipt, error)
	Get(ctx context.Context, id string) (*receipt.Receipt, error)
	List(ctx context.Context, f receipt.Filter) ([]*receipt.Receipt, error)
	Update(ctx context.Context, id string, patch receipt.Patch) (*receipt.Receipt, error)
	Approve(ctx context.Context, id string, patch receipt.Patch) (*receipt.Receipt, error)
	Delete(ctx context.Context, id string) error
	File(ctx context.Context, id string) ([]byte, string, error)
	Stats(ctx context.Context) (*receipt.Stats, error)
	RecordExport(ctx context.Context, run *receipt.ExportRun) (*receipt.ExportRun, error)
	ListExports(ctx context.Context) ([]*receipt.ExportRun, error)
}

// Server handles HTTP requests for receipts and exports
type Server struct {
	service ReceiptService
	engine  *export.Engine
	metrics *metrics.Metrics
	mux     *http.ServeMux
	handler http.Handler
}

// NewServer creates a new Server with default mux
func NewServer(service ReceiptService, engine *export.Engine, m *metrics.Metrics) *Server {
	return NewServerWithMux(service, engine, m, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service ReceiptService, engine *export.Engine, m *metrics.Metrics, mux *http.ServeMux) *Server {
	if engine == nil {
		engine = export.NewEngine()
	}
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		service: service,
		engine:  engine,
		metrics: m,
		mux:     mux,
	}
	s.registerRoutes()
	s.handler = s.metrics.Middleware(corsMiddleware(s.mux))
	return s
}

// corsMiddleware adds CORS headers to responses and answers preflight requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Export-Rows, X-Export-Empty")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/receipts/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/receipts/{id}/file", s.handleGetReceiptFile)
	s.mux.HandleFunc("GET /api/receipts/{id}/download", s.handleGetReceiptFile)
	s.mux.HandleFunc("POST /api/receipts/{id}/approve", s.handleApproveReceipt)
	s.mux.HandleFunc("GET /api/receipts/{id}", s.handleGetReceipt)
	s.mux.HandleFunc("PUT /api/receipts/{id}", s.handleUpdateReceipt)
	s.mux.HandleFunc("DELETE /api/receipts/{id}", s.handleDeleteReceipt)
	s.mux.HandleFunc("POST /api/receipts/upload", s.handleUploadReceipt)
	s.mux.HandleFunc("GET /api/receipts", s.handleListReceipts)
	s.mux.HandleFunc("POST /api/receipts", s.handleUploadReceipt)

	s.mux.HandleFunc("GET /api/export/{format}", s.handleExport)
	s.mux.HandleFunc("GET /api/exports", s.handleListExports)

	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

// Run serves on addr until ctx is cancelled, then drains open requests
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
