package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zombor/easy-receipt/internal/export"
	"github.com/zombor/easy-receipt/internal/receipt"
	"github.com/zombor/easy-receipt/internal/scanning"
)

// maxUploadSize handles high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error  string                 `json:"error"`
	Fields []receipt.FieldProblem `json:"fields,omitempty"`
}

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError maps an error kind to its status code
func writeError(w http.ResponseWriter, err error) {
	var (
		validation *receipt.ValidationError
		notFound   *receipt.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Error(), Fields: validation.Problems})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFound.Error()})
	case errors.Is(err, receipt.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, receipt.ErrIngestion):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	case errors.Is(err, export.ErrRender):
		slog.Error("Export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Request cancelled"})
	default:
		slog.Error("Internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}

// handleListReceipts returns receipts matching the status and category query
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	filter, err := receipt.NewFilter(r.URL.Query().Get("status"), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	receipts, err := s.service.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if receipts == nil {
		receipts = []*receipt.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleStats returns counts and totals over all receipts
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleUploadReceipt stores, scans and creates a receipt from a multipart "file" part
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.")
			return
		}
		badRequest(w, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		if errors.Is(err, http.ErrMissingFile) {
			badRequest(w, "No file was selected. Please choose a file to upload.")
			return
		}
		badRequest(w, "No file provided")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error reading file. Please try again."})
		return
	}
	if len(data) == 0 {
		badRequest(w, "The uploaded file is empty.")
		return
	}

	contentType := scanning.DetectContentType(header.Filename, header.Header.Get("Content-Type"))
	created, err := s.service.Ingest(r.Context(), header.Filename, data, contentType)
	if err != nil {
		s.metrics.RecordIngest(err, false)
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		writeError(w, err)
		return
	}
	s.metrics.RecordIngest(nil, created.NeedsReview)
	writeJSON(w, http.StatusCreated, created)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	found, err := s.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// handleUpdateReceipt applies an edit; "status":"APPROVED" approves in the same call
func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	patch, ok := readPatch(w, r)
	if !ok {
		return
	}
	s.update(w, r, patch, patch.Approve)
}

// handleApproveReceipt approves a receipt, applying an optional patch first
func (s *Server) handleApproveReceipt(w http.ResponseWriter, r *http.Request) {
	patch, ok := readPatch(w, r)
	if !ok {
		return
	}
	s.update(w, r, patch, true)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, patch receipt.Patch, approve bool) {
	id := r.PathValue("id")
	var (
		updated *receipt.Receipt
		err     error
	)
	if approve {
		updated, err = s.service.Approve(r.Context(), id, patch)
	} else {
		updated, err = s.service.Update(r.Context(), id, patch)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if approve {
		s.metrics.RecordApproval()
	}
	writeJSON(w, http.StatusOK, updated)
}

func readPatch(w http.ResponseWriter, r *http.Request) (receipt.Patch, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		badRequest(w, "Invalid request body")
		return receipt.Patch{}, false
	}
	patch, err := decodePatch(body)
	if err != nil {
		writeError(w, err)
		return receipt.Patch{}, false
	}
	return patch, true
}

// handleGetReceiptFile returns the original upload for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.File(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, receipt.ErrNotFound) {
			writeError(w, err)
			return
		}
		slog.Error("Error reading receipt file", "id", r.PathValue("id"), "error", err)
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "File not found"})
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt and its file
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	s.metrics.RecordDeletion()
	w.WriteHeader(http.StatusNoContent)
}

// handleExport renders approved receipts matching the query as a file download
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, err)
		return
	}
	filter, err := receipt.NewFilter(r.URL.Query().Get("status"), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}

	receipts, err := s.service.List(r.Context(), receipt.Filter{})
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.engine.Export(r.Context(), receipts, format, filter)
	if err != nil {
		s.metrics.RecordExport(string(format), 0, err)
		writeError(w, err)
		return
	}
	s.metrics.RecordExport(string(format), result.Rows, nil)

	if !result.Empty() {
		run := &receipt.ExportRun{
			Format:     string(result.Format),
			Filename:   result.Filename,
			ReceiptIDs: result.ReceiptIDs,
			Rows:       result.Rows,
			GrossTotal: result.GrossTotal,
		}
		if _, err := s.service.RecordExport(r.Context(), run); err != nil {
			slog.Warn("Could not record export run", "filename", result.Filename, "error", err)
		}
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("X-Export-Rows", strconv.Itoa(result.Rows))
	if result.Empty() {
		w.Header().Set("X-Export-Empty", "true")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(result.Data)
}

// handleListExports returns the export history
func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListExports(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*receipt.ExportRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
