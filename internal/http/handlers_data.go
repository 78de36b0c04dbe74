package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"

	"dailyledger/internal/log"
	"dailyledger/internal/records"
)

// maxImportBody bounds uploaded ledger files.
const maxImportBody = 10 << 20

// handleExport streams the selected records as CSV, JSON or XLSX.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	q := r.URL.Query()

	format := records.FormatCSV
	if v := q.Get("format"); v != "" {
		f, err := records.ParseFormat(v)
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		format = f
	}
	sel, err := ParseSelection(q)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var buf bytes.Buffer
	n, err := s.svc.Export(r.Context(), &buf, format, sel)
	if err != nil {
		s.structured.LogError(r.Context(), "Export failed", err, log.ComponentHTTP, log.OpExport,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
		InternalServerError("Could not export the ledger").Write(w)
		return
	}

	name := fmt.Sprintf("ledger-%s.%s", s.svc.Store().Today(), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Record-Count", fmt.Sprint(n))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// handleImport merges an uploaded file into the ledger. The file comes either
// as the "file" field of a multipart form or as the raw request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)

	body, filename, err := importSource(r)
	if err != nil {
		s.importFailed(w, r, http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	format := records.FormatFromPath(filename)
	if v := r.URL.Query().Get("format"); v != "" {
		if format, err = records.ParseFormat(v); err != nil {
			s.importFailed(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	res, err := s.svc.Import(ctx, body, format)
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		s.importFailed(w, r, http.StatusRequestEntityTooLarge, "file too large")
		return
	case errors.Is(err, records.ErrMalformed):
		s.importFailed(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.structured.LogError(ctx, "Import failed", err, log.ComponentHTTP, log.OpImport, nil)
		s.importFailed(w, r, http.StatusInternalServerError, "the import could not be saved")
		return
	}

	atomic.AddInt64(&s.appMetrics.imports, 1)
	s.invalidateReports()

	msg := fmt.Sprintf("Imported %d new and %d replaced records", res.Added, res.Replaced)
	resp := NewHTMXResponse().TriggerLedgerUpdated("").TriggerSuccessNotification(msg)
	if wantsJSON(r) {
		resp.BodyJSON(map[string]int{"added": res.Added, "replaced": res.Replaced}).Write(w)
		return
	}
	resp.BodyNotice(NotificationSuccess, msg).Write(w)
}

func (s *Server) importFailed(w http.ResponseWriter, r *http.Request, code int, msg string) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Import rejected",
		log.FieldOperation, log.OpImport, log.FieldError, msg)
	if wantsJSON(r) {
		JSONError(code, msg).Write(w)
		return
	}
	ErrorResponse(code, "Import failed: "+msg).Write(w)
}

// importSource returns the uploaded content and, when known, its file name.
func importSource(r *http.Request) (io.ReadCloser, string, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.Body, "", nil
	}
	if err := r.ParseMultipartForm(maxImportBody); err != nil {
		return nil, "", fmt.Errorf("invalid upload: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("missing file field")
	}
	return file, uploadName(header), nil
}

func uploadName(h *multipart.FileHeader) string {
	if h == nil {
		return ""
	}
	return filepath.Base(h.Filename)
}

// handleClear empties the ledger.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if err := s.svc.Clear(r.Context()); err != nil {
		s.structured.LogError(r.Context(), "Clear failed", err, log.ComponentHTTP, log.OpClear, nil)
		if wantsJSON(r) {
			JSONError(http.StatusInternalServerError, "the ledger could not be cleared").Write(w)
			return
		}
		InternalServerError("The ledger could not be cleared").Write(w)
		return
	}
	s.invalidateReports()

	resp := NewHTMXResponse().TriggerLedgerUpdated("").TriggerSuccessNotification("Ledger cleared")
	if wantsJSON(r) {
		resp.BodyJSON(map[string]string{"status": "cleared"}).Write(w)
		return
	}
	resp.BodyNotice(NotificationSuccess, "Ledger cleared").Write(w)
}
