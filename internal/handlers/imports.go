package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/api/internal/httpx"
	"github.com/ledgerline/api/internal/importer"
	"github.com/ledgerline/api/internal/middleware"
	"github.com/ledgerline/api/internal/secure"
)

// CreateImport handles POST /api/imports/{entity}. The body is either a
// multipart upload carrying one CSV or XLSX file under the "file" field, or a
// bare JSON array of raw rows. The tenant comes from the authenticated API
// key, never from the payload.
func (s *Server) CreateImport(w http.ResponseWriter, r *http.Request) {
	kind, err := importer.ParseEntityKind(chi.URLParam(r, "entity"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "unknown_entity",
			"Entity must be one of inventory, customers, suppliers, sales, expenses", nil)
		return
	}

	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
		return
	}

	rows, err := s.readRows(r)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_payload", err.Error(), nil)
		return
	}

	result, err := s.Importer.Run(r.Context(), kind, actor.TenantID, rows)
	if err != nil {
		s.writeImportError(w, r, kind, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) writeImportError(w http.ResponseWriter, r *http.Request, kind importer.EntityKind, err error) {
	var abort *importer.AbortError
	switch {
	case errors.As(err, &abort):
		httpx.WriteError(w, r, http.StatusUnprocessableEntity, "unresolved_references",
			abort.Error(), map[string]any{"unresolved": abort.Unresolved})
	case errors.Is(err, secure.ErrUnauthorized):
		httpx.WriteError(w, r, http.StatusForbidden, "forbidden", "Role does not permit imports", nil)
	case errors.Is(err, importer.ErrBatchTooLarge):
		httpx.WriteError(w, r, http.StatusRequestEntityTooLarge, "batch_too_large", err.Error(), nil)
	default:
		s.Log.Error("import_failed", "entity", kind, "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "import_failed",
			"Import could not be completed", nil)
	}
}

func (s *Server) readRows(r *http.Request) ([]importer.RawRow, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "multipart/form-data" {
		return s.readFileRows(r)
	}

	var rows []importer.RawRow
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		return nil, errors.New("body must be a JSON array of row objects or a multipart file upload")
	}
	return rows, nil
}

func (s *Server) readFileRows(r *http.Request) ([]importer.RawRow, error) {
	if err := r.ParseMultipartForm(s.Cfg.ImportMaxFileBytes); err != nil {
		return nil, errors.New("multipart body could not be parsed or exceeds the size limit")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New(`multipart upload must carry a "file" field`)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		return importer.ReadCSVRows(file, s.Cfg.ImportMaxRows)
	case ".xlsx":
		return importer.ReadXLSXRows(file, s.Cfg.ImportMaxRows)
	default:
		return nil, errors.New("unsupported file type; expected .csv or .xlsx")
	}
}

// DownloadFailedRows handles GET /api/imports/failed/{name}. Exports are
// named after the tenant slug, and a caller may only fetch its own.
func (s *Server) DownloadFailedRows(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
		return
	}

	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) || !strings.HasSuffix(name, ".csv") ||
		!strings.HasPrefix(name, actor.TenantSlug+"-") {
		httpx.WriteError(w, r, http.StatusNotFound, "not_found", "No such export", nil)
		return
	}

	file, err := os.Open(filepath.Join(s.Cfg.FailedRowsDir, name))
	if err != nil {
		httpx.WriteError(w, r, http.StatusNotFound, "not_found", "No such export", nil)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, file)
}
