package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ledgerline/api/internal/audit"
	"github.com/ledgerline/api/internal/config"
	"github.com/ledgerline/api/internal/importer"
	"github.com/ledgerline/api/internal/middleware"
	"github.com/ledgerline/api/internal/notify"
	"github.com/ledgerline/api/internal/secure"
	"github.com/ledgerline/api/internal/store"
)

type stubDB struct{}

func (stubDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (stubDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return stubRow{}
}

func (stubDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	if table, _ := args[0].(string); table == "products" {
		return &stubRows{cols: [][2]string{
			{"tenant_id", "uuid"}, {"code", "text"}, {"name", "text"}, {"quantity", "numeric"},
		}}, nil
	}
	return &stubRows{}, nil
}

type stubRow struct{}

func (stubRow) Scan(dest ...any) error {
	if len(dest) == 1 {
		if b, ok := dest[0].(*bool); ok {
			*b = true
			return nil
		}
	}
	return errors.New("unsupported scan")
}

type stubRows struct {
	cols [][2]string
	idx  int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	r.idx++
	return r.idx <= len(r.cols)
}

func (r *stubRows) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.cols[r.idx-1][0]
	*(dest[1].(*string)) = r.cols[r.idx-1][1]
	return nil
}

type stubRefs struct{}

func (stubRefs) ProductRefs(context.Context, uuid.UUID) ([]store.EntityRef, error)  { return nil, nil }
func (stubRefs) SupplierRefs(context.Context, uuid.UUID) ([]store.EntityRef, error) { return nil, nil }
func (stubRefs) ProductRefsByCodes(context.Context, uuid.UUID, []string) ([]store.EntityRef, error) {
	return nil, nil
}
func (stubRefs) TenantSlug(context.Context, uuid.UUID) (string, error) { return "acme", nil }

type stubKeys struct{}

func (stubKeys) TenantKey(context.Context, uuid.UUID) ([]byte, error) {
	return nil, secure.ErrNoTenantKey
}

func testServer(t *testing.T) (*Server, middleware.Actor) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		ImportMaxFileBytes: 1 << 20,
		ImportMaxRows:      1000,
		BulkChunkSize:      100,
		MissingRefStrategy: config.MissingRefSkip,
		FailedRowsDir:      t.TempDir(),
	}
	sink := notify.LogSink{Log: logger}
	imp := importer.New(importer.Deps{
		DB:         stubDB{},
		Refs:       stubRefs{},
		Auth:       secure.TrustedAuthorizer{},
		Keys:       stubKeys{},
		Enc:        secure.AEADEncryptor{},
		Audit:      audit.NewRecorder(stubDB{}, logger),
		Cache:      sink,
		Events:     sink,
		Aggregates: sink,
		Log:        logger,
	}, cfg)

	actor := middleware.Actor{
		KeyID:      uuid.New(),
		TenantID:   uuid.New(),
		TenantSlug: "acme",
		Role:       "editor",
	}
	return NewServer(cfg, imp, logger), actor
}

func serve(s *Server, actor middleware.Actor, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Post("/api/imports/{entity}", s.CreateImport)
	r.Get("/api/imports/failed/{name}", s.DownloadFailedRows)

	rr := httptest.NewRecorder()
	req = req.WithContext(middleware.WithActor(req.Context(), actor))
	r.ServeHTTP(rr, req)
	return rr
}

func TestCreateImportCSVUpload(t *testing.T) {
	s, actor := testServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "stock.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, "Item Name,Qty\nCoffee,2\nTea,1\n"); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/imports/inventory", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := serve(s, actor, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var res importer.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Count != 2 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestCreateImportJSONBody(t *testing.T) {
	s, actor := testServer(t)

	payload := `[{"Item Name":"Coffee","Qty":"2"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/imports/inventory", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := serve(s, actor, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestCreateImportRejectsUnknownEntity(t *testing.T) {
	s, actor := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/imports/payroll", strings.NewReader("[]"))
	req.Header.Set("Content-Type", "application/json")
	rr := serve(s, actor, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCreateImportRejectsUnsupportedFileType(t *testing.T) {
	s, actor := testServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "stock.pdf")
	_, _ = io.WriteString(part, "%PDF-1.4")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/imports/inventory", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := serve(s, actor, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestDownloadFailedRowsScopedToTenant(t *testing.T) {
	s, actor := testServer(t)

	name := actor.TenantSlug + "-sales-failed-20240921T120000.csv"
	path := filepath.Join(s.Cfg.FailedRowsDir, name)
	if err := os.WriteFile(path, []byte("row_number,reference_id,reference_label,reason\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/imports/failed/"+name, nil)
	rr := serve(s, actor, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type = %q", ct)
	}

	otherName := "other-tenant-sales-failed-20240921T120000.csv"
	otherPath := filepath.Join(s.Cfg.FailedRowsDir, otherName)
	if err := os.WriteFile(otherPath, []byte("data\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/imports/failed/"+otherName, nil)
	rr = serve(s, actor, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("cross-tenant export must 404, got %d", rr.Code)
	}
}
