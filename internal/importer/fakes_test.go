package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ledgerline/api/internal/audit"
	"github.com/ledgerline/api/internal/config"
	"github.com/ledgerline/api/internal/notify"
	"github.com/ledgerline/api/internal/secure"
	"github.com/ledgerline/api/internal/store"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB answers schema catalog queries from a fixture, constraint probes
// from a flag, and records every Exec so tests can assert on the writes.
type fakeDB struct {
	schemas  map[string][][2]string
	noProbe  bool
	execErr  func(sql string, args []any) error
	calls    []execCall
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.execErr != nil {
		if err := f.execErr(sql, args); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return fakeRow{value: !f.noProbe}
}

func (f *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	table, _ := args[0].(string)
	return &fakeRows{cols: f.schemas[table]}, nil
}

func (f *fakeDB) execsFor(table string) []execCall {
	var matched []execCall
	for _, call := range f.calls {
		if strings.HasPrefix(call.sql, "INSERT INTO "+table+" ") {
			matched = append(matched, call)
		}
	}
	return matched
}

type fakeRow struct{ value bool }

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) == 1 {
		if b, ok := dest[0].(*bool); ok {
			*b = r.value
			return nil
		}
	}
	return errors.New("fakeRow: unsupported scan target")
}

type fakeRows struct {
	cols [][2]string
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.cols)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.cols[r.idx-1]
	name, ok1 := dest[0].(*string)
	typ, ok2 := dest[1].(*string)
	if !ok1 || !ok2 {
		return errors.New("fakeRows: unsupported scan targets")
	}
	*name, *typ = row[0], row[1]
	return nil
}

type fakeRefs struct {
	products []store.EntityRef
	created  map[string]store.EntityRef
	slug     string
}

func (f *fakeRefs) ProductRefs(_ context.Context, _ uuid.UUID) ([]store.EntityRef, error) {
	return f.products, nil
}

func (f *fakeRefs) SupplierRefs(_ context.Context, _ uuid.UUID) ([]store.EntityRef, error) {
	return nil, nil
}

func (f *fakeRefs) ProductRefsByCodes(_ context.Context, _ uuid.UUID, codes []string) ([]store.EntityRef, error) {
	if f.created == nil {
		f.created = map[string]store.EntityRef{}
	}
	refs := make([]store.EntityRef, 0, len(codes))
	for _, code := range codes {
		ref, ok := f.created[code]
		if !ok {
			ref = store.EntityRef{ID: uuid.New(), Code: code}
			f.created[code] = ref
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (f *fakeRefs) TenantSlug(_ context.Context, _ uuid.UUID) (string, error) {
	if f.slug == "" {
		return "acme", nil
	}
	return f.slug, nil
}

type fakeKeys struct {
	key []byte
	err error
}

func (f fakeKeys) TenantKey(_ context.Context, _ uuid.UUID) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.key, nil
}

func testSchemas() map[string][][2]string {
	return map[string][][2]string{
		"products": {
			{"id", "uuid"}, {"tenant_id", "uuid"}, {"code", "text"}, {"name", "text"},
			{"category", "text"}, {"unit", "text"}, {"quantity", "numeric"},
			{"cost_price", "numeric"}, {"selling_price", "numeric"},
			{"tax_rate", "numeric"}, {"reorder_level", "numeric"},
		},
		"customers": {
			{"id", "uuid"}, {"tenant_id", "uuid"}, {"customer_code", "text"}, {"name", "text"},
			{"email", "text"}, {"phone", "text"}, {"address", "text"}, {"opening_balance", "numeric"},
		},
		"suppliers": {
			{"id", "uuid"}, {"tenant_id", "uuid"}, {"supplier_code", "text"}, {"name", "text"},
			{"email", "text"}, {"phone", "text"}, {"address", "text"}, {"gst_number", "text"},
		},
		"sales": {
			{"id", "uuid"}, {"tenant_id", "uuid"}, {"receipt_number", "text"}, {"product_id", "uuid"},
			{"customer_name", "text"}, {"quantity", "numeric"}, {"unit_price", "numeric"},
			{"total", "numeric"}, {"tax_amount", "numeric"}, {"payment_method", "text"},
			{"sale_date", "date"}, {"sold_at", "timestamp with time zone"},
		},
		"expenses": {
			{"id", "uuid"}, {"tenant_id", "uuid"}, {"expense_code", "text"}, {"category", "text"},
			{"description", "text"}, {"amount", "numeric"}, {"tax_amount", "numeric"},
			{"payment_method", "text"}, {"expense_date", "date"},
		},
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		BulkChunkSize:      2000,
		MissingRefStrategy: config.MissingRefSkip,
		SchemaCacheTTL:     time.Minute,
		FailedRowsDir:      t.TempDir(),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestImporter(db *fakeDB, refs Refs, keys secure.KeyService, cfg config.Config) *Importer {
	logger := discardLogger()
	sink := notify.LogSink{Log: logger}
	return New(Deps{
		DB:         db,
		Refs:       refs,
		Auth:       secure.TrustedAuthorizer{},
		Keys:       keys,
		Enc:        secure.AEADEncryptor{},
		Audit:      audit.NewRecorder(db, logger),
		Cache:      sink,
		Events:     sink,
		Aggregates: sink,
		Log:        logger,
	}, cfg)
}
