// Package importer implements the bulk migration pipeline: heterogeneous
// spreadsheet and point-of-sale exports in, normalized tenant-scoped rows out.
// Raw rows flow through header normalization, value coercion, reference
// resolution and a referential precheck before the chunked upsert writes them.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ledgerline/api/internal/audit"
	"github.com/ledgerline/api/internal/config"
	"github.com/ledgerline/api/internal/middleware"
	"github.com/ledgerline/api/internal/notify"
	"github.com/ledgerline/api/internal/secure"
	"github.com/ledgerline/api/internal/store"
)

// DB is the slice of a pgx pool the pipeline talks to directly.
type DB interface {
	Execer
	Querier
}

// Refs loads the persisted lookup material an import run resolves against.
type Refs interface {
	ProductRefs(ctx context.Context, tenantID uuid.UUID) ([]store.EntityRef, error)
	ProductRefsByCodes(ctx context.Context, tenantID uuid.UUID, codes []string) ([]store.EntityRef, error)
	SupplierRefs(ctx context.Context, tenantID uuid.UUID) ([]store.EntityRef, error)
	TenantSlug(ctx context.Context, tenantID uuid.UUID) (string, error)
}

type Options struct {
	MissingRefStrategy     config.MissingReferenceStrategy
	AutoCreatePlaceholders bool
	FailedRowsDir          string
	MaxRows                int
}

type Deps struct {
	DB         DB
	Refs       Refs
	Auth       secure.Authorizer
	Keys       secure.KeyService
	Enc        secure.Encryptor
	Audit      *audit.Recorder
	Cache      notify.Invalidator
	Events     notify.Notifier
	Aggregates notify.AggregateResyncer
	Log        *slog.Logger
}

// Importer owns one pipeline instance per process. The schema catalog and the
// executor's constraint probes are the only state shared across runs.
type Importer struct {
	refs       Refs
	catalog    *Catalog
	exec       *Executor
	auth       secure.Authorizer
	keys       secure.KeyService
	enc        secure.Encryptor
	audit      *audit.Recorder
	cache      notify.Invalidator
	events     notify.Notifier
	aggregates notify.AggregateResyncer
	opts       Options
	log        *slog.Logger
}

func New(deps Deps, cfg config.Config) *Importer {
	return &Importer{
		refs:       deps.Refs,
		catalog:    NewCatalog(deps.DB, cfg.SchemaCacheTTL, deps.Log),
		exec:       NewExecutor(deps.DB, cfg.BulkChunkSize, deps.Log),
		auth:       deps.Auth,
		keys:       deps.Keys,
		enc:        deps.Enc,
		audit:      deps.Audit,
		cache:      deps.Cache,
		events:     deps.Events,
		aggregates: deps.Aggregates,
		opts: Options{
			MissingRefStrategy:     cfg.MissingRefStrategy,
			AutoCreatePlaceholders: cfg.AutoCreatePlaceholders,
			FailedRowsDir:          cfg.FailedRowsDir,
			MaxRows:                cfg.ImportMaxRows,
		},
		log: deps.Log,
	}
}

// ErrBatchTooLarge rejects batches beyond the configured row ceiling before
// any work happens.
var ErrBatchTooLarge = errors.New("importer: batch exceeds the configured row limit")

// Run dispatches one batch to the orchestrator for its entity kind.
func (im *Importer) Run(ctx context.Context, kind EntityKind, tenantID uuid.UUID, rows []RawRow) (Result, error) {
	if im.opts.MaxRows > 0 && len(rows) > im.opts.MaxRows {
		return Result{}, fmt.Errorf("%w: %d rows, limit %d", ErrBatchTooLarge, len(rows), im.opts.MaxRows)
	}

	switch kind {
	case KindInventory:
		return im.ImportInventory(ctx, tenantID, rows)
	case KindCustomers:
		return im.ImportCustomers(ctx, tenantID, rows)
	case KindSuppliers:
		return im.ImportSuppliers(ctx, tenantID, rows)
	case KindSales:
		return im.ImportSales(ctx, tenantID, rows)
	case KindExpenses:
		return im.ImportExpenses(ctx, tenantID, rows)
	default:
		return Result{}, fmt.Errorf("unknown entity kind %q", kind)
	}
}

func (im *Importer) authorize(ctx context.Context, kind EntityKind, tenantID uuid.UUID) (secure.Actor, error) {
	return im.auth.Authorize(ctx, "import:"+string(kind), "editor", tenantID)
}

// tableSchema is the per-run view of one target table: the candidate columns
// that actually exist right now and their declared types.
type tableSchema struct {
	table   string
	columns []string
	types   map[string]string
}

// schemaFor intersects the entity's candidate columns with the live table.
// Missing optional columns are silently dropped from the write set; a missing
// required column (or an unknown table) is fatal because the upsert's conflict
// key could not hold.
func (im *Importer) schemaFor(ctx context.Context, table string, candidates, required []string) (tableSchema, error) {
	existing := im.catalog.Columns(ctx, table)
	if len(existing) == 0 {
		return tableSchema{}, fmt.Errorf("table %q has no known columns", table)
	}
	for _, col := range required {
		if _, ok := existing[col]; !ok {
			return tableSchema{}, fmt.Errorf("table %q is missing required column %q", table, col)
		}
	}

	schema := tableSchema{table: table, types: im.catalog.ColumnTypes(ctx, table)}
	for _, col := range candidates {
		if _, ok := existing[col]; ok {
			schema.columns = append(schema.columns, col)
		}
	}
	return schema, nil
}

// record assembles one write-ready row. Typed values win over raw text; text
// values are coerced against the column's declared type. Every row produced
// from the same schema carries the identical column set, which the bulk
// statement builder relies on.
func (s tableSchema) record(typed map[string]any, text map[string]string) map[string]any {
	row := make(map[string]any, len(s.columns))
	for _, col := range s.columns {
		if v, ok := typed[col]; ok {
			row[col] = v
			continue
		}
		row[col] = Coerce(text[col], s.types[col])
	}
	return row
}

// exportFailures counts skipped rows and writes the operator-facing CSV.
func (im *Importer) exportFailures(ctx context.Context, tenantID uuid.UUID, kind EntityKind, failures []RefFailure, rep *reporter) {
	if len(failures) == 0 {
		return
	}
	rep.refFailures(failures)

	slug, err := im.refs.TenantSlug(ctx, tenantID)
	if err != nil {
		slug = tenantID.String()
	}
	path, err := writeFailedRowsCSV(im.opts.FailedRowsDir, slug, kind, failures)
	if err != nil {
		im.log.Warn("failed_rows_export_failed", "entity", kind, "error", err)
		rep.warning("failed-rows export unavailable: " + err.Error())
		return
	}
	rep.artifact = path
}

// finish runs the post-commit tail shared by every orchestrator: the audit
// record, then the best-effort notification steps, then the summary log line.
// Nothing here can fail the import that already committed.
func (im *Importer) finish(ctx context.Context, kind EntityKind, tenantID uuid.UUID, res Result, extra ...notify.Step) {
	_ = im.audit.Log(ctx, audit.Entry{
		TenantID:   tenantID,
		Action:     "import." + string(kind),
		EntityType: string(kind),
		RequestID:  middleware.RequestIDFromContext(ctx),
		Metadata:   map[string]any{"count": res.Count, "failed": res.Failed},
	})

	steps := []notify.Step{
		{Name: "invalidate:" + string(kind), Run: func(ctx context.Context) error {
			return im.cache.Invalidate(ctx, string(kind)+":"+tenantID.String())
		}},
		{Name: "notify:" + string(kind), Run: func(ctx context.Context) error {
			return im.events.Notify(ctx, tenantID, string(kind))
		}},
	}
	steps = append(steps, extra...)
	notify.RunAll(ctx, im.log, steps)

	logResult(ctx, im.log, kind, tenantID, res)
}
