package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UpsertReport accounts for every row handed to Upsert:
// Success + Failed == len(rows), always.
type UpsertReport struct {
	Success int
	Failed  int
	Errors  []string
}

// Executor writes normalized rows in fixed-size chunks with one set-based
// upsert statement per chunk. The conflict key is chosen by an upfront probe
// of pg_constraint (tenant+natural-key when that unique constraint exists,
// natural-key alone otherwise); a conflict-shape error at execution time
// still triggers a one-shot retry under the secondary key, covering races
// with concurrent DDL. Any other bulk failure demotes the remainder of the
// run to per-row inserts so the exact failing rows can be reported while the
// good ones still commit.
type Executor struct {
	db        Execer
	chunkSize int
	log       *slog.Logger

	mu     sync.Mutex
	probes map[string]bool
}

func NewExecutor(db Execer, chunkSize int, log *slog.Logger) *Executor {
	if chunkSize < 1 {
		chunkSize = 2000
	}
	return &Executor{db: db, chunkSize: chunkSize, log: log, probes: make(map[string]bool)}
}

func (e *Executor) Upsert(ctx context.Context, table string, rows []map[string]any, primaryKeys, secondaryKeys []string) UpsertReport {
	report := UpsertReport{}
	if len(rows) == 0 {
		return report
	}

	columns := columnOrder(rows[0])
	conflictKeys := primaryKeys
	if !e.hasUniqueConstraint(ctx, table, primaryKeys) {
		conflictKeys = secondaryKeys
	}

	bulkDisabled := false
	for start := 0; start < len(rows); start += e.chunkSize {
		end := start + e.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		if !bulkDisabled {
			err := e.execChunk(ctx, table, columns, chunk, conflictKeys)
			if err != nil && isConflictShapeError(err) && !equalKeys(conflictKeys, secondaryKeys) {
				e.log.Warn("bulk_upsert_conflict_key_switch", "table", table, "error", err)
				conflictKeys = secondaryKeys
				err = e.execChunk(ctx, table, columns, chunk, conflictKeys)
			}
			if err == nil {
				report.Success += len(chunk)
				continue
			}
			bulkDisabled = true
			e.log.Warn("bulk_upsert_row_fallback", "table", table, "rows", len(chunk), "error", err)
		}

		for i, row := range chunk {
			if err := e.execChunk(ctx, table, columns, []map[string]any{row}, conflictKeys); err != nil {
				report.Failed++
				report.Errors = append(report.Errors,
					fmt.Sprintf("%s row %d: %s", table, start+i+1, compactError(err)))
				continue
			}
			report.Success++
		}
	}

	return report
}

func (e *Executor) execChunk(ctx context.Context, table string, columns []string, chunk []map[string]any, conflictKeys []string) error {
	sql, args := buildUpsertSQL(table, columns, chunk, conflictKeys)
	_, err := e.db.Exec(ctx, sql, args...)
	return err
}

func buildUpsertSQL(table string, columns []string, chunk []map[string]any, conflictKeys []string) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(chunk)*len(columns))

	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	for i, row := range chunk {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, row[col])
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteString(")")
	}

	b.WriteString(" ON CONFLICT (")
	b.WriteString(strings.Join(conflictKeys, ", "))
	b.WriteString(")")

	conflictSet := make(map[string]struct{}, len(conflictKeys))
	for _, k := range conflictKeys {
		conflictSet[k] = struct{}{}
	}
	updates := make([]string, 0, len(columns))
	for _, col := range columns {
		if _, isKey := conflictSet[col]; isKey {
			continue
		}
		updates = append(updates, col+" = EXCLUDED."+col)
	}
	if len(updates) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET ")
		b.WriteString(strings.Join(updates, ", "))
	}

	return b.String(), args
}

// hasUniqueConstraint asks pg_constraint whether a unique or primary-key
// constraint covers exactly the given columns. Results are cached per
// (table, column set) for the executor's lifetime.
func (e *Executor) hasUniqueConstraint(ctx context.Context, table string, cols []string) bool {
	sorted := append([]string(nil), cols...)
	sort.Strings(sorted)
	cacheKey := table + "|" + strings.Join(sorted, ",")

	e.mu.Lock()
	cached, ok := e.probes[cacheKey]
	e.mu.Unlock()
	if ok {
		return cached
	}

	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM pg_constraint c
			JOIN pg_class t ON t.oid = c.conrelid
			WHERE t.relname = $1
			  AND c.contype IN ('p', 'u')
			  AND (
				SELECT array_agg(a.attname::text ORDER BY a.attname)
				FROM unnest(c.conkey) AS k(attnum)
				JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
			  ) = $2::text[]
		)`

	var exists bool
	if err := e.db.QueryRow(ctx, q, table, sorted).Scan(&exists); err != nil {
		e.log.Warn("constraint_probe_failed", "table", table, "error", err)
		// Assume the primary shape and let the runtime backstop switch keys.
		exists = true
	}

	e.mu.Lock()
	e.probes[cacheKey] = exists
	e.mu.Unlock()
	return exists
}

// isConflictShapeError reports whether the error means the ON CONFLICT target
// does not match any unique constraint on the table.
func isConflictShapeError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 42704 undefined_object, 42P10 invalid_column_reference.
	return pgErr.Code == "42704" || pgErr.Code == "42P10"
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func columnOrder(row map[string]any) []string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func compactError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}
	return err.Error()
}
