package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func upsertRows(n int, bad map[int]bool) []map[string]any {
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		code := "SKU-" + strings.Repeat("0", 2) + string(rune('A'+i))
		if bad[i] {
			code = "bad"
		}
		rows = append(rows, map[string]any{"tenant_id": "t1", "code": code, "name": "Item"})
	}
	return rows
}

func TestUpsertBulkSuccess(t *testing.T) {
	db := &fakeDB{}
	exec := NewExecutor(db, 2, discardLogger())

	report := exec.Upsert(context.Background(), "products", upsertRows(5, nil),
		[]string{"tenant_id", "code"}, []string{"code"})

	if report.Success != 5 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	// 5 rows at chunk size 2 is 3 statements.
	if calls := db.execsFor("products"); len(calls) != 3 {
		t.Fatalf("expected 3 chunked statements, got %d", len(calls))
	}
	first := db.execsFor("products")[0]
	if !strings.Contains(first.sql, "ON CONFLICT (tenant_id, code)") {
		t.Fatalf("expected primary conflict key, got %s", first.sql)
	}
	if !strings.Contains(first.sql, "DO UPDATE SET name = EXCLUDED.name") {
		t.Fatalf("expected update of non-key columns, got %s", first.sql)
	}
}

func TestUpsertProbeSelectsSecondaryKey(t *testing.T) {
	db := &fakeDB{noProbe: true}
	exec := NewExecutor(db, 10, discardLogger())

	exec.Upsert(context.Background(), "products", upsertRows(2, nil),
		[]string{"tenant_id", "code"}, []string{"code"})

	first := db.execsFor("products")[0]
	if !strings.Contains(first.sql, "ON CONFLICT (code)") {
		t.Fatalf("expected secondary conflict key after negative probe, got %s", first.sql)
	}
}

func TestUpsertConflictShapeRetry(t *testing.T) {
	attempts := 0
	db := &fakeDB{}
	db.execErr = func(sql string, _ []any) error {
		if !strings.HasPrefix(sql, "INSERT INTO products") {
			return nil
		}
		attempts++
		if attempts == 1 {
			return &pgconn.PgError{Code: "42704", Message: "constraint does not exist"}
		}
		return nil
	}
	exec := NewExecutor(db, 10, discardLogger())

	report := exec.Upsert(context.Background(), "products", upsertRows(3, nil),
		[]string{"tenant_id", "code"}, []string{"code"})

	if report.Success != 3 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	calls := db.execsFor("products")
	if len(calls) != 2 {
		t.Fatalf("expected retry under the secondary key, got %d calls", len(calls))
	}
	if !strings.Contains(calls[1].sql, "ON CONFLICT (code)") {
		t.Fatalf("retry should use the secondary key, got %s", calls[1].sql)
	}
}

func TestUpsertRowFallbackAccountsForEveryRow(t *testing.T) {
	db := &fakeDB{}
	db.execErr = func(sql string, args []any) error {
		if !strings.HasPrefix(sql, "INSERT INTO products") {
			return nil
		}
		for _, arg := range args {
			if arg == "bad" {
				return errors.New("value out of range")
			}
		}
		return nil
	}
	exec := NewExecutor(db, 10, discardLogger())

	rows := upsertRows(6, map[int]bool{1: true, 4: true})
	report := exec.Upsert(context.Background(), "products", rows,
		[]string{"tenant_id", "code"}, []string{"code"})

	if report.Success+report.Failed != len(rows) {
		t.Fatalf("accounting broken: %+v over %d rows", report, len(rows))
	}
	if report.Failed != 2 {
		t.Fatalf("expected 2 failed rows, got %+v", report)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("expected 2 row errors, got %v", report.Errors)
	}
	if !strings.Contains(report.Errors[0], "products row 2") {
		t.Fatalf("error should name the failing row: %v", report.Errors)
	}
}

func TestUpsertEmptyBatch(t *testing.T) {
	db := &fakeDB{}
	exec := NewExecutor(db, 10, discardLogger())
	report := exec.Upsert(context.Background(), "products", nil,
		[]string{"tenant_id", "code"}, []string{"code"})
	if report.Success != 0 || report.Failed != 0 || len(db.calls) != 0 {
		t.Fatalf("empty batch should be a no-op, got %+v", report)
	}
}

func TestBuildUpsertSQLAllKeyColumns(t *testing.T) {
	sql, args := buildUpsertSQL("t", []string{"a", "b"},
		[]map[string]any{{"a": 1, "b": 2}}, []string{"a", "b"})
	if !strings.HasSuffix(sql, "DO NOTHING") {
		t.Fatalf("all-key upsert should DO NOTHING, got %s", sql)
	}
	if len(args) != 2 {
		t.Fatalf("args = %v", args)
	}
}
