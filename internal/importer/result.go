package importer

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
)

// Result is the caller-facing summary of one import run. Immutable once
// returned; Count+Failed always equals the number of input rows.
type Result struct {
	Success        bool     `json:"success"`
	Count          int      `json:"count"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors"`
	FailedRowsPath string   `json:"failedRowsPath,omitempty"`
}

// reporter accumulates per-row diagnostics while a run is in flight and
// freezes them into a Result at the end.
type reporter struct {
	total    int
	written  int
	failed   int
	errors   []string
	artifact string
}

func newReporter(total int) *reporter {
	return &reporter{total: total, errors: make([]string, 0, 8)}
}

func (r *reporter) rowError(rowNumber int, msg string) {
	r.failed++
	r.errors = append(r.errors, formatRowError(rowNumber, msg))
}

func (r *reporter) refFailures(failures []RefFailure) {
	for _, f := range failures {
		r.failed++
		r.errors = append(r.errors, f.String())
	}
}

func (r *reporter) warning(msg string) {
	r.errors = append(r.errors, "warning: "+msg)
}

func (r *reporter) upsert(report UpsertReport) {
	r.written += report.Success
	r.failed += report.Failed
	r.errors = append(r.errors, report.Errors...)
}

func (r *reporter) result() Result {
	return Result{
		Success:        r.failed == 0,
		Count:          r.written,
		Failed:         r.failed,
		Errors:         r.errors,
		FailedRowsPath: r.artifact,
	}
}

func formatRowError(rowNumber int, msg string) string {
	return "row " + strconv.Itoa(rowNumber) + ": " + msg
}

func logResult(ctx context.Context, log *slog.Logger, kind EntityKind, tenantID uuid.UUID, res Result) {
	log.InfoContext(ctx, "import_completed",
		"entity", string(kind),
		"tenant_id", tenantID,
		"count", res.Count,
		"failed", res.Failed,
		"success", res.Success,
	)
}
