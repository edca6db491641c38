package importer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ledgerline/api/internal/config"
)

// RefFailure describes one row excluded because its foreign reference could
// not be resolved.
type RefFailure struct {
	RowNumber int
	RefValue  string
	RefLabel  string
	Reason    string
}

func (f RefFailure) String() string {
	return fmt.Sprintf("row %d: %s %q %s", f.RowNumber, f.RefLabel, f.RefValue, f.Reason)
}

// AbortError is the single fatal error an abort-strategy run surfaces when
// any reference is unresolvable. No writes happen before it is raised.
type AbortError struct {
	Entity     EntityKind
	Unresolved int
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s import aborted: %d rows reference entities that do not exist", e.Entity, e.Unresolved)
}

// applyMissingRefStrategy decides what the configured strategy does with the
// unresolved partition. With skip it returns the failures (already excluded
// from the write set by the caller) to be counted and exported; with abort it
// fails the run; with insert-anyway it returns nothing and the storage
// layer's own constraints decide.
func applyMissingRefStrategy(kind EntityKind, strategy config.MissingReferenceStrategy, failures []RefFailure) ([]RefFailure, error) {
	if len(failures) == 0 {
		return nil, nil
	}
	switch strategy {
	case config.MissingRefAbort:
		return nil, &AbortError{Entity: kind, Unresolved: len(failures)}
	case config.MissingRefInsertAnyway:
		return nil, nil
	default:
		return failures, nil
	}
}

// writeFailedRowsCSV exports skipped rows for operator remediation. A failed
// export is reported to the caller but is not worth failing the import over.
func writeFailedRowsCSV(dir, tenantSlug string, kind EntityKind, failures []RefFailure) (string, error) {
	if len(failures) == 0 {
		return "", nil
	}
	name := fmt.Sprintf("%s-%s-failed-%s.csv", tenantSlug, kind, time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create failed-rows export: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	_ = writer.Write([]string{"row_number", "reference_id", "reference_label", "reason"})
	for _, failure := range failures {
		_ = writer.Write([]string{
			strconv.Itoa(failure.RowNumber),
			failure.RefValue,
			failure.RefLabel,
			failure.Reason,
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("write failed-rows export: %w", err)
	}
	return path, nil
}
