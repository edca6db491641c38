package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder writes audit rows. Callers treat it as best-effort: a failed audit
// insert is logged and must never fail the operation being audited.
type Recorder struct {
	db  Execer
	log *slog.Logger
}

func NewRecorder(db Execer, log *slog.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

type Entry struct {
	TenantID   uuid.UUID
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	RequestID  string
	Metadata   map[string]any
}

func (r *Recorder) Log(ctx context.Context, entry Entry) error {
	metadata := []byte("{}")
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = encoded
	}

	var requestID *string
	if entry.RequestID != "" {
		requestID = &entry.RequestID
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_log (tenant_id, action, entity_type, entity_id, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.TenantID, entry.Action, entry.EntityType, entry.EntityID, requestID, metadata)
	if err != nil {
		r.log.Warn("audit_insert_failed", "action", entry.Action, "error", err)
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
