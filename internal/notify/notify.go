// Package notify models the best-effort side calls that follow a committed
// import: cache invalidation, change notification, and derived-aggregate
// recomputation. Each step is independently fallible and only ever logged;
// none of them gates the success of the import that triggered it.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type Invalidator interface {
	Invalidate(ctx context.Context, tag string) error
}

type Notifier interface {
	Notify(ctx context.Context, tenantID uuid.UUID, entityKind string) error
}

type AggregateResyncer interface {
	// ResyncDaily recomputes the daily aggregate report for one date
	// (YYYY-MM-DD) in one tenant.
	ResyncDaily(ctx context.Context, date string, tenantID uuid.UUID) error
}

// Step is one post-commit notification.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunAll executes the steps in order, logging failures and continuing.
func RunAll(ctx context.Context, log *slog.Logger, steps []Step) {
	for _, step := range steps {
		if err := step.Run(ctx); err != nil {
			log.Warn("post_commit_step_failed", "step", step.Name, "error", err)
		}
	}
}

// LogSink satisfies all three collaborator interfaces by logging the event.
// Deployments with a real cache bus or reporting pipeline swap it out.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) Invalidate(_ context.Context, tag string) error {
	s.Log.Info("cache_invalidate", "tag", tag)
	return nil
}

func (s LogSink) Notify(_ context.Context, tenantID uuid.UUID, entityKind string) error {
	s.Log.Info("change_notify", "tenant_id", tenantID, "entity", entityKind)
	return nil
}

func (s LogSink) ResyncDaily(_ context.Context, date string, tenantID uuid.UUID) error {
	s.Log.Info("daily_aggregate_resync", "date", date, "tenant_id", tenantID)
	return nil
}
