// Package audit records one structured event per tool call: who called what,
// and how it ended. Credential content and upstream response bodies are
// never part of an event.
package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"analyticsgw/pkg/middleware"
)

type Event struct {
	TenantID   string
	Method     string
	PropertyID string
	Outcome    string // "ok" or the failure kind slug
	Duration   time.Duration
}

type Recorder struct {
	log  *zap.SugaredLogger
	pool *pgxpool.Pool
}

// NewRecorder writes events to the log, and to Postgres when a pool is
// configured.
func NewRecorder(log *zap.SugaredLogger, pool *pgxpool.Pool) *Recorder {
	return &Recorder{log: log, pool: pool}
}

func (r *Recorder) Record(ctx context.Context, ev Event) {
	reqID := middleware.RequestIDFrom(ctx)
	r.log.Infow("tool call",
		"tenant_id", ev.TenantID,
		"method", ev.Method,
		"property_id", ev.PropertyID,
		"outcome", ev.Outcome,
		"request_id", reqID,
		"duration_ms", ev.Duration.Milliseconds(),
	)
	if r.pool == nil {
		return
	}
	// The call's deadline may already be spent; the audit write still goes out.
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ictx, `
		INSERT INTO audit_events(tenant_id, method, property_id, outcome, request_id, duration_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, ev.TenantID, ev.Method, ev.PropertyID, ev.Outcome, reqID, ev.Duration.Milliseconds(), time.Now().UTC())
	if err != nil {
		r.log.Warnw("audit insert", "err", err)
	}
}

// EnsureSchema creates the audit table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS audit_events (
  id bigserial PRIMARY KEY,
  tenant_id text NOT NULL,
  method text NOT NULL,
  property_id text,
  outcome text NOT NULL,
  request_id text,
  duration_ms bigint,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS audit_events_tenant_idx ON audit_events(tenant_id, created_at);
`)
	return err
}
