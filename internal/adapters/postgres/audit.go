// Package postgres persists the best-effort auth audit trail.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careassist/webgate/internal/ports"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS auth_audit (
    id          UUID PRIMARY KEY,
    kind        TEXT NOT NULL,
    session_key TEXT NOT NULL DEFAULT '',
    email       TEXT NOT NULL DEFAULT '',
    path        TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS auth_audit_occurred_at_idx ON auth_audit (occurred_at);
`

// AuditRepo records auth events in Postgres. Recording is best-effort by
// contract: callers log failures and move on, the auth flow never blocks on
// the trail.
type AuditRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditRepo creates an audit repository backed by the given pool.
func NewAuditRepo(pool *pgxpool.Pool, logger *slog.Logger) *AuditRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRepo{pool: pool, logger: logger}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, auditSchema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Record inserts one audit event. Duplicate IDs are treated as already
// recorded, not as failures.
func (r *AuditRepo) Record(ctx context.Context, ev ports.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	const q = `INSERT INTO auth_audit (id, kind, session_key, email, path, detail, occurred_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, q, ev.ID, ev.Kind, ev.SessionKey, ev.Email, ev.Path, ev.Detail, ev.OccurredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			r.logger.DebugContext(ctx, "audit event already recorded", "id", ev.ID)
			return nil
		}
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
