package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
)

// TokenStore is the durable side of the session token. It is keyed by an
// opaque per-browser session key so independent devices never collide.
// The cookie mirror of the same logical value is written by the service
// layer, not here.
type TokenStore interface {
	Write(ctx context.Context, key string, token domainauth.Token) error
	// Read returns the stored token, or an empty token when none exists.
	Read(ctx context.Context, key string) (domainauth.Token, error)
	// Delete removes the stored token. Deleting an absent token is a no-op.
	Delete(ctx context.Context, key string) error
}

// GuardFlagStore records per-path redirect flags with a bounded lifetime.
// At most one login redirect is issued per path while a flag is live; the
// TTL gives the loop guard a deterministic expiry instead of an ambient,
// never-cleared marker.
type GuardFlagStore interface {
	// Set records the flag and reports whether it was newly set. A false
	// return means the flag was already live and no redirect may be issued.
	Set(ctx context.Context, key, path string, ttl time.Duration) (bool, error)
	Clear(ctx context.Context, key, path string) error
}

// SessionResolver answers "who does this token belong to". One request, no
// retries; any failure is terminal for the attempt.
type SessionResolver interface {
	Resolve(ctx context.Context, token domainauth.Token) (*domainauth.User, error)
}

// AuthAPI is the remote product API surface the controller drives.
type AuthAPI interface {
	SessionResolver
	Login(ctx context.Context, email, password string) (domainauth.Token, *domainauth.User, error)
	Register(ctx context.Context, email, password, name string) (domainauth.Token, *domainauth.User, error)
	// Logout notifies the server. Callers treat failures as advisory only.
	Logout(ctx context.Context, token domainauth.Token) error
}

// AuditEvent is a best-effort record of an auth decision.
type AuditEvent struct {
	ID         string
	Kind       string
	SessionKey string
	Email      string
	Path       string
	Detail     string
	OccurredAt time.Time
}

// Audit event kinds.
const (
	AuditLoginOK       = "login_ok"
	AuditLoginFailed   = "login_failed"
	AuditRegisterOK    = "register_ok"
	AuditLogout        = "logout"
	AuditResolveFailed = "resolve_failed"
	AuditAdminDenied   = "admin_denied"
)

// AuditRecorder persists auth events. Implementations must be best-effort:
// recording failures never propagate into the auth flow.
type AuditRecorder interface {
	Record(ctx context.Context, ev AuditEvent) error
}
