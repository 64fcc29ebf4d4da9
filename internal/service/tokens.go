package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
	"github.com/careassist/webgate/internal/ports"
)

// CookieConfig describes the cookie mirror of the session token. The cookie
// exists for the edge guard, which must decide before any durable-store read
// is possible; the durable store remains the read side for everything else.
type CookieConfig struct {
	Name   string
	Domain string
	MaxAge time.Duration
}

// CookieTarget carries the response/request pair a cookie write needs. The
// zero value means "no cookie mirror available" (non-HTTP caller); durable
// writes proceed without it. This is the accepted non-atomicity between the
// two mirrors.
type CookieTarget struct {
	W http.ResponseWriter
	R *http.Request
}

func (t CookieTarget) available() bool { return t.W != nil }

// SessionTokensOptions groups dependencies for SessionTokens.
type SessionTokensOptions struct {
	Store  ports.TokenStore
	Cookie CookieConfig
	Logger *slog.Logger
}

// SessionTokens is the single writer of the session token. One logical value,
// two mirrors: the durable store (read by the controller and guard) and the
// cookie (read by the edge guard).
type SessionTokens struct {
	store  ports.TokenStore
	cookie CookieConfig
	logger *slog.Logger
}

// NewSessionTokens constructs the token service.
func NewSessionTokens(opts SessionTokensOptions) *SessionTokens {
	cookie := opts.Cookie
	if cookie.Name == "" {
		cookie.Name = "auth_token"
	}
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = 7 * 24 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionTokens{store: opts.Store, cookie: cookie, logger: logger}
}

// CookieName returns the name of the cookie mirror.
func (s *SessionTokens) CookieName() string { return s.cookie.Name }

// Write stores the token durably and mirrors it into the cookie. The durable
// write must succeed; the cookie mirror is skipped when no response writer is
// available.
func (s *SessionTokens) Write(ctx context.Context, key string, token domainauth.Token, target CookieTarget) error {
	if err := s.store.Write(ctx, key, token); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if target.available() {
		http.SetCookie(target.W, s.buildCookie(target.R, string(token), int(s.cookie.MaxAge.Seconds())))
	}
	return nil
}

// Read returns the durable-store value. The cookie is write-only from this
// side; only the edge guard reads it.
func (s *SessionTokens) Read(ctx context.Context, key string) (domainauth.Token, error) {
	return s.store.Read(ctx, key)
}

// Clear removes the durable entry and expires the cookie. Idempotent:
// clearing an absent token is a no-op.
func (s *SessionTokens) Clear(ctx context.Context, key string, target CookieTarget) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if target.available() {
		c := s.buildCookie(target.R, "", -1)
		c.Expires = time.Unix(0, 0).UTC()
		http.SetCookie(target.W, c)
	}
	return nil
}

// TokenFromCookie extracts the mirrored token from an incoming request.
// Used by the edge guard, which has no durable-store view.
func (s *SessionTokens) TokenFromCookie(r *http.Request) domainauth.Token {
	c, err := r.Cookie(s.cookie.Name)
	if err != nil {
		return ""
	}
	return domainauth.Token(c.Value)
}

// buildCookie mirrors key attributes across set and clear so browsers treat
// them as the same cookie.
func (s *SessionTokens) buildCookie(r *http.Request, value string, maxAge int) *http.Cookie {
	isSecure := false
	if r != nil {
		isSecure = r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	}
	return &http.Cookie{
		Name:     s.cookie.Name,
		Value:    value,
		Path:     "/",
		Domain:   s.cookie.Domain,
		Secure:   isSecure,
		MaxAge:   maxAge,
		SameSite: http.SameSiteLaxMode,
	}
}
