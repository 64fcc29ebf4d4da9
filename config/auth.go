package config

import (
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// AuthConfig groups session and cookie configuration.
type AuthConfig struct {
	// CookieName is the name of the token mirror cookie read by the edge
	// guard. The page client reads it too, so it is not HttpOnly.
	CookieName string `env:"AUTH_COOKIE_NAME" envDefault:"auth_token"`

	// CookieDomain is the domain for the token mirror cookie.
	// Leave empty to use the request domain.
	CookieDomain string `env:"AUTH_COOKIE_DOMAIN" envDefault:""`

	// CookieMaxAge bounds how long the token mirror survives in the browser.
	CookieMaxAge time.Duration `env:"AUTH_COOKIE_MAX_AGE" envDefault:"168h"`

	// EdgeSigningKey verifies token signatures at the edge. When empty the
	// edge guard falls back to unverified claim parsing; the product API
	// remains the authority either way.
	EdgeSigningKey string `env:"AUTH_EDGE_SIGNING_KEY" envDefault:""`

	// CheckTTL bounds how long a completed session check stays fresh.
	CheckTTL time.Duration `env:"AUTH_CHECK_TTL" envDefault:"5m"`

	// ResolveTimeout bounds a single identity resolution call.
	ResolveTimeout time.Duration `env:"AUTH_RESOLVE_TIMEOUT" envDefault:"10s"`

	// PropagationDelay is how long login responses ask the client to wait
	// before navigating, so the cookie mirror can land.
	PropagationDelay time.Duration `env:"AUTH_PROPAGATION_DELAY" envDefault:"150ms"`

	// GuardFlagTTL bounds how long a login-redirect flag suppresses further
	// redirects for the same path.
	GuardFlagTTL time.Duration `env:"AUTH_GUARD_FLAG_TTL" envDefault:"1m"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.CookieName == "" {
		a.CookieName = "auth_token"
	}
	if a.CookieMaxAge <= 0 {
		a.CookieMaxAge = 168 * time.Hour
	}
	if a.CheckTTL <= 0 {
		a.CheckTTL = 5 * time.Minute
	}
	if a.ResolveTimeout <= 0 {
		a.ResolveTimeout = 10 * time.Second
	}
	if a.PropagationDelay < 0 {
		a.PropagationDelay = 0
	}
	if a.GuardFlagTTL <= 0 {
		a.GuardFlagTTL = time.Minute
	}
	a.CookieDomain = sanitizeCookieDomain(a.CookieDomain)
}

// sanitizeCookieDomain drops cookie domains browsers would reject. Setting a
// cookie on a bare public suffix (e.g. "com", "co.uk") is refused by user
// agents, so such a value would silently break the token mirror.
func sanitizeCookieDomain(domain string) string {
	d := strings.TrimPrefix(strings.TrimSpace(domain), ".")
	if d == "" {
		return ""
	}
	if suffix, icann := publicsuffix.PublicSuffix(d); icann && suffix == d {
		return ""
	}
	return domain
}
