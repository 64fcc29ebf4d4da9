package httpx

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// The session key identifies one browser against the durable token store.
// It carries no authority by itself; the token it indexes does.
const sessionKeyCookie = "wg_sid"

type sessionKeyCtx struct{}

// SessionKey returns a middleware that ensures every request carries a
// session key, minting one for first-time visitors.
func SessionKey() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if c, err := r.Cookie(sessionKeyCookie); err == nil && c.Value != "" {
				key = c.Value
			} else {
				key = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     sessionKeyCookie,
					Value:    key,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   30 * 24 * 3600,
				})
			}
			ctx := context.WithValue(r.Context(), sessionKeyCtx{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionKeyFromRequest returns the request's session key, or "" when the
// middleware did not run.
func SessionKeyFromRequest(r *http.Request) string {
	if v, ok := r.Context().Value(sessionKeyCtx{}).(string); ok {
		return v
	}
	if c, err := r.Cookie(sessionKeyCookie); err == nil {
		return c.Value
	}
	return ""
}
