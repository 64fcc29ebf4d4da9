package httpx

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
	"github.com/careassist/webgate/internal/ports"
	"github.com/careassist/webgate/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// EdgeGuardOptions groups dependencies for the edge route guard.
type EdgeGuardOptions struct {
	Tokens *service.SessionTokens
	Claims *ClaimsParser
	Audit  ports.AuditRecorder // optional
	Logger *slog.Logger
}

// EdgeGuard returns the middleware that gates routes before any handler
// runs. It sees only the cookie mirror of the token, never the durable store
// or in-memory state: a cheap check on every request, with the client guard
// owning the authoritative decision once the page is being served.
//
// Partial-render requests are never redirected. The client guard already owns
// the redirect decision for them, and answering a fragment fetch with a
// redirect breaks the in-flight page transition.
func EdgeGuard(opts EdgeGuardOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := opts.Tokens.TokenFromCookie(r)
			family := domainauth.ClassifyPath(r.URL.Path)

			switch family {
			case domainauth.FamilyProtected:
				if token.Present() || IsPartialRender(r) {
					next.ServeHTTP(w, r)
					return
				}
				redirectToLogin(w, r)

			case domainauth.FamilyAdmin:
				if !token.Present() {
					if IsPartialRender(r) {
						next.ServeHTTP(w, r)
						return
					}
					redirectToLogin(w, r)
					return
				}
				roles, err := opts.Claims.Roles(token)
				if err != nil || !roles.IsAdmin() {
					if IsPartialRender(r) {
						next.ServeHTTP(w, r)
						return
					}
					if err != nil {
						logger.WarnContext(r.Context(), "admin claim recovery failed", "error", err)
					}
					recordDenied(r, opts.Audit, logger)
					http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
					return
				}
				next.ServeHTTP(w, r)

			case domainauth.FamilyAuth:
				if token.Present() && !IsPartialRender(r) && !HasSkipRedirect(r) {
					http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
					return
				}
				next.ServeHTTP(w, r)

			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// redirectToLogin sends an anonymous full-page request to the login page,
// carrying the original path so login can return the user there.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	path := safeRedirectPath(r.URL.RequestURI())
	http.Redirect(w, r, loginURL(path), http.StatusSeeOther)
}

func recordDenied(r *http.Request, audit ports.AuditRecorder, logger *slog.Logger) {
	if audit == nil {
		return
	}
	ev := ports.AuditEvent{
		Kind:       ports.AuditAdminDenied,
		SessionKey: SessionKeyFromRequest(r),
		Path:       r.URL.Path,
	}
	if err := audit.Record(r.Context(), ev); err != nil {
		logger.WarnContext(r.Context(), "recording admin denial failed", "error", err)
	}
}
