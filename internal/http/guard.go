package httpx

import (
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
	"github.com/careassist/webgate/internal/ports"
	"github.com/careassist/webgate/internal/service"
)

// RouteGuardOptions groups dependencies for RouteGuard.
type RouteGuardOptions struct {
	Controller *service.Controller
	Flags      ports.GuardFlagStore
	FlagTTL    time.Duration
	Loading    http.Handler // optional placeholder, defaults to a spinner
	Logger     *slog.Logger
}

// RouteGuard is the authoritative page-level guard. Unlike the edge guard it
// consults the durable store and the controller's session state, triggering a
// session check when the route family requires one.
//
// Redirects are de-duplicated per path through the flag store: while a flag
// is live, at most one login redirect is issued for that path, and a guard
// that would loop renders the loading placeholder instead.
type RouteGuard struct {
	controller *service.Controller
	flags      ports.GuardFlagStore
	flagTTL    time.Duration
	loading    http.Handler
	logger     *slog.Logger
}

// NewRouteGuard constructs a route guard.
func NewRouteGuard(opts RouteGuardOptions) *RouteGuard {
	loading := opts.Loading
	if loading == nil {
		loading = http.HandlerFunc(renderLoading)
	}
	flagTTL := opts.FlagTTL
	if flagTTL <= 0 {
		flagTTL = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteGuard{
		controller: opts.Controller,
		flags:      opts.Flags,
		flagTTL:    flagTTL,
		loading:    loading,
		logger:     logger,
	}
}

// Protect wraps a page handler with the guard decision.
func (g *RouteGuard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fragment fetches are never blocked or redirected; the page that
		// initiated them has already been gated.
		if IsPartialRender(r) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := SessionKeyFromRequest(r)
		family := domainauth.ClassifyPath(r.URL.Path)

		// Another request for this session is mid-resolution; show the
		// placeholder instead of piling onto the flight.
		if g.controller.State(key, family).Loading() {
			g.loading.ServeHTTP(w, r)
			return
		}

		st, err := g.controller.EnsureChecked(ctx, key, family, service.CookieTarget{W: w, R: r})
		if err != nil {
			g.logger.ErrorContext(ctx, "session check failed", "error", err, "path", r.URL.Path)
			g.loading.ServeHTTP(w, r)
			return
		}

		if st.Authenticated() {
			// Session is healthy; release the redirect flag for this path.
			if err := g.flags.Clear(ctx, key, r.URL.Path); err != nil {
				g.logger.WarnContext(ctx, "clearing guard flag failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		token, err := g.controller.Tokens().Read(ctx, key)
		if err != nil {
			g.logger.ErrorContext(ctx, "reading token failed", "error", err)
			g.loading.ServeHTTP(w, r)
			return
		}
		if token.Present() {
			// State says unauthenticated but a token exists: the resolver is
			// still catching up. Treat as transient rather than redirecting.
			g.loading.ServeHTTP(w, r)
			return
		}

		if HasSkipRedirect(r) {
			g.loading.ServeHTTP(w, r)
			return
		}

		fresh, err := g.flags.Set(ctx, key, r.URL.Path, g.flagTTL)
		if err != nil {
			g.logger.ErrorContext(ctx, "setting guard flag failed", "error", err)
			g.loading.ServeHTTP(w, r)
			return
		}
		if !fresh {
			// A redirect for this path was already issued and auth still has
			// not succeeded. Failing open into the placeholder beats looping.
			g.loading.ServeHTTP(w, r)
			return
		}

		// A full navigation, not a fragment swap: only a full load re-runs
		// the edge guard and resets client router state.
		http.Redirect(w, r, loginURL(safeRedirectPath(r.URL.RequestURI())), http.StatusSeeOther)
	})
}

// renderLoading writes the default loading placeholder.
func renderLoading(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="spinner" role="status" aria-label="Loading"></div>`))
}
