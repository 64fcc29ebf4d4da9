package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/careassist/webgate/internal/ports"
	"github.com/careassist/webgate/internal/service"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Controller *service.Controller
	Flags      ports.GuardFlagStore
	Claims     *ClaimsParser
	Audit      ports.AuditRecorder // optional
	FlagTTL    time.Duration
	Logger     *slog.Logger // optional
}

// NewRouter creates and configures the HTTP router: session-key assignment
// and the edge guard run on every request, the route guard wraps the page
// handlers it protects.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{Controller: services.Controller, Logger: services.Logger}
	guard := NewRouteGuard(RouteGuardOptions{
		Controller: services.Controller,
		Flags:      services.Flags,
		FlagTTL:    services.FlagTTL,
		Logger:     services.Logger,
	})

	mux.Handle("POST /auth/login", http.HandlerFunc(authHandlers.Login))
	mux.Handle("POST /auth/register", http.HandlerFunc(authHandlers.Register))
	mux.Handle("POST /auth/logout", http.HandlerFunc(authHandlers.Logout))
	mux.Handle("GET /auth/status", http.HandlerFunc(authHandlers.Status))

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	mux.Handle("GET /login", pageHandler("login"))
	mux.Handle("GET /register", pageHandler("register"))
	mux.Handle("GET /", pageHandler("home"))

	mux.Handle("GET /dashboard", guard.Protect(pageHandler("dashboard")))
	mux.Handle("GET /profile", guard.Protect(pageHandler("profile")))
	mux.Handle("GET /appointments", guard.Protect(pageHandler("appointments")))
	mux.Handle("GET /appointments/{id}", guard.Protect(pageHandler("appointment")))
	mux.Handle("GET /chat", guard.Protect(pageHandler("chat")))
	mux.Handle("GET /admin", guard.Protect(pageHandler("admin")))
	mux.Handle("GET /admin/", guard.Protect(pageHandler("admin")))

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var handler http.Handler = mux
	handler = EdgeGuard(EdgeGuardOptions{
		Tokens: services.Controller.Tokens(),
		Claims: services.Claims,
		Audit:  services.Audit,
		Logger: logger,
	})(handler)
	handler = SessionKey()(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
