package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
	"github.com/careassist/webgate/internal/ports"
)

// ControllerOptions groups dependencies for Controller.
type ControllerOptions struct {
	API    ports.AuthAPI
	Tokens *SessionTokens
	Audit  ports.AuditRecorder // optional
	Logger *slog.Logger

	// CheckTTL bounds how long a completed session check stays fresh before
	// the next protected-route entry re-resolves. This is the explicit
	// cache-with-invalidation form of the check-once-per-route-family policy.
	CheckTTL time.Duration

	// ResolveTimeout bounds a single identity call so a hung resolver cannot
	// pin a session in Checking forever.
	ResolveTimeout time.Duration

	// PropagationDelay is how long login responses ask the client to wait
	// before navigating, giving the cookie mirror time to land. A workaround
	// for the dual-mirror design, surfaced as an explicit contract.
	PropagationDelay time.Duration
}

// Controller is the auth state machine. It owns the User record and the
// per-session state (Unchecked, Checking, Authenticated, Unauthenticated),
// decides when a session check is required, and drives login, logout, and
// register against the product API through the token service.
type Controller struct {
	api              ports.AuthAPI
	tokens           *SessionTokens
	audit            ports.AuditRecorder
	logger           *slog.Logger
	checkTTL         time.Duration
	resolveTimeout   time.Duration
	propagationDelay time.Duration

	mu      sync.Mutex
	entries map[string]*sessionEntry
	sf      singleflight.Group
}

// sessionEntry tracks one browser session. gen increments on every login and
// logout so a resolution that raced one of them cannot clobber newer state.
type sessionEntry struct {
	status    domainauth.Status
	user      *domainauth.User
	gen       uint64
	checkedAt time.Time
	completed map[domainauth.RouteFamily]bool
}

// NewController constructs the auth state controller.
func NewController(opts ControllerOptions) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checkTTL := opts.CheckTTL
	if checkTTL <= 0 {
		checkTTL = 5 * time.Minute
	}
	resolveTimeout := opts.ResolveTimeout
	if resolveTimeout <= 0 {
		resolveTimeout = 10 * time.Second
	}
	propagationDelay := opts.PropagationDelay
	if propagationDelay < 0 {
		propagationDelay = 0
	}
	return &Controller{
		api:              opts.API,
		tokens:           opts.Tokens,
		audit:            opts.Audit,
		logger:           logger,
		checkTTL:         checkTTL,
		resolveTimeout:   resolveTimeout,
		propagationDelay: propagationDelay,
		entries:          make(map[string]*sessionEntry),
	}
}

// PropagationDelay is the wait the login handler communicates to the client
// before it navigates to a protected page.
func (c *Controller) PropagationDelay() time.Duration { return c.propagationDelay }

// Tokens exposes the token service for the guard layers.
func (c *Controller) Tokens() *SessionTokens { return c.tokens }

func (c *Controller) entry(key string) *sessionEntry {
	e, ok := c.entries[key]
	if !ok {
		e = &sessionEntry{
			status:    domainauth.StatusUnchecked,
			completed: make(map[domainauth.RouteFamily]bool),
		}
		c.entries[key] = e
	}
	return e
}

func (c *Controller) snapshot(e *sessionEntry, family domainauth.RouteFamily) domainauth.State {
	return domainauth.State{
		User:           e.user,
		Status:         e.status,
		CheckCompleted: e.completed[family],
	}
}

// State returns the current view of a session without triggering a check.
func (c *Controller) State(key string, family domainauth.RouteFamily) domainauth.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot(c.entry(key), family)
}

// EnsureChecked brings the session state up to date for the given route
// family. Public and auth families never trigger a network call: an unchecked
// session simply becomes unauthenticated. Protected and admin families
// resolve the durable token against the identity endpoint, once per family
// until the check goes stale or is invalidated.
func (c *Controller) EnsureChecked(ctx context.Context, key string, family domainauth.RouteFamily, target CookieTarget) (domainauth.State, error) {
	c.mu.Lock()
	e := c.entry(key)

	if !family.RequiresCheck() {
		if e.status == domainauth.StatusUnchecked {
			e.status = domainauth.StatusUnauthenticated
		}
		e.completed[family] = true
		st := c.snapshot(e, family)
		c.mu.Unlock()
		return st, nil
	}

	if e.completed[family] && time.Since(e.checkedAt) < c.checkTTL {
		st := c.snapshot(e, family)
		c.mu.Unlock()
		return st, nil
	}
	c.mu.Unlock()

	token, err := c.tokens.Read(ctx, key)
	if err != nil {
		return domainauth.State{}, err
	}

	c.mu.Lock()
	e = c.entry(key)
	if !token.Present() {
		e.status = domainauth.StatusUnauthenticated
		e.user = nil
		e.completed[family] = true
		e.checkedAt = time.Now()
		st := c.snapshot(e, family)
		c.mu.Unlock()
		return st, nil
	}

	e.status = domainauth.StatusChecking
	gen := e.gen
	c.mu.Unlock()

	user, resolveErr := c.resolveShared(ctx, key, token)

	c.mu.Lock()
	e = c.entry(key)
	if e.gen != gen {
		// A login or logout landed while we were resolving; its state wins.
		st := c.snapshot(e, family)
		c.mu.Unlock()
		return st, nil
	}
	if resolveErr != nil {
		e.status = domainauth.StatusUnauthenticated
		e.user = nil
		e.completed[family] = true
		e.checkedAt = time.Now()
		st := c.snapshot(e, family)
		c.mu.Unlock()

		// Failed resolution means the token is dead; clear both mirrors.
		if clearErr := c.tokens.Clear(ctx, key, target); clearErr != nil {
			c.logger.WarnContext(ctx, "clearing token after failed resolution", "error", clearErr)
		}
		c.record(ctx, ports.AuditEvent{Kind: ports.AuditResolveFailed, SessionKey: key, Detail: resolveErr.Error()})
		return st, nil
	}

	e.status = domainauth.StatusAuthenticated
	e.user = user
	e.completed[family] = true
	e.checkedAt = time.Now()
	st := c.snapshot(e, family)
	c.mu.Unlock()
	return st, nil
}

// resolveShared collapses concurrent resolutions for the same session into a
// single identity call. The call runs on a detached, bounded context so the
// first caller navigating away cannot poison the shared result.
func (c *Controller) resolveShared(ctx context.Context, key string, token domainauth.Token) (*domainauth.User, error) {
	v, err, _ := c.sf.Do(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.resolveTimeout)
		defer cancel()
		return c.api.Resolve(rctx, token)
	})
	if err != nil {
		return nil, err
	}
	user, ok := v.(*domainauth.User)
	if !ok {
		return nil, errors.New("unexpected resolver result type")
	}
	return user, nil
}

// markRejected records a failed credential exchange. A session that never
// authenticated is pinned at Unauthenticated rather than left Unchecked; an
// entry in any other state keeps it.
func (c *Controller) markRejected(key string) domainauth.State {
	c.mu.Lock()
	e := c.entry(key)
	if e.status == domainauth.StatusUnchecked {
		e.status = domainauth.StatusUnauthenticated
	}
	st := c.snapshot(e, domainauth.FamilyProtected)
	c.mu.Unlock()
	return st
}

// CredentialsInput groups parameters for Login and Register.
type CredentialsInput struct {
	SessionKey string
	Email      string
	Password   string
	Name       string // register only
	Cookie     CookieTarget
}

// Login exchanges credentials for a session. The token write (durable store
// plus cookie mirror) strictly precedes the state flip to authenticated.
func (c *Controller) Login(ctx context.Context, in CredentialsInput) (domainauth.State, error) {
	token, user, err := c.api.Login(ctx, in.Email, in.Password)
	if err != nil {
		c.record(ctx, ports.AuditEvent{Kind: ports.AuditLoginFailed, SessionKey: in.SessionKey, Email: in.Email, Detail: err.Error()})
		return c.markRejected(in.SessionKey), newAuthError(err, MsgInvalidCredentials)
	}
	st, err := c.establishSession(ctx, in, token, user)
	if err != nil {
		return st, err
	}
	c.record(ctx, ports.AuditEvent{Kind: ports.AuditLoginOK, SessionKey: in.SessionKey, Email: in.Email})
	return st, nil
}

// Register creates an account and establishes the session the same way Login
// does.
func (c *Controller) Register(ctx context.Context, in CredentialsInput) (domainauth.State, error) {
	token, user, err := c.api.Register(ctx, in.Email, in.Password, in.Name)
	if err != nil {
		return c.markRejected(in.SessionKey), newAuthError(err, MsgRegistrationFailed)
	}
	st, err := c.establishSession(ctx, in, token, user)
	if err != nil {
		return st, err
	}
	c.record(ctx, ports.AuditEvent{Kind: ports.AuditRegisterOK, SessionKey: in.SessionKey, Email: in.Email})
	return st, nil
}

func (c *Controller) establishSession(ctx context.Context, in CredentialsInput, token domainauth.Token, user *domainauth.User) (domainauth.State, error) {
	if !token.Present() {
		err := errors.New("api returned no token")
		return c.markRejected(in.SessionKey), &AuthError{MessageKey: MsgServiceUnreachable, Err: err}
	}

	// Some deployment variants return only the token; resolve the user now so
	// the state flip carries a complete record.
	if user == nil {
		resolved, err := c.api.Resolve(ctx, token)
		if err != nil {
			return c.markRejected(in.SessionKey), newAuthError(err, MsgInvalidCredentials)
		}
		user = resolved
	}

	if err := c.tokens.Write(ctx, in.SessionKey, token, in.Cookie); err != nil {
		return c.markRejected(in.SessionKey), &AuthError{MessageKey: MsgServiceUnreachable, Err: err}
	}

	c.mu.Lock()
	e := c.entry(in.SessionKey)
	e.status = domainauth.StatusAuthenticated
	e.user = user
	e.gen++
	e.checkedAt = time.Now()
	e.completed[domainauth.FamilyProtected] = true
	e.completed[domainauth.FamilyAdmin] = true
	st := c.snapshot(e, domainauth.FamilyProtected)
	c.mu.Unlock()
	return st, nil
}

// Logout tears the session down. The local effect (token clear, state flip)
// is synchronous and final; the server notify afterwards is best-effort and
// its failure is swallowed.
func (c *Controller) Logout(ctx context.Context, key string, target CookieTarget) domainauth.State {
	token, readErr := c.tokens.Read(ctx, key)
	if readErr != nil {
		c.logger.WarnContext(ctx, "reading token during logout", "error", readErr)
	}

	if err := c.tokens.Clear(ctx, key, target); err != nil {
		c.logger.WarnContext(ctx, "clearing token during logout", "error", err)
	}

	c.mu.Lock()
	e := c.entry(key)
	e.status = domainauth.StatusUnauthenticated
	e.user = nil
	e.gen++
	e.checkedAt = time.Now()
	for f := range e.completed {
		delete(e.completed, f)
	}
	st := c.snapshot(e, domainauth.FamilyProtected)
	c.mu.Unlock()

	if token.Present() {
		if err := c.api.Logout(ctx, token); err != nil {
			// Client-side sign-out never depends on network availability.
			c.logger.WarnContext(ctx, "server logout notify failed", "error", err)
		}
	}
	c.record(ctx, ports.AuditEvent{Kind: ports.AuditLogout, SessionKey: key})
	return st
}

// Invalidate drops the cached state for a session, forcing the next
// protected-route entry to re-resolve.
func (c *Controller) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// record writes an audit event, logging and swallowing failures. The trail is
// best-effort by contract.
func (c *Controller) record(ctx context.Context, ev ports.AuditEvent) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Record(ctx, ev); err != nil {
		c.logger.WarnContext(ctx, "recording audit event failed", "kind", ev.Kind, "error", err)
	}
}
