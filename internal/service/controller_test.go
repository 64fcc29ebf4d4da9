package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
	"github.com/careassist/webgate/internal/mocks"
	mockauth "github.com/careassist/webgate/internal/mocks/auth"
	"github.com/careassist/webgate/internal/ports"
)

type controllerFixture struct {
	api    *mockauth.MockAuthAPI
	store  *mockauth.MemoryTokenStore
	tokens *SessionTokens
	ctrl   *Controller
}

func newControllerFixture(opts ControllerOptions) *controllerFixture {
	f := &controllerFixture{
		api:   &mockauth.MockAuthAPI{},
		store: &mockauth.MemoryTokenStore{},
	}
	f.tokens = NewSessionTokens(SessionTokensOptions{Store: f.store})
	opts.API = f.api
	opts.Tokens = f.tokens
	f.ctrl = NewController(opts)
	return f
}

func testUser() *domainauth.User {
	return &domainauth.User{
		ID:    "1",
		Email: "a@b.com",
		Name:  "A",
		Roles: domainauth.NewRoleSet("USER"),
	}
}

func TestController_LoginSuccess(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	f.api.LoginFunc = func(_ context.Context, email, password string) (domainauth.Token, *domainauth.User, error) {
		assert.Equal(t, "a@b.com", email)
		assert.Equal(t, "secret", password)
		return "abc", testUser(), nil
	}

	st, err := f.ctrl.Login(context.Background(), CredentialsInput{
		SessionKey: "sid-1", Email: "a@b.com", Password: "secret",
	})
	require.NoError(t, err)

	assert.True(t, st.Authenticated())
	assert.True(t, st.CheckCompleted)
	assert.Equal(t, "1", st.User.ID)

	tok, err := f.tokens.Read(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.Equal(t, domainauth.Token("abc"), tok)
}

func TestController_LoginRejected(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	f.api.LoginFunc = func(context.Context, string, string) (domainauth.Token, *domainauth.User, error) {
		return "", nil, errors.New("bad credentials")
	}

	st, err := f.ctrl.Login(context.Background(), CredentialsInput{
		SessionKey: "sid-1", Email: "a@b.com", Password: "wrong",
	})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.False(t, st.Authenticated())
	assert.Equal(t, domainauth.StatusUnauthenticated, st.Status,
		"a rejected login leaves a fresh session unauthenticated, not unchecked")

	tok, readErr := f.tokens.Read(context.Background(), "sid-1")
	require.NoError(t, readErr)
	assert.False(t, tok.Present(), "no token may be written on failed login")
}

func TestController_RejectedLoginKeepsEstablishedSession(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	f.api.LoginFunc = func(context.Context, string, string) (domainauth.Token, *domainauth.User, error) {
		return "abc", testUser(), nil
	}
	_, err := f.ctrl.Login(context.Background(), CredentialsInput{
		SessionKey: "sid-1", Email: "a@b.com", Password: "secret",
	})
	require.NoError(t, err)

	f.api.LoginFunc = func(context.Context, string, string) (domainauth.Token, *domainauth.User, error) {
		return "", nil, errors.New("bad credentials")
	}
	st, err := f.ctrl.Login(context.Background(), CredentialsInput{
		SessionKey: "sid-1", Email: "a@b.com", Password: "typo",
	})
	require.Error(t, err)

	// A failed re-login attempt does not tear down the session already held.
	assert.True(t, st.Authenticated())
	tok, readErr := f.tokens.Read(context.Background(), "sid-1")
	require.NoError(t, readErr)
	assert.Equal(t, domainauth.Token("abc"), tok)
}

func TestController_LoginTokenOnlyVariantResolvesUser(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	f.api.LoginFunc = func(context.Context, string, string) (domainauth.Token, *domainauth.User, error) {
		return "tok-only", nil, nil
	}
	f.api.ResolveFunc = func(_ context.Context, token domainauth.Token) (*domainauth.User, error) {
		assert.Equal(t, domainauth.Token("tok-only"), token)
		return testUser(), nil
	}

	st, err := f.ctrl.Login(context.Background(), CredentialsInput{SessionKey: "sid-1", Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)
	assert.True(t, st.Authenticated())
	assert.Equal(t, "a@b.com", st.User.Email)
}

func TestController_RegisterSuccess(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	f.api.RegisterFunc = func(_ context.Context, email, _, name string) (domainauth.Token, *domainauth.User, error) {
		return "reg-tok", &domainauth.User{ID: "9", Email: email, Name: name, Roles: domainauth.NewRoleSet("USER")}, nil
	}

	st, err := f.ctrl.Register(context.Background(), CredentialsInput{
		SessionKey: "sid-1", Email: "n@e.com", Password: "secret", Name: "N",
	})
	require.NoError(t, err)
	assert.True(t, st.Authenticated())
	assert.Equal(t, "N", st.User.Name)
}

func TestController_PublicFamilySkipsResolution(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})

	st, err := f.ctrl.EnsureChecked(context.Background(), "sid-1", domainauth.FamilyPublic, CookieTarget{})
	require.NoError(t, err)

	assert.Equal(t, domainauth.StatusUnauthenticated, st.Status)
	assert.True(t, st.CheckCompleted)
	assert.Zero(t, f.api.ResolveCount(), "public pages never hit the identity endpoint")
}

func TestController_ProtectedFamilyWithoutToken(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})

	st, err := f.ctrl.EnsureChecked(context.Background(), "sid-1", domainauth.FamilyProtected, CookieTarget{})
	require.NoError(t, err)

	assert.Equal(t, domainauth.StatusUnauthenticated, st.Status)
	assert.True(t, st.CheckCompleted)
	assert.Zero(t, f.api.ResolveCount())
}

func TestController_CheckOncePerFamily(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	require.NoError(t, f.store.Write(context.Background(), "sid-1", "abc"))
	f.api.ResolveFunc = func(context.Context, domainauth.Token) (*domainauth.User, error) {
		return testUser(), nil
	}

	st, err := f.ctrl.EnsureChecked(context.Background(), "sid-1", domainauth.FamilyProtected, CookieTarget{})
	require.NoError(t, err)
	assert.True(t, st.Authenticated())
	assert.Equal(t, 1, f.api.ResolveCount())

	// Subsequent navigations within the freshness window reuse the in-memory
	// user instead of re-resolving.
	for range 5 {
		st, err = f.ctrl.EnsureChecked(context.Background(), "sid-1", domainauth.FamilyProtected, CookieTarget{})
		require.NoError(t, err)
		assert.True(t, st.Authenticated())
	}
	assert.Equal(t, 1, f.api.ResolveCount())
}

func TestController_StaleCheckReResolves(t *testing.T) {
	f := newControllerFixture(ControllerOptions{CheckTTL: time.Nanosecond})
	require.NoError(t, f.store.Write(context.Background(), "sid-1", "abc"))
	f.api.ResolveFunc = func(context.Context, domainauth.Token) (*domainauth.User, error) {
		return testUser(), nil
	}

	_, err := f.ctrl.EnsureChecked(context.Background(), "sid-1", domainauth.FamilyProtected, CookieTarget{})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = f.ctrl.EnsureChecked(context.Background(), "sid-1", domainauth.FamilyProtected, CookieTarget{})
	require.NoError(t, err)

	assert.Equal(t, 2, f.api.ResolveCount())
}

func TestController_ExpiredTokenClearsStore(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	require.NoError(t, f.store.Write(context.Background(), "sid-1", "expired"))
	f.api.ResolveFunc = func(context.Context, domainauth.Token) (*domainauth.User, error) {
		return nil, errors.New("401 unauthorized")
	}

	st, err := f.ctrl.EnsureChecked(context.Background(), "sid-1", domainauth.FamilyProtected, CookieTarget{})
	require.NoError(t, err)

	assert.Equal(t, domainauth.StatusUnauthenticated, st.Status)
	assert.Nil(t, st.User)
	assert.True(t, st.CheckCompleted)

	tok, readErr := f.tokens.Read(context.Background(), "sid-1")
	require.NoError(t, readErr)
	assert.False(t, tok.Present(), "failed resolution must clear the token")
}

func TestController_LoadingOnlyWhileResolving(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	require.NoError(t, f.store.Write(context.Background(), "sid-1", "abc"))

	started := make(chan struct{})
	release := make(chan struct{})
	f.api.ResolveFunc = func(context.Context, domainauth.Token) (*domainauth.User, error) {
		close(started)
		<-release
		return testUser(), nil
	}

	assert.False(t, f.ctrl.State("sid-1", domainauth.FamilyProtected).Loading(),
		"not loading before the check starts")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = f.ctrl.EnsureChecked(context.Background(), "sid-1", domainauth.FamilyProtected, CookieTarget{})
	}()

	<-started
	assert.True(t, f.ctrl.State("sid-1", domainauth.FamilyProtected).Loading(),
		"loading while the resolver call is outstanding")

	close(release)
	wg.Wait()
	assert.False(t, f.ctrl.State("sid-1", domainauth.FamilyProtected).Loading(),
		"not loading after the call settles")
}

func TestController_ConcurrentChecksShareOneResolve(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	require.NoError(t, f.store.Write(context.Background(), "sid-1", "abc"))

	gate := make(chan struct{})
	f.api.ResolveFunc = func(context.Context, domainauth.Token) (*domainauth.User, error) {
		<-gate
		return testUser(), nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]domainauth.State, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := f.ctrl.EnsureChecked(context.Background(), "sid-1", domainauth.FamilyProtected, CookieTarget{})
			assert.NoError(t, err)
			results[i] = st
		}()
	}
	// Give the goroutines a moment to pile onto the same flight.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	for _, st := range results {
		assert.True(t, st.Authenticated())
	}
	assert.Equal(t, 1, f.api.ResolveCount(), "concurrent checks must collapse into one identity call")
}

func TestController_LogoutWinsOverInflightResolve(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	require.NoError(t, f.store.Write(context.Background(), "sid-1", "abc"))

	started := make(chan struct{})
	release := make(chan struct{})
	f.api.ResolveFunc = func(context.Context, domainauth.Token) (*domainauth.User, error) {
		close(started)
		<-release
		return testUser(), nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var checked domainauth.State
	go func() {
		defer wg.Done()
		checked, _ = f.ctrl.EnsureChecked(context.Background(), "sid-1", domainauth.FamilyProtected, CookieTarget{})
	}()

	<-started
	st := f.ctrl.Logout(context.Background(), "sid-1", CookieTarget{})
	assert.Equal(t, domainauth.StatusUnauthenticated, st.Status)

	close(release)
	wg.Wait()

	// The stale resolution must not resurrect the session.
	assert.Equal(t, domainauth.StatusUnauthenticated, checked.Status)
	assert.Equal(t, domainauth.StatusUnauthenticated, f.ctrl.State("sid-1", domainauth.FamilyProtected).Status)
}

func TestController_LogoutAlwaysClearsLocally(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	require.NoError(t, f.store.Write(context.Background(), "sid-1", "abc"))
	f.api.LogoutFunc = func(context.Context, domainauth.Token) error {
		return errors.New("network down")
	}

	st := f.ctrl.Logout(context.Background(), "sid-1", CookieTarget{})

	assert.Equal(t, domainauth.StatusUnauthenticated, st.Status)
	assert.Nil(t, st.User)
	assert.Equal(t, 1, f.api.LogoutCalls)

	tok, err := f.tokens.Read(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.False(t, tok.Present(), "local sign-out never depends on the network")
}

func TestController_LogoutForcesRecheck(t *testing.T) {
	f := newControllerFixture(ControllerOptions{})
	f.api.LoginFunc = func(context.Context, string, string) (domainauth.Token, *domainauth.User, error) {
		return "abc", testUser(), nil
	}
	f.api.ResolveFunc = func(context.Context, domainauth.Token) (*domainauth.User, error) {
		return testUser(), nil
	}

	_, err := f.ctrl.Login(context.Background(), CredentialsInput{SessionKey: "sid-1", Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)
	f.ctrl.Logout(context.Background(), "sid-1", CookieTarget{})

	st, err := f.ctrl.EnsureChecked(context.Background(), "sid-1", domainauth.FamilyProtected, CookieTarget{})
	require.NoError(t, err)
	assert.Equal(t, domainauth.StatusUnauthenticated, st.Status)
}

func TestController_AuditEventsRecorded(t *testing.T) {
	gctrl := gomock.NewController(t)
	audit := mocks.NewMockAuditRecorder(gctrl)
	f := newControllerFixture(ControllerOptions{Audit: audit})
	f.api.LoginFunc = func(context.Context, string, string) (domainauth.Token, *domainauth.User, error) {
		return "abc", testUser(), nil
	}

	audit.EXPECT().Record(gomock.Any(), gomock.Cond(func(ev ports.AuditEvent) bool {
		return ev.Kind == ports.AuditLoginOK && ev.Email == "a@b.com"
	})).Return(nil)

	_, err := f.ctrl.Login(context.Background(), CredentialsInput{SessionKey: "sid-1", Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)
}

func TestController_AuditFailureIsSwallowed(t *testing.T) {
	gctrl := gomock.NewController(t)
	audit := mocks.NewMockAuditRecorder(gctrl)
	audit.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("db down")).AnyTimes()

	f := newControllerFixture(ControllerOptions{Audit: audit})
	f.api.LoginFunc = func(context.Context, string, string) (domainauth.Token, *domainauth.User, error) {
		return "abc", testUser(), nil
	}

	st, err := f.ctrl.Login(context.Background(), CredentialsInput{SessionKey: "sid-1", Email: "a@b.com", Password: "secret"})
	require.NoError(t, err, "audit failures never surface into the auth flow")
	assert.True(t, st.Authenticated())
}

func TestController_PropagationDelay(t *testing.T) {
	f := newControllerFixture(ControllerOptions{PropagationDelay: 150 * time.Millisecond})
	assert.Equal(t, 150*time.Millisecond, f.ctrl.PropagationDelay())
}
