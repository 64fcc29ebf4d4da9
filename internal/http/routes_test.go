package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
	mockauth "github.com/careassist/webgate/internal/mocks/auth"
	"github.com/careassist/webgate/internal/service"
)

func newTestRouter(t *testing.T) (http.Handler, *mockauth.MockAuthAPI) {
	t.Helper()
	api := &mockauth.MockAuthAPI{}
	tokens := service.NewSessionTokens(service.SessionTokensOptions{Store: &mockauth.MemoryTokenStore{}, Logger: testLogger()})
	ctrl := service.NewController(service.ControllerOptions{API: api, Tokens: tokens, Logger: testLogger()})
	router := NewRouter(RouterServices{
		Controller: ctrl,
		Flags:      &mockauth.MemoryFlagStore{},
		Claims:     NewClaimsParser(nil),
		Logger:     testLogger(),
	})
	return router, api
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestRouter_LoginThenDashboard(t *testing.T) {
	router, api := newTestRouter(t)
	api.LoginFunc = func(_ context.Context, email, _ string) (domainauth.Token, *domainauth.User, error) {
		return "tok-xyz", &domainauth.User{ID: "1", Email: email, Roles: domainauth.NewRoleSet("USER")}, nil
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.c","password":"pw"}`))
	r.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	// Carry the minted session cookies into the next navigation.
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range cookies {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-page="dashboard"`)
}

func TestRouter_AnonymousDashboardRedirects(t *testing.T) {
	router, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?redirect=%2Fdashboard", w.Header().Get("Location"))
}

func TestRouter_PartialFragmentSkipsGuards(t *testing.T) {
	router, api := newTestRouter(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.Header.Set("Hx-Request", "true")
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<main id="content"`)
	assert.NotContains(t, w.Body.String(), "<!DOCTYPE html>")
	assert.Zero(t, api.ResolveCount())
}

func TestRouter_PublicHome(t *testing.T) {
	router, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-page="home"`)
}
