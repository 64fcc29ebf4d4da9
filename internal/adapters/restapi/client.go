// Package restapi is the client for the remote CareAssist product API. It
// covers the auth surface the gateway drives: login, register, logout, and
// the identity endpoint.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
)

// ErrResolveFailed is returned for any failed identity resolution: invalid or
// expired token, network error, or a non-2xx status. Callers treat all of
// these uniformly as "not authenticated".
var ErrResolveFailed = errors.New("session resolution failed")

// APIError reports a non-2xx response from the product API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api responded %d: %s", e.Status, e.Body)
}

// ClientOptions groups construction parameters for Client.
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the product API. Bearer credentials are attached per call
// via an oauth2 static token source, so the underlying client stays shared.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient constructs a product API client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("api base URL is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		logger:  logger,
	}, nil
}

// bearerClient wraps the shared HTTP client with a transport that attaches
// the token as an Authorization: Bearer header.
func (c *Client) bearerClient(token domainauth.Token) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: string(token)})
	return &http.Client{
		Transport: &oauth2.Transport{Source: src, Base: c.http.Transport},
		Timeout:   c.http.Timeout,
	}
}

// tokenExpr extracts the bearer token from the structured login/register
// payload. Deployment variants have been observed returning the token under
// either name.
const tokenExpr = "token || access_token"

// credentialPayload is the structured variant of the login/register response.
type credentialPayload struct {
	token domainauth.Token
	user  *domainauth.User
}

// Login exchanges credentials for a token and, depending on deployment
// variant, the user record. The user may be nil; callers resolve it via
// Resolve.
func (c *Client) Login(ctx context.Context, email, password string) (domainauth.Token, *domainauth.User, error) {
	body := map[string]string{"email": email, "password": password}
	payload, err := c.postCredentials(ctx, "/auth/login", body)
	if err != nil {
		return "", nil, err
	}
	return payload.token, payload.user, nil
}

// Register creates an account and returns the same shape as Login.
func (c *Client) Register(ctx context.Context, email, password, name string) (domainauth.Token, *domainauth.User, error) {
	body := map[string]string{"email": email, "password": password, "name": name}
	payload, err := c.postCredentials(ctx, "/auth/register", body)
	if err != nil {
		return "", nil, err
	}
	return payload.token, payload.user, nil
}

// Logout notifies the server that the token is done. The caller decides what
// to do with a failure; by contract the controller swallows it.
func (c *Client) Logout(ctx context.Context, token domainauth.Token) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", http.NoBody)
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	resp, err := c.bearerClient(token).Do(req)
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	defer closeBody(resp.Body, c.logger)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: readBodyPrefix(resp.Body)}
	}
	return nil
}

// Resolve asks the identity endpoint who the token belongs to. One request,
// no retries; every failure mode collapses into ErrResolveFailed.
func (c *Client) Resolve(ctx context.Context, token domainauth.Token) (*domainauth.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/me", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}
	resp, err := c.bearerClient(token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolveFailed, err)
	}
	defer closeBody(resp.Body, c.logger)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %w", ErrResolveFailed,
			&APIError{Status: resp.StatusCode, Body: readBodyPrefix(resp.Body)})
	}

	var user domainauth.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: decode user: %w", ErrResolveFailed, err)
	}
	return &user, nil
}

// postCredentials sends the request and normalizes the two observed response
// variants: a JSON object carrying token and user, or a raw token string.
func (c *Client) postCredentials(ctx context.Context, path string, body map[string]string) (credentialPayload, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return credentialPayload{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return credentialPayload{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return credentialPayload{}, fmt.Errorf("post %s: %w", path, err)
	}
	defer closeBody(resp.Body, c.logger)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return credentialPayload{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return credentialPayload{}, &APIError{Status: resp.StatusCode, Body: trimBody(raw)}
	}

	return parseCredentialPayload(raw)
}

// parseCredentialPayload handles both response shapes. The structured shape
// is probed with a JMESPath expression so the two token field spellings stay
// a one-line concern.
func parseCredentialPayload(raw []byte) (credentialPayload, error) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		// Raw-token variant: the whole body is the token, optionally quoted.
		tok := strings.TrimSpace(string(raw))
		tok = strings.Trim(tok, `"`)
		if tok == "" {
			return credentialPayload{}, errors.New("empty credential response")
		}
		return credentialPayload{token: domainauth.Token(tok)}, nil
	}

	tokVal, err := jmespath.Search(tokenExpr, generic)
	if err != nil {
		return credentialPayload{}, fmt.Errorf("extract token: %w", err)
	}
	tok, ok := tokVal.(string)
	if !ok || tok == "" {
		return credentialPayload{}, errors.New("credential response carries no token")
	}

	payload := credentialPayload{token: domainauth.Token(tok)}
	if userRaw, ok := generic["user"]; ok && userRaw != nil {
		userJSON, err := json.Marshal(userRaw)
		if err != nil {
			return credentialPayload{}, fmt.Errorf("re-encode user: %w", err)
		}
		var user domainauth.User
		if err := json.Unmarshal(userJSON, &user); err != nil {
			return credentialPayload{}, fmt.Errorf("decode user: %w", err)
		}
		payload.user = &user
	}
	return payload, nil
}

func readBodyPrefix(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return trimBody(raw)
}

func trimBody(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}

func closeBody(body io.Closer, logger *slog.Logger) {
	if err := body.Close(); err != nil {
		logger.Warn("closing response body failed", "error", err)
	}
}
