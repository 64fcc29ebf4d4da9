package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
	"github.com/careassist/webgate/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthAPI        = (*MockAuthAPI)(nil)
	_ ports.TokenStore     = (*MemoryTokenStore)(nil)
	_ ports.GuardFlagStore = (*MemoryFlagStore)(nil)
)

// MockAuthAPI simulates the product API with overridable funcs and call
// counters for asserting interaction shapes.
type MockAuthAPI struct {
	LoginFunc    func(ctx context.Context, email, password string) (domainauth.Token, *domainauth.User, error)
	RegisterFunc func(ctx context.Context, email, password, name string) (domainauth.Token, *domainauth.User, error)
	LogoutFunc   func(ctx context.Context, token domainauth.Token) error
	ResolveFunc  func(ctx context.Context, token domainauth.Token) (*domainauth.User, error)

	mu           sync.Mutex
	LoginCalls   int
	LogoutCalls  int
	ResolveCalls int
}

func (m *MockAuthAPI) Login(ctx context.Context, email, password string) (domainauth.Token, *domainauth.User, error) {
	m.mu.Lock()
	m.LoginCalls++
	m.mu.Unlock()
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return "", nil, errors.New("login not configured")
}

func (m *MockAuthAPI) Register(ctx context.Context, email, password, name string) (domainauth.Token, *domainauth.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password, name)
	}
	return "", nil, errors.New("register not configured")
}

func (m *MockAuthAPI) Logout(ctx context.Context, token domainauth.Token) error {
	m.mu.Lock()
	m.LogoutCalls++
	m.mu.Unlock()
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

func (m *MockAuthAPI) Resolve(ctx context.Context, token domainauth.Token) (*domainauth.User, error) {
	m.mu.Lock()
	m.ResolveCalls++
	m.mu.Unlock()
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, token)
	}
	return nil, errors.New("resolve not configured")
}

// ResolveCount returns how many resolve calls were made.
func (m *MockAuthAPI) ResolveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ResolveCalls
}

// MemoryTokenStore is a minimal in-memory TokenStore for tests.
type MemoryTokenStore struct {
	mu       sync.Mutex
	m        map[string]domainauth.Token
	WriteErr error
	ReadErr  error
}

func (s *MemoryTokenStore) Write(_ context.Context, key string, token domainauth.Token) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]domainauth.Token{}
	}
	s.m[key] = token
	return nil
}

func (s *MemoryTokenStore) Read(_ context.Context, key string) (domainauth.Token, error) {
	if s.ReadErr != nil {
		return "", s.ReadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// MemoryFlagStore is a minimal in-memory GuardFlagStore for tests.
type MemoryFlagStore struct {
	mu sync.Mutex
	m  map[string]bool
}

func (s *MemoryFlagStore) Set(_ context.Context, key, path string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]bool{}
	}
	k := key + ":" + path
	if s.m[k] {
		return false, nil
	}
	s.m[k] = true
	return true, nil
}

func (s *MemoryFlagStore) Clear(_ context.Context, key, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key+":"+path)
	return nil
}

// IsSet reports whether a flag is live, for test assertions.
func (s *MemoryFlagStore) IsSet(key, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key+":"+path]
}
