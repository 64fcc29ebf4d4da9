// Package memstore provides in-memory implementations of the token and
// guard-flag stores for development mode and tests. Entries honor the same
// TTL semantics as the Redis adapters, checked lazily on access.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
)

// TokenStore is a mutex-guarded in-memory token store.
type TokenStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]tokenEntry
}

type tokenEntry struct {
	token     domainauth.Token
	expiresAt time.Time
}

// NewTokenStore creates an in-memory token store. A non-positive ttl falls
// back to seven days, matching the cookie expiry.
func NewTokenStore(ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenStore{ttl: ttl, m: make(map[string]tokenEntry)}
}

func (s *TokenStore) Write(_ context.Context, key string, token domainauth.Token) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}
	if !token.Present() {
		return errors.New("token cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = tokenEntry{token: token, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

func (s *TokenStore) Read(_ context.Context, key string) (domainauth.Token, error) {
	if key == "" {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return "", nil
	}
	if time.Now().After(e.expiresAt) {
		delete(s.m, key)
		return "", nil
	}
	return e.token, nil
}

func (s *TokenStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// FlagStore is a mutex-guarded in-memory guard flag store.
type FlagStore struct {
	mu sync.Mutex
	m  map[string]time.Time
}

// NewFlagStore creates an in-memory guard flag store.
func NewFlagStore() *FlagStore {
	return &FlagStore{m: make(map[string]time.Time)}
}

func flagKey(key, path string) string { return key + ":" + path }

func (s *FlagStore) Set(_ context.Context, key, path string, ttl time.Duration) (bool, error) {
	if key == "" || path == "" {
		return false, errors.New("flag key and path cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := flagKey(key, path)
	if exp, ok := s.m[k]; ok && time.Now().Before(exp) {
		return false, nil
	}
	s.m[k] = time.Now().Add(ttl)
	return true, nil
}

func (s *FlagStore) Clear(_ context.Context, key, path string) error {
	if key == "" || path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, flagKey(key, path))
	return nil
}
