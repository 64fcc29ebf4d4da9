package redis

// Package redis provides Redis-based adapters for the webgate session layer.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/careassist/webgate/internal/domain/auth"
)

// TokenStore is the Redis-backed durable side of the session token.
// Entries expire with the cookie lifetime so an abandoned browser session
// does not leave a token behind forever.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewTokenStore creates a Redis-backed token store. A non-positive ttl
// falls back to seven days, matching the cookie expiry.
func NewTokenStore(client redis.UniversalClient, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenStore{
		client: client,
		prefix: "token:",
		ttl:    ttl,
	}
}

func (s *TokenStore) Write(ctx context.Context, key string, token domainauth.Token) error {
	if key == "" {
		return errors.New("session key cannot be empty")
	}
	if !token.Present() {
		return errors.New("token cannot be empty")
	}
	if err := s.client.Set(ctx, s.prefix+key, string(token), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *TokenStore) Read(ctx context.Context, key string) (domainauth.Token, error) {
	if key == "" {
		return "", nil
	}
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return domainauth.Token(val), nil
}

func (s *TokenStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil // Nothing to delete
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
