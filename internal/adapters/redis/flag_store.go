package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FlagStore records redirect-guard flags in Redis with a bounded TTL.
// SET NX gives the set-if-absent semantics the loop guard needs: the first
// caller wins and may redirect, everyone else sees an existing flag.
type FlagStore struct {
	client redis.UniversalClient
	prefix string
}

// NewFlagStore creates a Redis-backed guard flag store.
func NewFlagStore(client redis.UniversalClient) *FlagStore {
	return &FlagStore{client: client, prefix: "guardflag:"}
}

func (s *FlagStore) key(key, path string) string {
	return s.prefix + key + ":" + path
}

// Set records the flag for key+path and reports whether it was newly set.
func (s *FlagStore) Set(ctx context.Context, key, path string, ttl time.Duration) (bool, error) {
	if key == "" || path == "" {
		return false, errors.New("flag key and path cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := s.client.SetNX(ctx, s.key(key, path), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Clear removes the flag. Clearing an absent flag is a no-op.
func (s *FlagStore) Clear(ctx context.Context, key, path string) error {
	if key == "" || path == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(key, path)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
