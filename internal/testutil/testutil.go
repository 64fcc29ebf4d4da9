// Package testutil provides testing helpers shared across webgate packages.
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// SetupTestRedis starts an in-process miniredis instance and returns a client
// connected to it. Both are torn down with the test.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("warning: failed to close redis client: %v", err)
		}
	})
	return client
}
