package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewRedis starts an in-memory Redis and returns it with a connected client.
// Both are closed when the test completes. Use mr.FastForward to expire leases
// and cached history pages.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(RedisOptions(mr))

	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("failed to close redis client: %v", err)
		}
	})

	return mr, client
}

// RedisOptions returns client options pointing at mr.
func RedisOptions(mr *miniredis.Miniredis) *redis.Options {
	return &redis.Options{Addr: mr.Addr()}
}
