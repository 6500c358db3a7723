// Package storage defines a small counter-store abstraction used by
// the rate limiter, following
// the fawa pattern of a Storage interface with a Dragonfly/Redis
// implementation (fileservice/storage) plus, here, an in-process
// stand-in so a single-process deployment needs no external service.
package storage

import (
	"context"
	"time"
)

// Storage is the counter store contract: increment-with-TTL for
// fixed-window rate limiting, plus plain key/value set/get. The
// registry's idle timers are process-local and do not use it.
type Storage interface {
	// Incr increments key by 1 and returns the new value. MemoryStorage
	// sets ttl only when the key is created; RedisStorage re-applies it
	// on every increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the current value for key, or 0 if absent.
	Get(ctx context.Context, key string) (int64, error)
	// Set stores value for key with ttl.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// GetString returns the stored string value for key, or "" if absent.
	GetString(ctx context.Context, key string) (string, error)
	// Del removes key.
	Del(ctx context.Context, key string) error
}
