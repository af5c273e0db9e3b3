// Package cache provides the key-value-with-TTL contract used for analysis
// result caching and single-flight locking. Any backend that supports get,
// set-with-TTL, set-if-absent and delete satisfies it; Redis backs
// multi-process deployments, the in-memory store backs single-process use
// and tests.
package cache

import (
	"context"
	"time"
)

// Store is a key-value store with TTL and an atomic set-if-absent primitive.
type Store interface {
	// Get returns the value for key. found is false on a miss; err is
	// reserved for backend failures.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetIfAbsent stores value only when key does not exist, with the given
	// TTL as a lease. Returns true when the write happened.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
