// Package cache defines the remote cache tier used to rehydrate active
// conversations across process restarts without a durable-store round trip.
//
// The Tier contract distinguishes hit, miss, and error explicitly so callers
// can decide whether a failure is worth surfacing. The memory layer treats any
// tier failure as a miss and never blocks the user-facing path on it.
package cache

import (
	"context"
	"time"
)

// Tier is a best-effort key-value cache with TTL semantics.
type Tier interface {
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves the value for key. The second return is false on a miss;
	// an error indicates the tier itself failed (unreachable, timed out).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
}
