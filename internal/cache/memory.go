// Package cache provides cache tier implementations.
//
// This file implements an in-process tier used in tests and single-node
// deployments that run without Redis.
package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryTier is a process-local Tier implementation. Entries are expired
// lazily on read. It is safe for concurrent use.
type MemoryTier struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryTier creates an empty in-process cache tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{entries: make(map[string]memoryEntry)}
}

// Set stores value under key with the given TTL. A zero TTL means no expiry.
func (t *MemoryTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	t.entries[key] = entry
	return nil
}

// Get retrieves the value for key, expiring stale entries on the way.
func (t *MemoryTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(t.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

// Del removes key.
func (t *MemoryTier) Del(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
	return nil
}

// Len returns the number of live entries, counting ones not yet lazily
// expired. Used by tests.
func (t *MemoryTier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
