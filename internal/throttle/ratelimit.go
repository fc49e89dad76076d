// Package throttle provides outbound send pacing for LeadFlow: a
// per-recipient hourly rate limiter, a global FIFO send queue with humanized
// delays, an allowed-hours clock check, and template text variation.
//
// Limiter and queue are explicitly constructed, injected instances; there is
// no package-level state. Their counters are only meaningful within a single
// process.
package throttle

import (
	"sync"
	"time"
)

// Rate limiting configuration constants
const (
	// DefaultMaxPerWindow is the default per-recipient message cap per window.
	DefaultMaxPerWindow = 10
	// DefaultWindow is the rate-limit window length.
	DefaultWindow = time.Hour
)

// rateLimitRecord is one recipient's rolling-window counter. The window
// starts on the first message and resets only once the full window has
// elapsed; this is a reset-on-expiry counter, not a true sliding window.
type rateLimitRecord struct {
	count       int
	windowStart time.Time
}

// RateLimiter caps outbound messages per recipient per window. It is safe
// for concurrent use.
type RateLimiter struct {
	mu           sync.Mutex
	maxPerWindow int
	window       time.Duration
	records      map[string]*rateLimitRecord
}

// NewRateLimiter creates a limiter allowing maxPerWindow sends per recipient
// per window. Non-positive arguments fall back to the defaults.
func NewRateLimiter(maxPerWindow int, window time.Duration) *RateLimiter {
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultMaxPerWindow
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RateLimiter{
		maxPerWindow: maxPerWindow,
		window:       window,
		records:      make(map[string]*rateLimitRecord),
	}
}

// Allow reports whether another message may be sent to recipient now, and
// counts it if so. When the cap is exceeded it returns false without
// incrementing.
func (r *RateLimiter) Allow(recipient string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	rec, ok := r.records[recipient]
	if !ok || now.Sub(rec.windowStart) > r.window {
		r.records[recipient] = &rateLimitRecord{count: 1, windowStart: now}
		return true
	}
	if rec.count >= r.maxPerWindow {
		return false
	}
	rec.count++
	return true
}
