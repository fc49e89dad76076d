package throttle

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Send queue configuration constants
const (
	// DefaultMinSendDelay is the minimum humanized pause between sends.
	DefaultMinSendDelay = 3 * time.Second
	// DefaultMaxSendDelay is the maximum humanized pause between sends.
	DefaultMaxSendDelay = 9 * time.Second
)

// SendAction performs one outbound send when the queue reaches it.
type SendAction func(ctx context.Context) error

type queueItem struct {
	recipient string
	action    SendAction
}

// QueueOpts holds configuration options for the send queue.
type QueueOpts struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// QueueOption defines a configuration option for the send queue.
type QueueOption func(*QueueOpts)

// WithSendDelayRange sets the bounds of the randomized pause between sends.
// A zero range disables the pause (used in tests).
func WithSendDelayRange(min, max time.Duration) QueueOption {
	return func(o *QueueOpts) {
		o.MinDelay = min
		o.MaxDelay = max
	}
}

// SendQueue serializes all outbound sends through one process-wide FIFO with
// a single consumer. Strict one-at-a-time draining keeps per-recipient
// ordering without per-recipient queues, and the randomized pause between
// sends keeps outbound traffic looking human rather than scripted.
type SendQueue struct {
	limiter  *RateLimiter
	minDelay time.Duration
	maxDelay time.Duration

	mu         sync.Mutex
	items      []queueItem
	processing bool
}

// NewSendQueue creates a send queue over the given rate limiter.
func NewSendQueue(limiter *RateLimiter, opts ...QueueOption) *SendQueue {
	cfg := QueueOpts{MinDelay: DefaultMinSendDelay, MaxDelay: DefaultMaxSendDelay}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &SendQueue{
		limiter:  limiter,
		minDelay: cfg.MinDelay,
		maxDelay: cfg.MaxDelay,
	}
}

// Enqueue appends an item to the queue and starts the consumer if idle.
// Items are delivered to their actions strictly in enqueue order, regardless
// of recipient and regardless of how long individual actions take.
func (q *SendQueue) Enqueue(recipient string, action SendAction) {
	q.mu.Lock()
	q.items = append(q.items, queueItem{recipient: recipient, action: action})
	start := !q.processing
	if start {
		q.processing = true
	}
	pending := len(q.items)
	q.mu.Unlock()

	slog.Debug("SendQueue.Enqueue: item queued", "recipient", recipient, "pending", pending)
	if start {
		go q.process()
	}
}

// process drains the queue one item at a time until it is empty.
func (q *SendQueue) process() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		if !q.limiter.Allow(item.recipient) {
			// Dropped, not requeued: retries are the caller's responsibility.
			slog.Warn("SendQueue.process: rate limit exceeded, dropping send", "recipient", item.recipient)
			continue
		}

		if err := item.action(context.Background()); err != nil {
			slog.Error("SendQueue.process: send action failed", "recipient", item.recipient, "error", err)
		}

		if delay := q.humanDelay(); delay > 0 {
			time.Sleep(delay)
		}
	}
}

// humanDelay returns a uniformly random pause within the configured bounds.
func (q *SendQueue) humanDelay() time.Duration {
	if q.maxDelay <= 0 {
		return 0
	}
	if q.maxDelay <= q.minDelay {
		return q.minDelay
	}
	return q.minDelay + rand.N(q.maxDelay-q.minDelay)
}

// WaitIdle blocks until the queue has drained or the timeout elapses. It
// returns true when the queue is idle. Used by tests and shutdown.
func (q *SendQueue) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		idle := !q.processing && len(q.items) == 0
		q.mu.Unlock()
		if idle {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
