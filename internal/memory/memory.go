// Package memory implements the tiered conversation session store.
//
// Tier 1 is a process-local map, tier 2 an optional remote cache used to
// rehydrate active conversations after a restart, and tier 3 the durable
// store, which remains the source of truth and is never deleted by this
// layer. Every mutating operation refreshes LastUpdated and propagates the
// entry to tier 2 asynchronously, best-effort: cache failures are logged,
// never returned to the caller.
package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/corevida/leadflow/internal/cache"
	"github.com/corevida/leadflow/internal/models"
)

// Session memory configuration constants
const (
	// DefaultCacheTTL is how long tier-2 entries survive without refresh.
	DefaultCacheTTL = 24 * time.Hour
	// DefaultMaxIdleAge is the inactivity window after which tier-1 entries
	// are evicted by the sweep. Eviction is pure cache cleanup; history stays
	// in the durable store.
	DefaultMaxIdleAge = 24 * time.Hour
	// DefaultSweepInterval is the cadence of the tier-1 eviction sweep.
	DefaultSweepInterval = 6 * time.Hour
	// conversationKeyPrefix namespaces conversation entries in tier 2.
	conversationKeyPrefix = "leadflow:conversation:"
	// writeThroughTimeout bounds the async tier-2 write.
	writeThroughTimeout = 5 * time.Second
)

// DurableState is the minimal projection persisted to the durable store.
type DurableState struct {
	Stage    models.Stage      `json:"stage"`
	Messages []models.Message  `json:"messages"`
	Context  models.ContextMap `json:"context"`
}

// Opts holds configuration options for the session store.
type Opts struct {
	CacheTTL      time.Duration
	MaxIdleAge    time.Duration
	SweepInterval time.Duration
}

// Option defines a configuration option for the session store.
type Option func(*Opts)

// WithCacheTTL sets the tier-2 TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.CacheTTL = ttl }
}

// WithMaxIdleAge sets the tier-1 eviction age.
func WithMaxIdleAge(age time.Duration) Option {
	return func(o *Opts) { o.MaxIdleAge = age }
}

// WithSweepInterval sets the eviction sweep cadence.
func WithSweepInterval(interval time.Duration) Option {
	return func(o *Opts) { o.SweepInterval = interval }
}

// SessionStore holds active conversation memory. It is an explicitly
// constructed, injected service rather than package-level state, so tests can
// run independent instances.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[string]*models.ConversationMemory

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	tier2         cache.Tier // optional; nil degrades to tier-1 only
	cacheTTL      time.Duration
	maxIdleAge    time.Duration
	sweepInterval time.Duration
}

// NewSessionStore creates a session store over an optional tier-2 cache.
func NewSessionStore(tier2 cache.Tier, opts ...Option) *SessionStore {
	cfg := Opts{
		CacheTTL:      DefaultCacheTTL,
		MaxIdleAge:    DefaultMaxIdleAge,
		SweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SessionStore.NewSessionStore: creating session store", "hasTier2", tier2 != nil, "cacheTTL", cfg.CacheTTL, "maxIdleAge", cfg.MaxIdleAge)
	return &SessionStore{
		entries:       make(map[string]*models.ConversationMemory),
		locks:         make(map[string]*sync.Mutex),
		tier2:         tier2,
		cacheTTL:      cfg.CacheTTL,
		maxIdleAge:    cfg.MaxIdleAge,
		sweepInterval: cfg.SweepInterval,
	}
}

// Lock acquires the per-conversation mutex and returns its unlock function.
// The dialogue state machine holds this lock for the whole logical operation
// so concurrent inbound messages for the same lead are serialized instead of
// racing on messages/context/stage.
func (s *SessionStore) Lock(conversationID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[conversationID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[conversationID] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// Create builds a fresh conversation entry and stores it in tier 1.
func (s *SessionStore) Create(conversationID, leadID, consultantID string, channel models.Channel, initialContext models.ContextMap) *models.ConversationMemory {
	ctxMap := models.ContextMap{}
	for k, v := range initialContext {
		ctxMap[k] = v
	}
	mem := &models.ConversationMemory{
		ConversationID: conversationID,
		LeadID:         leadID,
		ConsultantID:   consultantID,
		Channel:        channel,
		Stage:          models.InitialStage(ctxMap[models.ContextProfileType]),
		Messages:       []models.Message{},
		Context:        ctxMap,
		Signals:        []models.Signal{},
		LastUpdated:    time.Now(),
	}
	s.mu.Lock()
	s.entries[conversationID] = mem
	s.mu.Unlock()
	slog.Debug("SessionStore.Create: conversation created", "conversationID", conversationID, "leadID", leadID, "stage", mem.Stage)
	s.writeThrough(mem)
	return mem
}

// Get returns the tier-1 entry or nil. It never touches tier 2.
func (s *SessionStore) Get(conversationID string) *models.ConversationMemory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[conversationID]
}

// FindByLead returns the most recently updated tier-1 entry for a lead, or
// nil when none is resident. Callers that only know the lead (a first message
// after the startup warm-up) use it before paying a durable round trip.
func (s *SessionStore) FindByLead(leadID string) *models.ConversationMemory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.ConversationMemory
	for _, mem := range s.entries {
		if mem.LeadID != leadID {
			continue
		}
		if found == nil || mem.LastUpdated.After(found.LastUpdated) {
			found = mem
		}
	}
	return found
}

// GetOrRestore resolves a conversation through the tiers: tier 1, then tier 2
// with deserialization. A nil return means the caller must rebuild from the
// durable store. Tier-2 failures degrade to a miss.
func (s *SessionStore) GetOrRestore(ctx context.Context, conversationID string) *models.ConversationMemory {
	if mem := s.Get(conversationID); mem != nil {
		return mem
	}
	if s.tier2 == nil {
		return nil
	}

	data, hit, err := s.tier2.Get(ctx, conversationKeyPrefix+conversationID)
	if err != nil {
		slog.Warn("SessionStore.GetOrRestore: tier-2 read failed, treating as miss", "conversationID", conversationID, "error", err)
		return nil
	}
	if !hit {
		return nil
	}

	var mem models.ConversationMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("SessionStore.GetOrRestore: tier-2 entry corrupt, treating as miss", "conversationID", conversationID, "error", err)
		return nil
	}

	s.mu.Lock()
	s.entries[conversationID] = &mem
	s.mu.Unlock()
	slog.Debug("SessionStore.GetOrRestore: rehydrated from tier 2", "conversationID", conversationID, "stage", mem.Stage)
	return &mem
}

// AddMessage appends a message to the conversation history (append-only).
func (s *SessionStore) AddMessage(conversationID, role, content string) {
	mem := s.Get(conversationID)
	if mem == nil {
		return
	}
	mem.Messages = append(mem.Messages, models.Message{Role: role, Content: content, Timestamp: time.Now()})
	s.touch(mem)
}

// UpdateContext shallow-merges updates into the collected context map.
func (s *SessionStore) UpdateContext(conversationID string, updates models.ContextMap) {
	mem := s.Get(conversationID)
	if mem == nil {
		return
	}
	if mem.Context == nil {
		mem.Context = models.ContextMap{}
	}
	for k, v := range updates {
		mem.Context[k] = v
	}
	s.touch(mem)
}

// AdvanceStage moves the conversation to the next stage on its track,
// saturating at the terminal stage. It returns the resulting stage.
func (s *SessionStore) AdvanceStage(conversationID string) models.Stage {
	mem := s.Get(conversationID)
	if mem == nil {
		return ""
	}
	next := models.NextStage(mem.Stage, mem.Context[models.ContextProfileType])
	if next != mem.Stage {
		slog.Debug("SessionStore.AdvanceStage: stage advanced", "conversationID", conversationID, "from", mem.Stage, "to", next)
	}
	mem.Stage = next
	s.touch(mem)
	return next
}

// AddSignal records a behavioral signal with set semantics.
func (s *SessionStore) AddSignal(conversationID string, signal models.Signal) {
	mem := s.Get(conversationID)
	if mem == nil {
		return
	}
	for _, existing := range mem.Signals {
		if existing == signal {
			return
		}
	}
	mem.Signals = append(mem.Signals, signal)
	s.touch(mem)
}

// UpdateHandoffScore stores a recomputed handoff score.
func (s *SessionStore) UpdateHandoffScore(conversationID string, score int) {
	mem := s.Get(conversationID)
	if mem == nil {
		return
	}
	mem.HandoffScore = score
	s.touch(mem)
}

// Serialize projects the conversation to the minimal durable-persist shape.
func (s *SessionStore) Serialize(conversationID string) *DurableState {
	mem := s.Get(conversationID)
	if mem == nil {
		return nil
	}
	return &DurableState{Stage: mem.Stage, Messages: mem.Messages, Context: mem.Context}
}

// Restore rebuilds a tier-1 entry from a durable-store row and writes it
// through to tier 2.
func (s *SessionStore) Restore(rec *models.ConversationRecord) *models.ConversationMemory {
	mem := &models.ConversationMemory{
		ConversationID: rec.ID,
		LeadID:         rec.LeadID,
		ConsultantID:   rec.ConsultantID,
		Channel:        rec.Channel,
		Stage:          rec.Stage,
		Messages:       rec.Messages,
		Context:        rec.Context,
		Signals:        []models.Signal{},
		LastUpdated:    time.Now(),
	}
	if mem.Messages == nil {
		mem.Messages = []models.Message{}
	}
	if mem.Context == nil {
		mem.Context = models.ContextMap{}
	}
	s.mu.Lock()
	s.entries[rec.ID] = mem
	s.mu.Unlock()
	slog.Debug("SessionStore.Restore: conversation restored from durable store", "conversationID", rec.ID, "stage", rec.Stage)
	s.writeThrough(mem)
	return mem
}

// Evict removes a conversation from tier 1 and tier 2. The durable store is
// untouched.
func (s *SessionStore) Evict(ctx context.Context, conversationID string) {
	s.mu.Lock()
	delete(s.entries, conversationID)
	s.mu.Unlock()

	s.locksMu.Lock()
	delete(s.locks, conversationID)
	s.locksMu.Unlock()

	if s.tier2 != nil {
		if err := s.tier2.Del(ctx, conversationKeyPrefix+conversationID); err != nil {
			slog.Warn("SessionStore.Evict: tier-2 delete failed", "conversationID", conversationID, "error", err)
		}
	}
}

// Sweep evicts tier-1 entries idle beyond the max age. It returns the number
// of evicted entries.
func (s *SessionStore) Sweep(ctx context.Context) int {
	cutoff := time.Now().Add(-s.maxIdleAge)

	s.mu.RLock()
	var stale []string
	for id, mem := range s.entries {
		if mem.LastUpdated.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.Evict(ctx, id)
	}
	if len(stale) > 0 {
		slog.Info("SessionStore.Sweep: evicted idle conversations", "count", len(stale), "maxIdleAge", s.maxIdleAge)
	}
	return len(stale)
}

// SweepInterval returns the configured sweep cadence, for the scheduler.
func (s *SessionStore) SweepInterval() time.Duration {
	return s.sweepInterval
}

// Len returns the number of tier-1 entries. Used by tests and stats.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// touch refreshes LastUpdated and schedules the tier-2 write-through.
func (s *SessionStore) touch(mem *models.ConversationMemory) {
	mem.LastUpdated = time.Now()
	s.writeThrough(mem)
}

// writeThrough propagates the full entry to tier 2 asynchronously. Failures
// are logged and swallowed: tier 2 is a best-effort rehydration layer, and
// the user-facing path must never block on it.
func (s *SessionStore) writeThrough(mem *models.ConversationMemory) {
	if s.tier2 == nil {
		return
	}
	data, err := json.Marshal(mem)
	if err != nil {
		slog.Error("SessionStore.writeThrough: marshal failed", "conversationID", mem.ConversationID, "error", err)
		return
	}
	key := conversationKeyPrefix + mem.ConversationID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeThroughTimeout)
		defer cancel()
		if err := s.tier2.Set(ctx, key, data, s.cacheTTL); err != nil {
			slog.Warn("SessionStore.writeThrough: tier-2 write failed", "conversationID", mem.ConversationID, "error", err)
		}
	}()
}
