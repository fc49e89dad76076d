// Package memory implements session storage.
//
// This file holds the ephemeral check-in session store, which reuses the
// tiered cache primitive under a distinct namespace and a short TTL.
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

const (
	// DefaultCheckinTTL is how long an unfinished check-in session survives.
	DefaultCheckinTTL = 2 * time.Hour
	// checkinKeyPrefix namespaces check-in sessions in tier 2.
	checkinKeyPrefix = "leadflow:checkin:"
)

// CheckinStore holds in-progress daily check-in sessions keyed by phone
// number. Sessions are single-instance per phone; a new Put overwrites the
// previous session (last write wins).
type CheckinStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.CheckinSession
	tier2    cache.Tier
	ttl      time.Duration
}

// NewCheckinStore creates a check-in session store over an optional tier-2
// cache.
func NewCheckinStore(tier2 cache.Tier) *CheckinStore {
	return &CheckinStore{
		sessions: make(map[string]*models.CheckinSession),
		tier2:    tier2,
		ttl:      DefaultCheckinTTL,
	}
}

// Get returns the active session for phone, falling back to tier 2. Expired
// sessions are dropped and reported as absent.
func (s *CheckinStore) Get(ctx context.Context, phone string) *models.CheckinSession {
	s.mu.RLock()
	sess := s.sessions[phone]
	s.mu.RUnlock()

	if sess == nil && s.tier2 != nil {
		data, hit, err := s.tier2.Get(ctx, checkinKeyPrefix+phone)
		if err != nil {
			slog.Warn("CheckinStore.Get: tier-2 read failed, treating as miss", "phone", phone, "error", err)
		} else if hit {
			var restored models.CheckinSession
			if err := json.Unmarshal(data, &restored); err != nil {
				slog.Warn("CheckinStore.Get: tier-2 entry corrupt, treating as miss", "phone", phone, "error", err)
			} else {
				sess = &restored
				s.mu.Lock()
				s.sessions[phone] = sess
				s.mu.Unlock()
			}
		}
	}

	if sess == nil {
		return nil
	}
	if time.Since(sess.StartedAt) > s.ttl {
		slog.Debug("CheckinStore.Get: session expired", "phone", phone, "startedAt", sess.StartedAt)
		s.Delete(ctx, phone)
		return nil
	}
	return sess
}

// Put stores the session, overwriting any previous one for the same phone.
func (s *CheckinStore) Put(ctx context.Context, sess *models.CheckinSession) {
	s.mu.Lock()
	s.sessions[sess.Phone] = sess
	s.mu.Unlock()

	if s.tier2 == nil {
		return
	}
	data, err := json.Marshal(sess)
	if err != nil {
		slog.Error("CheckinStore.Put: marshal failed", "phone", sess.Phone, "error", err)
		return
	}
	if err := s.tier2.Set(ctx, checkinKeyPrefix+sess.Phone, data, s.ttl); err != nil {
		slog.Warn("CheckinStore.Put: tier-2 write failed", "phone", sess.Phone, "error", err)
	}
}

// Delete removes the session from both tiers.
func (s *CheckinStore) Delete(ctx context.Context, phone string) {
	s.mu.Lock()
	delete(s.sessions, phone)
	s.mu.Unlock()

	if s.tier2 != nil {
		if err := s.tier2.Del(ctx, checkinKeyPrefix+phone); err != nil {
			slog.Warn("CheckinStore.Delete: tier-2 delete failed", "phone", phone, "error", err)
		}
	}
}
