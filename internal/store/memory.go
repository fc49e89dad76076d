// Package store provides durable storage backends for LeadFlow.
//
// This file implements an in-memory store used in tests.
package store

import (
	"sort"
	"sync"

	"github.com/corevida/leadflow/internal/models"
)

// InMemoryStore is a Store implementation backed by process memory.
// It is safe for concurrent use and intended for tests.
type InMemoryStore struct {
	mu            sync.RWMutex
	leads         map[string]models.Lead
	consultants   map[string]models.Consultant
	conversations map[string]models.ConversationRecord
	checkins      []models.CheckinRecord
	xpEvents      []models.XPEvent
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		leads:         make(map[string]models.Lead),
		consultants:   make(map[string]models.Consultant),
		conversations: make(map[string]models.ConversationRecord),
	}
}

func (s *InMemoryStore) SaveLead(l models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[l.ID] = l
	return nil
}

func (s *InMemoryStore) GetLead(id string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.leads[id]; ok {
		return &l, nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetLeadByPhone(phone string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.leads {
		if l.Phone == phone {
			lead := l
			return &lead, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ListLeads() ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	leads := make([]models.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		leads = append(leads, l)
	}
	sort.Slice(leads, func(i, j int) bool { return leads[i].CreatedAt.Before(leads[j].CreatedAt) })
	return leads, nil
}

func (s *InMemoryStore) SaveConsultant(c models.Consultant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consultants[c.ID] = c
	return nil
}

func (s *InMemoryStore) GetConsultant(id string) (*models.Consultant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.consultants[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *InMemoryStore) SaveConversation(rec models.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[rec.ID] = rec
	return nil
}

func (s *InMemoryStore) GetConversation(id string) (*models.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.conversations[id]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *InMemoryStore) GetActiveConversationByLead(leadID string) (*models.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.ConversationRecord
	for id := range s.conversations {
		rec := s.conversations[id]
		if rec.LeadID != leadID || rec.Status != models.ConversationStatusActive {
			continue
		}
		if latest == nil || rec.UpdatedAt.After(latest.UpdatedAt) {
			r := rec
			latest = &r
		}
	}
	return latest, nil
}

func (s *InMemoryStore) UpdateConversation(rec models.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.conversations[rec.ID]
	if !ok {
		return models.ErrConversationNotFound
	}
	existing.Stage = rec.Stage
	existing.Messages = rec.Messages
	existing.Context = rec.Context
	existing.Status = rec.Status
	existing.HandoffTriggered = rec.HandoffTriggered
	existing.UpdatedAt = rec.UpdatedAt
	s.conversations[rec.ID] = existing
	return nil
}

func (s *InMemoryStore) ListConversations() ([]models.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]models.ConversationRecord, 0, len(s.conversations))
	for _, rec := range s.conversations {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].UpdatedAt.After(recs[j].UpdatedAt) })
	return recs, nil
}

func (s *InMemoryStore) AddCheckin(rec models.CheckinRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkins = append(s.checkins, rec)
	return nil
}

// GetCheckins returns all recorded check-ins. Used by tests.
func (s *InMemoryStore) GetCheckins() []models.CheckinRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CheckinRecord(nil), s.checkins...)
}

func (s *InMemoryStore) AddXPEvent(ev models.XPEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.xpEvents = append(s.xpEvents, ev)
	return nil
}

func (s *InMemoryStore) GetXPTotal(phone string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, ev := range s.xpEvents {
		if ev.Phone == phone {
			total += ev.Points
		}
	}
	return total, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
