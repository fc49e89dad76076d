// Package gamification awards experience points for completed wellness
// actions so consultants can track lead engagement over time.
package gamification

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/corevida/leadflow/internal/models"
	"github.com/corevida/leadflow/internal/store"
)

// XP amounts per completed check-in action.
const (
	XPShake      = 10
	XPHydration  = 5
	XPSupplement = 5
	XPWeight     = 15
	XPFullDay    = 20
)

// Awarder records XP events for leads, keyed by phone number.
type Awarder interface {
	Award(phone, reason string, points int) error
	Total(phone string) (int, error)
}

// StoreAwarder persists XP events through the durable store.
type StoreAwarder struct {
	store store.Store
}

// NewStoreAwarder creates an Awarder backed by the given store.
func NewStoreAwarder(st store.Store) *StoreAwarder {
	return &StoreAwarder{store: st}
}

// Award records a single XP event.
func (a *StoreAwarder) Award(phone, reason string, points int) error {
	ev := models.XPEvent{
		ID:        uuid.NewString(),
		Phone:     phone,
		Points:    points,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := a.store.AddXPEvent(ev); err != nil {
		slog.Error("StoreAwarder.Award: failed to record XP", "phone", phone, "reason", reason, "error", err)
		return fmt.Errorf("record xp event: %w", err)
	}
	slog.Debug("StoreAwarder.Award: XP recorded", "phone", phone, "reason", reason, "points", points)
	return nil
}

// Total returns the accumulated XP for a phone number.
func (a *StoreAwarder) Total(phone string) (int, error) {
	total, err := a.store.GetXPTotal(phone)
	if err != nil {
		return 0, fmt.Errorf("get xp total: %w", err)
	}
	return total, nil
}
