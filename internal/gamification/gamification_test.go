package gamification

import (
	"testing"

	"github.com/corevida/leadflow/internal/models"
	"github.com/corevida/leadflow/internal/store"
)

// recordingStore captures XP events so tests can inspect what Award builds.
type recordingStore struct {
	store.Store
	events []models.XPEvent
}

func (r *recordingStore) AddXPEvent(ev models.XPEvent) error {
	r.events = append(r.events, ev)
	return r.Store.AddXPEvent(ev)
}

func TestAwardAndTotal(t *testing.T) {
	a := NewStoreAwarder(store.NewInMemoryStore())

	if err := a.Award("+5511999990001", "shake_am", XPShake); err != nil {
		t.Fatalf("Award: %v", err)
	}
	if err := a.Award("+5511999990001", "weight", XPWeight); err != nil {
		t.Fatalf("Award: %v", err)
	}
	if err := a.Award("+5511999990002", "hydration", XPHydration); err != nil {
		t.Fatalf("Award: %v", err)
	}

	total, err := a.Total("+5511999990001")
	if err != nil {
		t.Fatalf("Total: %v", err)
	}
	if total != XPShake+XPWeight {
		t.Errorf("total = %d, want %d", total, XPShake+XPWeight)
	}

	total, err = a.Total("+5511999990002")
	if err != nil {
		t.Fatalf("Total: %v", err)
	}
	if total != XPHydration {
		t.Errorf("total = %d, want %d", total, XPHydration)
	}
}

func TestAwardAssignsUniqueEventIDs(t *testing.T) {
	rs := &recordingStore{Store: store.NewInMemoryStore()}
	a := NewStoreAwarder(rs)

	if err := a.Award("+5511999990001", "shake_am", XPShake); err != nil {
		t.Fatalf("Award: %v", err)
	}
	if err := a.Award("+5511999990001", "shake_pm", XPShake); err != nil {
		t.Fatalf("Award: %v", err)
	}

	if len(rs.events) != 2 {
		t.Fatalf("recorded events = %d, want 2", len(rs.events))
	}
	// The event ID is the primary key in the SQL backends, so it must be set
	// and distinct per award.
	if rs.events[0].ID == "" || rs.events[1].ID == "" {
		t.Errorf("event IDs must be set: %q, %q", rs.events[0].ID, rs.events[1].ID)
	}
	if rs.events[0].ID == rs.events[1].ID {
		t.Errorf("event IDs must be unique, both = %q", rs.events[0].ID)
	}
}

func TestTotalUnknownPhone(t *testing.T) {
	a := NewStoreAwarder(store.NewInMemoryStore())
	total, err := a.Total("+5511000000000")
	if err != nil {
		t.Fatalf("Total: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
}
