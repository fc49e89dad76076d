package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/corevida/leadflow/internal/memory"
	"github.com/corevida/leadflow/internal/models"
	"github.com/corevida/leadflow/internal/store"
)

func seedConversation(t *testing.T, st store.Store, id string, status models.ConversationStatus) {
	t.Helper()
	now := time.Now()
	err := st.SaveConversation(models.ConversationRecord{
		ID:           id,
		LeadID:       "lead-" + id,
		ConsultantID: "cons-1",
		Channel:      models.ChannelWhatsApp,
		Stage:        models.StageSituation,
		Context:      models.ContextMap{models.ContextName: "Ana"},
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("seed conversation %s: %v", id, err)
	}
}

func TestRecoverActiveConversations(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	sessions := memory.NewSessionStore(nil)

	seedConversation(t, st, "c1", models.ConversationStatusActive)
	seedConversation(t, st, "c2", models.ConversationStatusHandedOff)
	seedConversation(t, st, "c3", models.ConversationStatusActive)

	r := New(st, sessions)
	restored, err := r.RecoverActiveConversations(context.Background())
	if err != nil {
		t.Fatalf("RecoverActiveConversations: %v", err)
	}
	if restored != 2 {
		t.Errorf("restored = %d, want 2", restored)
	}
	if sessions.Len() != 2 {
		t.Errorf("sessions.Len() = %d, want 2", sessions.Len())
	}

	mem := sessions.Get("c1")
	if mem == nil {
		t.Fatal("c1 not restored")
	}
	if mem.Stage != models.StageSituation || mem.Context[models.ContextName] != "Ana" {
		t.Errorf("restored memory mismatch: %+v", mem)
	}
	if sessions.Get("c2") != nil {
		t.Error("handed-off conversation should not be restored")
	}
}

func TestRecoverSkipsResidentSessions(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	sessions := memory.NewSessionStore(nil)

	seedConversation(t, st, "c1", models.ConversationStatusActive)
	sessions.Create("c1", "lead-c1", "cons-1", models.ChannelWhatsApp, nil)

	r := New(st, sessions)
	restored, err := r.RecoverActiveConversations(context.Background())
	if err != nil {
		t.Fatalf("RecoverActiveConversations: %v", err)
	}
	if restored != 0 {
		t.Errorf("restored = %d, want 0", restored)
	}
}
