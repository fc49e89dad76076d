package retention

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/corevida/leadflow/internal/flow"
	"github.com/corevida/leadflow/internal/gamification"
	"github.com/corevida/leadflow/internal/memory"
	"github.com/corevida/leadflow/internal/models"
	"github.com/corevida/leadflow/internal/store"
	"github.com/corevida/leadflow/internal/throttle"
)

type mockSender struct {
	mu   sync.Mutex
	sent []string
}

func (m *mockSender) SendMessage(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+body)
	return nil
}

func (m *mockSender) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// daytimeOffset returns a UTC offset that puts local time at noon, so the
// allowed-hours gate is always open during the test.
func daytimeOffset() int {
	return 12 - time.Now().UTC().Hour()
}

func newTestRetention(st *store.InMemoryStore, sender *mockSender, opts ...Option) (*Retention, *throttle.SendQueue) {
	sessions := memory.NewSessionStore(nil)
	checkin := flow.NewCheckinFlow(memory.NewCheckinStore(nil), st, gamification.NewStoreAwarder(st))
	queue := throttle.NewSendQueue(throttle.NewRateLimiter(100, time.Hour), throttle.WithSendDelayRange(0, 0))
	opts = append([]Option{WithUTCOffsetHours(daytimeOffset())}, opts...)
	return New(st, checkin, sessions, queue, sender, opts...), queue
}

func seedConvertedLead(t *testing.T, st *store.InMemoryStore, leadID, phone string, convertedAt time.Time) {
	t.Helper()
	if err := st.SaveLead(models.Lead{ID: leadID, Phone: phone, Channel: models.ChannelWhatsApp, CreatedAt: convertedAt}); err != nil {
		t.Fatal(err)
	}
	err := st.SaveConversation(models.ConversationRecord{
		ID:        "conv-" + leadID,
		LeadID:    leadID,
		Channel:   models.ChannelWhatsApp,
		Stage:     models.StageTransition,
		Status:    models.ConversationStatusConverted,
		UpdatedAt: convertedAt,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunMorningCheckins(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := &mockSender{}
	r, queue := newTestRetention(st, sender)

	seedConvertedLead(t, st, "lead-1", "5511999990001", time.Now().Add(-48*time.Hour))
	seedConvertedLead(t, st, "lead-2", "5511999990002", time.Now().Add(-24*time.Hour))

	// Active conversations are not customers yet.
	st.SaveLead(models.Lead{ID: "lead-3", Phone: "5511999990003", Channel: models.ChannelWhatsApp})
	st.SaveConversation(models.ConversationRecord{
		ID: "conv-lead-3", LeadID: "lead-3", Status: models.ConversationStatusActive, UpdatedAt: time.Now(),
	})

	started := r.RunMorningCheckins(context.Background())
	if started != 2 {
		t.Errorf("started %d check-ins, want 2", started)
	}
	if !queue.WaitIdle(3 * time.Second) {
		t.Fatal("queue did not drain")
	}

	msgs := sender.messages()
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(msgs))
	}
	for _, m := range msgs {
		if !strings.Contains(m, "shake da manhã") {
			t.Errorf("expected check-in prompt, got %q", m)
		}
	}

	// A second run must not double-open sessions.
	if started := r.RunMorningCheckins(context.Background()); started != 0 {
		t.Errorf("second run started %d sessions, want 0", started)
	}
}

func TestRunReorderNudges(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := &mockSender{}
	r, queue := newTestRetention(st, sender, WithReorderAfterDays(25))

	// Due: converted 25 days ago. Not due: 10 days. Already nudged window
	// passed: 27 days.
	seedConvertedLead(t, st, "lead-due", "5511999990010", time.Now().Add(-25*24*time.Hour-time.Hour))
	seedConvertedLead(t, st, "lead-recent", "5511999990011", time.Now().Add(-10*24*time.Hour))
	seedConvertedLead(t, st, "lead-old", "5511999990012", time.Now().Add(-27*24*time.Hour))

	nudged := r.RunReorderNudges(context.Background())
	if nudged != 1 {
		t.Fatalf("nudged %d, want 1", nudged)
	}
	if !queue.WaitIdle(3 * time.Second) {
		t.Fatal("queue did not drain")
	}

	msgs := sender.messages()
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "5511999990010|") {
		t.Errorf("unexpected sends: %v", msgs)
	}
	// Placeholders must be substituted.
	if strings.Contains(msgs[0], "{") {
		t.Errorf("unsubstituted template: %q", msgs[0])
	}
}

func TestJobsSkippedOutsideAllowedHours(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := &mockSender{}
	// Offset that puts local time at 03:00.
	offset := 3 - time.Now().UTC().Hour()
	sessions := memory.NewSessionStore(nil)
	checkin := flow.NewCheckinFlow(memory.NewCheckinStore(nil), st, gamification.NewStoreAwarder(st))
	queue := throttle.NewSendQueue(throttle.NewRateLimiter(100, time.Hour), throttle.WithSendDelayRange(0, 0))
	r := New(st, checkin, sessions, queue, sender, WithUTCOffsetHours(offset))

	seedConvertedLead(t, st, "lead-1", "5511999990001", time.Now().Add(-48*time.Hour))

	if started := r.RunMorningCheckins(context.Background()); started != 0 {
		t.Errorf("started %d check-ins outside allowed hours, want 0", started)
	}
	if nudged := r.RunReorderNudges(context.Background()); nudged != 0 {
		t.Errorf("nudged %d outside allowed hours, want 0", nudged)
	}
}
