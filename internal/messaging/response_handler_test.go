package messaging

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
	"github.com/corevida/leadflow/internal/retry"
	"github.com/corevida/leadflow/internal/store"
	"github.com/corevida/leadflow/internal/throttle"
)

// mockService implements Service for tests, recording sent messages and
// letting the test inject inbound messages.
type mockService struct {
	mu        sync.Mutex
	sent      []sentMessage
	receipts  chan models.Receipt
	responses chan models.InboundMessage
}

type sentMessage struct {
	To   string
	Body string
}

func newMockService() *mockService {
	return &mockService{
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
	}
}

func (m *mockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

func (m *mockService) SendMessage(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{To: to, Body: body})
	return nil
}

func (m *mockService) Start(ctx context.Context) error { return nil }
func (m *mockService) Stop() error                     { return nil }

func (m *mockService) Receipts() <-chan models.Receipt         { return m.receipts }
func (m *mockService) Responses() <-chan models.InboundMessage { return m.responses }

func (m *mockService) sentMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// mockLLM returns a canned reply.
type mockLLM struct{ reply string }

func (m *mockLLM) Complete(ctx context.Context, systemPrompt string, history []models.Message, maxTokens int) (string, error) {
	return m.reply, nil
}

func newTestHandler(t *testing.T, svc *mockService) (*ResponseHandler, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	sessions := memory.NewSessionStore(nil)
	dialogue := flow.NewConversationFlow(sessions, st, &mockLLM{reply: "Oi! Como posso te ajudar?"},
		flow.WithRetryConfig(retry.Config{MaxAttempts: 1}))
	checkin := flow.NewCheckinFlow(memory.NewCheckinStore(nil), st, gamification.NewStoreAwarder(st))
	limiter := throttle.NewRateLimiter(100, time.Hour)
	queue := throttle.NewSendQueue(limiter, throttle.WithSendDelayRange(0, 0))
	return NewResponseHandler(svc, dialogue, checkin, queue, st, "cons-1"), st
}

func waitForSends(t *testing.T, svc *mockService, n int) []sentMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := svc.sentMessages(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sends, have %d", n, len(svc.sentMessages()))
	return nil
}

func TestInboundMessageGetsDialogueReply(t *testing.T) {
	svc := newMockService()
	handler, st := newTestHandler(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler.Start(ctx)

	svc.responses <- models.InboundMessage{From: "+5511999990001", Body: "oi, tudo bem?", Channel: models.ChannelWhatsApp, Time: time.Now().Unix()}

	sent := waitForSends(t, svc, 1)
	if sent[0].To != "5511999990001" {
		t.Errorf("reply to %q, want canonical 5511999990001", sent[0].To)
	}
	if sent[0].Body != "Oi! Como posso te ajudar?" {
		t.Errorf("reply body = %q", sent[0].Body)
	}

	// First contact auto-registers the lead.
	lead, err := st.GetLeadByPhone("5511999990001")
	if err != nil || lead == nil {
		t.Fatalf("lead not registered: %v %v", lead, err)
	}
	if lead.Channel != models.ChannelWhatsApp {
		t.Errorf("lead channel = %q", lead.Channel)
	}
}

func TestCheckinSessionTakesPriority(t *testing.T) {
	svc := newMockService()
	handler, _ := newTestHandler(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler.Start(ctx)

	// "check-in" opens a session; the following "sim" must be consumed by the
	// check-in flow, not the dialogue.
	svc.responses <- models.InboundMessage{From: "5511999990002", Body: "check-in", Channel: models.ChannelWhatsApp}
	sent := waitForSends(t, svc, 1)
	if !strings.Contains(sent[0].Body, "shake da manhã") {
		t.Fatalf("expected check-in prompt, got %q", sent[0].Body)
	}

	svc.responses <- models.InboundMessage{From: "5511999990002", Body: "sim", Channel: models.ChannelWhatsApp}
	sent = waitForSends(t, svc, 2)
	if !strings.Contains(sent[1].Body, "shake da noite") {
		t.Errorf("expected next check-in prompt, got %q", sent[1].Body)
	}
}

func TestInvalidSenderDropped(t *testing.T) {
	svc := newMockService()
	handler, _ := newTestHandler(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler.Start(ctx)

	svc.responses <- models.InboundMessage{From: "???", Body: "oi", Channel: models.ChannelWhatsApp}
	time.Sleep(100 * time.Millisecond)
	if len(svc.sentMessages()) != 0 {
		t.Error("invalid sender should be dropped without a reply")
	}
}
