package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/corevida/leadflow/internal/flow"
	"github.com/corevida/leadflow/internal/memory"
	"github.com/corevida/leadflow/internal/models"
	"github.com/corevida/leadflow/internal/retry"
	"github.com/corevida/leadflow/internal/store"
)

// mockLLM implements genai.ClientInterface with a canned reply.
type mockLLM struct {
	reply string
}

func (m *mockLLM) Complete(ctx context.Context, systemPrompt string, history []models.Message, maxTokens int) (string, error) {
	return m.reply, nil
}

func newTestServer(st store.Store) *Server {
	sessions := memory.NewSessionStore(nil)
	dialogue := flow.NewConversationFlow(sessions, st, &mockLLM{reply: "Oi! Como posso te ajudar?"}, flow.WithRetryConfig(retry.Config{MaxAttempts: 1}))
	return NewServer(st, sessions, dialogue)
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestProcessMessageEndpoint(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	server := newTestServer(st)

	rec := postJSON(t, server.Handler(), "/messages", models.InboundMessageRequest{
		LeadID:       "lead-1",
		ConsultantID: "cons-1",
		Channel:      models.ChannelWhatsApp,
		UserMessage:  "oi, vi o anúncio de vocês",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("response status = %q", resp.Status)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result type = %T", resp.Result)
	}
	if result["reply"] != "Oi! Como posso te ajudar?" {
		t.Errorf("reply = %v", result["reply"])
	}
	if result["conversation_id"] == "" {
		t.Error("conversation_id missing")
	}
}

func TestProcessMessageEndpointValidation(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	server := newTestServer(st)

	cases := []struct {
		name string
		req  models.InboundMessageRequest
	}{
		{"missing lead", models.InboundMessageRequest{ConsultantID: "c", Channel: models.ChannelWhatsApp, UserMessage: "oi"}},
		{"missing message", models.InboundMessageRequest{LeadID: "l", ConsultantID: "c", Channel: models.ChannelWhatsApp}},
		{"bad channel", models.InboundMessageRequest{LeadID: "l", ConsultantID: "c", Channel: "telegram", UserMessage: "oi"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, server.Handler(), "/messages", tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if resp := decodeResponse(t, rec); resp.Status != string(models.APIStatusError) {
				t.Errorf("response status = %q", resp.Status)
			}
		})
	}
}

func TestProcessMessageEndpointInvalidJSON(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	server := newTestServer(st)

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestInitiateConversationEndpoint(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	server := newTestServer(st)

	rec := postJSON(t, server.Handler(), "/conversations/initiate", models.InitiateConversationRequest{
		LeadID:        "lead-1",
		ConsultantID:  "cons-1",
		Channel:       models.ChannelInstagram,
		SourceContext: models.ContextMap{models.ContextSource: "ad_desafio_5dias"},
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	result := resp.Result.(map[string]interface{})
	convID, _ := result["conversation_id"].(string)
	if convID == "" {
		t.Fatal("conversation_id missing")
	}

	persisted, err := st.GetConversation(convID)
	if err != nil || persisted == nil {
		t.Fatalf("conversation not persisted: %v", err)
	}
	if persisted.Context[models.ContextSource] != "ad_desafio_5dias" {
		t.Errorf("source context not seeded: %v", persisted.Context)
	}
}

func TestGetConversationEndpoint(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	server := newTestServer(st)

	now := time.Now()
	seed := models.ConversationRecord{
		ID:           "conv-1",
		LeadID:       "lead-1",
		ConsultantID: "cons-1",
		Channel:      models.ChannelWhatsApp,
		Stage:        models.StageSituation,
		Status:       models.ConversationStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := st.SaveConversation(seed); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv-1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result := resp.Result.(map[string]interface{})
	if result["stage"] != string(models.StageSituation) {
		t.Errorf("stage = %v", result["stage"])
	}

	req = httptest.NewRequest(http.MethodGet, "/conversations/missing", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing conversation status = %d, want 404", rec.Code)
	}
}

func TestListConversationsStatusFilter(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	server := newTestServer(st)

	now := time.Now()
	for _, rec := range []models.ConversationRecord{
		{ID: "c1", LeadID: "l1", Status: models.ConversationStatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: "c2", LeadID: "l2", Status: models.ConversationStatusHandedOff, CreatedAt: now, UpdatedAt: now},
		{ID: "c3", LeadID: "l3", Status: models.ConversationStatusActive, CreatedAt: now, UpdatedAt: now},
	} {
		if err := st.SaveConversation(rec); err != nil {
			t.Fatalf("seed conversation: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/conversations?status=active", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	list, ok := resp.Result.([]interface{})
	if !ok {
		t.Fatalf("result type = %T", resp.Result)
	}
	if len(list) != 2 {
		t.Errorf("filtered list length = %d, want 2", len(list))
	}
}

func TestStatsEndpoint(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	server := newTestServer(st)

	// Two live turns populate sessions and the durable store.
	postJSON(t, server.Handler(), "/messages", models.InboundMessageRequest{
		LeadID: "lead-1", ConsultantID: "cons-1", Channel: models.ChannelWhatsApp, UserMessage: "oi",
	})
	postJSON(t, server.Handler(), "/messages", models.InboundMessageRequest{
		LeadID: "lead-2", ConsultantID: "cons-1", Channel: models.ChannelManyChat, UserMessage: "olá",
	})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result := resp.Result.(map[string]interface{})
	if result["total_conversations"].(float64) != 2 {
		t.Errorf("total_conversations = %v", result["total_conversations"])
	}
	if result["active_sessions"].(float64) != 2 {
		t.Errorf("active_sessions = %v", result["active_sessions"])
	}
	byStatus := result["by_status"].(map[string]interface{})
	if byStatus[string(models.ConversationStatusActive)].(float64) != 2 {
		t.Errorf("by_status = %v", byStatus)
	}
}

func TestLeadXPEndpoint(t *testing.T) {
	st := store.NewInMemoryStore()
	defer st.Close()
	server := newTestServer(st)

	for _, ev := range []models.XPEvent{
		{ID: "x1", Phone: "5511999990000", Points: 10, Reason: "shake_am", CreatedAt: time.Now()},
		{ID: "x2", Phone: "5511999990000", Points: 15, Reason: "weight", CreatedAt: time.Now()},
	} {
		if err := st.AddXPEvent(ev); err != nil {
			t.Fatalf("seed XP event: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/leads/5511999990000/xp", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result := resp.Result.(map[string]interface{})
	if result["xp_total"].(float64) != 25 {
		t.Errorf("xp_total = %v", result["xp_total"])
	}
}
