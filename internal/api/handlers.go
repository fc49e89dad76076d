// Package api provides HTTP handlers for LeadFlow endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corevida/leadflow/internal/models"
)

// DashboardStats aggregates conversation counts for the consultant dashboard.
type DashboardStats struct {
	TotalLeads         int                               `json:"total_leads"`
	TotalConversations int                               `json:"total_conversations"`
	ActiveSessions     int                               `json:"active_sessions"`
	ByStage            map[models.Stage]int              `json:"by_stage"`
	ByStatus           map[models.ConversationStatus]int `json:"by_status"`
	HandoffsTriggered  int                               `json:"handoffs_triggered"`
}

// processMessageHandler handles POST /messages, the channel-agnostic entry
// point for inbound lead messages.
func (s *Server) processMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.processMessageHandler: processing inbound message", "method", r.Method, "path", r.URL.Path)

	var req models.InboundMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.processMessageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.processMessageHandler: validation failed", "error", err, "leadID", req.LeadID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	result, err := s.dialogue.ProcessInbound(r.Context(), req)
	if err != nil {
		slog.Error("Server.processMessageHandler: dialogue turn failed", "error", err, "leadID", req.LeadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}

	slog.Info("Server.processMessageHandler: message processed", "conversationID", result.ConversationID, "stage", result.Stage, "handoff", result.HandoffTriggered)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// initiateConversationHandler handles POST /conversations/initiate for
// agent-initiated outbound contact.
func (s *Server) initiateConversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	var req models.InitiateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.initiateConversationHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.initiateConversationHandler: validation failed", "error", err, "leadID", req.LeadID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	result, err := s.dialogue.InitiateConversation(r.Context(), req.LeadID, req.ConsultantID, req.Channel, req.SourceContext)
	if err != nil {
		slog.Error("Server.initiateConversationHandler: initiation failed", "error", err, "leadID", req.LeadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to initiate conversation"))
		return
	}

	slog.Info("Server.initiateConversationHandler: conversation initiated", "conversationID", result.ConversationID, "leadID", req.LeadID)
	writeJSONResponse(w, http.StatusCreated, models.Success(result))
}

// getConversationHandler handles GET /conversations/{id}.
func (s *Server) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Conversation ID is required"))
		return
	}

	rec, err := s.st.GetConversation(id)
	if err != nil {
		slog.Error("Server.getConversationHandler: store lookup failed", "error", err, "conversationID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if rec == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(rec))
}

// listConversationsHandler handles GET /conversations with an optional
// ?status= filter.
func (s *Server) listConversationsHandler(w http.ResponseWriter, r *http.Request) {
	recs, err := s.st.ListConversations()
	if err != nil {
		slog.Error("Server.listConversationsHandler: store listing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list conversations"))
		return
	}

	if filter := r.URL.Query().Get("status"); filter != "" {
		filtered := make([]models.ConversationRecord, 0, len(recs))
		for _, rec := range recs {
			if string(rec.Status) == filter {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}
	writeJSONResponse(w, http.StatusOK, models.Success(recs))
}

// leadXPHandler handles GET /leads/{phone}/xp.
func (s *Server) leadXPHandler(w http.ResponseWriter, r *http.Request) {
	phone := r.PathValue("phone")
	if phone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Phone is required"))
		return
	}

	total, err := s.st.GetXPTotal(phone)
	if err != nil {
		slog.Error("Server.leadXPHandler: XP lookup failed", "error", err, "phone", phone)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load XP total"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{"phone": phone, "xp_total": total}))
}

// statsHandler handles GET /stats for the dashboard overview.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	recs, err := s.st.ListConversations()
	if err != nil {
		slog.Error("Server.statsHandler: store listing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute stats"))
		return
	}
	leads, err := s.st.ListLeads()
	if err != nil {
		slog.Error("Server.statsHandler: lead listing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute stats"))
		return
	}

	stats := DashboardStats{
		TotalLeads:         len(leads),
		TotalConversations: len(recs),
		ActiveSessions:     s.sessions.Len(),
		ByStage:            make(map[models.Stage]int),
		ByStatus:           make(map[models.ConversationStatus]int),
	}
	for _, rec := range recs {
		stats.ByStage[rec.Stage]++
		stats.ByStatus[rec.Status]++
		if rec.HandoffTriggered {
			stats.HandoffsTriggered++
		}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}
