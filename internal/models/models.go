// Package models defines the core data structures for LeadFlow.
//
// It includes the conversation memory entity, lead and consultant records,
// and the API response envelope shared across modules.
package models

import (
	"errors"
	"time"
)

// Channel identifies the messaging channel a lead arrived through.
type Channel string

const (
	// ChannelWhatsApp identifies WhatsApp contacts.
	ChannelWhatsApp Channel = "whatsapp"
	// ChannelInstagram identifies Instagram direct-message contacts.
	ChannelInstagram Channel = "instagram"
	// ChannelManyChat identifies contacts relayed through ManyChat.
	ChannelManyChat Channel = "manychat"
)

// IsValidChannel checks if the given channel is supported.
func IsValidChannel(c Channel) bool {
	switch c {
	case ChannelWhatsApp, ChannelInstagram, ChannelManyChat:
		return true
	default:
		return false
	}
}

// ConversationStatus represents the lifecycle status of a conversation.
type ConversationStatus string

const (
	// ConversationStatusActive indicates an ongoing automated dialogue.
	ConversationStatusActive ConversationStatus = "active"
	// ConversationStatusHandedOff indicates the lead was transferred to a human consultant.
	ConversationStatusHandedOff ConversationStatus = "handed_off"
	// ConversationStatusConverted indicates the lead accepted a commitment.
	ConversationStatusConverted ConversationStatus = "converted"
	// ConversationStatusClosed indicates the dialogue reached its terminal stage.
	ConversationStatusClosed ConversationStatus = "closed"
)

// Validation constants for input validation
const (
	// MaxMessageBodyLength defines the maximum allowed length for message content
	MaxMessageBodyLength = 4096
	// MaxHistoryTurns defines how many recent turns are sent to the LLM
	MaxHistoryTurns = 10
)

// Error variables for better error handling and testability
var (
	ErrEmptyLeadID        = errors.New("lead id cannot be empty")
	ErrEmptyConsultantID  = errors.New("consultant id cannot be empty")
	ErrEmptyMessage       = errors.New("message cannot be empty")
	ErrMessageTooLong     = errors.New("message exceeds maximum length")
	ErrInvalidChannel     = errors.New("invalid channel")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrLeadNotFound       = errors.New("lead not found")
	ErrConsultantNotFound = errors.New("consultant not found")
)

// Message is a single exchanged message in a conversation history.
type Message struct {
	Role      string    `json:"role"`      // "user" or "assistant"
	Content   string    `json:"content"`   // message content
	Timestamp time.Time `json:"timestamp"` // when the message was exchanged
}

// ContextMap holds free-form facts collected about a lead during dialogue.
// Well-known keys are defined as Context* constants.
type ContextMap map[string]string

// Well-known context keys.
const (
	ContextName               = "name"
	ContextPainPoints         = "pain_points"
	ContextProfileType        = "profile_type"
	ContextSource             = "source"
	ContextCommitmentAccepted = "commitment_accepted"
)

// ConversationMemory is the in-memory session entity for one conversation.
// The dialogue state machine is its sole mutator; concurrent readers must not
// mutate it.
type ConversationMemory struct {
	ConversationID string     `json:"conversation_id"`
	LeadID         string     `json:"lead_id"`
	ConsultantID   string     `json:"consultant_id"`
	Channel        Channel    `json:"channel"`
	Stage          Stage      `json:"stage"`
	Messages       []Message  `json:"messages"`
	Context        ContextMap `json:"context"`
	Signals        []Signal   `json:"signals"`
	HandoffScore   int        `json:"handoff_score"`
	LastUpdated    time.Time  `json:"last_updated"`
}

// ConversationRecord is the durable-store projection of a conversation.
// Messages and Context are stored as JSON columns.
type ConversationRecord struct {
	ID               string             `json:"id"`
	LeadID           string             `json:"lead_id"`
	ConsultantID     string             `json:"consultant_id"`
	Channel          Channel            `json:"channel"`
	Stage            Stage              `json:"stage"`
	Messages         []Message          `json:"messages"`
	Context          ContextMap         `json:"context"`
	Status           ConversationStatus `json:"status"`
	HandoffTriggered bool               `json:"handoff_triggered"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Lead represents a prospective customer identified through any channel.
type Lead struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name,omitempty"`
	Channel   Channel   `json:"channel"`
	Source    string    `json:"source,omitempty"` // e.g. ad campaign or referral tag
	CreatedAt time.Time `json:"created_at"`
}

// Consultant represents the human seller a handed-off lead is routed to.
type Consultant struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckinRecord is the durable record of one completed daily check-in.
type CheckinRecord struct {
	ID         string    `json:"id"`
	Phone      string    `json:"phone"`
	ShakeAM    bool      `json:"shake_am"`
	ShakePM    bool      `json:"shake_pm"`
	Hydration  bool      `json:"hydration"`
	Supplement bool      `json:"supplement"`
	Weight     *float64  `json:"weight,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// XPEvent records gamification points awarded to a lead.
type XPEvent struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// InboundMessageRequest is the channel-agnostic inbound signal accepted by the
// core's single entry point. Channel-specific webhook parsing happens upstream.
type InboundMessageRequest struct {
	LeadID         string  `json:"lead_id"`
	ConsultantID   string  `json:"consultant_id"`
	Channel        Channel `json:"channel"`
	UserMessage    string  `json:"user_message"`
	InitialContext ContextMap `json:"initial_context,omitempty"`
}

// Validate performs validation on an InboundMessageRequest.
func (r *InboundMessageRequest) Validate() error {
	if r.LeadID == "" {
		return ErrEmptyLeadID
	}
	if r.ConsultantID == "" {
		return ErrEmptyConsultantID
	}
	if !IsValidChannel(r.Channel) {
		return ErrInvalidChannel
	}
	if r.UserMessage == "" {
		return ErrEmptyMessage
	}
	if len(r.UserMessage) > MaxMessageBodyLength {
		return ErrMessageTooLong
	}
	return nil
}

// InitiateConversationRequest is the payload for agent-initiated contact.
type InitiateConversationRequest struct {
	LeadID        string     `json:"lead_id"`
	ConsultantID  string     `json:"consultant_id"`
	Channel       Channel    `json:"channel"`
	SourceContext ContextMap `json:"source_context,omitempty"`
}

// Validate performs validation on an InitiateConversationRequest.
func (r *InitiateConversationRequest) Validate() error {
	if r.LeadID == "" {
		return ErrEmptyLeadID
	}
	if r.ConsultantID == "" {
		return ErrEmptyConsultantID
	}
	if !IsValidChannel(r.Channel) {
		return ErrInvalidChannel
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
