// Package models defines intent scoring types for LeadFlow.
package models

// Profile classifies which interest track a lead's message signals.
type Profile string

const (
	// ProfileNone indicates no clear product or business interest.
	ProfileNone Profile = "none"
	// ProfileProduct indicates interest in the product line.
	ProfileProduct Profile = "product"
	// ProfileBusiness indicates interest in the reseller opportunity.
	ProfileBusiness Profile = "business"
	// ProfileBoth indicates strong interest on both tracks.
	ProfileBoth Profile = "both"
)

// Priority buckets a lead by how quickly it should be worked.
type Priority string

const (
	// PriorityImmediate indicates a hot lead that should be engaged now.
	PriorityImmediate Priority = "immediate"
	// PriorityNurturing indicates a warm lead for the scripted dialogue.
	PriorityNurturing Priority = "nurturing"
	// PriorityPassive indicates a cold lead for retention messaging only.
	PriorityPassive Priority = "passive"
)

// IntentScore is the result of scoring one inbound message. Sub-scores are
// clamped to [0,100]; Total is the rounded mean of the three sub-scores.
type IntentScore struct {
	Product        int      `json:"product"`
	Business       int      `json:"business"`
	Urgency        int      `json:"urgency"`
	Total          int      `json:"total"`
	PrimaryProfile Profile  `json:"primary_profile"`
	Priority       Priority `json:"priority"`
}

// Signal is a behavioral cue detected in a user message.
type Signal string

const (
	// SignalAskedPrice fires when the lead asks what it costs.
	SignalAskedPrice Signal = "asked_price"
	// SignalAskedHowToStart fires when the lead asks how to begin.
	SignalAskedHowToStart Signal = "asked_how_to_start"
	// SignalExpressedInterest fires on a statement of wanting/liking.
	SignalExpressedInterest Signal = "expressed_interest"
	// SignalSharedPain fires when the lead names a personal struggle.
	SignalSharedPain Signal = "shared_pain"
	// SignalAskedBusiness fires on questions about the reseller opportunity.
	SignalAskedBusiness Signal = "asked_business"
	// SignalPositiveResponse fires on short affirmations.
	SignalPositiveResponse Signal = "positive_response"
	// SignalRejected fires on an explicit refusal.
	SignalRejected Signal = "rejected"
)
