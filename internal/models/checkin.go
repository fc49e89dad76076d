// Package models defines the daily check-in session types for LeadFlow.
package models

import "time"

// CheckinStep is one step of the fixed daily check-in sequence.
type CheckinStep string

const (
	// CheckinStepShakeAM asks whether the morning shake was taken.
	CheckinStepShakeAM CheckinStep = "shake_am"
	// CheckinStepShakePM asks whether the evening shake was taken.
	CheckinStepShakePM CheckinStep = "shake_pm"
	// CheckinStepHydration asks whether the water goal was met.
	CheckinStepHydration CheckinStep = "hydration"
	// CheckinStepSupplement asks whether the supplement was taken.
	CheckinStepSupplement CheckinStep = "supplement"
	// CheckinStepWeight asks for an optional weigh-in.
	CheckinStepWeight CheckinStep = "weight"
	// CheckinStepDone marks a completed session.
	CheckinStepDone CheckinStep = "done"
)

// CheckinSteps is the ordered step sequence of a check-in session.
var CheckinSteps = []CheckinStep{
	CheckinStepShakeAM,
	CheckinStepShakePM,
	CheckinStepHydration,
	CheckinStepSupplement,
	CheckinStepWeight,
}

// NextCheckinStep returns the step following s, or CheckinStepDone at the end.
func NextCheckinStep(s CheckinStep) CheckinStep {
	for i, st := range CheckinSteps {
		if st == s {
			if i+1 < len(CheckinSteps) {
				return CheckinSteps[i+1]
			}
			return CheckinStepDone
		}
	}
	return CheckinStepDone
}

// CheckinSession is the ephemeral state of one in-progress daily check-in,
// keyed by phone number. Last write wins; sessions expire after a fixed TTL.
type CheckinSession struct {
	Phone      string      `json:"phone"`
	Step       CheckinStep `json:"step"`
	ShakeAM    *bool       `json:"shake_am,omitempty"`
	ShakePM    *bool       `json:"shake_pm,omitempty"`
	Hydration  *bool       `json:"hydration,omitempty"`
	Supplement *bool       `json:"supplement,omitempty"`
	Weight     *float64    `json:"weight,omitempty"`
	Reprompted bool        `json:"reprompted,omitempty"` // one tolerance re-prompt per step
	StartedAt  time.Time   `json:"started_at"`
}
