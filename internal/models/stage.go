// Package models defines dialogue stage types and transition tables for LeadFlow.
package models

// Stage is a named step in the persuasion dialogue script. Stages belong to
// one of two tracks: the product track (SPIN-style discovery) or the business
// track (opportunity qualification). Both tracks share the transition and
// closed terminal stages.
type Stage string

// Product-track stages, in order.
const (
	StageIceBreak    Stage = "ice_break"
	StageSituation   Stage = "situation"
	StageProblem     Stage = "problem"
	StageImplication Stage = "implication"
	StageCommitment  Stage = "commitment"
	StageTransition  Stage = "transition"
	StageClosed      Stage = "closed"
)

// Business-track stages, in order. The track rejoins the shared transition
// and closed stages after commitment.
const (
	StageBizIceBreak      Stage = "biz_ice_break"
	StageBizQualification Stage = "biz_qualification"
	StageBizImplication   Stage = "biz_implication"
	StageBizCommitment    Stage = "biz_commitment"
)

// ProfileTypeBusiness is the context.profile_type value that selects the
// business track. Any other value (including unset) selects the product track.
const ProfileTypeBusiness = "business"

var productTrack = []Stage{
	StageIceBreak,
	StageSituation,
	StageProblem,
	StageImplication,
	StageCommitment,
	StageTransition,
	StageClosed,
}

var businessTrack = []Stage{
	StageBizIceBreak,
	StageBizQualification,
	StageBizImplication,
	StageBizCommitment,
	StageTransition,
	StageClosed,
}

// StageSequence returns the ordered stage list for the given profile type.
func StageSequence(profileType string) []Stage {
	if profileType == ProfileTypeBusiness {
		return businessTrack
	}
	return productTrack
}

// InitialStage returns the first stage of the track for the given profile type.
func InitialStage(profileType string) Stage {
	return StageSequence(profileType)[0]
}

// stageIndex returns the index of s in seq, or -1 when s is not in seq.
func stageIndex(s Stage, seq []Stage) int {
	for i, st := range seq {
		if st == s {
			return i
		}
	}
	return -1
}

// NextStage returns the stage following s on the track selected by
// profileType. It saturates at the terminal stage and never skips. An unknown
// stage maps to the start of the track so that corrupt state recovers rather
// than wedging the conversation.
func NextStage(s Stage, profileType string) Stage {
	seq := StageSequence(profileType)
	idx := stageIndex(s, seq)
	if idx < 0 {
		return seq[0]
	}
	if idx+1 >= len(seq) {
		return seq[len(seq)-1]
	}
	return seq[idx+1]
}

// IsTerminalStage reports whether s is the last stage of its track.
func IsTerminalStage(s Stage) bool {
	return s == StageClosed
}

// IsValidStage reports whether s belongs to either track.
func IsValidStage(s Stage) bool {
	return stageIndex(s, productTrack) >= 0 || stageIndex(s, businessTrack) >= 0
}
