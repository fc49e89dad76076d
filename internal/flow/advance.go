package flow

import (
	"strings"
	"unicode/utf8"

	"github.com/corevida/leadflow/internal/intent"
	"github.com/corevida/leadflow/internal/models"
)

// iceBreakLengthThreshold is the minimum reply length (in runes) that counts
// as real engagement at the ice-break stage.
const iceBreakLengthThreshold = 25

// commitmentPhrases are normalized affirmations that accept the
// micro-commitment ask and set the commitment_accepted flag.
var commitmentPhrases = []string{
	"sim",
	"quero",
	"vamos",
	"bora",
	"pode ser",
	"topo",
	"aceito",
	"fechado",
	"combinado",
}

// shouldAdvanceStage decides, per stage, whether the conversation moves
// forward. Rules are deterministic on observable inputs (message length,
// detected signals) so transitions are reproducible regardless of what the
// LLM generated.
func shouldAdvanceStage(stage models.Stage, userMessage string, signals []models.Signal) bool {
	switch stage {
	case models.StageIceBreak, models.StageBizIceBreak:
		return utf8.RuneCountInString(strings.TrimSpace(userMessage)) >= iceBreakLengthThreshold
	case models.StageSituation:
		return hasSignal(signals, models.SignalSharedPain)
	case models.StageProblem:
		return hasSignal(signals, models.SignalSharedPain) || hasSignal(signals, models.SignalPositiveResponse)
	case models.StageImplication, models.StageBizImplication:
		return hasSignal(signals, models.SignalPositiveResponse) || hasSignal(signals, models.SignalExpressedInterest)
	case models.StageCommitment, models.StageBizCommitment:
		return isCommitmentAccepted(userMessage)
	case models.StageBizQualification:
		return hasSignal(signals, models.SignalAskedBusiness) ||
			hasSignal(signals, models.SignalPositiveResponse) ||
			utf8.RuneCountInString(strings.TrimSpace(userMessage)) >= 40
	default:
		// transition and closed only move by handoff or operator action.
		return false
	}
}

// isCommitmentAccepted reports whether the message is a plain affirmation of
// the micro-commitment ask.
func isCommitmentAccepted(userMessage string) bool {
	normalized := intent.Normalize(userMessage)
	for _, phrase := range commitmentPhrases {
		if normalized == phrase || strings.HasPrefix(normalized, phrase+" ") || strings.HasPrefix(normalized, phrase+",") || strings.HasPrefix(normalized, phrase+"!") {
			return true
		}
	}
	return false
}

func hasSignal(signals []models.Signal, want models.Signal) bool {
	for _, s := range signals {
		if s == want {
			return true
		}
	}
	return false
}
