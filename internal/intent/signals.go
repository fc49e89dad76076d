package intent

import (
	"strings"

	"github.com/corevida/leadflow/internal/models"
)

// HandoffThreshold is the score at which an engaged lead is transferred to a
// human consultant.
const HandoffThreshold = 75

// signalPhrases maps each signal to its fixed phrase list. Phrases are
// pre-normalized (lowercase, no diacritics). The slice order fixes the order
// signals are reported in.
var signalPhrases = []struct {
	signal  models.Signal
	phrases []string
}{
	{models.SignalAskedPrice, []string{
		"quanto custa", "qual o valor", "qual e o preco", "preco", "quanto fica", "quanto e",
	}},
	{models.SignalAskedHowToStart, []string{
		"como comecar", "como comeco", "como faco para", "por onde comeco", "como funciona para entrar",
	}},
	{models.SignalExpressedInterest, []string{
		"tenho interesse", "me interessa", "quero saber mais", "quero sim", "gostei", "quero",
	}},
	{models.SignalSharedPain, []string{
		"nao consigo", "estou cansad", "sofro", "muito dificil", "ja tentei de tudo", "me sinto mal",
	}},
	{models.SignalAskedBusiness, []string{
		"renda extra", "revender", "como vender", "ganhar dinheiro", "virar consultor",
	}},
	{models.SignalPositiveResponse, []string{
		"sim", "claro", "com certeza", "pode ser", "vamos la", "bora", "perfeito",
	}},
	{models.SignalRejected, []string{
		"nao quero", "nao tenho interesse", "para de mandar", "me deixa em paz", "nao me mande", "sai fora",
	}},
}

// signalDeltas are the fixed per-signal adjustments folded into a running
// handoff score. Engagement signals push toward handoff; an explicit rejection
// drops hard so a previously hot lead falls back below the threshold.
var signalDeltas = map[models.Signal]int{
	models.SignalAskedPrice:        15,
	models.SignalAskedHowToStart:   20,
	models.SignalExpressedInterest: 15,
	models.SignalSharedPain:        10,
	models.SignalAskedBusiness:     15,
	models.SignalPositiveResponse:  5,
	models.SignalRejected:          -50,
}

// DetectConversationSignals matches the message against the fixed phrase
// lists and returns the signals found. Signals are not mutually exclusive and
// the output order is stable.
func DetectConversationSignals(message string) []models.Signal {
	normalized := Normalize(message)
	var signals []models.Signal
	for _, entry := range signalPhrases {
		for _, phrase := range entry.phrases {
			if strings.Contains(normalized, phrase) {
				signals = append(signals, entry.signal)
				break
			}
		}
	}
	return signals
}

// CalculateHandoffScore folds the per-signal deltas onto base and clamps the
// result to [0,100]. Scores move both ways: a rejection can undo accumulated
// engagement.
func CalculateHandoffScore(base int, signals []models.Signal) int {
	score := base
	for _, s := range signals {
		score += signalDeltas[s]
	}
	return clamp(score)
}

// ShouldHandoff reports whether the score has crossed the handoff threshold.
func ShouldHandoff(score int) bool {
	return score >= HandoffThreshold
}
