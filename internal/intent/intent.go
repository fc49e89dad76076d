// Package intent provides keyword-based intent scoring, conversation signal
// detection, and handoff scoring for inbound lead messages.
//
// All functions are pure and deterministic: matching is case- and
// diacritic-insensitive, and the same input always produces the same score.
// Stage transitions and handoff decisions built on top of these scores are
// therefore reproducible and testable independent of the LLM.
package intent

import (
	"math"
	"strings"
	"unicode"

	"github.com/corevida/leadflow/internal/models"
	"golang.org/x/text/unicode/norm"
)

// Keyword weight tiers. Each distinct matched keyword adds its tier weight to
// the category's raw sum; the sum is clamped to [0,100].
const (
	productHighWeight   = 35
	productMediumWeight = 15
	businessHighWeight  = 40
	businessMediumWeight = 20
	urgencyHighWeight   = 40
	urgencyMediumWeight = 20
	lowWeight           = 5
)

// Derivation thresholds.
const (
	// profileThreshold is the minimum category score to count toward the
	// primary profile.
	profileThreshold = 30
	// immediateTotalThreshold promotes a lead to immediate priority.
	immediateTotalThreshold = 70
	// immediateUrgencyThreshold promotes a lead to immediate priority on
	// urgency alone.
	immediateUrgencyThreshold = 60
	// nurturingTotalThreshold promotes a lead to nurturing priority.
	nurturingTotalThreshold = 40
)

// keywordTier is one weight tier of a scoring category.
type keywordTier struct {
	weight   int
	keywords []string
}

// Keyword vocabulary is pt-BR, matched against normalized (lowercased,
// diacritic-stripped) text, so entries are written without accents.
var productTiers = []keywordTier{
	{productHighWeight, []string{
		"emagrecer", "perder peso", "quero comprar", "shake",
	}},
	{productMediumWeight, []string{
		"energia", "disposicao", "saude", "nutricao", "ansiedade",
	}},
	{lowWeight, []string{
		"produto", "resultado", "dieta", "treino",
	}},
}

var businessTiers = []keywordTier{
	{businessHighWeight, []string{
		"renda extra", "ganhar dinheiro", "revender", "trabalhar em casa",
	}},
	{businessMediumWeight, []string{
		"negocio", "oportunidade", "consultor", "investimento",
	}},
	{lowWeight, []string{
		"vender", "comissao", "lucro",
	}},
}

var urgencyTiers = []keywordTier{
	{urgencyHighWeight, []string{
		"urgente", "agora", "hoje",
	}},
	{urgencyMediumWeight, []string{
		"rapido", "essa semana", "preciso",
	}},
	{lowWeight, []string{
		"quando", "em breve",
	}},
}

// Normalize lowercases text and strips combining diacritical marks, so that
// "não" and "nao" match the same keywords.
func Normalize(text string) string {
	decomposed := norm.NFD.String(strings.ToLower(text))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// scoreCategory sums tier weights for each distinct keyword present in the
// normalized text and clamps the result to [0,100].
func scoreCategory(normalized string, tiers []keywordTier) int {
	score := 0
	for _, tier := range tiers {
		for _, kw := range tier.keywords {
			if strings.Contains(normalized, kw) {
				score += tier.weight
			}
		}
	}
	return clamp(score)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ScoreIntent scores a single inbound message into weighted category scores
// plus the derived profile and priority bucket.
func ScoreIntent(text string) models.IntentScore {
	normalized := Normalize(text)

	product := scoreCategory(normalized, productTiers)
	business := scoreCategory(normalized, businessTiers)
	urgency := scoreCategory(normalized, urgencyTiers)

	total := int(math.Round(float64(product+business+urgency) / 3.0))

	profile := models.ProfileNone
	switch {
	case product >= profileThreshold && business >= profileThreshold:
		profile = models.ProfileBoth
	case product >= profileThreshold:
		profile = models.ProfileProduct
	case business >= profileThreshold:
		profile = models.ProfileBusiness
	}

	priority := models.PriorityPassive
	switch {
	case total >= immediateTotalThreshold || urgency >= immediateUrgencyThreshold:
		priority = models.PriorityImmediate
	case total >= nurturingTotalThreshold:
		priority = models.PriorityNurturing
	}

	return models.IntentScore{
		Product:        product,
		Business:       business,
		Urgency:        urgency,
		Total:          total,
		PrimaryProfile: profile,
		Priority:       priority,
	}
}
