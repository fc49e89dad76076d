package flow

import (
	"regexp"
	"strings"

	"github.com/corevida/leadflow/internal/intent"
	"github.com/corevida/leadflow/internal/models"
)

// namePattern matches common pt-BR self-introduction phrasings and captures
// the first name. Matching runs on the normalized (lowercase, accent-stripped)
// message, so the captured name is re-cased before storing.
var namePattern = regexp.MustCompile(`(?:meu nome e|me chamo|me chama de|aqui e (?:a|o)|sou (?:a|o))\s+([a-z]{2,20})`)

// painKeywords maps normalized substrings to the pain-point tag stored in
// context. First match per tag wins; tags accumulate comma-separated.
var painKeywords = []struct {
	keyword string
	tag     string
}{
	{"peso", "weight"},
	{"emagrecer", "weight"},
	{"gord", "weight"},
	{"balanca", "weight"},
	{"cansac", "energy"},
	{"cansad", "energy"},
	{"sem energia", "energy"},
	{"disposicao", "energy"},
	{"ansiedade", "anxiety"},
	{"ansios", "anxiety"},
	{"autoestima", "self_esteem"},
	{"vergonha", "self_esteem"},
	{"roupa", "self_esteem"},
	{"dinheiro", "money"},
	{"apertado", "money"},
	{"contas", "money"},
}

// businessVocabulary marks messages that imply interest in the reseller
// opportunity rather than the product line.
var businessVocabulary = []string{
	"renda extra",
	"ganhar dinheiro",
	"revender",
	"revenda",
	"trabalhar com voce",
	"trabalhar com isso",
	"ser consultora",
	"ser consultor",
	"negocio",
	"empreender",
}

// extractFacts pulls structured facts out of a raw user message: a name from
// self-introduction phrasing, pain-point tags from keyword hits, and an
// implicit business profile from money/business vocabulary. The returned map
// is shallow-merged into the conversation context; existing keys are only
// overwritten for pain points, which accumulate.
func extractFacts(message string, existing models.ContextMap) models.ContextMap {
	normalized := intent.Normalize(message)
	updates := models.ContextMap{}

	if existing[models.ContextName] == "" {
		if m := namePattern.FindStringSubmatch(normalized); m != nil {
			updates[models.ContextName] = capitalize(m[1])
		}
	}

	if tags := matchPainPoints(normalized, existing[models.ContextPainPoints]); tags != "" {
		updates[models.ContextPainPoints] = tags
	}

	if existing[models.ContextProfileType] == "" && hasBusinessVocabulary(normalized) {
		updates[models.ContextProfileType] = models.ProfileTypeBusiness
	}

	return updates
}

// matchPainPoints returns the accumulated comma-separated pain tags, or ""
// when the message adds nothing new.
func matchPainPoints(normalized, current string) string {
	seen := map[string]bool{}
	var tags []string
	if current != "" {
		for _, t := range strings.Split(current, ",") {
			seen[t] = true
			tags = append(tags, t)
		}
	}

	added := false
	for _, pk := range painKeywords {
		if seen[pk.tag] || !strings.Contains(normalized, pk.keyword) {
			continue
		}
		seen[pk.tag] = true
		tags = append(tags, pk.tag)
		added = true
	}
	if !added {
		return ""
	}
	return strings.Join(tags, ",")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func hasBusinessVocabulary(normalized string) bool {
	for _, phrase := range businessVocabulary {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}
