package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corevida/leadflow/internal/gamification"
	"github.com/corevida/leadflow/internal/intent"
	"github.com/corevida/leadflow/internal/memory"
	"github.com/corevida/leadflow/internal/models"
	"github.com/corevida/leadflow/internal/store"
)

// Physiological bounds for a weigh-in entry, in kilograms.
const (
	MinWeightKg = 30
	MaxWeightKg = 300
)

// weightPattern matches a weigh-in entry: 2-3 digits, optional one or two
// decimals with dot or comma, optional "kg" suffix. Anchored so text like
// "dia 30" never parses as a weight.
var weightPattern = regexp.MustCompile(`^([0-9]{2,3}(?:[.,][0-9]{1,2})?)\s*(?:kg)?$`)

// yesWords and noWords are the tolerated free-text answers for the yes/no
// steps, matched after normalization.
var yesWords = []string{"sim", "s", "ss", "sim sim", "claro", "tomei", "bebi", "ja", "ja tomei", "ja bebi", "yes", "aham", "uhum", "com certeza", "consegui", "feito", "ok", "okay", "positivo"}
var noWords = []string{"nao", "n", "nn", "nao tomei", "nao bebi", "ainda nao", "no", "negativo", "esqueci", "nao consegui", "nao deu"}

// skipWords let the lead decline the optional weigh-in.
var skipWords = []string{"pular", "pula", "depois", "prefiro nao", "nao quero", "skip", "sem peso", "nao pesei", "nao sei"}

// checkinPrompts is the question asked at each step.
var checkinPrompts = map[models.CheckinStep]string{
	models.CheckinStepShakeAM:    "Bom dia! ☀️ Check-in de hoje: você tomou seu shake da manhã?",
	models.CheckinStepShakePM:    "E o shake da noite, tomou?",
	models.CheckinStepHydration:  "Boa! 💧 E a água, bateu sua meta de hoje?",
	models.CheckinStepSupplement: "E o suplemento, tomou hoje?",
	models.CheckinStepWeight:     "Última pergunta: quer registrar seu peso de hoje? Pode mandar só o número (ex: 68.5) ou responder \"pular\".",
}

// repromptSuffix is appended when the answer was not understood; each step
// tolerates exactly one re-prompt.
const repromptSuffix = "Não entendi bem 😅 Responde com \"sim\" ou \"não\", por favor. "

// genericAck is the degraded reply when check-in processing fails. The lead
// always gets an answer.
const genericAck = "Obrigado pelo seu check-in de hoje! 💪 Continue firme!"

// CheckinFlow is the 5-step daily check-in state machine. Sessions are keyed
// by phone number and expire after the check-in store's TTL.
type CheckinFlow struct {
	sessions *memory.CheckinStore
	store    store.Store
	awarder  gamification.Awarder
}

// NewCheckinFlow creates the check-in state machine.
func NewCheckinFlow(sessions *memory.CheckinStore, st store.Store, awarder gamification.Awarder) *CheckinFlow {
	return &CheckinFlow{sessions: sessions, store: st, awarder: awarder}
}

// Start opens a fresh check-in session for the phone number and returns the
// first question. An existing unfinished session is replaced (last write
// wins).
func (c *CheckinFlow) Start(ctx context.Context, phone string) string {
	sess := &models.CheckinSession{
		Phone:     phone,
		Step:      models.CheckinStepShakeAM,
		StartedAt: time.Now(),
	}
	c.sessions.Put(ctx, sess)
	slog.Info("CheckinFlow.Start: check-in session opened", "phone", phone)
	return checkinPrompts[models.CheckinStepShakeAM]
}

// HasActiveSession reports whether the phone number has an unfinished
// check-in. The inbound router gives check-in sessions priority over the
// dialogue flow.
func (c *CheckinFlow) HasActiveSession(ctx context.Context, phone string) bool {
	return c.sessions.Get(ctx, phone) != nil
}

// HandleMessage advances the session with one free-text answer and returns
// the next prompt or the completion summary. handled is false when no session
// is active, signaling the caller to fall through to the dialogue flow.
func (c *CheckinFlow) HandleMessage(ctx context.Context, phone, text string) (reply string, handled bool) {
	sess := c.sessions.Get(ctx, phone)
	if sess == nil {
		return "", false
	}

	if sess.Step == models.CheckinStepWeight {
		return c.handleWeight(ctx, sess, text), true
	}
	return c.handleYesNo(ctx, sess, text), true
}

// handleYesNo processes one of the four boolean steps.
func (c *CheckinFlow) handleYesNo(ctx context.Context, sess *models.CheckinSession, text string) string {
	answer, ok := parseYesNo(text)
	if !ok {
		if !sess.Reprompted {
			sess.Reprompted = true
			c.sessions.Put(ctx, sess)
			return repromptSuffix + checkinPrompts[sess.Step]
		}
		// Second unrecognized answer counts as a "no" so the session keeps
		// moving instead of wedging.
		answer = false
	}

	switch sess.Step {
	case models.CheckinStepShakeAM:
		sess.ShakeAM = &answer
	case models.CheckinStepShakePM:
		sess.ShakePM = &answer
	case models.CheckinStepHydration:
		sess.Hydration = &answer
	case models.CheckinStepSupplement:
		sess.Supplement = &answer
	}

	sess.Step = models.NextCheckinStep(sess.Step)
	sess.Reprompted = false
	c.sessions.Put(ctx, sess)
	return checkinPrompts[sess.Step]
}

// handleWeight processes the final, optional weigh-in step and completes the
// session.
func (c *CheckinFlow) handleWeight(ctx context.Context, sess *models.CheckinSession, text string) string {
	if w, ok := ParseWeight(text); ok {
		sess.Weight = &w
	} else if !isSkip(text) && !sess.Reprompted {
		sess.Reprompted = true
		c.sessions.Put(ctx, sess)
		return repromptWeight
	}
	// Unparseable after the re-prompt, or an explicit skip: no weight
	// provided.

	sess.Step = models.CheckinStepDone
	return c.complete(ctx, sess)
}

// repromptWeight is the single tolerance re-prompt at the weigh-in step.
const repromptWeight = "Hmm, não consegui entender o peso 😅 Manda só o número, tipo \"72\" ou \"68.5\" (ou \"pular\" se preferir)."

// complete records the finished check-in, awards XP, and formats the summary.
// Any processing error degrades to a generic acknowledgement.
func (c *CheckinFlow) complete(ctx context.Context, sess *models.CheckinSession) string {
	defer c.sessions.Delete(ctx, sess.Phone)

	rec := models.CheckinRecord{
		ID:         uuid.NewString(),
		Phone:      sess.Phone,
		ShakeAM:    boolValue(sess.ShakeAM),
		ShakePM:    boolValue(sess.ShakePM),
		Hydration:  boolValue(sess.Hydration),
		Supplement: boolValue(sess.Supplement),
		Weight:     sess.Weight,
		CreatedAt:  time.Now(),
	}
	if err := c.store.AddCheckin(rec); err != nil {
		slog.Error("CheckinFlow.complete: failed to record check-in", "phone", sess.Phone, "error", err)
		return genericAck
	}

	points := c.awardPoints(sess)
	total, err := c.awarder.Total(sess.Phone)
	if err != nil {
		slog.Warn("CheckinFlow.complete: XP total unavailable", "phone", sess.Phone, "error", err)
		return genericAck
	}

	slog.Info("CheckinFlow.complete: check-in finished", "phone", sess.Phone, "points", points, "total", total)
	return summaryReply(rec, points, total)
}

// awardPoints grants XP for each completed action plus a full-day bonus.
// Award failures are logged and skipped; the check-in itself already
// succeeded.
func (c *CheckinFlow) awardPoints(sess *models.CheckinSession) int {
	points := 0
	award := func(reason string, n int) {
		if err := c.awarder.Award(sess.Phone, reason, n); err == nil {
			points += n
		}
	}

	if boolValue(sess.ShakeAM) {
		award("shake_am", gamification.XPShake)
	}
	if boolValue(sess.ShakePM) {
		award("shake_pm", gamification.XPShake)
	}
	if boolValue(sess.Hydration) {
		award("hydration", gamification.XPHydration)
	}
	if boolValue(sess.Supplement) {
		award("supplement", gamification.XPSupplement)
	}
	if sess.Weight != nil {
		award("weight", gamification.XPWeight)
	}
	if boolValue(sess.ShakeAM) && boolValue(sess.ShakePM) && boolValue(sess.Hydration) && boolValue(sess.Supplement) {
		award("full_day", gamification.XPFullDay)
	}
	return points
}

// summaryReply formats the completion message with the day's results and XP.
func summaryReply(rec models.CheckinRecord, points, total int) string {
	var b strings.Builder
	b.WriteString("Check-in completo! 🎉\n")
	b.WriteString(checkmark(rec.ShakeAM) + " Shake manhã\n")
	b.WriteString(checkmark(rec.ShakePM) + " Shake noite\n")
	b.WriteString(checkmark(rec.Hydration) + " Água\n")
	b.WriteString(checkmark(rec.Supplement) + " Suplemento\n")
	if rec.Weight != nil {
		b.WriteString(fmt.Sprintf("⚖️ Peso: %.1f kg\n", *rec.Weight))
	}
	b.WriteString(fmt.Sprintf("\nVocê ganhou %d XP hoje (total: %d). Até amanhã! 💪", points, total))
	return b.String()
}

func checkmark(done bool) string {
	if done {
		return "✅"
	}
	return "❌"
}

// ParseWeight validates a weigh-in entry against the anchored pattern and
// physiological bounds. It returns the parsed weight and whether the text was
// a valid entry.
func ParseWeight(text string) (float64, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	m := weightPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, false
	}
	w, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	if w < MinWeightKg || w > MaxWeightKg {
		return 0, false
	}
	return w, true
}

// parseYesNo matches a free-text answer against the tolerated yes/no
// vocabularies. ok is false when the text fits neither.
func parseYesNo(text string) (answer, ok bool) {
	normalized := intent.Normalize(strings.TrimSpace(text))
	normalized = strings.Trim(normalized, "!. 👍🙏❤️")
	for _, w := range yesWords {
		if normalized == w {
			return true, true
		}
	}
	for _, w := range noWords {
		if normalized == w {
			return false, true
		}
	}
	return false, false
}

func isSkip(text string) bool {
	normalized := intent.Normalize(strings.TrimSpace(text))
	for _, w := range skipWords {
		if normalized == w || strings.HasPrefix(normalized, w+" ") {
			return true
		}
	}
	return false
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
