// Package flow implements the persuasion dialogue state machine and the
// daily check-in flow.
//
// The dialogue advances a lead through a fixed stage track (product or
// business, selected by the collected profile type), building a stage-specific
// instruction for each LLM turn, folding detected behavioral signals into a
// handoff score, and persisting the conversation best-effort after every
// turn. Stage transitions are rule-based on observable inputs so they stay
// reproducible independent of the LLM's output.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corevida/leadflow/internal/genai"
	"github.com/corevida/leadflow/internal/intent"
	"github.com/corevida/leadflow/internal/memory"
	"github.com/corevida/leadflow/internal/models"
	"github.com/corevida/leadflow/internal/retry"
	"github.com/corevida/leadflow/internal/store"
)

// NextAction values returned in a DialogueResult.
const (
	// NextActionAwaitReply means the dialogue continues and the agent waits
	// for the lead's next message.
	NextActionAwaitReply = "await_reply"
	// NextActionHandoff means a human consultant should take over.
	NextActionHandoff = "handoff"
	// NextActionClose means the dialogue reached its terminal stage.
	NextActionClose = "close"
)

// contextHandoffTriggered records in the context map that the handoff
// short-circuit already fired, so the durable record keeps the flag across
// restarts.
const contextHandoffTriggered = "handoff_triggered"

// DialogueResult is the outcome of one processed inbound message.
type DialogueResult struct {
	ConversationID   string       `json:"conversation_id"`
	Reply            string       `json:"reply"`
	Stage            models.Stage `json:"stage"`
	HandoffTriggered bool         `json:"handoff_triggered"`
	NextAction       string       `json:"next_action"`
}

// Opts holds configuration options for the conversation flow.
type Opts struct {
	RetryConfig retry.Config
}

// Option defines a configuration option for the conversation flow.
type Option func(*Opts)

// WithRetryConfig overrides the LLM retry policy. Tests shrink the delays.
func WithRetryConfig(cfg retry.Config) Option {
	return func(o *Opts) { o.RetryConfig = cfg }
}

// ConversationFlow is the dialogue state machine. It is the sole mutator of
// conversation memory; per-conversation locks serialize concurrent inbound
// messages for the same lead.
type ConversationFlow struct {
	sessions *memory.SessionStore
	store    store.Store
	llm      genai.ClientInterface
	retryCfg retry.Config

	// leadIndex maps lead id to the active conversation id so repeated
	// inbound messages resolve through tier 1 without a durable round trip.
	indexMu   sync.Mutex
	leadIndex map[string]string

	// leadLocks serializes conversation resolution per lead so two
	// concurrent first messages cannot each create a conversation.
	leadMu    sync.Mutex
	leadLocks map[string]*sync.Mutex
}

// NewConversationFlow creates the dialogue state machine over the injected
// session store, durable store, and LLM client.
func NewConversationFlow(sessions *memory.SessionStore, st store.Store, llm genai.ClientInterface, opts ...Option) *ConversationFlow {
	cfg := Opts{RetryConfig: retry.DefaultLLMConfig}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ConversationFlow{
		sessions:  sessions,
		store:     st,
		llm:       llm,
		retryCfg:  cfg.RetryConfig,
		leadIndex: make(map[string]string),
		leadLocks: make(map[string]*sync.Mutex),
	}
}

// ProcessMessage runs one turn of the dialogue for an inbound user message.
// Every failure path still produces a reply; only invalid input returns an
// error.
func (f *ConversationFlow) ProcessMessage(ctx context.Context, leadID, consultantID string, channel models.Channel, userMessage string) (*DialogueResult, error) {
	return f.ProcessInbound(ctx, models.InboundMessageRequest{LeadID: leadID, ConsultantID: consultantID, Channel: channel, UserMessage: userMessage})
}

// ProcessInbound is the request form of ProcessMessage. The initial context,
// if any, seeds the context map of a freshly created conversation and is
// ignored for an existing one.
func (f *ConversationFlow) ProcessInbound(ctx context.Context, req models.InboundMessageRequest) (*DialogueResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	mem := f.resolveMemory(ctx, req.LeadID, req.ConsultantID, req.Channel, req.InitialContext)
	unlock := f.sessions.Lock(mem.ConversationID)
	defer unlock()

	f.sessions.AddMessage(mem.ConversationID, "user", req.UserMessage)

	signals := intent.DetectConversationSignals(req.UserMessage)
	for _, sig := range signals {
		f.sessions.AddSignal(mem.ConversationID, sig)
	}
	score := intent.CalculateHandoffScore(mem.HandoffScore, signals)
	f.sessions.UpdateHandoffScore(mem.ConversationID, score)
	slog.Debug("ConversationFlow.ProcessMessage: signals folded", "conversationID", mem.ConversationID, "signals", signals, "handoffScore", score)

	// The handoff check runs before any stage logic so a sudden high-intent
	// message pre-empts the current stage. Once commitment_accepted is set the
	// guard flag suppresses further handoffs.
	if intent.ShouldHandoff(score) && mem.Context[models.ContextCommitmentAccepted] != "true" {
		reply := handoffReply(mem.Context)
		f.sessions.UpdateContext(mem.ConversationID, models.ContextMap{contextHandoffTriggered: "true"})
		f.sessions.AddMessage(mem.ConversationID, "assistant", reply)
		f.persist(ctx, mem)
		slog.Info("ConversationFlow.ProcessMessage: handoff triggered", "conversationID", mem.ConversationID, "leadID", req.LeadID, "handoffScore", score)
		return &DialogueResult{
			ConversationID:   mem.ConversationID,
			Reply:            reply,
			Stage:            mem.Stage,
			HandoffTriggered: true,
			NextAction:       NextActionHandoff,
		}, nil
	}

	if updates := extractFacts(req.UserMessage, mem.Context); len(updates) > 0 {
		f.sessions.UpdateContext(mem.ConversationID, updates)
		slog.Debug("ConversationFlow.ProcessMessage: facts extracted", "conversationID", mem.ConversationID, "keys", contextKeys(updates))
	}

	reply := f.generateReply(ctx, mem.Stage, mem.Context, mem.Messages)

	stage := mem.Stage
	// Advancement looks only at this turn's message and signals, so a stale
	// affirmation from an earlier stage cannot keep pushing the dialogue
	// forward.
	if shouldAdvanceStage(stage, req.UserMessage, signals) {
		if stage == models.StageCommitment || stage == models.StageBizCommitment {
			f.sessions.UpdateContext(mem.ConversationID, models.ContextMap{models.ContextCommitmentAccepted: "true"})
		}
		stage = f.sessions.AdvanceStage(mem.ConversationID)
	}

	f.sessions.AddMessage(mem.ConversationID, "assistant", reply)
	f.persist(ctx, mem)

	next := NextActionAwaitReply
	if models.IsTerminalStage(stage) {
		next = NextActionClose
	}
	return &DialogueResult{
		ConversationID: mem.ConversationID,
		Reply:          reply,
		Stage:          stage,
		NextAction:     next,
	}, nil
}

// InitiateConversation starts an outbound-first dialogue seeded at the
// ice-break stage with the provided source context.
func (f *ConversationFlow) InitiateConversation(ctx context.Context, leadID, consultantID string, channel models.Channel, sourceContext models.ContextMap) (*DialogueResult, error) {
	req := models.InitiateConversationRequest{LeadID: leadID, ConsultantID: consultantID, Channel: channel, SourceContext: sourceContext}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	mem := f.resolveMemory(ctx, leadID, consultantID, channel, sourceContext)
	unlock := f.sessions.Lock(mem.ConversationID)
	defer unlock()

	reply := f.generateReply(ctx, mem.Stage, mem.Context, mem.Messages)
	f.sessions.AddMessage(mem.ConversationID, "assistant", reply)
	f.persist(ctx, mem)
	slog.Info("ConversationFlow.InitiateConversation: outbound contact started", "conversationID", mem.ConversationID, "leadID", leadID, "stage", mem.Stage)

	return &DialogueResult{
		ConversationID: mem.ConversationID,
		Reply:          reply,
		Stage:          mem.Stage,
		NextAction:     NextActionAwaitReply,
	}, nil
}

// resolveMemory finds the conversation for a lead through the tiers: the
// lead index into tier 1/2, then a tier-1 scan (covers sessions restored by
// the startup warm-up before the index knows them), then the durable store,
// else a fresh entry. A durable-store read failure degrades to a new
// conversation rather than failing the turn. The per-lead lock keeps two
// concurrent first messages from creating two conversations.
func (f *ConversationFlow) resolveMemory(ctx context.Context, leadID, consultantID string, channel models.Channel, initialContext models.ContextMap) *models.ConversationMemory {
	unlockLead := f.lockLead(leadID)
	defer unlockLead()

	f.indexMu.Lock()
	conversationID, indexed := f.leadIndex[leadID]
	f.indexMu.Unlock()
	if indexed {
		if mem := f.sessions.GetOrRestore(ctx, conversationID); mem != nil {
			return mem
		}
	}

	if mem := f.sessions.FindByLead(leadID); mem != nil {
		f.rememberLead(leadID, mem.ConversationID)
		return mem
	}

	rec, err := f.store.GetActiveConversationByLead(leadID)
	if err != nil {
		slog.Warn("ConversationFlow.resolveMemory: durable lookup failed, starting fresh", "leadID", leadID, "error", err)
	}

	var mem *models.ConversationMemory
	if rec != nil {
		if mem = f.sessions.GetOrRestore(ctx, rec.ID); mem == nil {
			mem = f.sessions.Restore(rec)
		}
	} else {
		mem = f.sessions.Create(uuid.NewString(), leadID, consultantID, channel, initialContext)
	}

	f.rememberLead(leadID, mem.ConversationID)
	return mem
}

// lockLead acquires the resolution lock for a lead and returns its unlock.
func (f *ConversationFlow) lockLead(leadID string) func() {
	f.leadMu.Lock()
	mu, ok := f.leadLocks[leadID]
	if !ok {
		mu = &sync.Mutex{}
		f.leadLocks[leadID] = mu
	}
	f.leadMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (f *ConversationFlow) rememberLead(leadID, conversationID string) {
	f.indexMu.Lock()
	f.leadIndex[leadID] = conversationID
	f.indexMu.Unlock()
}

// generateReply builds the stage instruction and calls the LLM with bounded
// retries. After the retries are exhausted it degrades to the static filler
// reply so the turn never dead-ends.
func (f *ConversationFlow) generateReply(ctx context.Context, stage models.Stage, ctxMap models.ContextMap, history []models.Message) string {
	systemPrompt := buildSystemPrompt(stage, ctxMap)
	turns := lastTurns(history, models.MaxHistoryTurns)

	var reply string
	err := retry.Do(ctx, f.retryCfg, func() error {
		var completeErr error
		reply, completeErr = f.llm.Complete(ctx, systemPrompt, turns, 0)
		return completeErr
	})
	if err != nil {
		slog.Error("ConversationFlow.generateReply: LLM failed after retries, using fallback", "stage", stage, "error", err)
		return fallbackReply
	}
	return reply
}

// persist writes the conversation to the durable store. Failures are logged
// and swallowed; the in-memory tier stays authoritative for the rest of the
// process lifetime.
func (f *ConversationFlow) persist(ctx context.Context, mem *models.ConversationMemory) {
	status := models.ConversationStatusActive
	switch {
	case mem.Context[contextHandoffTriggered] == "true":
		status = models.ConversationStatusHandedOff
	case mem.Context[models.ContextCommitmentAccepted] == "true":
		status = models.ConversationStatusConverted
	case models.IsTerminalStage(mem.Stage):
		status = models.ConversationStatusClosed
	}

	rec := models.ConversationRecord{
		ID:               mem.ConversationID,
		LeadID:           mem.LeadID,
		ConsultantID:     mem.ConsultantID,
		Channel:          mem.Channel,
		Stage:            mem.Stage,
		Messages:         mem.Messages,
		Context:          mem.Context,
		Status:           status,
		HandoffTriggered: mem.Context[contextHandoffTriggered] == "true",
		UpdatedAt:        time.Now(),
	}

	err := f.store.UpdateConversation(rec)
	if errors.Is(err, models.ErrConversationNotFound) {
		rec.CreatedAt = time.Now()
		err = f.store.SaveConversation(rec)
	}
	if err != nil {
		slog.Error("ConversationFlow.persist: durable write failed", "conversationID", mem.ConversationID, "error", err)
	}
}

// lastTurns returns the trailing n messages of the history.
func lastTurns(history []models.Message, n int) []models.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func contextKeys(m models.ContextMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
