// Package retention drives the scheduled messaging that keeps converted
// leads engaged: morning check-in prompts, re-order nudges, and the session
// cache sweep. All sends go through the rate-limited queue and respect the
// allowed-hours window.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corevida/leadflow/internal/flow"
	"github.com/corevida/leadflow/internal/memory"
	"github.com/corevida/leadflow/internal/models"
	"github.com/corevida/leadflow/internal/scheduler"
	"github.com/corevida/leadflow/internal/store"
	"github.com/corevida/leadflow/internal/throttle"
)

// Default job schedules and policy.
const (
	// DefaultCheckinCron fires the morning check-in prompt at 09:00.
	DefaultCheckinCron = "0 9 * * *"
	// DefaultReorderCron checks daily for customers due a re-order nudge.
	DefaultReorderCron = "0 10 * * *"
	// DefaultSweepCron evicts idle session memory every six hours.
	DefaultSweepCron = "0 */6 * * *"
	// DefaultReorderAfterDays is how long after conversion the re-order nudge
	// fires.
	DefaultReorderAfterDays = 25
)

// reorderVariations feeds VaryText so repeated nudges do not go out verbatim.
var reorderVariations = map[string][]string{
	"saudacao": {"Oi", "Olá", "Oii"},
	"gancho":   {"seu shake deve estar acabando", "já faz um tempinho desde seu último pedido", "seu estoque já deve estar no fim"},
	"fecho":    {"Quer que eu já deixe o próximo separado?", "Posso adiantar seu próximo pedido?", "Quer garantir o próximo com desconto de cliente?"},
}

const reorderTemplate = "{saudacao}! Tudo bem? Passando porque {gancho}. {fecho}"

// Sender is the narrow outbound contract retention needs from the channel
// service.
type Sender interface {
	SendMessage(ctx context.Context, to, body string) error
}

// Opts holds configuration options for the retention jobs.
type Opts struct {
	CheckinCron      string
	ReorderCron      string
	SweepCron        string
	ReorderAfterDays int
	UTCOffsetHours   int
}

// Option defines a configuration option for the retention jobs.
type Option func(*Opts)

// WithCheckinCron overrides the morning check-in schedule.
func WithCheckinCron(expr string) Option {
	return func(o *Opts) { o.CheckinCron = expr }
}

// WithReorderCron overrides the re-order nudge schedule.
func WithReorderCron(expr string) Option {
	return func(o *Opts) { o.ReorderCron = expr }
}

// WithSweepCron overrides the memory sweep schedule.
func WithSweepCron(expr string) Option {
	return func(o *Opts) { o.SweepCron = expr }
}

// WithReorderAfterDays sets how many days after conversion the nudge fires.
func WithReorderAfterDays(days int) Option {
	return func(o *Opts) { o.ReorderAfterDays = days }
}

// WithUTCOffsetHours sets the leads' local timezone offset for the
// allowed-hours check.
func WithUTCOffsetHours(offset int) Option {
	return func(o *Opts) { o.UTCOffsetHours = offset }
}

// Retention owns the scheduled engagement jobs.
type Retention struct {
	store    store.Store
	checkin  *flow.CheckinFlow
	sessions *memory.SessionStore
	queue    *throttle.SendQueue
	sender   Sender

	checkinCron      string
	reorderCron      string
	sweepCron        string
	reorderAfterDays int
	utcOffsetHours   int
}

// New creates the retention job runner.
func New(st store.Store, checkin *flow.CheckinFlow, sessions *memory.SessionStore, queue *throttle.SendQueue, sender Sender, opts ...Option) *Retention {
	cfg := Opts{
		CheckinCron:      DefaultCheckinCron,
		ReorderCron:      DefaultReorderCron,
		SweepCron:        DefaultSweepCron,
		ReorderAfterDays: DefaultReorderAfterDays,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Retention{
		store:            st,
		checkin:          checkin,
		sessions:         sessions,
		queue:            queue,
		sender:           sender,
		checkinCron:      cfg.CheckinCron,
		reorderCron:      cfg.ReorderCron,
		sweepCron:        cfg.SweepCron,
		reorderAfterDays: cfg.ReorderAfterDays,
		utcOffsetHours:   cfg.UTCOffsetHours,
	}
}

// RegisterJobs wires the three jobs into the cron scheduler.
func (r *Retention) RegisterJobs(s *scheduler.Scheduler) error {
	if err := s.AddJob(r.checkinCron, func() { r.RunMorningCheckins(context.Background()) }); err != nil {
		return fmt.Errorf("register check-in job: %w", err)
	}
	if err := s.AddJob(r.reorderCron, func() { r.RunReorderNudges(context.Background()) }); err != nil {
		return fmt.Errorf("register re-order job: %w", err)
	}
	if err := s.AddJob(r.sweepCron, func() { r.sessions.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	slog.Info("Retention.RegisterJobs: jobs registered", "checkin", r.checkinCron, "reorder", r.reorderCron, "sweep", r.sweepCron)
	return nil
}

// RunMorningCheckins opens a check-in session for every converted lead and
// queues the first question. Skipped entirely outside allowed hours.
func (r *Retention) RunMorningCheckins(ctx context.Context) int {
	if !throttle.IsWithinAllowedHours(r.utcOffsetHours) {
		slog.Info("Retention.RunMorningCheckins: outside allowed hours, skipping")
		return 0
	}

	customers, err := r.convertedLeads()
	if err != nil {
		slog.Error("Retention.RunMorningCheckins: listing customers failed", "error", err)
		return 0
	}

	started := 0
	for _, lead := range customers {
		if r.checkin.HasActiveSession(ctx, lead.Phone) {
			continue
		}
		prompt := r.checkin.Start(ctx, lead.Phone)
		r.enqueue(lead.Phone, prompt)
		started++
	}
	slog.Info("Retention.RunMorningCheckins: check-ins queued", "count", started)
	return started
}

// RunReorderNudges sends a re-order message to customers whose conversion is
// between N and N+1 days old, so the daily job nudges each customer once.
func (r *Retention) RunReorderNudges(ctx context.Context) int {
	if !throttle.IsWithinAllowedHours(r.utcOffsetHours) {
		slog.Info("Retention.RunReorderNudges: outside allowed hours, skipping")
		return 0
	}

	recs, err := r.store.ListConversations()
	if err != nil {
		slog.Error("Retention.RunReorderNudges: listing conversations failed", "error", err)
		return 0
	}

	now := time.Now()
	window := 24 * time.Hour
	due := time.Duration(r.reorderAfterDays) * 24 * time.Hour

	nudged := 0
	for _, rec := range recs {
		if rec.Status != models.ConversationStatusConverted {
			continue
		}
		elapsed := now.Sub(rec.UpdatedAt)
		if elapsed < due || elapsed >= due+window {
			continue
		}
		lead, err := r.store.GetLead(rec.LeadID)
		if err != nil || lead == nil {
			slog.Warn("Retention.RunReorderNudges: lead lookup failed", "leadID", rec.LeadID, "error", err)
			continue
		}
		r.enqueue(lead.Phone, throttle.VaryText(reorderTemplate, reorderVariations))
		nudged++
	}
	slog.Info("Retention.RunReorderNudges: nudges queued", "count", nudged)
	return nudged
}

// convertedLeads resolves the distinct leads behind converted conversations.
func (r *Retention) convertedLeads() ([]models.Lead, error) {
	recs, err := r.store.ListConversations()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var leads []models.Lead
	for _, rec := range recs {
		if rec.Status != models.ConversationStatusConverted || seen[rec.LeadID] {
			continue
		}
		seen[rec.LeadID] = true
		lead, err := r.store.GetLead(rec.LeadID)
		if err != nil || lead == nil {
			slog.Warn("Retention.convertedLeads: lead lookup failed", "leadID", rec.LeadID, "error", err)
			continue
		}
		leads = append(leads, *lead)
	}
	return leads, nil
}

func (r *Retention) enqueue(phone, body string) {
	r.queue.Enqueue(phone, func(ctx context.Context) error {
		return r.sender.SendMessage(ctx, phone, body)
	})
}
