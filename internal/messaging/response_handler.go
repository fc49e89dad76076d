package messaging

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corevida/leadflow/internal/flow"
	"github.com/corevida/leadflow/internal/models"
	"github.com/corevida/leadflow/internal/store"
	"github.com/corevida/leadflow/internal/throttle"
)

// checkinTriggers are normalized inbound texts that open a check-in session
// on demand, outside the scheduled morning prompt.
var checkinTriggers = []string{"check-in", "checkin", "check in", "meu dia"}

// ResponseHandler routes inbound messages: an active check-in session wins,
// otherwise the message goes to the dialogue flow. Replies always leave
// through the rate-limited send queue.
type ResponseHandler struct {
	service  Service
	dialogue *flow.ConversationFlow
	checkin  *flow.CheckinFlow
	queue    *throttle.SendQueue
	store    store.Store

	// defaultConsultantID is assigned to leads arriving without an explicit
	// consultant mapping.
	defaultConsultantID string
}

// NewResponseHandler creates the inbound message router.
func NewResponseHandler(service Service, dialogue *flow.ConversationFlow, checkin *flow.CheckinFlow, queue *throttle.SendQueue, st store.Store, defaultConsultantID string) *ResponseHandler {
	return &ResponseHandler{
		service:             service,
		dialogue:            dialogue,
		checkin:             checkin,
		queue:               queue,
		store:               st,
		defaultConsultantID: defaultConsultantID,
	}
}

// Start consumes the service's response and receipt channels until ctx is
// cancelled. Each inbound message is handled in its own goroutine; reply
// ordering is preserved by the send queue, not by computation order.
func (h *ResponseHandler) Start(ctx context.Context) {
	go h.drainReceipts(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("ResponseHandler.Start: stopping")
				return
			case msg, ok := <-h.service.Responses():
				if !ok {
					slog.Info("ResponseHandler.Start: responses channel closed")
					return
				}
				go h.handleMessage(ctx, msg)
			}
		}
	}()
}

// handleMessage routes one inbound message and enqueues the reply.
func (h *ResponseHandler) handleMessage(ctx context.Context, msg models.InboundMessage) {
	phone, err := h.service.ValidateAndCanonicalizeRecipient(msg.From)
	if err != nil {
		slog.Warn("ResponseHandler.handleMessage: invalid sender, dropping", "from", msg.From, "error", err)
		return
	}

	// An active check-in session takes priority over the dialogue.
	if reply, handled := h.checkin.HandleMessage(ctx, phone, msg.Body); handled {
		h.enqueueReply(phone, reply)
		return
	}

	if isCheckinTrigger(msg.Body) {
		h.enqueueReply(phone, h.checkin.Start(ctx, phone))
		return
	}

	lead, err := h.ensureLead(phone, msg.Channel)
	if err != nil {
		slog.Error("ResponseHandler.handleMessage: lead resolution failed", "phone", phone, "error", err)
		return
	}

	result, err := h.dialogue.ProcessMessage(ctx, lead.ID, h.defaultConsultantID, msg.Channel, msg.Body)
	if err != nil {
		slog.Error("ResponseHandler.handleMessage: dialogue failed", "phone", phone, "error", err)
		return
	}
	h.enqueueReply(phone, result.Reply)
}

// ensureLead finds the lead by phone or registers a new one on first contact.
func (h *ResponseHandler) ensureLead(phone string, channel models.Channel) (*models.Lead, error) {
	lead, err := h.store.GetLeadByPhone(phone)
	if err != nil {
		return nil, err
	}
	if lead != nil {
		return lead, nil
	}

	lead = &models.Lead{
		ID:        uuid.NewString(),
		Phone:     phone,
		Channel:   channel,
		CreatedAt: time.Now(),
	}
	if err := h.store.SaveLead(*lead); err != nil {
		return nil, err
	}
	slog.Info("ResponseHandler.ensureLead: new lead registered", "phone", phone, "leadID", lead.ID, "channel", channel)
	return lead, nil
}

// enqueueReply pushes the reply through the rate-limited FIFO send queue.
func (h *ResponseHandler) enqueueReply(phone, reply string) {
	if reply == "" {
		return
	}
	h.queue.Enqueue(phone, func(ctx context.Context) error {
		return h.service.SendMessage(ctx, phone, reply)
	})
}

// drainReceipts logs delivery receipts so the channel never backs up.
func (h *ResponseHandler) drainReceipts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case receipt, ok := <-h.service.Receipts():
			if !ok {
				return
			}
			slog.Debug("ResponseHandler.drainReceipts: receipt", "to", receipt.To, "status", receipt.Status)
		}
	}
}

func isCheckinTrigger(body string) bool {
	normalized := strings.ToLower(strings.TrimSpace(body))
	for _, t := range checkinTriggers {
		if normalized == t {
			return true
		}
	}
	return false
}
