// Package recovery restores conversation state after an application restart.
//
// The durable store is the source of truth, so a restart loses nothing, but a
// cold tier-1 cache means the first message of every ongoing dialogue pays a
// durable-store round trip. The warm-up loads every active conversation back
// into the session store at startup.
package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/corevida/leadflow/internal/memory"
	"github.com/corevida/leadflow/internal/models"
	"github.com/corevida/leadflow/internal/store"
)

// Recoverer warms the session tiers from the durable store.
type Recoverer struct {
	store    store.Store
	sessions *memory.SessionStore
}

// New creates a Recoverer over the given durable store and session store.
func New(st store.Store, sessions *memory.SessionStore) *Recoverer {
	return &Recoverer{store: st, sessions: sessions}
}

// RecoverActiveConversations restores every active conversation into the
// session store and returns how many were restored. Conversations already
// resident in tier 1 are left untouched.
func (r *Recoverer) RecoverActiveConversations(ctx context.Context) (int, error) {
	recs, err := r.store.ListConversations()
	if err != nil {
		return 0, fmt.Errorf("failed to list conversations for recovery: %w", err)
	}

	restored := 0
	for i := range recs {
		rec := recs[i]
		if rec.Status != models.ConversationStatusActive {
			continue
		}
		if r.sessions.Get(rec.ID) != nil {
			continue
		}
		r.sessions.Restore(&rec)
		restored++
		slog.Debug("Recoverer.RecoverActiveConversations: conversation restored", "conversationID", rec.ID, "leadID", rec.LeadID, "stage", rec.Stage)
	}

	slog.Info("Recoverer.RecoverActiveConversations: warm-up complete", "restored", restored, "total", len(recs))
	return restored, nil
}
