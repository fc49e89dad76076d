// Package store provides durable storage backends for LeadFlow.
//
// The durable store is the source of truth (tier 3) for conversations, leads,
// consultants, check-ins, and gamification events. PostgreSQL is used in
// production, SQLite in development, and an in-memory implementation backs
// tests.
package store

import (
	"strings"

	"github.com/corevida/leadflow/internal/models"
)

// Store defines the row-level operations the core needs from the durable
// tier. The dialogue state machine only requires find-by-id,
// find-active-by-lead, insert, and update.
type Store interface {
	SaveLead(l models.Lead) error
	GetLead(id string) (*models.Lead, error)
	GetLeadByPhone(phone string) (*models.Lead, error)
	ListLeads() ([]models.Lead, error)

	SaveConsultant(c models.Consultant) error
	GetConsultant(id string) (*models.Consultant, error)

	SaveConversation(rec models.ConversationRecord) error
	GetConversation(id string) (*models.ConversationRecord, error)
	GetActiveConversationByLead(leadID string) (*models.ConversationRecord, error)
	UpdateConversation(rec models.ConversationRecord) error
	ListConversations() ([]models.ConversationRecord, error)

	AddCheckin(rec models.CheckinRecord) error
	AddXPEvent(ev models.XPEvent) error
	GetXPTotal(phone string) (int, error)

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the database connection string. A postgres:// URL selects the
	// Postgres backend; anything else is treated as an SQLite file path.
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
