// Package store provides durable storage backends for LeadFlow.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/corevida/leadflow/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveLead(l models.Lead) error {
	_, err := s.db.Exec(`INSERT INTO leads (id, phone, name, channel, source, created_at) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET phone = EXCLUDED.phone, name = EXCLUDED.name, source = EXCLUDED.source`,
		l.ID, l.Phone, nilIfEmpty(l.Name), l.Channel, nilIfEmpty(l.Source), l.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveLead failed", "error", err, "id", l.ID)
		return fmt.Errorf("failed to save lead %s: %w", l.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetLead(id string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT id, phone, COALESCE(name, ''), channel, COALESCE(source, ''), created_at FROM leads WHERE id = $1`, id)
	var l models.Lead
	if err := row.Scan(&l.ID, &l.Phone, &l.Name, &l.Channel, &l.Source, &l.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Error("PostgresStore GetLead failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get lead %s: %w", id, err)
	}
	return &l, nil
}

func (s *PostgresStore) GetLeadByPhone(phone string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT id, phone, COALESCE(name, ''), channel, COALESCE(source, ''), created_at FROM leads WHERE phone = $1`, phone)
	var l models.Lead
	if err := row.Scan(&l.ID, &l.Phone, &l.Name, &l.Channel, &l.Source, &l.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Error("PostgresStore GetLeadByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to get lead by phone: %w", err)
	}
	return &l, nil
}

func (s *PostgresStore) ListLeads() ([]models.Lead, error) {
	rows, err := s.db.Query(`SELECT id, phone, COALESCE(name, ''), channel, COALESCE(source, ''), created_at FROM leads ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()
	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(&l.ID, &l.Phone, &l.Name, &l.Channel, &l.Source, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (s *PostgresStore) SaveConsultant(c models.Consultant) error {
	_, err := s.db.Exec(`INSERT INTO consultants (id, phone, name, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET phone = EXCLUDED.phone, name = EXCLUDED.name`,
		c.ID, c.Phone, c.Name, c.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConsultant failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to save consultant %s: %w", c.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetConsultant(id string) (*models.Consultant, error) {
	row := s.db.QueryRow(`SELECT id, phone, name, created_at FROM consultants WHERE id = $1`, id)
	var c models.Consultant
	if err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Error("PostgresStore GetConsultant failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get consultant %s: %w", id, err)
	}
	return &c, nil
}

func (s *PostgresStore) SaveConversation(rec models.ConversationRecord) error {
	messagesJSON, err := marshalMessages(rec.Messages)
	if err != nil {
		return err
	}
	contextJSON, err := marshalContext(rec.Context)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO conversations (id, lead_id, consultant_id, channel, stage, messages, context, status, handoff_triggered, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.LeadID, rec.ConsultantID, rec.Channel, rec.Stage, messagesJSON, contextJSON, rec.Status, rec.HandoffTriggered, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to insert conversation %s: %w", rec.ID, err)
	}
	slog.Debug("PostgresStore SaveConversation succeeded", "id", rec.ID, "stage", rec.Stage)
	return nil
}

func (s *PostgresStore) GetConversation(id string) (*models.ConversationRecord, error) {
	row := s.db.QueryRow(`SELECT id, lead_id, consultant_id, channel, stage, messages, context, status, handoff_triggered, created_at, updated_at
		FROM conversations WHERE id = $1`, id)
	return scanConversationRow(row, id)
}

func (s *PostgresStore) GetActiveConversationByLead(leadID string) (*models.ConversationRecord, error) {
	row := s.db.QueryRow(`SELECT id, lead_id, consultant_id, channel, stage, messages, context, status, handoff_triggered, created_at, updated_at
		FROM conversations WHERE lead_id = $1 AND status = $2 ORDER BY updated_at DESC LIMIT 1`,
		leadID, models.ConversationStatusActive)
	return scanConversationRow(row, leadID)
}

func (s *PostgresStore) UpdateConversation(rec models.ConversationRecord) error {
	messagesJSON, err := marshalMessages(rec.Messages)
	if err != nil {
		return err
	}
	contextJSON, err := marshalContext(rec.Context)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE conversations SET stage = $1, messages = $2, context = $3, status = $4, handoff_triggered = $5, updated_at = $6 WHERE id = $7`,
		rec.Stage, messagesJSON, contextJSON, rec.Status, rec.HandoffTriggered, rec.UpdatedAt, rec.ID)
	if err != nil {
		slog.Error("PostgresStore UpdateConversation failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to update conversation %s: %w", rec.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update conversation %s: %w", rec.ID, err)
	}
	if affected == 0 {
		return models.ErrConversationNotFound
	}
	return nil
}

func (s *PostgresStore) ListConversations() ([]models.ConversationRecord, error) {
	rows, err := s.db.Query(`SELECT id, lead_id, consultant_id, channel, stage, messages, context, status, handoff_triggered, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		slog.Error("PostgresStore ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()
	var recs []models.ConversationRecord
	for rows.Next() {
		var rec models.ConversationRecord
		var messagesJSON, contextJSON string
		if err := rows.Scan(&rec.ID, &rec.LeadID, &rec.ConsultantID, &rec.Channel, &rec.Stage, &messagesJSON, &contextJSON, &rec.Status, &rec.HandoffTriggered, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		if err := unmarshalConversationBlobs(&rec, messagesJSON, contextJSON); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *PostgresStore) AddCheckin(rec models.CheckinRecord) error {
	_, err := s.db.Exec(`INSERT INTO checkins (id, phone, shake_am, shake_pm, hydration, supplement, weight, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Phone, rec.ShakeAM, rec.ShakePM, rec.Hydration, rec.Supplement, rec.Weight, rec.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddCheckin failed", "error", err, "phone", rec.Phone)
		return fmt.Errorf("failed to insert checkin for %s: %w", rec.Phone, err)
	}
	return nil
}

func (s *PostgresStore) AddXPEvent(ev models.XPEvent) error {
	_, err := s.db.Exec(`INSERT INTO xp_events (id, phone, points, reason, created_at) VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.Phone, ev.Points, ev.Reason, ev.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddXPEvent failed", "error", err, "phone", ev.Phone)
		return fmt.Errorf("failed to insert xp event for %s: %w", ev.Phone, err)
	}
	return nil
}

func (s *PostgresStore) GetXPTotal(phone string) (int, error) {
	row := s.db.QueryRow(`SELECT COALESCE(SUM(points), 0) FROM xp_events WHERE phone = $1`, phone)
	var total int
	if err := row.Scan(&total); err != nil {
		slog.Error("PostgresStore GetXPTotal failed", "error", err, "phone", phone)
		return 0, fmt.Errorf("failed to sum xp for %s: %w", phone, err)
	}
	return total, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// scanConversationRow scans a single conversation row, returning nil on
// sql.ErrNoRows so callers can treat absence as a normal miss.
func scanConversationRow(row *sql.Row, key string) (*models.ConversationRecord, error) {
	var rec models.ConversationRecord
	var messagesJSON, contextJSON string
	err := row.Scan(&rec.ID, &rec.LeadID, &rec.ConsultantID, &rec.Channel, &rec.Stage, &messagesJSON, &contextJSON, &rec.Status, &rec.HandoffTriggered, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation for %s: %w", key, err)
	}
	if err := unmarshalConversationBlobs(&rec, messagesJSON, contextJSON); err != nil {
		return nil, err
	}
	return &rec, nil
}
