// Package store provides durable storage backends for LeadFlow.
//
// This file implements the SQLite-backed store used in development.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/corevida/leadflow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveLead(l models.Lead) error {
	_, err := s.db.Exec(`INSERT INTO leads (id, phone, name, channel, source, created_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET phone = excluded.phone, name = excluded.name, source = excluded.source`,
		l.ID, l.Phone, nilIfEmpty(l.Name), l.Channel, nilIfEmpty(l.Source), l.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveLead failed", "error", err, "id", l.ID)
		return fmt.Errorf("failed to save lead %s: %w", l.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetLead(id string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT id, phone, COALESCE(name, ''), channel, COALESCE(source, ''), created_at FROM leads WHERE id = ?`, id)
	var l models.Lead
	if err := row.Scan(&l.ID, &l.Phone, &l.Name, &l.Channel, &l.Source, &l.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Error("SQLiteStore GetLead failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get lead %s: %w", id, err)
	}
	return &l, nil
}

func (s *SQLiteStore) GetLeadByPhone(phone string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT id, phone, COALESCE(name, ''), channel, COALESCE(source, ''), created_at FROM leads WHERE phone = ?`, phone)
	var l models.Lead
	if err := row.Scan(&l.ID, &l.Phone, &l.Name, &l.Channel, &l.Source, &l.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Error("SQLiteStore GetLeadByPhone failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to get lead by phone: %w", err)
	}
	return &l, nil
}

func (s *SQLiteStore) ListLeads() ([]models.Lead, error) {
	rows, err := s.db.Query(`SELECT id, phone, COALESCE(name, ''), channel, COALESCE(source, ''), created_at FROM leads ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListLeads query failed", "error", err)
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

func (s *SQLiteStore) SaveConsultant(c models.Consultant) error {
	_, err := s.db.Exec(`INSERT INTO consultants (id, phone, name, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET phone = excluded.phone, name = excluded.name`,
		c.ID, c.Phone, c.Name, c.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConsultant failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to save consultant %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetConsultant(id string) (*models.Consultant, error) {
	row := s.db.QueryRow(`SELECT id, phone, name, created_at FROM consultants WHERE id = ?`, id)
	var c models.Consultant
	if err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Error("SQLiteStore GetConsultant failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get consultant %s: %w", id, err)
	}
	return &c, nil
}

func (s *SQLiteStore) SaveConversation(rec models.ConversationRecord) error {
	messagesJSON, err := marshalMessages(rec.Messages)
	if err != nil {
		return err
	}
	contextJSON, err := marshalContext(rec.Context)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO conversations (id, lead_id, consultant_id, channel, stage, messages, context, status, handoff_triggered, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.LeadID, rec.ConsultantID, rec.Channel, rec.Stage, messagesJSON, contextJSON, rec.Status, rec.HandoffTriggered, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to insert conversation %s: %w", rec.ID, err)
	}
	slog.Debug("SQLiteStore SaveConversation succeeded", "id", rec.ID, "stage", rec.Stage)
	return nil
}

func (s *SQLiteStore) GetConversation(id string) (*models.ConversationRecord, error) {
	row := s.db.QueryRow(`SELECT id, lead_id, consultant_id, channel, stage, messages, context, status, handoff_triggered, created_at, updated_at
		FROM conversations WHERE id = ?`, id)
	return scanConversationRow(row, id)
}

func (s *SQLiteStore) GetActiveConversationByLead(leadID string) (*models.ConversationRecord, error) {
	row := s.db.QueryRow(`SELECT id, lead_id, consultant_id, channel, stage, messages, context, status, handoff_triggered, created_at, updated_at
		FROM conversations WHERE lead_id = ? AND status = ? ORDER BY updated_at DESC LIMIT 1`,
		leadID, models.ConversationStatusActive)
	return scanConversationRow(row, leadID)
}

func (s *SQLiteStore) UpdateConversation(rec models.ConversationRecord) error {
	messagesJSON, err := marshalMessages(rec.Messages)
	if err != nil {
		return err
	}
	contextJSON, err := marshalContext(rec.Context)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE conversations SET stage = ?, messages = ?, context = ?, status = ?, handoff_triggered = ?, updated_at = ? WHERE id = ?`,
		rec.Stage, messagesJSON, contextJSON, rec.Status, rec.HandoffTriggered, rec.UpdatedAt, rec.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateConversation failed", "error", err, "id", rec.ID)
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

func (s *SQLiteStore) ListConversations() ([]models.ConversationRecord, error) {
	rows, err := s.db.Query(`SELECT id, lead_id, consultant_id, channel, stage, messages, context, status, handoff_triggered, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		slog.Error("SQLiteStore ListConversations query failed", "error", err)
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

func (s *SQLiteStore) AddCheckin(rec models.CheckinRecord) error {
	_, err := s.db.Exec(`INSERT INTO checkins (id, phone, shake_am, shake_pm, hydration, supplement, weight, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Phone, rec.ShakeAM, rec.ShakePM, rec.Hydration, rec.Supplement, rec.Weight, rec.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddCheckin failed", "error", err, "phone", rec.Phone)
		return fmt.Errorf("failed to insert checkin for %s: %w", rec.Phone, err)
	}
	return nil
}

func (s *SQLiteStore) AddXPEvent(ev models.XPEvent) error {
	_, err := s.db.Exec(`INSERT INTO xp_events (id, phone, points, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.Phone, ev.Points, ev.Reason, ev.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddXPEvent failed", "error", err, "phone", ev.Phone)
		return fmt.Errorf("failed to insert xp event for %s: %w", ev.Phone, err)
	}
	return nil
}

func (s *SQLiteStore) GetXPTotal(phone string) (int, error) {
	row := s.db.QueryRow(`SELECT COALESCE(SUM(points), 0) FROM xp_events WHERE phone = ?`, phone)
	var total int
	if err := row.Scan(&total); err != nil {
		slog.Error("SQLiteStore GetXPTotal failed", "error", err, "phone", phone)
		return 0, fmt.Errorf("failed to sum xp for %s: %w", phone, err)
	}
	return total, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
