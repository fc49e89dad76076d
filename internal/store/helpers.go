package store

import (
	"encoding/json"
	"fmt"

	"github.com/corevida/leadflow/internal/models"
)

// marshalMessages encodes a message history for a JSON column. A nil history
// is stored as an empty array so restores never see SQL NULL.
func marshalMessages(msgs []models.Message) (string, error) {
	if msgs == nil {
		msgs = []models.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("marshal messages: %w", err)
	}
	return string(data), nil
}

// marshalContext encodes a context map for a JSON column.
func marshalContext(ctx models.ContextMap) (string, error) {
	if ctx == nil {
		ctx = models.ContextMap{}
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("marshal context: %w", err)
	}
	return string(data), nil
}

// unmarshalConversationBlobs decodes the JSON columns back into the record.
func unmarshalConversationBlobs(rec *models.ConversationRecord, messagesJSON, contextJSON string) error {
	if messagesJSON != "" {
		if err := json.Unmarshal([]byte(messagesJSON), &rec.Messages); err != nil {
			return fmt.Errorf("unmarshal messages for conversation %s: %w", rec.ID, err)
		}
	}
	if contextJSON != "" {
		if err := json.Unmarshal([]byte(contextJSON), &rec.Context); err != nil {
			return fmt.Errorf("unmarshal context for conversation %s: %w", rec.ID, err)
		}
	}
	if rec.Context == nil {
		rec.Context = models.ContextMap{}
	}
	return nil
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
