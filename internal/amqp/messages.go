package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// LogSyncMessage asks the worker to export one waste log entry.
// It carries only identifiers; the worker reads the entry from the database.
type LogSyncMessage struct {
	EntryID   string    `json:"entry_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLogSyncMessage(entryID, userID string) *LogSyncMessage {
	return &LogSyncMessage{
		EntryID:   entryID,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *LogSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LogSyncMessageFromJSON decodes a message and rejects ones without an entry ID.
func LogSyncMessageFromJSON(data []byte) (*LogSyncMessage, error) {
	var msg LogSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.EntryID == "" {
		return nil, errors.New("log sync message has no entry id")
	}
	return &msg, nil
}
