package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"dailyledger/internal/core"
)

// Sync operations carried by RecordSyncMessage.
const (
	OpUpsert = "upsert"
	OpClear  = "clear"
)

// RecordSyncMessage asks the worker to mirror one ledger day to Google
// Sheets. It carries only the date and version; the worker reads the record
// itself so a stale message never overwrites newer data.
type RecordSyncMessage struct {
	Operation string    `json:"operation"`
	Date      string    `json:"date,omitempty"`
	Version   int64     `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordSyncMessage creates an upsert message for date at version.
func NewRecordSyncMessage(date core.Date, version int64) *RecordSyncMessage {
	return &RecordSyncMessage{
		Operation: OpUpsert,
		Date:      date.String(),
		Version:   version,
		Timestamp: time.Now(),
	}
}

// NewClearMessage creates a message that clears the mirrored ledger.
func NewClearMessage() *RecordSyncMessage {
	return &RecordSyncMessage{Operation: OpClear, Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes
func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ParsedDate returns the message date.
func (m *RecordSyncMessage) ParsedDate() (core.Date, error) {
	return core.ParseDate(m.Date)
}

// RecordSyncMessageFromJSON decodes and checks a message body.
func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Operation {
	case OpUpsert:
		if _, err := msg.ParsedDate(); err != nil {
			return nil, fmt.Errorf("upsert message: %w", err)
		}
	case OpClear:
	default:
		return nil, fmt.Errorf("unknown operation %q", msg.Operation)
	}
	return &msg, nil
}
