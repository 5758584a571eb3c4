package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRecordUpserted is emitted after a record is inserted or updated.
	EventTypeRecordUpserted = "spool.record.upserted"

	// EventTypeRecordDeleted is emitted after a record is deleted.
	EventTypeRecordDeleted = "spool.record.deleted"
)

// RecordMutationEvent is a transport-neutral event payload for a record
// mutation against a vector store collection.
type RecordMutationEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Collection    string         `json:"collection"`
	Provider      string         `json:"provider"`
	RecordID      string         `json:"record_id"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// NewRecordMutationEvent builds a v1 event stamped with a fresh event id and
// emission time.
func NewRecordMutationEvent(eventType, collection, provider, recordID string, payload map[string]any) *RecordMutationEvent {
	return &RecordMutationEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Collection:    collection,
		Provider:      provider,
		RecordID:      recordID,
		Payload:       payload,
	}
}
