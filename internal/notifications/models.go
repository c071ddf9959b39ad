package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event types published when a subject's verification state changes
const (
	EventRecordsIngested = "verification.records.ingested"
	EventRunCreated      = "verification.run.created"
	EventSubjectMerged   = "verification.subject.merged"
)

// Event is a change notification for one subject
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	SubjectID string         `json:"subject_id"`
	Data      datatypes.JSON `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent builds an event with data encoded as JSON
func NewEvent(eventType, subjectID string, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode event data: %w", err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		SubjectID: subjectID,
		Data:      datatypes.JSON(raw),
		Timestamp: time.Now().UTC(),
	}, nil
}

// WebSocketMessage represents WebSocket message format
type WebSocketMessage struct {
	Type      string         `json:"type"`
	Data      datatypes.JSON `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Channel   string         `json:"channel"`
	Target    string         `json:"target"` // subject_id
}

const (
	// WebSocket message types
	WSMessageTypeEvent       = "event"
	WSMessageTypeStatus      = "status"
	WSMessageTypeSubscribe   = "subscribe"
	WSMessageTypeUnsubscribe = "unsubscribe"
)
