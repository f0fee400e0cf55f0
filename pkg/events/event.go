package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_CREATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	EventSessionCreated  = "SESSION_CREATED"
	EventSessionAnalyzed = "SESSION_ANALYZED"
	EventSessionFailed   = "SESSION_FAILED"
	EventSessionDeleted  = "SESSION_DELETED"
	EventSessionExpired  = "SESSION_EXPIRED"
)

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewSessionEvent builds a lifecycle event for a single analysis session.
func NewSessionEvent(eventType string, sessionId uuid.UUID, documentName string) Event {
	return BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			"session_id":    sessionId.String(),
			"document_name": documentName,
		},
		OccurredAt: time.Now(),
	}
}
