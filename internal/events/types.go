// Package events provides the event type relayed to stream subscribers and the bounded
// history buffer used to replay recent events to late joiners.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TopicEvents is the SSE event name used for relayed webhook payloads.
const TopicEvents = "events"

// Event represents one relayed payload. Events are immutable once appended to a History.
type Event struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// New creates an Event with a fresh ID and the current time.
// data is copied so later changes by the caller cannot reach the event.
func New(topic string, data []byte) Event {
	return Event{
		ID:        uuid.New().String(),
		Topic:     topic,
		Data:      append(json.RawMessage(nil), data...),
		Timestamp: time.Now().UTC(),
	}
}

// Buffer defines the operations the relay needs from a history store.
type Buffer interface {
	// Append stores an event, evicting the oldest one when full.
	Append(event Event)
	// Snapshot returns the buffered events in insertion order.
	Snapshot() []Event
	// Since returns the events appended after eventID; ok is false if eventID is unknown.
	Since(eventID string) (result []Event, ok bool)
	// IsEmpty reports whether nothing is buffered.
	IsEmpty() bool
	// Len returns the number of buffered events.
	Len() int
	// Cap returns the configured capacity.
	Cap() int
}
