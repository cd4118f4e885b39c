// Package hub provides a thread-safe websocket broadcast hub
// using the channel-based fan-out pattern.
package hub

import (
	"encoding/json"
	"time"
)

// Message is one encoded frame queued for delivery to clients.
type Message struct {
	Data []byte
}

// Event is the JSON envelope sent to dashboard clients.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// NewEvent wraps payload in an envelope stamped with the current time.
func NewEvent(eventType string, payload any) Event {
	return Event{Type: eventType, At: time.Now().UTC(), Data: payload}
}

// Encode marshals the event into a message.
func (e Event) Encode() (Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}
