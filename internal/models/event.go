package models

import "time"

// EventType classifies lifecycle notifications.
type EventType string

const (
	EventCreated       EventType = "vps.created"
	EventSuspended     EventType = "vps.suspended"
	EventResumed       EventType = "vps.resumed"
	EventAutoSuspended EventType = "vps.auto_suspended"
)

// Event is a lifecycle notification emitted by the engine. Delivery is
// best-effort; sinks must never influence the outcome of the operation
// that produced the event.
type Event struct {
	Type     EventType `json:"type"`
	VPSID    string    `json:"vps_id"`
	Customer string    `json:"customer"`
	Reason   string    `json:"reason,omitempty"`
	Time     time.Time `json:"time"`
}
