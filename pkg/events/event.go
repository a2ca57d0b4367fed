package events

import "time"

// Event is the contract of every analytics event leaving the process.
type Event interface {
	// EventType is the dotted subject suffix, e.g. "query.fast.completed".
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

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

const (
	QuerySubmitted = "query.submitted"
	RatingChanged  = "rating.changed"
	QueryDeleted   = "query.deleted"
)

// PollOutcome names the event emitted when a poller of kind ("fast" or
// "accurate") reaches a terminal phase.
func PollOutcome(kind, phase string) string {
	return "query." + kind + "." + phase
}
