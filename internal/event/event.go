package event

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dshills/arbor/internal/path"
)

// Event is a delivered notification.
// Events are immutable once created and shared by every listener notified
// for the same emission.
type Event struct {
	// ID is unique per emission and sorts in emission order.
	ID ulid.ULID

	// Type is the event type.
	Type Type

	// Path is the concrete path the event refers to.
	Path path.Path

	// Message is the payload.
	Message Message

	// Time is when the event was emitted.
	Time time.Time
}

func newEvent(t Type, p path.Path, msg Message) *Event {
	return &Event{
		ID:      ulid.Make(),
		Type:    t,
		Path:    p.Clone(),
		Message: msg.Clone(),
		Time:    time.Now(),
	}
}

// PathString returns the string form of the event path.
func (e *Event) PathString() string {
	return e.Path.String()
}

// String returns "type path".
func (e *Event) String() string {
	return string(e.Type) + " " + e.Path.String()
}
