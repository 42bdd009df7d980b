package event

import "errors"

// Sentinel errors for the event bus.
var (
	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNoTypes is returned when a listener names no event types.
	ErrNoTypes = errors.New("listener must name at least one event type")

	// ErrHandlerPanic is matched by a PanicError.
	ErrHandlerPanic = errors.New("handler panicked")
)

// PanicError wraps a panic value recovered from a listener.
type PanicError struct {
	// ListenerID is the ID of the listener whose handler panicked.
	ListenerID string

	// Event is the event being delivered.
	Event *Event

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return "handler panic for listener " + e.ListenerID + " on " + e.Event.String()
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
