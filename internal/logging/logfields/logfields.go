// Package logfields defines common logging fields which are used across packages
package logfields

const (
	// LogSubsys is the field denoting the subsystem when logging
	LogSubsys = "subsys"

	// Path is the string form of a document path
	Path = "path"

	// Op is a store operation kind (create, read, update, delete)
	Op = "op"

	// EventType is the type of an emitted event
	EventType = "eventType"

	// EventID is the unique identifier of an emitted event
	EventID = "eventID"

	// ListenerID is the unique identifier of an event listener
	ListenerID = "listenerID"

	// MiddlewareID is the unique identifier of a middleware entry
	MiddlewareID = "middlewareID"

	// Matches is the number of nodes a path resolved to
	Matches = "matches"

	// Key is a mapping key or sequence index
	Key = "key"

	// File is a filesystem path
	File = "file"

	// Format is a document encoding
	Format = "format"

	// Panic is the value a handler panicked with
	Panic = "panic"

	// Stack is a captured goroutine stack
	Stack = "stack"

	// Duration is the time an action took
	Duration = "duration"

	// Queued is the number of pending deliveries
	Queued = "queued"
)
