// Package event provides the change-notification bus of the document store.
//
// Listeners subscribe to a set of event types and a path pattern. Emitting
// an event scans the registry synchronously, queues one delivery per
// matching listener and schedules a single drain on the next deferred tick.
// The drain then invokes the handlers in the order their deliveries were
// queued.
//
//	                 Emit(type, path, message)
//	                           │
//	                ┌──────────▼──────────┐
//	                │      Registry       │  scan in registration order,
//	                │  type ∩ path match  │  one-shot listeners removed here
//	                └──────────┬──────────┘
//	                           │ {listener, *Event}
//	                ┌──────────▼──────────┐
//	                │   delivery queue    │  FIFO
//	                └──────────┬──────────┘
//	                           │ drain on next tick
//	                ┌──────────▼──────────┐
//	                │ dispatch.Executor   │  panics and errors logged
//	                └─────────────────────┘
//
// # Matching
//
// A listener matches when its type set contains the event type or the
// wildcard type "*", and its path suits the event path (see path.Suits).
// Wildcards are allowed on both sides.
//
// # Snapshot isolation
//
// The listener scan happens inside Emit. A listener registered after Emit
// returns is never notified for that emission, even if the drain has not
// run yet. One-shot listeners are removed during the scan, before their
// handler runs, so a handler cannot observe or cancel its own removal.
//
// # Events
//
// One *Event is built per Emit call, and only if at least one listener
// matched. The same pointer is handed to every listener notified for that
// emission; handlers must treat it as read-only.
//
// # Removal
//
// Off removes every listener registered with the given handler, whatever
// its types and path. Handler identity is interface equality, so use
// NewHandler to obtain a comparable handle for a function. Remove takes the
// *Listener returned by On or Once.
package event
