package dispatch

import (
	"context"
	"time"
)

// Handler is invoked with the subject being dispatched: a queued event
// delivery, a middleware step, a settled future callback.
type Handler interface {
	Handle(ctx context.Context, subject any) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, subject any) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, subject any) error {
	return f(ctx, subject)
}

// Dispatcher runs handlers and reports their outcome.
type Dispatcher interface {
	// Dispatch executes a handler with the given subject.
	Dispatch(ctx context.Context, subject any, handler Handler) Result
}

// Result represents the outcome of a handler execution.
type Result struct {
	// Success is true if the handler completed without error or panic.
	Success bool

	// Error is the error returned by the handler, if any.
	Error error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the handler took to execute.
	Duration time.Duration

	// Skipped is true if the handler was not executed (context cancelled).
	Skipped bool
}

// IsSuccess returns true if the result indicates successful execution.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// IsError returns true if the result indicates an error (not panic).
func (r Result) IsError() bool {
	return r.Error != nil && !r.Panicked
}

// IsPanic returns true if the result indicates a panic.
func (r Result) IsPanic() bool {
	return r.Panicked
}

// PanicHandler is called when a handler panics.
// It receives the subject, the panic value and the stack trace.
type PanicHandler func(subject any, panicValue any, stack []byte)

// ErrorHandler is called when a handler returns an error.
type ErrorHandler func(subject any, err error)
