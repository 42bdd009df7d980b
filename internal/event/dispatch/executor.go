package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Executor runs a single handler with panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
	errorHandler ErrorHandler
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPanicHandler sets the callback invoked after a handler panics.
func WithPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// WithErrorHandler sets the callback invoked when a handler returns an error.
func WithErrorHandler(h ErrorHandler) ExecutorOption {
	return func(e *Executor) {
		e.errorHandler = h
	}
}

// Execute runs handler with subject. Panics are recovered and reported
// through the result; they never reach the caller.
func (e *Executor) Execute(ctx context.Context, subject any, handler Handler) (result Result) {
	select {
	case <-ctx.Done():
		return Result{
			Error:   ctx.Err(),
			Skipped: true,
		}
	default:
	}

	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			result.Success = false
			result.Error = nil
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack

			if e.panicHandler != nil {
				func() {
					// a panicking panic handler must not escape either
					defer func() { _ = recover() }()
					e.panicHandler(subject, r, stack)
				}()
			}
		}
	}()

	if err := handler.Handle(ctx, subject); err != nil {
		result.Error = err
		if e.errorHandler != nil {
			e.errorHandler(subject, err)
		}
		return result
	}

	result.Success = true
	return result
}

// ExecuteAll runs handlers in order and returns all results.
// Remaining handlers are skipped once the context is cancelled.
func (e *Executor) ExecuteAll(ctx context.Context, subject any, handlers []Handler) []Result {
	results := make([]Result, len(handlers))

	for i, handler := range handlers {
		select {
		case <-ctx.Done():
			for j := i; j < len(handlers); j++ {
				results[j] = Result{
					Error:   ctx.Err(),
					Skipped: true,
				}
			}
			return results
		default:
		}

		results[i] = e.Execute(ctx, subject, handler)
	}

	return results
}
