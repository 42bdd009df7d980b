// Package dispatch runs untrusted handlers safely.
//
// Event listeners, middleware steps and future callbacks are all user code
// running inside the store's call stack. None of them may crash the process
// or abort an operation in progress, so every invocation goes through an
// Executor that recovers panics, captures the stack and reports the outcome
// as a Result.
//
// # Usage
//
//	d := dispatch.NewSyncDispatcher(
//	    dispatch.WithPanicHandler(func(subject any, v any, stack []byte) {
//	        log.Errorf("handler panic: %v", v)
//	    }),
//	)
//	result := d.Dispatch(ctx, subject, handler)
//	if !result.IsSuccess() {
//	    // already reported; carry on
//	}
//
// Dispatch is synchronous. Ordering guarantees of the callers (FIFO event
// delivery, LIFO middleware walk) are preserved because nothing here ever
// reorders or defers work.
package dispatch
