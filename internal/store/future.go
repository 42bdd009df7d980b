package store

import (
	"context"
	"sync"

	"github.com/dshills/arbor/internal/event"
	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/mutate"
)

// Result describes one node touched by an operation.
type Result = mutate.Result

// Callback receives the outcome of an operation.
type Callback func(results []Result, err error)

// Future is the pending outcome of a store operation.
//
// A future never settles inside the call that created it: the outcome is
// recorded on a later tick of the store's queue, after the change events of
// the operation have been delivered.
type Future struct {
	scheduler event.Scheduler
	run       func(Callback, []Result, error)
	log       *logging.Logger

	mu        sync.Mutex
	resolving bool
	settled   bool
	results   []Result
	err       error
	callbacks []Callback
	done      chan struct{}
}

func newFuture(s event.Scheduler, run func(Callback, []Result, error), log *logging.Logger) *Future {
	return &Future{
		scheduler: s,
		run:       run,
		log:       log,
		done:      make(chan struct{}),
	}
}

// resolve schedules settlement with the given outcome. Only the first call
// counts.
func (f *Future) resolve(results []Result, err error) {
	f.mu.Lock()
	if f.resolving {
		f.mu.Unlock()
		f.log.Warn("operation settled more than once")
		return
	}
	f.resolving = true
	f.mu.Unlock()

	f.scheduler.Defer(func() {
		f.mu.Lock()
		f.settled = true
		f.results = results
		f.err = err
		callbacks := f.callbacks
		f.callbacks = nil
		close(f.done)
		f.mu.Unlock()

		for _, cb := range callbacks {
			f.run(cb, results, err)
		}
	})
}

// Then registers cb to run on the queue once the future settles. If it has
// already settled, cb is deferred to the next tick. Then returns f.
func (f *Future) Then(cb Callback) *Future {
	if cb == nil {
		return f
	}
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return f
	}
	results, err := f.results, f.err
	f.mu.Unlock()

	f.scheduler.Defer(func() {
		f.run(cb, results, err)
	})
	return f
}

// Done is closed when the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome, or ErrPending if the future has not settled.
func (f *Future) Result() ([]Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		return nil, ErrPending
	}
	return f.results, f.err
}

// Wait blocks until the future settles or ctx is done. Something must be
// draining the store's queue, Store.Run for example, or Wait only returns
// on ctx.
func (f *Future) Wait(ctx context.Context) ([]Result, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
