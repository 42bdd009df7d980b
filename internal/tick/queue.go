// Package tick provides the deferred task queue that drives arbor.
//
// Operations never deliver their results or events from inside the call
// that caused them. Instead the work is deferred onto a Queue, and the host
// drains the queue once its current call stack has unwound, either
// explicitly with Drain or continuously with Run.
package tick

import (
	"context"
	"sync"
)

// Queue is a FIFO queue of deferred tasks.
// Defer is safe for concurrent use; tasks always run one at a time.
type Queue struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
	notify  chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
	}
}

// Defer schedules fn to run on a later tick, after every task already
// queued.
func (q *Queue) Defer(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs queued tasks in FIFO order until the queue is empty,
// including tasks deferred while draining. Returns the number of tasks run.
//
// A Drain called from inside a task returns 0 immediately; the outer drain
// picks up whatever the task deferred.
func (q *Queue) Drain() int {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return 0
	}
	q.running = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}()

	n := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.tasks = nil
			q.mu.Unlock()
			return n
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
		n++
	}
}

// Run drains the queue every time work is deferred until ctx is done.
// Returns ctx.Err().
func (q *Queue) Run(ctx context.Context) error {
	q.Drain()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.notify:
			q.Drain()
		}
	}
}
