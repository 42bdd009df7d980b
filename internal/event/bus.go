package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/arbor/internal/event/dispatch"
	"github.com/dshills/arbor/internal/logging/logfields"
	"github.com/dshills/arbor/internal/path"
)

// Scheduler defers work to a later tick in FIFO order.
// *tick.Queue satisfies it.
type Scheduler interface {
	Defer(fn func())
}

type delivery struct {
	listener *Listener
	event    *Event
}

// Bus is the event bus of one store.
type Bus struct {
	registry   *Registry
	scheduler  Scheduler
	dispatcher *dispatch.SyncDispatcher
	config     busConfig

	mu        sync.Mutex
	queue     []delivery
	scheduled bool

	emitted   atomic.Uint64
	matched   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
	drains    atomic.Uint64
}

// NewBus creates a bus that drains its delivery queue through scheduler.
func NewBus(scheduler Scheduler, opts ...BusOption) *Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	b := &Bus{
		registry:  NewRegistry(),
		scheduler: scheduler,
		config:    config,
	}
	b.dispatcher = dispatch.NewSyncDispatcher(
		dispatch.WithPanicHandler(b.onPanic),
		dispatch.WithErrorHandler(b.onError),
	)
	return b
}

// On registers a permanent listener.
func (b *Bus) On(types []Type, p path.Path, h Handler) (*Listener, error) {
	return b.add(types, p, h, false)
}

// Once registers a listener that is removed when it first matches an
// emission.
func (b *Bus) Once(types []Type, p path.Path, h Handler) (*Listener, error) {
	return b.add(types, p, h, true)
}

func (b *Bus) add(types []Type, p path.Path, h Handler, once bool) (*Listener, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	if len(types) == 0 {
		return nil, ErrNoTypes
	}
	l := newListener(types, p, h, once)
	b.registry.Add(l)
	return l, nil
}

// Off removes every listener registered with h, permanent or one-shot,
// whatever its types and path. Returns the number removed.
func (b *Bus) Off(h Handler) int {
	return b.registry.RemoveHandler(h)
}

// Remove removes a single listener.
func (b *Bus) Remove(l *Listener) bool {
	if l == nil {
		return false
	}
	return b.registry.Remove(l.ID)
}

// Emit queues an event for every listener accepting type t at p and
// schedules a drain if none is pending. Returns the number of listeners
// notified. The event snapshot, and a shallow copy of msg, is only built
// when at least one listener matched.
func (b *Bus) Emit(t Type, p path.Path, msg Message) int {
	b.emitted.Add(1)

	listeners := b.registry.Collect(t, p)
	if len(listeners) == 0 {
		return 0
	}
	b.matched.Add(uint64(len(listeners)))

	ev := newEvent(t, p, msg)

	b.mu.Lock()
	for _, l := range listeners {
		b.queue = append(b.queue, delivery{listener: l, event: ev})
	}
	schedule := !b.scheduled
	b.scheduled = true
	b.mu.Unlock()

	if schedule {
		b.scheduler.Defer(b.drain)
	}
	return len(listeners)
}

// drain delivers queued events FIFO until the queue is empty. Deliveries
// queued by handlers during the drain are picked up by the same drain.
func (b *Bus) drain() {
	b.drains.Add(1)
	ctx := context.Background()

	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.queue = nil
			b.scheduled = false
			b.mu.Unlock()
			return
		}
		d := b.queue[0]
		b.queue[0] = delivery{}
		b.queue = b.queue[1:]
		b.mu.Unlock()

		result := b.dispatcher.Dispatch(ctx, d, deliver)
		if result.IsSuccess() {
			b.delivered.Add(1)
		}
	}
}

var deliver = dispatch.HandlerFunc(func(_ context.Context, subject any) error {
	d := subject.(delivery)
	return d.listener.Handler.HandleEvent(d.event)
})

func (b *Bus) onError(subject any, err error) {
	d := subject.(delivery)
	b.failed.Add(1)

	b.config.logger.WithFields(map[string]any{
		logfields.ListenerID: d.listener.ID.String(),
		logfields.EventType:  string(d.event.Type),
		logfields.Path:       d.event.Path.String(),
	}).WithError(err).Error("event handler failed")

	if b.config.errorHandler != nil {
		b.config.errorHandler(d.listener, d.event, err)
	}
}

func (b *Bus) onPanic(subject any, v any, stack []byte) {
	d := subject.(delivery)
	b.panicked.Add(1)

	perr := &PanicError{
		ListenerID: d.listener.ID.String(),
		Event:      d.event,
		Value:      v,
		Stack:      stack,
	}
	log := b.config.logger.WithFields(map[string]any{
		logfields.ListenerID: perr.ListenerID,
		logfields.EventType:  string(d.event.Type),
		logfields.Path:       d.event.Path.String(),
		logfields.Panic:      v,
	})
	log.Error("event handler panicked")
	log.Debug("%s", stack)

	if b.config.errorHandler != nil {
		b.config.errorHandler(d.listener, d.event, perr)
	}
}

// Pending returns the number of queued deliveries.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Listeners returns a snapshot of the registered listeners.
func (b *Bus) Listeners() []*Listener {
	return b.registry.Listeners()
}

// Stats contains event bus statistics.
type Stats struct {
	// Emitted is the number of Emit calls.
	Emitted uint64

	// Queued is the number of deliveries queued across all emissions.
	Queued uint64

	// Delivered is the number of handlers that returned without error.
	Delivered uint64

	// HandlerErrors is the number of handlers that returned an error.
	HandlerErrors uint64

	// HandlerPanics is the number of handlers that panicked.
	HandlerPanics uint64

	// Drains is the number of drain passes run.
	Drains uint64

	// Listeners is the current number of registered listeners.
	Listeners int

	// Pending is the current delivery queue depth.
	Pending int
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	return Stats{
		Emitted:       b.emitted.Load(),
		Queued:        b.matched.Load(),
		Delivered:     b.delivered.Load(),
		HandlerErrors: b.failed.Load(),
		HandlerPanics: b.panicked.Load(),
		Drains:        b.drains.Load(),
		Listeners:     b.registry.Count(),
		Pending:       b.Pending(),
	}
}
