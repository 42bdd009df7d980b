package event

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/arbor/internal/path"
)

// Listener is a registered subscription.
type Listener struct {
	// ID uniquely identifies the listener.
	ID uuid.UUID

	// Types is the set of event types the listener receives.
	Types []Type

	// Path is the subscribed path pattern.
	Path path.Path

	// Handler receives the events.
	Handler Handler

	// Once marks a one-shot listener, removed when first matched.
	Once bool
}

func newListener(types []Type, p path.Path, h Handler, once bool) *Listener {
	ts := make([]Type, len(types))
	copy(ts, types)
	return &Listener{
		ID:      uuid.New(),
		Types:   ts,
		Path:    p.Clone(),
		Handler: h,
		Once:    once,
	}
}

// Accepts reports whether the listener wants an event of type t at p.
func (l *Listener) Accepts(t Type, p path.Path) bool {
	return l.hasType(t) && path.Suits(l.Path, p)
}

func (l *Listener) hasType(t Type) bool {
	for _, lt := range l.Types {
		if lt == t || lt == AnyType {
			return true
		}
	}
	return false
}

// Registry holds listeners in registration order.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	listeners []*Listener
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a listener.
func (r *Registry) Add(l *Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Remove deletes a listener by ID.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, l := range r.listeners {
		if l.ID == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveHandler deletes every listener registered with h.
// Returns the number removed.
func (r *Registry) RemoveHandler(h Handler) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.listeners[:0]
	removed := 0
	for _, l := range r.listeners {
		if sameHandler(l.Handler, h) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	for i := len(kept); i < len(r.listeners); i++ {
		r.listeners[i] = nil
	}
	r.listeners = kept
	return removed
}

// Collect returns the listeners accepting an event of type t at p, in
// registration order. Matching one-shot listeners are removed in the same
// critical section, so each is returned by exactly one Collect.
func (r *Registry) Collect(t Type, p path.Path) []*Listener {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*Listener
	kept := r.listeners[:0]
	for _, l := range r.listeners {
		if l.Accepts(t, p) {
			matched = append(matched, l)
			if l.Once {
				continue
			}
		}
		kept = append(kept, l)
	}
	for i := len(kept); i < len(r.listeners); i++ {
		r.listeners[i] = nil
	}
	r.listeners = kept
	return matched
}

// Listeners returns a snapshot of all listeners.
func (r *Registry) Listeners() []*Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Listener, len(r.listeners))
	copy(out, r.listeners)
	return out
}

// Count returns the number of registered listeners.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}
