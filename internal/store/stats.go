package store

import (
	"github.com/dshills/arbor/internal/event"
	"github.com/dshills/arbor/internal/middleware"
)

// Stats is a snapshot of store activity.
type Stats struct {
	// Ops counts settled operations per kind.
	Ops map[middleware.Kind]uint64

	// Failures counts operations per kind that settled with an error.
	Failures map[middleware.Kind]uint64

	Events     event.Stats
	Middleware middleware.Stats

	// Ticks is the number of tasks waiting on the queue.
	Ticks int
}

// Stats returns current store statistics.
func (s *Store) Stats() Stats {
	st := Stats{
		Ops:        make(map[middleware.Kind]uint64),
		Failures:   make(map[middleware.Kind]uint64),
		Events:     s.bus.Stats(),
		Middleware: s.chain.Stats(),
		Ticks:      s.queue.Len(),
	}
	s.mu.Lock()
	for k, n := range s.ops {
		st.Ops[k] = n
	}
	for k, n := range s.failures {
		st.Failures[k] = n
	}
	s.mu.Unlock()
	return st
}
