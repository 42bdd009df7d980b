package store

import (
	"strconv"

	"github.com/dshills/arbor/internal/event"
	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/mutate"
	"github.com/dshills/arbor/internal/tick"
)

// Option configures a Store.
type Option func(*config)

type config struct {
	logger *logging.Logger
	keygen mutate.KeyGenerator
	seed   any
	queue  *tick.Queue
}

// WithLogger sets the logger for the store and its components.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithKeyGenerator replaces the key generator used by creates that do not
// name a key.
func WithKeyGenerator(g mutate.KeyGenerator) Option {
	return func(c *config) {
		c.keygen = g
	}
}

// WithSeed sets the initial document. It must convert to a mapping.
func WithSeed(doc any) Option {
	return func(c *config) {
		c.seed = doc
	}
}

// WithQueue runs the store on an existing queue, letting several stores
// share one tick.
func WithQueue(q *tick.Queue) Option {
	return func(c *config) {
		c.queue = q
	}
}

// OpOption modifies a single operation.
type OpOption func(*mutate.Options)

// WithKey names the created child. In a sequence the key is the insertion
// index.
func WithKey(k string) OpOption {
	return func(o *mutate.Options) {
		o.Key = k
		o.HasKey = true
	}
}

// WithIndex inserts into a sequence at i.
func WithIndex(i int) OpOption {
	return WithKey(strconv.Itoa(i))
}

// WithForceUpdate makes update emit "updated" even for unchanged nodes.
func WithForceUpdate() OpOption {
	return func(o *mutate.Options) {
		o.ForceUpdate = true
	}
}

// WithMessage adds fields to every event the operation emits.
func WithMessage(m event.Message) OpOption {
	return func(o *mutate.Options) {
		o.Message = m.Clone()
	}
}

func opOptions(opts []OpOption) mutate.Options {
	var o mutate.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
