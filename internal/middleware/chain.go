package middleware

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/arbor/internal/event/dispatch"
	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/logging/logfields"
	"github.com/dshills/arbor/internal/path"
)

// Next continues the walk with the next matching entry. Calling it more
// than once from the same handler has no further effect.
type Next func()

// Handler intercepts an operation.
//
// A handler that returns an error is logged and, unless the operation was
// already settled, settles it with that error, so the caller sees it. A
// panicking handler is logged and swallowed and never reaches the caller;
// the operation stays pending unless something else settles it.
type Handler interface {
	Handle(p *Params, next Next, kind Kind) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(p *Params, next Next, kind Kind) error

// Handle implements Handler.
func (f HandlerFunc) Handle(p *Params, next Next, kind Kind) error {
	return f(p, next, kind)
}

// Order is the direction in which Dispatch walks the registered entries.
type Order int

const (
	// OrderLIFO runs the most recently registered entry first. Handlers
	// registered when the chain is built therefore run last.
	OrderLIFO Order = iota

	// OrderFIFO runs entries in registration order.
	OrderFIFO
)

// String returns the policy name.
func (o Order) String() string {
	if o == OrderFIFO {
		return "fifo"
	}
	return "lifo"
}

// Entry is a registered middleware.
type Entry struct {
	ID      uuid.UUID
	Kinds   []Kind
	Filter  path.Path
	Handler Handler
}

// Applies reports whether the entry intercepts an operation of kind on p.
func (e *Entry) Applies(kind Kind, p path.Path) bool {
	found := false
	for _, k := range e.Kinds {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if e.Filter == nil {
		return true
	}
	if p == nil {
		return false
	}
	return path.Suits(e.Filter, p)
}

// Stats is a snapshot of chain counters.
type Stats struct {
	Entries     int
	Dispatches  uint64
	Invocations uint64
	Errors      uint64
	Panics      uint64
}

// Chain is an ordered middleware list.
type Chain struct {
	mu      sync.RWMutex
	entries []*Entry

	order    Order
	log      *logging.Logger
	executor *dispatch.Executor

	dispatches  atomic.Uint64
	invocations atomic.Uint64
	errs        atomic.Uint64
	panics      atomic.Uint64
}

// Option configures a Chain.
type Option func(*Chain)

// WithOrder sets the walk order. The default is OrderLIFO.
func WithOrder(o Order) Option {
	return func(c *Chain) {
		c.order = o
	}
}

// WithLogger sets the logger used to report failing handlers.
func WithLogger(l *logging.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.log = l
		}
	}
}

// NewChain creates an empty chain.
func NewChain(opts ...Option) *Chain {
	c := &Chain{
		order: OrderLIFO,
		log:   logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("middleware")
	c.executor = dispatch.NewExecutor(
		dispatch.WithPanicHandler(c.onPanic),
		dispatch.WithErrorHandler(c.onError),
	)
	return c
}

// Order returns the walk order.
func (c *Chain) Order() Order {
	return c.order
}

// Use registers h for kinds. A nil filter applies the entry to every path.
func (c *Chain) Use(kinds []Kind, filter path.Path, h Handler) (*Entry, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	if len(kinds) == 0 {
		return nil, ErrNoKinds
	}
	for _, k := range kinds {
		if !k.Valid() {
			return nil, ErrUnknownKind
		}
	}

	e := &Entry{
		ID:      uuid.New(),
		Kinds:   append([]Kind(nil), kinds...),
		Handler: h,
	}
	if filter != nil {
		e.Filter = filter.Clone()
	}

	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()

	if c.log.IsDebug() {
		c.log.WithFields(map[string]any{
			logfields.MiddlewareID: e.ID.String(),
			logfields.Op:           kinds,
		}).Debug("middleware registered")
	}
	return e, nil
}

// Len returns the number of registered entries.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns the entries in walk order.
func (c *Chain) Entries() []*Entry {
	c.mu.RLock()
	n := len(c.entries)
	out := make([]*Entry, n)
	for i, e := range c.entries {
		if c.order == OrderLIFO {
			out[n-1-i] = e
		} else {
			out[i] = e
		}
	}
	c.mu.RUnlock()
	return out
}

// Dispatch walks the chain for one operation. The entry list is
// snapshotted first; entries registered during the walk are not visited.
func (c *Chain) Dispatch(kind Kind, p *Params) {
	c.dispatches.Add(1)
	w := &walk{
		chain:   c,
		kind:    kind,
		params:  p,
		entries: c.Entries(),
	}
	w.next()
}

// Stats returns a snapshot of the chain counters.
func (c *Chain) Stats() Stats {
	return Stats{
		Entries:     c.Len(),
		Dispatches:  c.dispatches.Load(),
		Invocations: c.invocations.Load(),
		Errors:      c.errs.Load(),
		Panics:      c.panics.Load(),
	}
}

type walk struct {
	chain   *Chain
	kind    Kind
	params  *Params
	entries []*Entry
	pos     int
}

// step is the executor subject for one handler invocation.
type step struct {
	entry  *Entry
	kind   Kind
	params *Params
}

func (w *walk) next() {
	for w.pos < len(w.entries) {
		e := w.entries[w.pos]
		w.pos++
		if !e.Applies(w.kind, w.params.Path) {
			continue
		}
		w.invoke(e)
		return
	}
}

func (w *walk) invoke(e *Entry) {
	w.chain.invocations.Add(1)

	called := false
	next := func() {
		if called {
			return
		}
		called = true
		w.next()
	}

	s := step{entry: e, kind: w.kind, params: w.params}
	w.chain.executor.Execute(context.Background(), s, dispatch.HandlerFunc(
		func(_ context.Context, _ any) error {
			return e.Handler.Handle(w.params, next, w.kind)
		},
	))
}

func (c *Chain) fields(s step) map[string]any {
	f := map[string]any{
		logfields.MiddlewareID: s.entry.ID.String(),
		logfields.Op:           string(s.kind),
	}
	if s.params.Path != nil {
		f[logfields.Path] = s.params.Path.String()
	}
	return f
}

func (c *Chain) onError(subject any, err error) {
	s := subject.(step)
	c.errs.Add(1)
	c.log.WithFields(c.fields(s)).WithError(err).Warn("middleware failed")
	s.params.Settle(nil, err)
}

func (c *Chain) onPanic(subject any, v any, stack []byte) {
	s := subject.(step)
	c.panics.Add(1)
	log := c.log.WithFields(c.fields(s)).WithField(logfields.Panic, v)
	log.Error("middleware panicked")
	log.Debug("%s", stack)
}
