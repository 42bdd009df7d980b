// Package store is the public face of arbor: a single mutable document
// addressed by path, with create, read, update and delete operations that
// pass through a middleware chain and announce their changes on an event
// bus.
//
// A Store is driven by a tick.Queue. Operations run synchronously up to the
// point where they have changed the tree and queued their events; event
// delivery and the settlement of the returned Future happen on later ticks.
// Call Flush to run those ticks in the current goroutine, or Run to drive
// them from a dedicated one.
//
//	s, _ := store.New()
//	s.Create(path.RootPath(), map[string]any{"a": 1}, store.WithKey("k")).
//		Then(func(res []store.Result, err error) { ... })
//	s.Flush()
//
// A Store is not safe for concurrent use; all operations and the queue
// must run on one goroutine at a time.
package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/dshills/arbor/internal/event"
	"github.com/dshills/arbor/internal/event/dispatch"
	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/logging/logfields"
	"github.com/dshills/arbor/internal/middleware"
	"github.com/dshills/arbor/internal/mutate"
	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/tick"
	"github.com/dshills/arbor/internal/tree"
	"github.com/dshills/arbor/internal/value"
)

// Store is an in-memory document store.
type Store struct {
	tree      *tree.Tree
	engine    *mutate.Engine
	bus       *event.Bus
	chain     *middleware.Chain
	queue     *tick.Queue
	callbacks *dispatch.SyncDispatcher
	log       *logging.Logger

	mu       sync.Mutex
	ops      map[middleware.Kind]uint64
	failures map[middleware.Kind]uint64
}

// New creates a store. Without WithSeed the document is an empty mapping.
func New(opts ...Option) (*Store, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.Default()
	}
	if cfg.queue == nil {
		cfg.queue = tick.New()
	}

	root := value.NewMapping()
	if cfg.seed != nil {
		v, err := value.FromAny(cfg.seed)
		if err != nil {
			return nil, errors.Wrap(err, "convert seed")
		}
		m, ok := v.(*value.Mapping)
		if !ok {
			return nil, errors.Wrapf(ErrNotAContainer, "seed must be a mapping, got %s", v.Kind())
		}
		root = m
	}

	s := &Store{
		tree:     tree.New(root),
		queue:    cfg.queue,
		log:      cfg.logger.WithComponent("store"),
		ops:      make(map[middleware.Kind]uint64),
		failures: make(map[middleware.Kind]uint64),
	}
	s.bus = event.NewBus(s.queue, event.WithLogger(cfg.logger.WithComponent("event")))

	engineOpts := []mutate.Option{mutate.WithLogger(cfg.logger)}
	if cfg.keygen != nil {
		engineOpts = append(engineOpts, mutate.WithKeyGenerator(cfg.keygen))
	}
	s.engine = mutate.NewEngine(s.tree, s.bus, engineOpts...)

	s.chain = middleware.NewChain(
		middleware.WithOrder(middleware.OrderLIFO),
		middleware.WithLogger(cfg.logger),
	)
	s.callbacks = dispatch.NewSyncDispatcher(dispatch.WithPanicHandler(s.onCallbackPanic))

	// Registered first so the LIFO walk reaches them last.
	for _, k := range middleware.AllKinds() {
		if _, err := s.chain.Use([]middleware.Kind{k}, nil, s.terminal(k)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) terminal(kind middleware.Kind) middleware.Handler {
	return middleware.HandlerFunc(func(p *middleware.Params, _ middleware.Next, _ middleware.Kind) error {
		v := p.Value
		if v == nil {
			v = value.Null()
		}

		var (
			results []Result
			err     error
		)
		switch kind {
		case middleware.Create:
			results, err = s.engine.Create(p.Path, v, p.Options)
		case middleware.Read:
			results, err = s.engine.Read(p.Path)
		case middleware.Update:
			results, err = s.engine.Update(p.Path, v, p.Options)
		case middleware.Delete:
			results, err = s.engine.Delete(p.Path, p.Options)
		}
		p.Settle(results, err)
		return nil
	})
}

// Create inserts a copy of v into every container matching p.
func (s *Store) Create(p path.Path, v any, opts ...OpOption) *Future {
	return s.dispatch(middleware.Create, p, v, true, opts)
}

// Read returns copies of every node matching p.
func (s *Store) Read(p path.Path, opts ...OpOption) *Future {
	return s.dispatch(middleware.Read, p, nil, false, opts)
}

// Update applies v to every node matching p.
func (s *Store) Update(p path.Path, v any, opts ...OpOption) *Future {
	return s.dispatch(middleware.Update, p, v, true, opts)
}

// Delete removes every node matching p. The root cannot be deleted.
func (s *Store) Delete(p path.Path, opts ...OpOption) *Future {
	return s.dispatch(middleware.Delete, p, nil, false, opts)
}

func (s *Store) dispatch(kind middleware.Kind, p path.Path, v any, hasValue bool, opts []OpOption) *Future {
	f := newFuture(s.queue, s.runCallback, s.log)
	settle := func(results []Result, err error) {
		s.record(kind, p, err)
		f.resolve(results, err)
	}

	var val value.Value
	if hasValue {
		converted, err := value.FromAny(v)
		if err != nil {
			settle(nil, errors.Wrapf(err, "%s %s", kind, p))
			return f
		}
		val = converted
	}

	params := middleware.NewParams(p.Clone(), val, opOptions(opts), settle)
	s.chain.Dispatch(kind, params)
	return f
}

func (s *Store) record(kind middleware.Kind, p path.Path, err error) {
	s.mu.Lock()
	s.ops[kind]++
	if err != nil {
		s.failures[kind]++
	}
	s.mu.Unlock()

	if err != nil && s.log.IsDebug() {
		s.log.WithFields(map[string]any{
			logfields.Op:   string(kind),
			logfields.Path: p.String(),
		}).WithError(err).Debug("operation failed")
	}
}

func (s *Store) runCallback(cb Callback, results []Result, err error) {
	s.callbacks.Dispatch(context.Background(), cb, dispatch.HandlerFunc(
		func(context.Context, any) error {
			cb(results, err)
			return nil
		},
	))
}

func (s *Store) onCallbackPanic(_ any, v any, stack []byte) {
	log := s.log.WithField(logfields.Panic, v)
	log.Error("operation callback panicked")
	log.Debug("%s", stack)
}

// Use registers middleware for kinds. A nil filter applies it to every
// path; otherwise it runs only for operations whose path suits filter.
//
// Middleware runs most recently registered first. A handler continues the
// operation by calling next; one that returns without calling it, and
// without settling the params, leaves the operation pending.
func (s *Store) Use(kinds []middleware.Kind, filter path.Path, h middleware.Handler) (*middleware.Entry, error) {
	return s.chain.Use(kinds, filter, h)
}

// On registers a listener for events of the given types whose path suits p.
func (s *Store) On(types []event.Type, p path.Path, h event.Handler) (*event.Listener, error) {
	return s.bus.On(types, p, h)
}

// Once is like On, but the listener is removed after its first match.
func (s *Store) Once(types []event.Type, p path.Path, h event.Handler) (*event.Listener, error) {
	return s.bus.Once(types, p, h)
}

// Off removes every listener registered with h. It returns the number
// removed.
func (s *Store) Off(h event.Handler) int {
	return s.bus.Off(h)
}

// Emit publishes an event to matching listeners. It returns the number of
// listeners that will receive it.
func (s *Store) Emit(t event.Type, p path.Path, msg event.Message) int {
	return s.bus.Emit(t, p, msg)
}

// ToStringPath renders p in path syntax.
func (s *Store) ToStringPath(p path.Path) string {
	return p.String()
}

// FromStringPath parses path syntax.
func (s *Store) FromStringPath(str string) path.Path {
	return path.Parse(str)
}

// GenerateKey returns a fresh key from the store's key generator.
func (s *Store) GenerateKey() string {
	return s.engine.GenerateKey()
}

// Flush runs queued ticks until none remain and returns how many ran.
func (s *Store) Flush() int {
	return s.queue.Drain()
}

// Run drives the queue until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	return s.queue.Run(ctx)
}

// Queue returns the queue the store defers work to.
func (s *Store) Queue() *tick.Queue {
	return s.queue
}

// Document returns a detached copy of the whole document with key order
// preserved.
func (s *Store) Document() *value.Mapping {
	return value.Clone(s.tree.Root()).(*value.Mapping)
}

// Snapshot returns a detached copy of the whole document.
func (s *Store) Snapshot() map[string]any {
	m, _ := value.ToAny(s.tree.Root()).(map[string]any)
	return m
}
