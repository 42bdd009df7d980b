// Package mutate applies create, read, update and delete operations to a
// document tree and emits the resulting change events.
//
// Every operation resolves its path first and then works on the matches in
// resolution order. Operations touching several matches are not atomic: a
// validation failure on one match stops the operation there, and matches
// already applied stay applied.
//
// Event order per operation:
//
//   - create: "created" for the new node, then for each descendant in
//     depth-first pre-order, then "updated" on the container it went into.
//   - update: a structural diff; removed children are deleted bottom-up,
//     added children created top-down, and "updated" is emitted for every
//     node whose own value or key set changed.
//   - delete: "deleted" bottom-up (descendants before the node, sequence
//     elements from the last index down), then "updated" on the former
//     parent.
package mutate

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/dshills/arbor/internal/event"
	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/logging/logfields"
	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/tree"
	"github.com/dshills/arbor/internal/value"
)

// Result describes one match of an operation.
//
// Create fills Path with the new node's path. Read and delete fill Path
// and Value. Update fills Path and OldValue. Values are detached plain Go
// values (see value.ToAny).
type Result struct {
	Path     path.Path
	Value    any
	OldValue any
}

// Options modify a single operation.
type Options struct {
	// Key names the new child on create. For sequences it must be a
	// non-negative decimal index.
	Key string

	// HasKey is true when Key was set explicitly.
	HasKey bool

	// ForceUpdate emits "updated" on update even when nothing changed.
	ForceUpdate bool

	// Message fields are copied into every emitted event.
	Message event.Message
}

// Emitter receives the change events of an operation.
// *event.Bus satisfies it.
type Emitter interface {
	Emit(t event.Type, p path.Path, msg event.Message) int
}

// Engine applies operations to a tree.
type Engine struct {
	tree    *tree.Tree
	emitter Emitter
	keygen  KeyGenerator
	log     *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithKeyGenerator replaces GenerateKey.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.keygen = g
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an engine over t that reports changes to emitter.
func NewEngine(t *tree.Tree, emitter Emitter, opts ...Option) *Engine {
	e := &Engine{
		tree:    t,
		emitter: emitter,
		keygen:  GenerateKey,
		log:     logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithComponent("mutate")
	return e
}

// Tree returns the tree the engine operates on.
func (e *Engine) Tree() *tree.Tree {
	return e.tree
}

// GenerateKey runs the configured key generator.
func (e *Engine) GenerateKey() string {
	return e.keygen()
}

func (e *Engine) resolve(p path.Path) ([]tree.Match, error) {
	matches := e.tree.Resolve(p)
	if len(matches) == 0 {
		return nil, errors.Wrapf(ErrNoMatch, "resolve %s", p)
	}
	if e.log.IsDebug() {
		e.log.WithFields(map[string]any{
			logfields.Path:    p.String(),
			logfields.Matches: len(matches),
		}).Debug("resolved path")
	}
	return matches, nil
}

// Read returns a detached copy of every node matching p.
func (e *Engine) Read(p path.Path) ([]Result, error) {
	matches, err := e.resolve(p)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Path:  m.Path,
			Value: value.ToAny(m.Node),
		}
	}
	return results, nil
}

// Create inserts a copy of v into every container matching p.
func (e *Engine) Create(p path.Path, v value.Value, opts Options) ([]Result, error) {
	matches, err := e.resolve(p)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		childPath, err := e.insert(m, v, opts)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Path: childPath})
	}
	return results, nil
}

func (e *Engine) insert(m tree.Match, v value.Value, opts Options) (path.Path, error) {
	var (
		key   string
		child = value.Clone(v)
	)

	switch c := m.Node.(type) {
	case *value.Sequence:
		index := c.Len()
		if opts.HasKey {
			i, ok := path.ParseIndex(opts.Key)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidKey, "%q is not a non-negative integer index at %s", opts.Key, m.Path)
			}
			index = i
		}
		key = strconv.Itoa(c.Insert(index, child))

	case *value.Mapping:
		if opts.HasKey {
			key = opts.Key
			if !LegalKey(key) {
				return nil, errors.Wrapf(ErrInvalidKey, "%q contains illegal characters at %s", key, m.Path)
			}
			if c.Has(key) {
				return nil, errors.Wrapf(ErrKeyTaken, "%q at %s", key, m.Path)
			}
		} else {
			key = e.keygen()
			if !LegalKey(key) {
				return nil, errors.Wrapf(ErrInvalidKey, "generated key %q contains illegal characters", key)
			}
			if c.Has(key) {
				return nil, errors.Wrapf(ErrKeyTaken, "generated key %q at %s", key, m.Path)
			}
		}
		c.Set(key, child)

	default:
		return nil, errors.Wrapf(ErrNotAContainer, "create at %s", m.Path)
	}

	container := m.Node.(value.Container)
	childPath := m.Path.ChildKey(key)
	e.emitCreated(tree.At(container, key, child, childPath), opts.Message)
	e.emit(event.Updated, m.Path, opts.Message, container)
	return childPath, nil
}

// Update applies v to every node matching p through the structural diff.
func (e *Engine) Update(p path.Path, v value.Value, opts Options) ([]Result, error) {
	matches, err := e.resolve(p)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.IsRoot() && v.Kind() != value.KindMapping {
			return nil, errors.Wrapf(ErrNotAContainer, "root must stay a mapping, got %s", v.Kind())
		}
		old := value.ToAny(m.Node)
		e.diff(m.Parent, m.Key, m.Path, value.Clone(v), opts)
		results = append(results, Result{Path: m.Path, OldValue: old})
	}
	return results, nil
}

// Delete removes every node matching p.
func (e *Engine) Delete(p path.Path, opts Options) ([]Result, error) {
	if p.IsRoot() || p.IsAny() {
		return nil, errors.Wrapf(ErrCannotDeleteRoot, "delete %s", p)
	}
	matches, err := e.resolve(p)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.IsRoot() {
			return nil, errors.Wrapf(ErrCannotDeleteRoot, "delete %s", p)
		}

		// an earlier match may have removed this node or shifted its index
		key, ok := m.Parent.KeyOf(m.Node)
		if !ok {
			continue
		}
		current := m.Path.Parent().ChildKey(key)

		results = append(results, Result{Path: current, Value: value.ToAny(m.Node)})
		e.deleteNode(m.Parent, key, current, opts.Message)
		e.emit(event.Updated, current.Parent(), opts.Message, m.Parent)
	}
	return results, nil
}

// emit sends an event whose message is a copy of base plus the value.
func (e *Engine) emit(t event.Type, p path.Path, base event.Message, v value.Value) {
	msg := base.Clone()
	msg[event.KeyValue] = value.ToAny(v)
	e.emitter.Emit(t, p, msg)
}

// emitChange sends "updated" carrying both the new and the old value.
func (e *Engine) emitChange(p path.Path, base event.Message, v value.Value, old any) {
	msg := base.Clone()
	msg[event.KeyValue] = value.ToAny(v)
	msg[event.KeyOldValue] = old
	e.emitter.Emit(event.Updated, p, msg)
}

func (e *Engine) emitCreated(root tree.Match, base event.Message) {
	tree.Walk(root, func(m tree.Match) bool {
		e.emit(event.Created, m.Path, base, m.Node)
		return true
	})
}

// deleteNode removes parent[key] and all of its descendants, emitting
// "deleted" for the deepest nodes first.
func (e *Engine) deleteNode(parent value.Container, key string, p path.Path, base event.Message) {
	node, ok := parent.Get(key)
	if !ok {
		return
	}
	snapshot := value.ToAny(node)

	e.deleteChildren(node, p, base)

	parent.Remove(key)
	msg := base.Clone()
	msg[event.KeyValue] = snapshot
	e.emitter.Emit(event.Deleted, p, msg)
}

func (e *Engine) deleteChildren(node value.Value, p path.Path, base event.Message) {
	switch c := node.(type) {
	case *value.Mapping:
		for _, k := range c.Keys() {
			e.deleteNode(c, k, p.ChildKey(k), base)
		}
	case *value.Sequence:
		for i := c.Len() - 1; i >= 0; i-- {
			k := strconv.Itoa(i)
			e.deleteNode(c, k, p.ChildKey(k), base)
		}
	}
}

func (e *Engine) createChildren(c value.Container, p path.Path, base event.Message) {
	for _, k := range c.Keys() {
		child, _ := c.Get(k)
		e.emitCreated(tree.At(c, k, child, p.ChildKey(k)), base)
	}
}
