// Package watcher reloads the seed document when its file changes.
//
// Watcher observes a single file through fsnotify. It watches the parent
// directory rather than the file itself so that editors which save by
// writing a temporary file and renaming it over the original keep
// producing events. Bursts of events are coalesced into one Event after
// the debounce delay.
//
// Reloader turns those events into a root update on a store.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/logging/logfields"
)

// DefaultDebounce is the delay used when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// Op is a set of file operations.
type Op uint8

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Has reports whether op includes other.
func (op Op) Has(other Op) bool {
	return op&other != 0
}

func (op Op) String() string {
	var parts []string
	for _, n := range []struct {
		op   Op
		name string
	}{
		{OpCreate, "create"},
		{OpWrite, "write"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{OpChmod, "chmod"},
	} {
		if op.Has(n.op) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Event is a debounced change to the watched file.
type Event struct {
	// Path is the absolute path of the file.
	Path string

	// Op combines every operation seen during the debounce window.
	Op Op

	// Timestamp is when the last operation was seen.
	Timestamp time.Time
}

// Handler receives debounced events on the watcher goroutine.
type Handler func(Event)

// Stats reports watcher activity.
type Stats struct {
	Raw     int64
	Fired   int64
	Errors  int64
	Pending bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the coalescing delay. Zero fires every event
// immediately.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		w.log = l
	}
}

// Watcher watches one file.
type Watcher struct {
	fsw     *fsnotify.Watcher
	path    string
	delay   time.Duration
	handler Handler
	log     *logging.Logger

	mu      sync.Mutex
	pending *Event
	timer   *time.Timer
	closed  bool

	closeCh  chan struct{}
	closedWg sync.WaitGroup

	raw      atomic.Int64
	fired    atomic.Int64
	errCount atomic.Int64
}

// New starts watching file and calls h with each debounced change. The
// file's directory must exist; the file itself may not exist yet.
func New(file string, h Handler, opts ...Option) (*Watcher, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, errors.Wrap(err, "resolve watch path")
	}

	w := &Watcher{
		path:    abs,
		delay:   DefaultDebounce,
		handler: h,
		log:     logging.Default(),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.WithComponent("watcher").WithField(logfields.File, abs)

	dir := filepath.Dir(abs)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, errors.Wrapf(ErrPathNotExist, "%s", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}
	w.fsw = fsw

	w.closedWg.Add(1)
	go w.processLoop()

	w.log.Debug("watching with %s debounce", w.delay)
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops the watcher and drops any pending event.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = nil
	w.mu.Unlock()

	w.closedWg.Wait()
	return w.fsw.Close()
}

// Flush fires the pending event, if any, without waiting for the delay.
func (w *Watcher) Flush() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.fire()
}

// Stats returns watcher statistics.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	pending := w.pending != nil
	w.mu.Unlock()
	return Stats{
		Raw:     w.raw.Load(),
		Fired:   w.fired.Load(),
		Errors:  w.errCount.Load(),
		Pending: pending,
	}
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.errCount.Add(1)
			w.log.WithError(err).Warn("fsnotify error")
		}
	}
}

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	op := convertOp(ev.Op)
	if op == 0 || op == OpChmod {
		return
	}
	w.raw.Add(1)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	now := time.Now()
	if w.pending != nil {
		w.pending.Op |= op
		w.pending.Timestamp = now
	} else {
		w.pending = &Event{Path: w.path, Op: op, Timestamp: now}
	}

	if w.delay == 0 {
		go w.fire()
		return
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.delay, w.fire)
		return
	}
	w.timer.Reset(w.delay)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	ev := w.pending
	w.pending = nil
	closed := w.closed
	w.mu.Unlock()

	if ev == nil || closed {
		return
	}
	w.fired.Add(1)
	w.safeCallHandler(*ev)
}

func (w *Watcher) safeCallHandler(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField(logfields.Panic, r).Error("watch handler panicked")
		}
	}()
	w.handler(ev)
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}
