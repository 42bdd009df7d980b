package watcher

import (
	"os"

	"github.com/pkg/errors"

	"github.com/dshills/arbor/internal/event"
	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/logging/logfields"
	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/store"
	"github.com/dshills/arbor/internal/value"
)

// Updater applies a document update. *store.Store satisfies it.
type Updater interface {
	Update(p path.Path, v any, opts ...store.OpOption) *store.Future
}

// Reloader decodes a document file and replaces the store root with it.
//
// Change events arrive on the watcher goroutine while the store runs on
// its own. Reload therefore only reads and decodes on the caller's
// goroutine and defers the update itself onto the store's scheduler.
type Reloader struct {
	file      string
	format    value.Format
	target    Updater
	scheduler event.Scheduler
	log       *logging.Logger
}

// NewReloader returns a reloader for file, decoded as format.
func NewReloader(file string, format value.Format, target Updater, scheduler event.Scheduler, log *logging.Logger) *Reloader {
	if log == nil {
		log = logging.Default()
	}
	return &Reloader{
		file:      file,
		format:    format,
		target:    target,
		scheduler: scheduler,
		log:       log.WithComponent("reload").WithField(logfields.File, file),
	}
}

// Load reads and decodes the file. The document must be a mapping.
func (r *Reloader) Load() (*value.Mapping, error) {
	data, err := os.ReadFile(r.file)
	if err != nil {
		return nil, errors.Wrap(err, "read seed")
	}
	v, err := value.Decode(r.format, data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", r.file)
	}
	m, ok := v.(*value.Mapping)
	if !ok {
		return nil, errors.Wrapf(store.ErrNotAContainer, "%s: document root is %s, not a mapping", r.file, v.Kind())
	}
	return m, nil
}

// Reload loads the file and schedules a root update with it. The update
// carries {"source": "reload", "file": <file>} in its event messages.
func (r *Reloader) Reload() error {
	doc, err := r.Load()
	if err != nil {
		return err
	}
	msg := event.Message{"source": "reload", "file": r.file}
	r.scheduler.Defer(func() {
		r.target.Update(path.RootPath(), doc, store.WithMessage(msg)).
			Then(func(results []store.Result, err error) {
				if err != nil {
					r.log.WithError(err).Warn("reload update failed")
					return
				}
				r.log.WithField(logfields.Matches, len(results)).Info("document reloaded")
			})
	})
	return nil
}

// HandleChange is a Handler that reloads on every change except removal.
func (r *Reloader) HandleChange(ev Event) {
	if ev.Op.Has(OpRemove) && !ev.Op.Has(OpCreate) {
		r.log.Warn("seed file removed; keeping current document")
		return
	}
	if err := r.Reload(); err != nil {
		r.log.WithError(err).Warn("reload failed; keeping current document")
	}
}
