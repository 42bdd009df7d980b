package middleware

import (
	"sync"

	"github.com/dshills/arbor/internal/mutate"
	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/value"
)

// SettleFunc receives the outcome of an operation.
type SettleFunc func(results []mutate.Result, err error)

// Params carries one operation through the chain. Handlers may rewrite
// Path, Value and Options before calling Next; later handlers and the
// terminal handler see the rewritten values.
type Params struct {
	// Path is the operation path. A nil Path never suits a filtered entry.
	Path path.Path

	// Value is the payload of create and update; nil otherwise.
	Value value.Value

	// Options are passed to the mutation engine.
	Options mutate.Options

	mu       sync.Mutex
	settled  bool
	results  []mutate.Result
	err      error
	onSettle SettleFunc
}

// NewParams creates parameters whose outcome is reported to onSettle.
func NewParams(p path.Path, v value.Value, opts mutate.Options, onSettle SettleFunc) *Params {
	return &Params{
		Path:     p,
		Value:    v,
		Options:  opts,
		onSettle: onSettle,
	}
}

// Settle records the outcome of the operation. Only the first call has an
// effect; it returns false for every later one.
func (p *Params) Settle(results []mutate.Result, err error) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.results = results
	p.err = err
	fn := p.onSettle
	p.mu.Unlock()

	if fn != nil {
		fn(results, err)
	}
	return true
}

// Settled reports whether the operation has an outcome.
func (p *Params) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Outcome returns the recorded outcome.
func (p *Params) Outcome() ([]mutate.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results, p.err
}
