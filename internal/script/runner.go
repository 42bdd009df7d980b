package script

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dshills/arbor/internal/event"
	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/logging/logfields"
	"github.com/dshills/arbor/internal/middleware"
	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/store"
)

// ErrStepPending is reported for a step whose operation never settled,
// typically because a middleware stopped the chain.
var ErrStepPending = errors.New("step did not settle")

// Target is the store a script runs against. *store.Store satisfies it.
type Target interface {
	Create(p path.Path, v any, opts ...store.OpOption) *store.Future
	Read(p path.Path, opts ...store.OpOption) *store.Future
	Update(p path.Path, v any, opts ...store.OpOption) *store.Future
	Delete(p path.Path, opts ...store.OpOption) *store.Future
	Flush() int
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index   int
	Step    *Step
	Results []store.Result
	Err     error

	// Expected is true when Err matched the step's ExpectError.
	Expected bool
}

// Failed reports whether the step failed unexpectedly.
func (r StepResult) Failed() bool {
	return r.Err != nil && !r.Expected
}

// Values returns the values of every matched node.
func (r StepResult) Values() []any {
	out := make([]any, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Value
	}
	return out
}

// StepError wraps the error of a failed step.
type StepError struct {
	Index int
	Line  int
	Op    middleware.Kind
	Path  string
	Err   error
}

func (e *StepError) Error() string {
	where := fmt.Sprintf("step %d", e.Index+1)
	if e.Line > 0 {
		where += fmt.Sprintf(" (line %d)", e.Line)
	}
	return fmt.Sprintf("%s: %s %s: %v", where, e.Op, e.Path, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Option configures a Runner.
type Option func(*Runner)

// WithContinueOnError keeps running after a failed step.
func WithContinueOnError() Option {
	return func(r *Runner) {
		r.continueOnError = true
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// Runner executes scripts step by step. Each step is dispatched and the
// target flushed before the next begins, so a step observes every change
// and event of the steps before it.
type Runner struct {
	target          Target
	continueOnError bool
	log             *logging.Logger
}

// NewRunner returns a runner for target.
func NewRunner(target Target, opts ...Option) *Runner {
	r := &Runner{
		target: target,
		log:    logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithComponent("script")
	return r
}

// Run executes every step in order. It returns the results of the steps
// that ran and, unless continuing on errors, stops at the first unexpected
// failure with a *StepError.
func (r *Runner) Run(ctx context.Context, sc *Script) ([]StepResult, error) {
	start := time.Now()
	results := make([]StepResult, 0, len(sc.Steps))
	var firstErr error

	for i := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		step := &sc.Steps[i]
		res := r.runStep(i, step)
		results = append(results, res)

		if !res.Failed() {
			continue
		}
		serr := &StepError{
			Index: i,
			Line:  step.Line(),
			Op:    step.Kind(),
			Path:  step.Path,
			Err:   res.Err,
		}
		if !r.continueOnError {
			return results, serr
		}
		if firstErr == nil {
			firstErr = serr
		}
	}

	r.log.WithFields(map[string]any{
		"script":           sc.Name,
		"steps":            len(results),
		logfields.Duration: time.Since(start).String(),
	}).Info("script complete")
	return results, firstErr
}

func (r *Runner) runStep(i int, step *Step) StepResult {
	res := StepResult{Index: i, Step: step}

	f, err := r.dispatch(step)
	if err != nil {
		res.Err = err
	} else {
		r.target.Flush()
		res.Results, res.Err = f.Result()
		if errors.Is(res.Err, store.ErrPending) {
			res.Err = ErrStepPending
		}
	}

	if res.Err != nil && step.ExpectError != "" && strings.Contains(res.Err.Error(), step.ExpectError) {
		res.Expected = true
	}

	log := r.log.WithFields(map[string]any{
		logfields.Op:      step.Op,
		logfields.Path:    step.Path,
		logfields.Matches: len(res.Results),
	})
	if res.Failed() {
		log.WithError(res.Err).Warn("step failed")
	} else {
		log.Debug("step complete")
	}
	return res
}

func (r *Runner) dispatch(step *Step) (*store.Future, error) {
	p := path.Parse(step.Path)

	var opts []store.OpOption
	if k, ok := step.CreateKey(); ok {
		opts = append(opts, store.WithKey(k))
	}
	if step.Force {
		opts = append(opts, store.WithForceUpdate())
	}
	if len(step.Message) > 0 {
		opts = append(opts, store.WithMessage(event.Message(step.Message)))
	}

	switch step.Kind() {
	case middleware.Create, middleware.Update:
		doc, err := step.Document()
		if err != nil {
			return nil, err
		}
		if step.Kind() == middleware.Create {
			return r.target.Create(p, doc, opts...), nil
		}
		return r.target.Update(p, doc, opts...), nil
	case middleware.Read:
		return r.target.Read(p, opts...), nil
	case middleware.Delete:
		return r.target.Delete(p, opts...), nil
	}
	return nil, errors.Wrapf(ErrInvalidStep, "unknown op %q", step.Op)
}
