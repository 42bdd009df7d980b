package middleware

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/mutate"
	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/value"
)

func newTestChain(opts ...Option) *Chain {
	opts = append([]Option{WithLogger(logging.NewNullLogger())}, opts...)
	return NewChain(opts...)
}

// tracer returns a handler that appends name to trace and continues.
func tracer(trace *[]string, name string) Handler {
	return HandlerFunc(func(p *Params, next Next, kind Kind) error {
		*trace = append(*trace, name)
		next()
		return nil
	})
}

// terminal settles the operation the way the store's built-in handlers do.
func terminal(trace *[]string) Handler {
	return HandlerFunc(func(p *Params, next Next, kind Kind) error {
		*trace = append(*trace, "terminal")
		p.Settle([]mutate.Result{{Path: p.Path}}, nil)
		return nil
	})
}

func params(p string) *Params {
	return NewParams(path.Parse(p), nil, mutate.Options{}, nil)
}

func TestChain_LIFOOrder(t *testing.T) {
	c := newTestChain()
	var trace []string

	_, err := c.Use(AllKinds(), nil, terminal(&trace))
	require.NoError(t, err)
	_, err = c.Use(AllKinds(), nil, tracer(&trace, "first"))
	require.NoError(t, err)
	_, err = c.Use(AllKinds(), nil, tracer(&trace, "second"))
	require.NoError(t, err)

	p := params("/a")
	c.Dispatch(Update, p)

	assert.Equal(t, []string{"second", "first", "terminal"}, trace)
	assert.True(t, p.Settled())
	assert.Equal(t, OrderLIFO, c.Order())
}

func TestChain_FIFOOrder(t *testing.T) {
	c := newTestChain(WithOrder(OrderFIFO))
	var trace []string

	_, _ = c.Use(AllKinds(), nil, tracer(&trace, "first"))
	_, _ = c.Use(AllKinds(), nil, tracer(&trace, "second"))
	_, _ = c.Use(AllKinds(), nil, terminal(&trace))

	c.Dispatch(Read, params("/"))
	assert.Equal(t, []string{"first", "second", "terminal"}, trace)
	assert.Equal(t, "fifo", c.Order().String())
}

func TestChain_Filtering(t *testing.T) {
	tests := []struct {
		name     string
		kinds    []Kind
		filter   path.Path
		kind     Kind
		path     path.Path
		expected bool
	}{
		{"no filter", []Kind{Update}, nil, Update, path.Parse("/a"), true},
		{"kind excluded", []Kind{Create}, nil, Update, path.Parse("/a"), false},
		{"filter suits", AllKinds(), path.Parse("/users/*"), Read, path.Parse("/users/bob"), true},
		{"filter does not suit", AllKinds(), path.Parse("/users/*"), Read, path.Parse("/groups/x"), false},
		{"any-depth filter", AllKinds(), path.AnyPath(), Delete, path.Parse("/x/y/z"), true},
		{"filter with nil path", AllKinds(), path.Parse("/a"), Read, nil, false},
		{"wildcard call suits filter", AllKinds(), path.Parse("/users/bob"), Read, path.Parse("/users/*"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestChain()
			var trace []string
			_, _ = c.Use(AllKinds(), nil, terminal(&trace))
			_, err := c.Use(tt.kinds, tt.filter, tracer(&trace, "mw"))
			require.NoError(t, err)

			c.Dispatch(tt.kind, NewParams(tt.path, nil, mutate.Options{}, nil))

			if tt.expected {
				assert.Equal(t, []string{"mw", "terminal"}, trace)
			} else {
				assert.Equal(t, []string{"terminal"}, trace)
			}
		})
	}
}

func TestChain_OmittingNextHalts(t *testing.T) {
	c := newTestChain()
	var trace []string

	_, _ = c.Use(AllKinds(), nil, terminal(&trace))
	_, _ = c.Use(AllKinds(), nil, HandlerFunc(func(p *Params, next Next, kind Kind) error {
		trace = append(trace, "gate")
		return nil
	}))
	_, _ = c.Use(AllKinds(), nil, tracer(&trace, "outer"))

	p := params("/a")
	c.Dispatch(Create, p)

	assert.Equal(t, []string{"outer", "gate"}, trace)
	assert.False(t, p.Settled())
}

func TestChain_NextAtMostOnce(t *testing.T) {
	c := newTestChain()
	var trace []string

	_, _ = c.Use(AllKinds(), nil, terminal(&trace))
	_, _ = c.Use(AllKinds(), nil, HandlerFunc(func(p *Params, next Next, kind Kind) error {
		next()
		next()
		return nil
	}))

	c.Dispatch(Create, params("/"))
	assert.Equal(t, []string{"terminal"}, trace)
}

func TestChain_PanicIsSwallowed(t *testing.T) {
	c := newTestChain()
	var trace []string

	_, _ = c.Use(AllKinds(), nil, terminal(&trace))
	_, _ = c.Use(AllKinds(), nil, HandlerFunc(func(p *Params, next Next, kind Kind) error {
		panic("boom")
	}))
	_, _ = c.Use(AllKinds(), nil, tracer(&trace, "outer"))

	p := params("/a")
	assert.NotPanics(t, func() { c.Dispatch(Update, p) })

	assert.Equal(t, []string{"outer"}, trace, "chain must not resume after a panic")
	assert.False(t, p.Settled())
	assert.Equal(t, uint64(1), c.Stats().Panics)
}

func TestChain_ErrorSettles(t *testing.T) {
	c := newTestChain()
	var trace []string
	denied := errors.New("denied")

	_, _ = c.Use(AllKinds(), nil, terminal(&trace))
	_, _ = c.Use([]Kind{Delete}, nil, HandlerFunc(func(p *Params, next Next, kind Kind) error {
		return denied
	}))

	var got error
	p := NewParams(path.Parse("/a"), nil, mutate.Options{}, func(_ []mutate.Result, err error) {
		got = err
	})
	c.Dispatch(Delete, p)

	assert.Empty(t, trace)
	assert.ErrorIs(t, got, denied)
	assert.Equal(t, uint64(1), c.Stats().Errors)
}

func TestChain_ErrorAfterSettleKeepsOutcome(t *testing.T) {
	c := newTestChain()
	var trace []string

	_, _ = c.Use(AllKinds(), nil, terminal(&trace))
	_, _ = c.Use(AllKinds(), nil, HandlerFunc(func(p *Params, next Next, kind Kind) error {
		next()
		return errors.New("late")
	}))

	p := params("/a")
	c.Dispatch(Read, p)

	results, err := p.Outcome()
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChain_MiddlewareSettles(t *testing.T) {
	c := newTestChain()
	var trace []string

	_, _ = c.Use(AllKinds(), nil, terminal(&trace))
	_, _ = c.Use([]Kind{Read}, path.Parse("/cached"), HandlerFunc(func(p *Params, next Next, kind Kind) error {
		p.Settle([]mutate.Result{{Path: p.Path, Value: "hit"}}, nil)
		return nil
	}))

	p := params("/cached")
	c.Dispatch(Read, p)

	results, err := p.Outcome()
	require.NoError(t, err)
	assert.Equal(t, "hit", results[0].Value)
	assert.Empty(t, trace)
}

func TestChain_RewriteParams(t *testing.T) {
	c := newTestChain()
	var seen path.Path
	var seenValue value.Value

	_, _ = c.Use(AllKinds(), nil, HandlerFunc(func(p *Params, next Next, kind Kind) error {
		seen = p.Path
		seenValue = p.Value
		return nil
	}))
	_, _ = c.Use([]Kind{Update}, nil, HandlerFunc(func(p *Params, next Next, kind Kind) error {
		p.Path = path.Parse("/rewritten")
		p.Value = value.String("new")
		next()
		return nil
	}))

	c.Dispatch(Update, NewParams(path.Parse("/orig"), value.String("old"), mutate.Options{}, nil))
	assert.Equal(t, "/rewritten", seen.String())
	assert.True(t, value.Equal(value.String("new"), seenValue))
}

func TestChain_SnapshotDuringDispatch(t *testing.T) {
	c := newTestChain()
	var trace []string

	_, _ = c.Use(AllKinds(), nil, terminal(&trace))
	_, _ = c.Use(AllKinds(), nil, HandlerFunc(func(p *Params, next Next, kind Kind) error {
		_, _ = c.Use(AllKinds(), nil, tracer(&trace, "late"))
		next()
		return nil
	}))

	c.Dispatch(Create, params("/"))
	assert.Equal(t, []string{"terminal"}, trace)
	assert.Equal(t, 3, c.Len())
}

func TestChain_Reentrant(t *testing.T) {
	c := newTestChain()
	var trace []string

	_, _ = c.Use(AllKinds(), nil, terminal(&trace))
	_, _ = c.Use([]Kind{Create}, nil, HandlerFunc(func(p *Params, next Next, kind Kind) error {
		c.Dispatch(Read, params("/nested"))
		next()
		return nil
	}))

	c.Dispatch(Create, params("/"))
	assert.Equal(t, []string{"terminal", "terminal"}, trace)
}

func TestChain_UseValidation(t *testing.T) {
	c := newTestChain()

	_, err := c.Use(AllKinds(), nil, nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = c.Use(nil, nil, tracer(new([]string), "x"))
	assert.ErrorIs(t, err, ErrNoKinds)

	_, err = c.Use([]Kind{"upsert"}, nil, tracer(new([]string), "x"))
	assert.ErrorIs(t, err, ErrUnknownKind)

	assert.Equal(t, 0, c.Len())
}

func TestParseKinds(t *testing.T) {
	tests := []struct {
		input    string
		expected []Kind
		err      error
	}{
		{"create", []Kind{Create}, nil},
		{"create, Update", []Kind{Create, Update}, nil},
		{"*", AllKinds(), nil},
		{"", nil, ErrNoKinds},
		{"upsert", nil, ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kinds, err := ParseKinds(tt.input)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, kinds)
		})
	}
}

func TestParams_SettleOnce(t *testing.T) {
	calls := 0
	p := NewParams(path.RootPath(), nil, mutate.Options{}, func([]mutate.Result, error) {
		calls++
	})

	assert.True(t, p.Settle(nil, nil))
	assert.False(t, p.Settle(nil, errors.New("second")))
	assert.Equal(t, 1, calls)

	_, err := p.Outcome()
	assert.NoError(t, err)
}

func TestAudit(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewLogger(logging.LoggerConfig{
		Level:  logging.LogLevelDebug,
		Output: &buf,
		Format: logging.FormatJSON,
	})

	c := newTestChain()
	var trace []string
	_, _ = c.Use(AllKinds(), nil, terminal(&trace))
	_, _ = c.Use(AllKinds(), nil, Audit(log))

	c.Dispatch(Update, params("/a/b"))

	out := buf.String()
	assert.Contains(t, out, `"op":"update"`)
	assert.Contains(t, out, `"path":"/a/b"`)
	assert.Contains(t, out, "operation start")
	assert.Contains(t, out, "operation complete")
	assert.Equal(t, []string{"terminal"}, trace)
}
