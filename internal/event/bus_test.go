package event

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/tick"
)

func newTestBus(t *testing.T, opts ...BusOption) (*Bus, *tick.Queue) {
	t.Helper()
	q := tick.New()
	opts = append([]BusOption{WithLogger(logging.NewNullLogger())}, opts...)
	return NewBus(q, opts...), q
}

type recorder struct {
	events []*Event
}

func (r *recorder) HandleEvent(e *Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) strings() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.String()
	}
	return out
}

func TestBus_DeliversOnLaterTick(t *testing.T) {
	bus, q := newTestBus(t)
	rec := &recorder{}
	_, err := bus.On([]Type{Created}, path.Parse("/a"), rec)
	require.NoError(t, err)

	n := bus.Emit(Created, path.Parse("/a"), Message{KeyValue: 1})
	assert.Equal(t, 1, n)
	assert.Empty(t, rec.events, "delivery must not be synchronous")
	assert.Equal(t, 1, bus.Pending())

	q.Drain()
	require.Len(t, rec.events, 1)
	assert.Equal(t, "created /a", rec.events[0].String())
	assert.Equal(t, 1, rec.events[0].Message.Value())
	assert.Equal(t, 0, bus.Pending())
}

func TestBus_Matching(t *testing.T) {
	tests := []struct {
		name     string
		types    []Type
		pattern  string
		evType   Type
		evPath   string
		expected bool
	}{
		{"exact", []Type{Updated}, "/a/b", Updated, "/a/b", true},
		{"wrong type", []Type{Updated}, "/a/b", Created, "/a/b", false},
		{"any type", []Type{AnyType}, "/a/b", Deleted, "/a/b", true},
		{"type set", []Type{Created, Deleted}, "/a", Deleted, "/a", true},
		{"wildcard listener", []Type{Created}, "/a/*", Created, "/a/x", true},
		{"wildcard event", []Type{Created}, "/a/x", Created, "/a/*", true},
		{"any path", []Type{Created}, "//", Created, "/deep/x/y", true},
		{"length mismatch", []Type{Created}, "/a", Created, "/a/b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus, q := newTestBus(t)
			rec := &recorder{}
			_, err := bus.On(tt.types, path.Parse(tt.pattern), rec)
			require.NoError(t, err)

			bus.Emit(tt.evType, path.Parse(tt.evPath), nil)
			q.Drain()
			assert.Equal(t, tt.expected, len(rec.events) == 1)
		})
	}
}

func TestBus_FIFOAcrossEmissions(t *testing.T) {
	bus, q := newTestBus(t)
	first, second := &recorder{}, &recorder{}
	var order []string
	h1 := HandlerFunc(func(e *Event) error { order = append(order, "1:"+e.String()); return first.HandleEvent(e) })
	h2 := HandlerFunc(func(e *Event) error { order = append(order, "2:"+e.String()); return second.HandleEvent(e) })

	_, _ = bus.On([]Type{AnyType}, path.AnyPath(), h1)
	_, _ = bus.On([]Type{AnyType}, path.AnyPath(), h2)

	bus.Emit(Created, path.Parse("/a"), nil)
	bus.Emit(Updated, path.Parse("/"), nil)

	assert.Equal(t, 1, q.Len(), "one drain per batch of emissions")
	q.Drain()

	assert.Equal(t, []string{"1:created /a", "2:created /a", "1:updated /", "2:updated /"}, order)
}

func TestBus_EventSharedAcrossListeners(t *testing.T) {
	bus, q := newTestBus(t)
	a, b := &recorder{}, &recorder{}
	_, _ = bus.On([]Type{Created}, path.Parse("/x"), a)
	_, _ = bus.On([]Type{Created}, path.Parse("/*"), b)

	msg := Message{"note": "hi"}
	bus.Emit(Created, path.Parse("/x"), msg)
	msg["note"] = "changed"
	q.Drain()

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Same(t, a.events[0], b.events[0])
	assert.Equal(t, "hi", a.events[0].Message["note"])
}

func TestBus_SnapshotIsolation(t *testing.T) {
	bus, q := newTestBus(t)
	early := &recorder{}
	_, _ = bus.On([]Type{Created}, path.Parse("/a"), early)

	bus.Emit(Created, path.Parse("/a"), nil)

	late := &recorder{}
	_, _ = bus.On([]Type{Created}, path.Parse("/a"), late)
	lateOnce := &recorder{}
	_, _ = bus.Once([]Type{Created}, path.Parse("/a"), lateOnce)

	q.Drain()
	assert.Len(t, early.events, 1)
	assert.Empty(t, late.events)
	assert.Empty(t, lateOnce.events)
}

func TestBus_OnceRemovedBeforeDelivery(t *testing.T) {
	bus, q := newTestBus(t)
	var countAtDelivery int
	h := NewHandler(func(e *Event) error {
		countAtDelivery = len(bus.Listeners())
		return nil
	})
	_, err := bus.Once([]Type{Created}, path.Parse("/a"), h)
	require.NoError(t, err)
	assert.Len(t, bus.Listeners(), 1)

	assert.Equal(t, 1, bus.Emit(Created, path.Parse("/a"), nil))
	assert.Empty(t, bus.Listeners(), "one-shot listener removed synchronously")
	assert.Equal(t, 0, bus.Emit(Created, path.Parse("/a"), nil))

	q.Drain()
	assert.Equal(t, 0, countAtDelivery)
}

func TestBus_OnceIgnoresNonMatching(t *testing.T) {
	bus, q := newTestBus(t)
	rec := &recorder{}
	_, _ = bus.Once([]Type{Deleted}, path.Parse("/a"), rec)

	bus.Emit(Created, path.Parse("/a"), nil)
	bus.Emit(Deleted, path.Parse("/b"), nil)
	assert.Len(t, bus.Listeners(), 1)

	bus.Emit(Deleted, path.Parse("/a"), nil)
	q.Drain()
	assert.Equal(t, []string{"deleted /a"}, rec.strings())
}

func TestBus_OffRemovesAllRegistrations(t *testing.T) {
	bus, q := newTestBus(t)
	var calls int
	h := NewHandler(func(e *Event) error { calls++; return nil })
	other := &recorder{}

	_, _ = bus.On([]Type{Created}, path.Parse("/a"), h)
	_, _ = bus.On([]Type{Deleted}, path.Parse("/b/*"), h)
	_, _ = bus.Once([]Type{AnyType}, path.AnyPath(), h)
	_, _ = bus.On([]Type{Created}, path.Parse("/a"), other)

	assert.Equal(t, 3, bus.Off(h))
	assert.Len(t, bus.Listeners(), 1)

	bus.Emit(Created, path.Parse("/a"), nil)
	q.Drain()
	assert.Equal(t, 0, calls)
	assert.Len(t, other.events, 1)
}

func TestBus_OffWithFuncHandlerIsNoop(t *testing.T) {
	bus, _ := newTestBus(t)
	fn := HandlerFunc(func(e *Event) error { return nil })
	_, _ = bus.On([]Type{Created}, path.Parse("/a"), fn)

	assert.NotPanics(t, func() {
		assert.Equal(t, 0, bus.Off(fn))
	})
	assert.Len(t, bus.Listeners(), 1)
}

func TestBus_Remove(t *testing.T) {
	bus, _ := newTestBus(t)
	l, err := bus.On([]Type{Created}, path.Parse("/a"), &recorder{})
	require.NoError(t, err)

	assert.True(t, bus.Remove(l))
	assert.False(t, bus.Remove(l))
	assert.False(t, bus.Remove(nil))
}

func TestBus_InvalidRegistration(t *testing.T) {
	bus, _ := newTestBus(t)

	_, err := bus.On([]Type{Created}, path.Parse("/a"), nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = bus.On(nil, path.Parse("/a"), &recorder{})
	assert.ErrorIs(t, err, ErrNoTypes)
}

func TestBus_FailingHandlersDoNotStopDrain(t *testing.T) {
	var reported []error
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.LoggerConfig{Level: logging.LogLevelError, Output: &buf})
	bus, q := newTestBus(t, WithLogger(logger), WithErrorHandler(func(l *Listener, e *Event, err error) {
		reported = append(reported, err)
	}))

	rec := &recorder{}
	_, _ = bus.On([]Type{Created}, path.Parse("/a"), HandlerFunc(func(e *Event) error { panic("boom") }))
	_, _ = bus.On([]Type{Created}, path.Parse("/a"), HandlerFunc(func(e *Event) error { return errors.New("nope") }))
	_, _ = bus.On([]Type{Created}, path.Parse("/a"), rec)

	bus.Emit(Created, path.Parse("/a"), nil)
	q.Drain()

	assert.Len(t, rec.events, 1)
	require.Len(t, reported, 2)
	assert.ErrorIs(t, reported[0], ErrHandlerPanic)
	assert.EqualError(t, reported[1], "nope")
	assert.Contains(t, buf.String(), "event handler panicked")
	assert.Contains(t, buf.String(), "event handler failed")

	stats := bus.Stats()
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, uint64(1), stats.HandlerErrors)
	assert.Equal(t, uint64(1), stats.HandlerPanics)
	assert.Equal(t, uint64(3), stats.Queued)
	assert.Equal(t, 3, stats.Listeners)
}

func TestBus_EmitDuringDrainJoinsSameDrain(t *testing.T) {
	bus, q := newTestBus(t)
	var order []string
	_, _ = bus.On([]Type{Created}, path.Parse("/a"), HandlerFunc(func(e *Event) error {
		order = append(order, "a")
		bus.Emit(Created, path.Parse("/b"), nil)
		return nil
	}))
	_, _ = bus.On([]Type{Created}, path.Parse("/b"), HandlerFunc(func(e *Event) error {
		order = append(order, "b")
		return nil
	}))

	bus.Emit(Created, path.Parse("/a"), nil)
	q.Drain()

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, uint64(1), bus.Stats().Drains)
}

func TestBus_NoMatchSchedulesNothing(t *testing.T) {
	bus, q := newTestBus(t)
	assert.Equal(t, 0, bus.Emit(Created, path.Parse("/a"), nil))
	assert.Equal(t, 0, q.Len())
}

func TestEvent_IDsAreOrdered(t *testing.T) {
	bus, q := newTestBus(t)
	rec := &recorder{}
	_, _ = bus.On([]Type{AnyType}, path.AnyPath(), rec)

	for i := 0; i < 5; i++ {
		bus.Emit(Updated, path.RootPath(), nil)
	}
	q.Drain()

	require.Len(t, rec.events, 5)
	for i := 1; i < len(rec.events); i++ {
		assert.Equal(t, -1, rec.events[i-1].ID.Compare(rec.events[i].ID))
	}
	assert.Equal(t, "/", rec.events[0].PathString())
}

func TestParseTypes(t *testing.T) {
	assert.Equal(t, []Type{Created, Deleted}, ParseTypes("created, deleted"))
	assert.Equal(t, []Type{AnyType}, ParseTypes("*"))
	assert.Empty(t, ParseTypes(""))
}

func TestMessage(t *testing.T) {
	var nilMsg Message
	c := nilMsg.Clone()
	assert.NotNil(t, c)

	m := Message{KeyValue: 1, KeyOldValue: 0, "x": true}
	c = m.Clone()
	c["x"] = false
	assert.Equal(t, true, m["x"])
	assert.Equal(t, 1, m.Value())
	old, ok := m.OldValue()
	assert.True(t, ok)
	assert.Equal(t, 0, old)
}

func TestMessage_CloneIsDeep(t *testing.T) {
	meta := map[string]any{"n": 1, "tags": []any{"a", map[string]any{"k": "v"}}}
	m := Message{"meta": meta, "nested": Message{"x": 1}}

	c := m.Clone()
	meta["n"] = 2
	meta["tags"].([]any)[1].(map[string]any)["k"] = "changed"
	m["nested"].(Message)["x"] = 2

	assert.Equal(t, Message{
		"meta":   map[string]any{"n": 1, "tags": []any{"a", map[string]any{"k": "v"}}},
		"nested": Message{"x": 1},
	}, c)
}

func TestMessage_CloneKeepsCycles(t *testing.T) {
	loop := map[string]any{}
	loop["self"] = loop

	c := Message{"loop": loop}.Clone()
	copied := c["loop"].(map[string]any)
	copied["added"] = true
	assert.NotContains(t, loop, "added")
	assert.Contains(t, copied, "self")
}

func TestBus_MessageDetachedFromEmitter(t *testing.T) {
	b, q := newTestBus(t)
	rec := &recorder{}
	_, err := b.On([]Type{Created}, path.AnyPath(), rec)
	require.NoError(t, err)

	meta := map[string]any{"n": 1}
	b.Emit(Created, path.Parse("/a"), Message{"meta": meta})
	meta["n"] = 2
	q.Drain()

	require.Len(t, rec.events, 1)
	assert.Equal(t, map[string]any{"n": 1}, rec.events[0].Message["meta"])
}
