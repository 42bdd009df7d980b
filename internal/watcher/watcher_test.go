package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/arbor/internal/event"
	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/store"
	"github.com/dshills/arbor/internal/value"
)

func TestOp_String(t *testing.T) {
	assert.Equal(t, "none", Op(0).String())
	assert.Equal(t, "write", OpWrite.String())
	assert.Equal(t, "create|write|remove", (OpCreate | OpWrite | OpRemove).String())
}

func TestConvertOp(t *testing.T) {
	assert.Equal(t, OpCreate|OpWrite, convertOp(fsnotify.Create|fsnotify.Write))
	assert.Equal(t, OpRename, convertOp(fsnotify.Rename))
	assert.Equal(t, Op(0), convertOp(0))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "doc.json"), nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = New("/nonexistent/dir/doc.json", func(Event) {})
	assert.ErrorIs(t, err, ErrPathNotExist)
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(file, []byte(`{}`), 0o644))

	got := make(chan Event, 4)
	w, err := New(file, func(ev Event) { got <- ev },
		WithDebounce(50*time.Millisecond),
		WithLogger(logging.NewNullLogger()),
	)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(file, []byte(`{"n":1}`), 0o644))
	}
	// Events for other files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o644))

	select {
	case ev := <-got:
		assert.Equal(t, w.Path(), ev.Path)
		assert.True(t, ev.Op.Has(OpWrite), ev.Op.String())
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}

	select {
	case ev := <-got:
		t.Fatalf("writes were not coalesced, extra event %v", ev.Op)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, int64(1), w.Stats().Fired)
}

func TestWatcher_HandlerPanicIsContained(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "doc.json")

	calls := make(chan struct{}, 4)
	w, err := New(file, func(Event) {
		select {
		case calls <- struct{}{}:
		default:
		}
		panic("boom")
	}, WithDebounce(0), WithLogger(logging.NewNullLogger()))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(file, []byte(`{}`), 0o644))

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "doc.json"), func(Event) {},
		WithLogger(logging.NewNullLogger()))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	w.Flush()
}

func newReloadStore(t *testing.T, seed any) *store.Store {
	t.Helper()
	s, err := store.New(store.WithLogger(logging.NewNullLogger()), store.WithSeed(seed))
	require.NoError(t, err)
	return s
}

func TestReloader_Reload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "doc.yaml")
	require.NoError(t, os.WriteFile(file, []byte("a: 1\nb:\n  c: x\n"), 0o644))

	s := newReloadStore(t, map[string]any{"a": 1, "gone": true})

	var events []string
	_, err := s.On([]event.Type{event.AnyType}, path.AnyPath(), event.NewHandler(func(e *event.Event) error {
		assert.Equal(t, "reload", e.Message["source"])
		events = append(events, e.String())
		return nil
	}))
	require.NoError(t, err)

	r := NewReloader(file, value.FormatYAML, s, s.Queue(), logging.NewNullLogger())
	require.NoError(t, r.Reload())
	s.Flush()

	assert.Equal(t, map[string]any{"a": float64(1), "b": map[string]any{"c": "x"}}, s.Snapshot())
	assert.Contains(t, events, "deleted /gone")
	assert.Contains(t, events, "created /b")
	assert.NotContains(t, events, "updated /a")
}

func TestReloader_RejectsNonMapping(t *testing.T) {
	file := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(file, []byte(`[1,2]`), 0o644))

	s := newReloadStore(t, map[string]any{"a": 1})
	r := NewReloader(file, value.FormatJSON, s, s.Queue(), logging.NewNullLogger())

	err := r.Reload()
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotAContainer)
	assert.Zero(t, s.Flush())
}

func TestReloader_HandleChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "doc.json")
	s := newReloadStore(t, map[string]any{"a": 1})
	r := NewReloader(file, value.FormatJSON, s, s.Queue(), logging.NewNullLogger())

	// Missing and removed files leave the document alone.
	r.HandleChange(Event{Path: file, Op: OpRemove})
	r.HandleChange(Event{Path: file, Op: OpWrite})
	s.Flush()
	assert.Equal(t, map[string]any{"a": float64(1)}, s.Snapshot())

	require.NoError(t, os.WriteFile(file, []byte(`{"a":2}`), 0o644))
	r.HandleChange(Event{Path: file, Op: OpCreate | OpRemove})
	s.Flush()
	assert.Equal(t, map[string]any{"a": float64(2)}, s.Snapshot())
}

func TestWatcher_ReloadEndToEnd(t *testing.T) {
	file := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"v":1}`), 0o644))

	s := newReloadStore(t, map[string]any{"v": 1})
	r := NewReloader(file, value.FormatJSON, s, s.Queue(), logging.NewNullLogger())

	w, err := New(file, r.HandleChange,
		WithDebounce(20*time.Millisecond),
		WithLogger(logging.NewNullLogger()),
	)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(file, []byte(`{"v":2}`), 0o644))

	require.Eventually(t, func() bool {
		s.Flush()
		return s.Snapshot()["v"] == float64(2)
	}, 5*time.Second, 10*time.Millisecond)
}
