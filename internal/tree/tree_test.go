package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/value"
)

func newTestTree(t *testing.T, src string) *Tree {
	t.Helper()
	v, err := value.DecodeJSON([]byte(src))
	require.NoError(t, err)
	return New(v.(*value.Mapping))
}

func paths(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Path.String()
	}
	return out
}

func TestResolve(t *testing.T) {
	tr := newTestTree(t, `{"x": {"a": [1, 2], "b": {"c": true}}, "y": "s"}`)

	tests := []struct {
		query    string
		expected []string
	}{
		{"/", []string{"/"}},
		{"/x", []string{"/x"}},
		{"/x/a/1", []string{"/x/a/1"}},
		{"/x/*", []string{"/x/a", "/x/b"}},
		{"/x/a/*", []string{"/x/a/0", "/x/a/1"}},
		{"/*", []string{"/x", "/y"}},
		{"/*/*", []string{"/x/a", "/x/b"}},
		{"/y/*", nil},
		{"/missing", nil},
		{"/x/a/2", nil},
		{"/x/a/01", nil},
		{"x", nil},
		{"", nil},
		{"*", []string{"/"}},
		{"//", []string{"/", "/x", "/x/a", "/x/a/0", "/x/a/1", "/x/b", "/x/b/c", "/y"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := paths(tr.Resolve(path.Parse(tt.query)))
			if len(tt.expected) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolve_EmptyPath(t *testing.T) {
	tr := New(nil)
	assert.Empty(t, tr.Resolve(path.Path{}))
	assert.Empty(t, tr.Resolve(nil))
}

func TestResolve_MatchReferencesLiveNodes(t *testing.T) {
	tr := newTestTree(t, `{"list": ["a", "b"]}`)

	ms := tr.Resolve(path.Parse("/list/1"))
	require.Len(t, ms, 1)

	m := ms[0]
	assert.Equal(t, "1", m.Key)
	got, ok := m.Parent.Get(m.Key)
	require.True(t, ok)
	assert.Same(t, m.Node, got)
	assert.False(t, m.Stale())

	m.Parent.Remove("1")
	assert.True(t, m.Stale())
}

func TestResolve_RootMatch(t *testing.T) {
	tr := New(nil)
	ms := tr.Resolve(path.RootPath())
	require.Len(t, ms, 1)
	assert.True(t, ms[0].IsRoot())
	assert.Same(t, tr.Root(), ms[0].Node)

	replacement := value.NewMapping()
	require.True(t, ms[0].Parent.Replace(ms[0].Key, replacement))
	assert.Same(t, replacement, tr.Root())
}

func TestWalk_SkipDescendants(t *testing.T) {
	tr := newTestTree(t, `{"a": {"deep": 1}, "b": 2}`)
	root := tr.Resolve(path.RootPath())[0]

	var visited []string
	Walk(root, func(m Match) bool {
		visited = append(visited, m.Path.String())
		return m.Path.String() != "/a"
	})

	assert.Equal(t, []string{"/", "/a", "/b"}, visited)
}
