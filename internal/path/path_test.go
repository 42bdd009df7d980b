package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Path
	}{
		{"/", Path{Root}},
		{"//", Path{Any}},
		{"/str/1/str", Path{Root, Key("str"), Key("1"), Key("str")}},
		{"/str/*", Path{Root, Key("str"), Wildcard}},
		{"/*/a/*", Path{Root, Wildcard, Key("a"), Wildcard}},
		{"a/b", Path{Key("a"), Key("b")}},
		{"*", Path{Wildcard}},
		{"", Path{Key("")}},
		{"/a*b", Path{Root, Key("a*b")}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Parse(tt.input))
		})
	}
}

func TestPath_String(t *testing.T) {
	tests := []struct {
		path     Path
		expected string
	}{
		{Path{Root}, "/"},
		{Path{Any}, "//"},
		{Path{Root, Key("str"), Index(1), Key("str")}, "/str/1/str"},
		{Path{Root, Key("str"), Wildcard}, "/str/*"},
		{Path{Key("a"), Key("b")}, "a/b"},
		{Path{Root, Wildcard, Wildcard}, "/*/*"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.path.String())
	}
}

func TestParse_RoundTrip(t *testing.T) {
	paths := []Path{
		{Root},
		{Any},
		{Root, Key("a")},
		{Root, Key("a"), Index(0), Key("b")},
		{Root, Wildcard, Key("x"), Wildcard},
		{Key("relative"), Key("path")},
		{Wildcard},
		{Root, Key("colors"), Wildcard, Key("rgb"), Index(2)},
	}

	for _, p := range paths {
		t.Run(p.String(), func(t *testing.T) {
			assert.Equal(t, p, Parse(p.String()))
		})
	}
}

func TestSegment_Index(t *testing.T) {
	tests := []struct {
		seg   Segment
		index int
		ok    bool
	}{
		{Key("0"), 0, true},
		{Key("12"), 12, true},
		{Index(7), 7, true},
		{Key("-1"), 0, false},
		{Key("01"), 0, false},
		{Key("1.5"), 0, false},
		{Key("abc"), 0, false},
		{Key(""), 0, false},
		{Wildcard, 0, false},
		{Root, 0, false},
	}

	for _, tt := range tests {
		i, ok := tt.seg.Index()
		assert.Equal(t, tt.ok, ok, "segment %q", tt.seg.String())
		if tt.ok {
			assert.Equal(t, tt.index, i)
		}
	}
}

func TestPath_Predicates(t *testing.T) {
	assert.True(t, RootPath().IsRoot())
	assert.False(t, Parse("/a").IsRoot())
	assert.True(t, AnyPath().IsAny())
	assert.False(t, Parse("/*").IsAny())

	assert.True(t, Parse("/a/0").IsConcrete())
	assert.False(t, Parse("/a/*").IsConcrete())
	assert.False(t, AnyPath().IsConcrete())
	assert.False(t, Path{}.IsConcrete())
}

func TestPath_ChildDoesNotAlias(t *testing.T) {
	base := make(Path, 2, 8)
	base[0] = Root
	base[1] = Key("a")

	x := base.Child(Key("x"))
	y := base.Child(Key("y"))

	assert.Equal(t, "/a/x", x.String())
	assert.Equal(t, "/a/y", y.String())
	assert.Len(t, base, 2)
}

func TestPath_Parent(t *testing.T) {
	p := Parse("/a/b/c")
	assert.Equal(t, "/a/b", p.Parent().String())
	assert.Equal(t, "/", Parse("/a").Parent().String())
	assert.Nil(t, Path{}.Parent())

	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(t, "c", last.Key())
}

func TestPath_HasPrefix(t *testing.T) {
	p := Parse("/a/b/c")
	assert.True(t, p.HasPrefix(Parse("/a")))
	assert.True(t, p.HasPrefix(p))
	assert.False(t, p.HasPrefix(Parse("/b")))
	assert.False(t, Parse("/a").HasPrefix(p))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "key", KindKey.String())
	assert.Equal(t, "root", KindRoot.String())
	assert.Equal(t, "wildcard", KindWildcard.String())
	assert.Equal(t, "any", KindAny.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
