package path

import (
	"strconv"
	"strings"
)

// Kind identifies the type of a path segment.
type Kind uint8

const (
	// KindKey is a literal mapping key or sequence index.
	KindKey Kind = iota

	// KindRoot anchors a path at the document root. Only valid at position 0.
	KindRoot

	// KindWildcard matches any single existing key at its depth.
	KindWildcard

	// KindAny matches every node at any depth. Only valid as the sole segment.
	KindAny
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindRoot:
		return "root"
	case KindWildcard:
		return "wildcard"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// Textual tokens of the string form.
const (
	// Separator delimits segments.
	Separator = "/"

	// WildcardToken is the string form of a single-level wildcard segment.
	WildcardToken = "*"

	// AnyToken is the string form of the any-depth path.
	AnyToken = "//"
)

// Segment is a single element of a Path.
// The zero value is a key segment with an empty key.
type Segment struct {
	kind Kind
	key  string
}

// Root is the root-anchor segment.
var Root = Segment{kind: KindRoot}

// Wildcard is the single-level wildcard segment.
var Wildcard = Segment{kind: KindWildcard}

// Any is the any-depth wildcard segment.
var Any = Segment{kind: KindAny}

// Key returns a literal key segment.
func Key(k string) Segment {
	return Segment{kind: KindKey, key: k}
}

// Index returns a key segment for a sequence index.
func Index(i int) Segment {
	return Segment{kind: KindKey, key: strconv.Itoa(i)}
}

// Kind returns the segment kind.
func (s Segment) Kind() Kind {
	return s.kind
}

// Key returns the literal key. It is empty for non-key segments.
func (s Segment) Key() string {
	return s.key
}

// IsKey returns true for literal key segments.
func (s Segment) IsKey() bool {
	return s.kind == KindKey
}

// Index parses the key as a sequence index.
// Only the canonical non-negative decimal form is accepted.
func (s Segment) Index() (int, bool) {
	if s.kind != KindKey {
		return 0, false
	}
	return ParseIndex(s.key)
}

// String returns the textual form of the segment.
func (s Segment) String() string {
	switch s.kind {
	case KindRoot:
		return ""
	case KindWildcard:
		return WildcardToken
	case KindAny:
		return AnyToken
	default:
		return s.key
	}
}

// ParseIndex parses a canonical non-negative decimal index.
func ParseIndex(s string) (int, bool) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, false
	}
	if strconv.Itoa(i) != s {
		return 0, false
	}
	return i, true
}

// Path is an ordered sequence of segments.
type Path []Segment

// New builds a path from segments.
func New(segments ...Segment) Path {
	p := make(Path, len(segments))
	copy(p, segments)
	return p
}

// RootPath returns the path of the document root.
func RootPath() Path {
	return Path{Root}
}

// AnyPath returns the any-depth wildcard path.
func AnyPath() Path {
	return Path{Any}
}

// Parse converts a string path to segments.
//
// "/" is the root, "//" is the any-depth wildcard. Otherwise the string is
// split on "/", whole "*" tokens become wildcards, and a leading empty
// segment becomes the root anchor. Parse never fails; a malformed path
// simply resolves to nothing.
func Parse(s string) Path {
	switch s {
	case Separator:
		return RootPath()
	case AnyToken:
		return AnyPath()
	}

	tokens := strings.Split(s, Separator)
	p := make(Path, len(tokens))
	for i, tok := range tokens {
		if tok == WildcardToken {
			p[i] = Wildcard
		} else {
			p[i] = Key(tok)
		}
	}

	if len(p) > 1 && p[0] == Key("") {
		p[0] = Root
	}
	return p
}

// String converts the path to its string form.
func (p Path) String() string {
	if len(p) == 1 {
		switch p[0].kind {
		case KindRoot:
			return Separator
		case KindAny:
			return AnyToken
		}
	}

	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = seg.String()
	}
	return strings.Join(parts, Separator)
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p)
}

// IsRoot returns true if the path is exactly the root anchor.
func (p Path) IsRoot() bool {
	return len(p) == 1 && p[0].kind == KindRoot
}

// IsAny returns true if the path is exactly the any-depth wildcard.
func (p Path) IsAny() bool {
	return len(p) == 1 && p[0].kind == KindAny
}

// IsConcrete returns true if the path has no wildcard segments.
func (p Path) IsConcrete() bool {
	for _, seg := range p {
		if seg.kind == KindWildcard || seg.kind == KindAny {
			return false
		}
	}
	return len(p) > 0
}

// Child returns a new path with seg appended.
// The receiver is never modified.
func (p Path) Child(seg Segment) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

// ChildKey returns a new path with a key segment appended.
func (p Path) ChildKey(k string) Path {
	return p.Child(Key(k))
}

// Parent returns the path without its last segment.
// Returns nil for an empty path.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1].Clone()
}

// Last returns the final segment.
func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// Clone returns a copy of the path.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Equal returns true if both paths have identical segments.
// Wildcards are compared literally; use Suits for matching.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix returns true if prefix is a literal prefix of the path.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}
