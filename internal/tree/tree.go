// Package tree resolves paths against a document.
//
// A Tree owns the root mapping of a document. The root sits under a
// synthetic holder so every match, the root included, has a parent
// container and a key; replacing the root is an ordinary Replace on that
// holder.
package tree

import (
	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/value"
)

// rootKey is the holder key of the document root.
const rootKey = ""

// Match is one node resolved by a query.
// Node is Parent's child under Key at resolution time.
type Match struct {
	Parent value.Container
	Key    string
	Node   value.Value
	Path   path.Path
}

// IsRoot returns true if the match is the document root.
func (m Match) IsRoot() bool {
	return m.Path.IsRoot()
}

// Stale returns true if Node is no longer Parent's child.
// Structural changes made after resolution can detach a match.
func (m Match) Stale() bool {
	_, ok := m.Parent.KeyOf(m.Node)
	return !ok
}

// Tree owns a document root.
type Tree struct {
	holder *value.Mapping
}

// New creates a tree over root. A nil root starts an empty document.
func New(root *value.Mapping) *Tree {
	if root == nil {
		root = value.NewMapping()
	}
	holder := value.NewMapping()
	holder.Set(rootKey, root)
	return &Tree{holder: holder}
}

// Root returns the live root mapping.
func (t *Tree) Root() *value.Mapping {
	v, _ := t.holder.Get(rootKey)
	return v.(*value.Mapping)
}

// Resolve expands query into concrete matches.
//
// The first segment must be the root anchor or a wildcard. Wildcards expand
// to every existing key in the container's iteration order. The any-depth
// path yields every node in pre-order, root first. An empty query matches
// nothing. Resolve never mutates the document.
func (t *Tree) Resolve(query path.Path) []Match {
	if len(query) == 0 {
		return nil
	}

	root := Match{
		Parent: t.holder,
		Key:    rootKey,
		Node:   t.Root(),
		Path:   path.RootPath(),
	}

	if query.IsAny() {
		var out []Match
		Walk(root, func(m Match) bool {
			out = append(out, m)
			return true
		})
		return out
	}

	switch query[0].Kind() {
	case path.KindRoot, path.KindWildcard:
	default:
		return nil
	}

	var out []Match
	descend(root, query, 1, &out)
	return out
}

func descend(cur Match, query path.Path, depth int, out *[]Match) {
	if depth == len(query) {
		*out = append(*out, cur)
		return
	}

	c, ok := cur.Node.(value.Container)
	if !ok {
		return
	}

	seg := query[depth]
	switch seg.Kind() {
	case path.KindWildcard:
		for _, k := range c.Keys() {
			child, _ := c.Get(k)
			descend(childMatch(cur, c, k, child), query, depth+1, out)
		}
	case path.KindKey:
		if child, ok := c.Get(seg.Key()); ok {
			descend(childMatch(cur, c, seg.Key(), child), query, depth+1, out)
		}
	}
}

func childMatch(parent Match, c value.Container, key string, node value.Value) Match {
	return Match{
		Parent: c,
		Key:    key,
		Node:   node,
		Path:   parent.Path.ChildKey(key),
	}
}

// Walk visits m and its descendants in depth-first pre-order. Each
// container's children are visited in iteration order. Returning false
// from fn skips the node's descendants.
func Walk(m Match, fn func(Match) bool) {
	if !fn(m) {
		return
	}
	c, ok := m.Node.(value.Container)
	if !ok {
		return
	}
	for _, k := range c.Keys() {
		child, _ := c.Get(k)
		Walk(childMatch(m, c, k, child), fn)
	}
}

// At returns a match for an arbitrary node at p. Used to describe nodes
// that are not attached to this tree, such as a subtree about to be
// inserted.
func At(parent value.Container, key string, node value.Value, p path.Path) Match {
	return Match{Parent: parent, Key: key, Node: node, Path: p}
}
