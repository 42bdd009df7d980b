// Package value defines the document model stored by arbor.
//
// A document is a tree of three node kinds: *Mapping (string keys, ordered
// by insertion), *Sequence (integer indexed) and *Scalar (null, boolean,
// number or string). The set is closed; code that switches on a Value can
// handle every case.
//
// Nodes are pointers so a node keeps its identity when its position in a
// parent shifts. Values crossing the store boundary are always copied with
// Clone, FromAny or ToAny; nothing outside the store aliases a live node.
package value

import (
	"strconv"

	"github.com/dshills/arbor/internal/path"
)

// Kind identifies the type of a Value.
type Kind uint8

const (
	// KindNull is the null scalar.
	KindNull Kind = iota

	// KindBool is a boolean scalar.
	KindBool

	// KindNumber is a numeric scalar. Numbers are stored as float64.
	KindNumber

	// KindString is a string scalar.
	KindString

	// KindMapping is a keyed container.
	KindMapping

	// KindSequence is an indexed container.
	KindSequence
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// IsContainer returns true for mapping and sequence kinds.
func (k Kind) IsContainer() bool {
	return k == KindMapping || k == KindSequence
}

// Value is a node of the document tree.
// Implementations: *Mapping, *Sequence, *Scalar.
type Value interface {
	// Kind returns the node kind.
	Kind() Kind

	sealed()
}

// Container is implemented by *Mapping and *Sequence.
// Sequence keys are canonical decimal indexes.
type Container interface {
	Value

	// Keys returns the keys in iteration order.
	Keys() []string

	// Get returns the child stored under key.
	Get(key string) (Value, bool)

	// Has returns true if key addresses an existing child.
	Has(key string) bool

	// Replace overwrites an existing child. Returns false if key is absent.
	Replace(key string, v Value) bool

	// Remove unlinks the child stored under key.
	// For sequences, later elements shift down by one.
	Remove(key string) (Value, bool)

	// KeyOf returns the current key of child by identity.
	KeyOf(child Value) (string, bool)

	// Len returns the number of children.
	Len() int
}

// IsContainer returns true if v is a mapping or sequence.
func IsContainer(v Value) bool {
	_, ok := v.(Container)
	return ok
}

// Mapping is an insertion-ordered string-keyed container.
type Mapping struct {
	keys  []string
	items map[string]Value
}

// NewMapping creates an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{items: make(map[string]Value)}
}

// Kind implements Value.
func (m *Mapping) Kind() Kind { return KindMapping }

func (m *Mapping) sealed() {}

// Keys returns a copy of the keys in insertion order.
func (m *Mapping) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (Value, bool) {
	v, ok := m.items[key]
	return v, ok
}

// Has returns true if key is present.
func (m *Mapping) Has(key string) bool {
	_, ok := m.items[key]
	return ok
}

// Set stores v under key. New keys are appended to the iteration order;
// existing keys keep their position.
func (m *Mapping) Set(key string, v Value) {
	if m.items == nil {
		m.items = make(map[string]Value)
	}
	if _, exists := m.items[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.items[key] = v
}

// Replace overwrites an existing key.
func (m *Mapping) Replace(key string, v Value) bool {
	if _, ok := m.items[key]; !ok {
		return false
	}
	m.items[key] = v
	return true
}

// Remove deletes key from the mapping.
func (m *Mapping) Remove(key string) (Value, bool) {
	v, ok := m.items[key]
	if !ok {
		return nil, false
	}
	delete(m.items, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return v, true
}

// KeyOf returns the key under which child is stored.
func (m *Mapping) KeyOf(child Value) (string, bool) {
	for _, k := range m.keys {
		if m.items[k] == child {
			return k, true
		}
	}
	return "", false
}

// Len returns the number of keys.
func (m *Mapping) Len() int {
	return len(m.keys)
}

// Sequence is an integer-indexed container.
type Sequence struct {
	items []Value
}

// NewSequence creates a sequence holding items.
func NewSequence(items ...Value) *Sequence {
	s := &Sequence{items: make([]Value, 0, len(items))}
	s.items = append(s.items, items...)
	return s
}

// Kind implements Value.
func (s *Sequence) Kind() Kind { return KindSequence }

func (s *Sequence) sealed() {}

// Keys returns the indexes as decimal strings.
func (s *Sequence) Keys() []string {
	out := make([]string, len(s.items))
	for i := range s.items {
		out[i] = strconv.Itoa(i)
	}
	return out
}

// Get returns the element addressed by a decimal index key.
func (s *Sequence) Get(key string) (Value, bool) {
	i, ok := path.ParseIndex(key)
	if !ok {
		return nil, false
	}
	return s.At(i)
}

// Has returns true if key is an in-range index.
func (s *Sequence) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// At returns the element at index i.
func (s *Sequence) At(i int) (Value, bool) {
	if i < 0 || i >= len(s.items) {
		return nil, false
	}
	return s.items[i], true
}

// Replace overwrites an existing element.
func (s *Sequence) Replace(key string, v Value) bool {
	i, ok := path.ParseIndex(key)
	if !ok || i >= len(s.items) {
		return false
	}
	s.items[i] = v
	return true
}

// Append adds v at the end and returns its index.
func (s *Sequence) Append(v Value) int {
	s.items = append(s.items, v)
	return len(s.items) - 1
}

// Insert places v at index i, shifting later elements up.
// An index past the end appends. Returns the index actually used.
func (s *Sequence) Insert(i int, v Value) int {
	if i < 0 {
		i = 0
	}
	if i >= len(s.items) {
		return s.Append(v)
	}
	s.items = append(s.items, nil)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = v
	return i
}

// Remove deletes the element at a decimal index key.
func (s *Sequence) Remove(key string) (Value, bool) {
	i, ok := path.ParseIndex(key)
	if !ok {
		return nil, false
	}
	return s.RemoveAt(i)
}

// RemoveAt deletes the element at index i, shifting later elements down.
func (s *Sequence) RemoveAt(i int) (Value, bool) {
	if i < 0 || i >= len(s.items) {
		return nil, false
	}
	v := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return v, true
}

// KeyOf returns the current index of child, found by identity.
func (s *Sequence) KeyOf(child Value) (string, bool) {
	for i, v := range s.items {
		if v == child {
			return strconv.Itoa(i), true
		}
	}
	return "", false
}

// Len returns the number of elements.
func (s *Sequence) Len() int {
	return len(s.items)
}

// Scalar is a leaf node: null, bool, number or string.
type Scalar struct {
	kind Kind
	v    any
}

// Null returns a new null scalar.
func Null() *Scalar {
	return &Scalar{kind: KindNull}
}

// Bool returns a new boolean scalar.
func Bool(b bool) *Scalar {
	return &Scalar{kind: KindBool, v: b}
}

// Number returns a new numeric scalar.
func Number(f float64) *Scalar {
	return &Scalar{kind: KindNumber, v: f}
}

// String returns a new string scalar.
func String(s string) *Scalar {
	return &Scalar{kind: KindString, v: s}
}

// Kind implements Value.
func (s *Scalar) Kind() Kind { return s.kind }

func (s *Scalar) sealed() {}

// Interface returns the scalar as nil, bool, float64 or string.
func (s *Scalar) Interface() any {
	return s.v
}
