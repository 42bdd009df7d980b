package value

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// UnsupportedTypeError is returned when a Go value has no document
// representation (functions, channels, non-string map keys, ...).
type UnsupportedTypeError struct {
	Type string
	Path string
}

// Error implements error.
func (e *UnsupportedTypeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("value: unsupported type %s at %s", e.Type, e.Path)
	}
	return fmt.Sprintf("value: unsupported type %s", e.Type)
}

// FromAny converts a plain Go value into a detached document tree.
//
// Accepted inputs: nil, bool, every integer and float type, json.Number,
// string, slices and arrays, maps with string keys, pointers to any of
// these, and existing Values (which are cloned). Keys of Go maps have no
// order, so they are sorted to keep conversion deterministic. A map, slice
// or pointer that contains itself is reported as an UnsupportedTypeError
// of type "cycle".
func FromAny(x any) (Value, error) {
	c := converter{visiting: make(map[visit]struct{})}
	return c.convert(x, "")
}

// MustFromAny is like FromAny but panics on error. Intended for tests and
// static seeds.
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

// visit identifies a reference on the current conversion path. Slices
// include their length since a subslice shares its parent's pointer.
type visit struct {
	ptr uintptr
	len int
	typ reflect.Type
}

type converter struct {
	visiting map[visit]struct{}
}

// enter marks rv as being converted and returns the func that unmarks it.
func (c *converter) enter(rv reflect.Value, at string) (func(), error) {
	key := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() == reflect.Slice {
		key.len = rv.Len()
	}
	if _, ok := c.visiting[key]; ok {
		return nil, &UnsupportedTypeError{Type: "cycle", Path: at}
	}
	c.visiting[key] = struct{}{}
	return func() { delete(c.visiting, key) }, nil
}

func (c *converter) convert(x any, at string) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		if isNilValue(t) {
			return Null(), nil
		}
		return c.cloneValue(t, at)
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, &UnsupportedTypeError{Type: "json.Number(" + t.String() + ")", Path: at}
		}
		return Number(f), nil
	case map[string]any:
		if t == nil {
			return NewMapping(), nil
		}
		leave, err := c.enter(reflect.ValueOf(t), at)
		if err != nil {
			return nil, err
		}
		defer leave()
		m := NewMapping()
		for _, k := range sortedKeys(t) {
			child, err := c.convert(t[k], at+"/"+k)
			if err != nil {
				return nil, err
			}
			m.Set(k, child)
		}
		return m, nil
	case []any:
		if t == nil {
			return NewSequence(), nil
		}
		leave, err := c.enter(reflect.ValueOf(t), at)
		if err != nil {
			return nil, err
		}
		defer leave()
		s := NewSequence()
		for i, item := range t {
			child, err := c.convert(item, fmt.Sprintf("%s/%d", at, i))
			if err != nil {
				return nil, err
			}
			s.Append(child)
		}
		return s, nil
	}
	return c.fromReflect(reflect.ValueOf(x), at)
}

func (c *converter) fromReflect(rv reflect.Value, at string) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		leave, err := c.enter(rv, at)
		if err != nil {
			return nil, err
		}
		defer leave()
		return c.convert(rv.Elem().Interface(), at)
	case reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return c.convert(rv.Elem().Interface(), at)
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice {
			if rv.IsNil() {
				return NewSequence(), nil
			}
			leave, err := c.enter(rv, at)
			if err != nil {
				return nil, err
			}
			defer leave()
		}
		s := NewSequence()
		for i := 0; i < rv.Len(); i++ {
			child, err := c.convert(rv.Index(i).Interface(), fmt.Sprintf("%s/%d", at, i))
			if err != nil {
				return nil, err
			}
			s.Append(child)
		}
		return s, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &UnsupportedTypeError{Type: rv.Type().String(), Path: at}
		}
		if rv.IsNil() {
			return NewMapping(), nil
		}
		leave, err := c.enter(rv, at)
		if err != nil {
			return nil, err
		}
		defer leave()
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		m := NewMapping()
		for _, k := range keys {
			elem := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
			child, err := c.convert(elem.Interface(), at+"/"+k)
			if err != nil {
				return nil, err
			}
			m.Set(k, child)
		}
		return m, nil
	case reflect.Invalid:
		return Null(), nil
	}
	return nil, &UnsupportedTypeError{Type: rv.Type().String(), Path: at}
}

// cloneValue is Clone with the same cycle and nil checks as convert.
func (c *converter) cloneValue(v Value, at string) (Value, error) {
	switch t := v.(type) {
	case *Scalar:
		cp := *t
		return &cp, nil
	case *Mapping:
		leave, err := c.enter(reflect.ValueOf(t), at)
		if err != nil {
			return nil, err
		}
		defer leave()
		m := NewMapping()
		for _, k := range t.keys {
			child, err := c.convert(t.items[k], at+"/"+k)
			if err != nil {
				return nil, err
			}
			m.Set(k, child)
		}
		return m, nil
	case *Sequence:
		leave, err := c.enter(reflect.ValueOf(t), at)
		if err != nil {
			return nil, err
		}
		defer leave()
		s := NewSequence()
		for i, item := range t.items {
			child, err := c.convert(item, fmt.Sprintf("%s/%d", at, i))
			if err != nil {
				return nil, err
			}
			s.Append(child)
		}
		return s, nil
	}
	return Clone(v), nil
}

// isNilValue reports whether v is a nil pointer behind a non-nil Value.
func isNilValue(v Value) bool {
	switch t := v.(type) {
	case *Mapping:
		return t == nil
	case *Sequence:
		return t == nil
	case *Scalar:
		return t == nil
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToAny converts a document tree to plain Go values:
// map[string]any, []any, nil, bool, float64 and string.
// The result shares nothing with v.
func ToAny(v Value) any {
	switch t := v.(type) {
	case nil:
		return nil
	case *Scalar:
		return t.v
	case *Mapping:
		out := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			out[k] = ToAny(t.items[k])
		}
		return out
	case *Sequence:
		out := make([]any, len(t.items))
		for i, item := range t.items {
			out[i] = ToAny(item)
		}
		return out
	}
	return nil
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch t := v.(type) {
	case nil:
		return nil
	case *Scalar:
		c := *t
		return &c
	case *Mapping:
		out := &Mapping{
			keys:  make([]string, len(t.keys)),
			items: make(map[string]Value, len(t.items)),
		}
		copy(out.keys, t.keys)
		for k, item := range t.items {
			out.items[k] = Clone(item)
		}
		return out
	case *Sequence:
		out := &Sequence{items: make([]Value, len(t.items))}
		for i, item := range t.items {
			out.items[i] = Clone(item)
		}
		return out
	}
	return v
}

// Equal reports whether a and b are structurally equal.
// Mapping key order is ignored.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch ta := a.(type) {
	case *Scalar:
		return ta.v == b.(*Scalar).v
	case *Mapping:
		tb := b.(*Mapping)
		if len(ta.items) != len(tb.items) {
			return false
		}
		for k, item := range ta.items {
			other, ok := tb.items[k]
			if !ok || !Equal(item, other) {
				return false
			}
		}
		return true
	case *Sequence:
		tb := b.(*Sequence)
		if len(ta.items) != len(tb.items) {
			return false
		}
		for i := range ta.items {
			if !Equal(ta.items[i], tb.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}
