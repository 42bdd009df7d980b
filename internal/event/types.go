package event

import (
	"reflect"
	"strings"
)

// Type names a kind of event.
type Type string

const (
	// Created is emitted for every node inserted into the document.
	Created Type = "created"

	// Updated is emitted for a container whose children changed and for a
	// node whose value was replaced.
	Updated Type = "updated"

	// Deleted is emitted for every node removed from the document.
	Deleted Type = "deleted"

	// AnyType subscribes to every event type.
	AnyType Type = "*"
)

// ParseTypes splits a space or comma separated list of types.
func ParseTypes(s string) []Type {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
	out := make([]Type, 0, len(fields))
	for _, f := range fields {
		out = append(out, Type(f))
	}
	return out
}

// Message carries the payload of an event.
// Store events set "value" and, for some updates, "oldValue" alongside
// any caller-supplied fields.
type Message map[string]any

// Message keys set by the store.
const (
	KeyValue    = "value"
	KeyOldValue = "oldValue"
)

// Clone returns a deep copy of m. Nested maps and slices (map[string]any,
// Message, []any) are copied; other values are shared. A reference that
// contains itself is kept as is. A nil message clones to an empty one.
func (m Message) Clone() Message {
	visiting := make(map[ref]struct{})
	out := make(Message, len(m)+2)
	for k, v := range m {
		out[k] = cloneField(v, visiting)
	}
	return out
}

type ref struct {
	ptr uintptr
	len int
}

func cloneField(v any, visiting map[ref]struct{}) any {
	switch t := v.(type) {
	case Message:
		if t == nil {
			return t
		}
		return Message(cloneMap(t, visiting))
	case map[string]any:
		if t == nil {
			return t
		}
		return cloneMap(t, visiting)
	case []any:
		if t == nil {
			return t
		}
		key := ref{ptr: reflect.ValueOf(t).Pointer(), len: len(t)}
		if _, ok := visiting[key]; ok {
			return t
		}
		visiting[key] = struct{}{}
		defer delete(visiting, key)
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneField(item, visiting)
		}
		return out
	}
	return v
}

func cloneMap(m map[string]any, visiting map[ref]struct{}) map[string]any {
	key := ref{ptr: reflect.ValueOf(m).Pointer(), len: -1}
	if _, ok := visiting[key]; ok {
		return m
	}
	visiting[key] = struct{}{}
	defer delete(visiting, key)
	out := make(map[string]any, len(m))
	for k, item := range m {
		out[k] = cloneField(item, visiting)
	}
	return out
}

// Value returns the "value" field.
func (m Message) Value() any {
	return m[KeyValue]
}

// OldValue returns the "oldValue" field and whether it is set.
func (m Message) OldValue() (any, bool) {
	v, ok := m[KeyOldValue]
	return v, ok
}

// Handler receives delivered events.
type Handler interface {
	HandleEvent(e *Event) error
}

// HandlerFunc adapts a function to Handler.
// Function values are not comparable, so a HandlerFunc cannot be removed
// with Off. Use NewHandler when the handler must be removable.
type HandlerFunc func(e *Event) error

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(e *Event) error {
	return f(e)
}

type funcHandler struct {
	fn func(e *Event) error
}

func (h *funcHandler) HandleEvent(e *Event) error {
	return h.fn(e)
}

// NewHandler wraps fn in a pointer so the result can be passed to Off.
func NewHandler(fn func(e *Event) error) Handler {
	return &funcHandler{fn: fn}
}

// sameHandler compares handlers by interface equality without panicking on
// uncomparable dynamic types.
func sameHandler(a, b Handler) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
