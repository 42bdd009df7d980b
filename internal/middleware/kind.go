package middleware

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind is a store operation kind.
type Kind string

// Operation kinds.
const (
	Create Kind = "create"
	Read   Kind = "read"
	Update Kind = "update"
	Delete Kind = "delete"
)

// AllKinds returns every operation kind.
func AllKinds() []Kind {
	return []Kind{Create, Read, Update, Delete}
}

// Valid reports whether k is a known operation kind.
func (k Kind) Valid() bool {
	switch k {
	case Create, Read, Update, Delete:
		return true
	}
	return false
}

// ParseKinds parses a comma separated kind list such as "create,update".
// "*" selects every kind.
func ParseKinds(s string) ([]Kind, error) {
	var kinds []Kind
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if part == "*" {
			return AllKinds(), nil
		}
		k := Kind(part)
		if !k.Valid() {
			return nil, errors.Wrapf(ErrUnknownKind, "%q", part)
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil, ErrNoKinds
	}
	return kinds, nil
}
