package mutate

import "github.com/pkg/errors"

// Sentinel errors reported by the engine. Returned errors wrap one of these
// with the offending path or key; match with errors.Is.
var (
	// ErrNoMatch is returned when a path resolves to no node.
	ErrNoMatch = errors.New("path matches no node")

	// ErrInvalidKey is returned when an explicit or generated key is not
	// usable in the target container.
	ErrInvalidKey = errors.New("invalid key")

	// ErrKeyTaken is returned when a create would overwrite an existing key.
	ErrKeyTaken = errors.New("key already taken")

	// ErrNotAContainer is returned when a create targets a scalar, or an
	// update would replace the root with a non-mapping.
	ErrNotAContainer = errors.New("target is not a container")

	// ErrCannotDeleteRoot is returned when a delete targets the root.
	ErrCannotDeleteRoot = errors.New("cannot delete root")
)
