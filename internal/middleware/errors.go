package middleware

import "github.com/pkg/errors"

var (
	// ErrNilHandler is returned when Use is called without a handler.
	ErrNilHandler = errors.New("middleware handler is nil")

	// ErrNoKinds is returned when Use is called with an empty kind set.
	ErrNoKinds = errors.New("middleware applies to no operation kind")

	// ErrUnknownKind is returned for a kind other than create, read,
	// update or delete.
	ErrUnknownKind = errors.New("unknown operation kind")
)
