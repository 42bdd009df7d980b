package store

import (
	"github.com/pkg/errors"

	"github.com/dshills/arbor/internal/mutate"
)

// Operation errors. A failed Future carries one of these, wrapped with the
// path or key involved; test with errors.Is.
var (
	ErrNoMatch          = mutate.ErrNoMatch
	ErrInvalidKey       = mutate.ErrInvalidKey
	ErrKeyTaken         = mutate.ErrKeyTaken
	ErrNotAContainer    = mutate.ErrNotAContainer
	ErrCannotDeleteRoot = mutate.ErrCannotDeleteRoot
)

// ErrPending is returned by Future.Result before the future settles.
var ErrPending = errors.New("operation has not settled")
