package watcher

import "github.com/pkg/errors"

var (
	// ErrNilHandler is returned by New when no handler is given.
	ErrNilHandler = errors.New("watcher: nil handler")

	// ErrPathNotExist is returned when the watched file's directory is
	// missing.
	ErrPathNotExist = errors.New("watcher: directory does not exist")
)
