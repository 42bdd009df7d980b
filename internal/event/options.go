package event

import "github.com/dshills/arbor/internal/logging"

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	logger       *logging.Logger
	errorHandler func(l *Listener, e *Event, err error)
}

func defaultBusConfig() busConfig {
	return busConfig{
		logger: logging.Default(),
	}
}

// WithLogger sets the logger used to report failing handlers.
func WithLogger(l *logging.Logger) BusOption {
	return func(c *busConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithErrorHandler sets a callback invoked after a handler returns an error
// or panics. Panics are reported as *PanicError.
func WithErrorHandler(fn func(l *Listener, e *Event, err error)) BusOption {
	return func(c *busConfig) {
		c.errorHandler = fn
	}
}
