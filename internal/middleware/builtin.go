package middleware

import (
	"time"

	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/logging/logfields"
)

// Audit returns a handler that logs every operation it sees and, once the
// rest of the chain has run, whether and how it settled.
func Audit(log *logging.Logger) Handler {
	if log == nil {
		log = logging.Default()
	}
	log = log.WithComponent("audit")

	return HandlerFunc(func(p *Params, next Next, kind Kind) error {
		fields := map[string]any{logfields.Op: string(kind)}
		if p.Path != nil {
			fields[logfields.Path] = p.Path.String()
		}
		l := log.WithFields(fields)
		l.Debug("operation start")

		start := time.Now()
		next()
		l = l.WithField(logfields.Duration, time.Since(start))

		if !p.Settled() {
			l.Debug("operation pending")
			return nil
		}
		results, err := p.Outcome()
		if err != nil {
			l.WithError(err).Info("operation failed")
			return nil
		}
		l.WithField(logfields.Matches, len(results)).Debug("operation complete")
		return nil
	})
}
