package devices

import (
	"github.com/jonboulle/clockwork"

	"github.com/okian/dronesoccer/pkg/logger"
)

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock heartbeats and sweeps are measured with.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the registry's logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}
