package dispatch

import (
	"github.com/jonboulle/clockwork"

	"github.com/okian/dronesoccer/pkg/logger"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMode selects batch or per-team calls.
func WithMode(mode Mode) Option {
	return func(d *Dispatcher) {
		if mode == ModeBatch || mode == ModePerTeam {
			d.mode = mode
		}
	}
}

// WithClock sets the clock report timestamps come from.
func WithClock(clock clockwork.Clock) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithIDGenerator replaces the report id generator.
func WithIDGenerator(gen func() string) Option {
	return func(d *Dispatcher) {
		if gen != nil {
			d.newID = gen
		}
	}
}
