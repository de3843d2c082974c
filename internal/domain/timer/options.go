package timer

import "github.com/jonboulle/clockwork"

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the real clock, typically with clockwork.NewFakeClock in tests.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}
