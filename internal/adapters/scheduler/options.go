package scheduler

import (
	"github.com/jonboulle/clockwork"

	"github.com/okian/dronesoccer/pkg/logger"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock drives the scheduler from clock.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAutoEnd makes the deadline watch end overdue rounds through ender.
// Without it the watch only reports.
func WithAutoEnd(ender RoundEnder) Option {
	return func(s *Scheduler) {
		s.ender = ender
	}
}
