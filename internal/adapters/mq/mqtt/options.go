package mqtt

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/dronesoccer/pkg/logger"
)

// Option configures a Publisher.
type Option func(*Publisher)

// WithClient replaces the paho client, mainly for tests.
func WithClient(c Client) Option {
	return func(p *Publisher) {
		if c != nil {
			p.client = c
			p.external = true
		}
	}
}

// WithCommandGap sets the minimum spacing between two publishes.
func WithCommandGap(d time.Duration) Option {
	return func(p *Publisher) {
		if d >= 0 {
			p.gap = d
		}
	}
}

// WithPublishTimeout bounds the wait for a broker acknowledgement.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithStatusHandler is called with the drone id of every status message.
func WithStatusHandler(fn StatusFunc) Option {
	return func(p *Publisher) {
		p.onStatus = fn
	}
}

// WithCredentials sets the broker username and password.
func WithCredentials(username, password string) Option {
	return func(p *Publisher) {
		p.username, p.password = username, password
	}
}

// WithClock sets the clock used for pacing.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Publisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger sets the publisher's logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}
