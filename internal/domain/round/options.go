package round

import "github.com/okian/dronesoccer/pkg/logger"

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the machine's logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}
