package mqtt

import "errors"

var (
	// ErrPublishTimeout is returned when the broker does not acknowledge in time.
	ErrPublishTimeout = errors.New("mqtt publish not acknowledged in time")
	// ErrConnectTimeout is returned when the broker cannot be reached in time.
	ErrConnectTimeout = errors.New("mqtt connect timed out")
	// ErrUnsupportedCommand is returned for commands with no topic.
	ErrUnsupportedCommand = errors.New("unsupported hardware command")
)
