package timer

import "github.com/okian/dronesoccer/internal/domain/failure"

// ErrInvalidTimerTransition is returned when pause or resume is applied in the wrong state.
var ErrInvalidTimerTransition = failure.New(failure.Validation, "invalid_timer_transition", "invalid timer transition")
