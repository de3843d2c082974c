package analysis

import (
	"fmt"

	"github.com/okian/dronesoccer/internal/domain/dispatch"
)

// ErrUnavailable is carried by every failed call.
var ErrUnavailable = dispatch.ErrAnalysisUnavailable

// CallError is a failed call to the analysis service, tagged with the
// original cause.
type CallError struct {
	Method string
	Path   string
	// Status is the HTTP status, zero when no response arrived.
	Status int
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("analysis: %s %s: %v", e.Method, e.Path, e.Err)
}

// Unwrap exposes both ErrUnavailable and the cause.
func (e *CallError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }
