package round

import (
	"fmt"

	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/types"
)

var (
	// ErrInvalidRoundTransition is returned for any out-of-order round operation.
	ErrInvalidRoundTransition = failure.New(failure.Validation, "invalid_round_transition", "invalid round transition")
	// ErrRoundNotFound is returned when a match has no round with the given number.
	ErrRoundNotFound = failure.New(failure.NotFound, "round_not_found", "round not found")
	// ErrInvalidScoreDelta is returned for score adjustments other than +1 and -1.
	ErrInvalidScoreDelta = failure.New(failure.Validation, "invalid_score_delta", "score delta must be +1 or -1")
	// ErrInvalidTeam is returned for a team other than A or B.
	ErrInvalidTeam = failure.New(failure.Validation, "invalid_team", "team must be A or B")
)

// TransitionError names the attempted operation and the state it was
// attempted from.
type TransitionError struct {
	Op     string
	Round  int
	From   types.RoundStatus
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: cannot %s round %d from %s", ErrInvalidRoundTransition, e.Op, e.Round, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidRoundTransition }
