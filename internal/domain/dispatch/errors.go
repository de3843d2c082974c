package dispatch

import "github.com/okian/dronesoccer/internal/domain/failure"

var (
	// ErrAnalysisUnavailable marks a failed or timed-out analysis call.
	ErrAnalysisUnavailable = failure.New(failure.Unavailable, "analysis_unavailable", "analysis unavailable")
	// ErrRoundNotCompleted is returned when analysis is requested for a round still in play.
	ErrRoundNotCompleted = failure.New(failure.Validation, "round_not_completed", "round is not completed")
)
