package service

import "github.com/okian/dronesoccer/internal/domain/failure"

var (
	ErrTournamentNotFound = failure.New(failure.NotFound, "tournament_not_found", "tournament not found")
	ErrTeamNotFound       = failure.New(failure.NotFound, "team_not_found", "team not found")
	ErrDroneNotFound      = failure.New(failure.NotFound, "drone_not_found", "drone not found")
	ErrMatchNotFound      = failure.New(failure.NotFound, "match_not_found", "match not found")
	ErrNoCurrentMatch     = failure.New(failure.NotFound, "no_current_match", "no current match is set")

	ErrInvalidTournament = failure.New(failure.Validation, "invalid_tournament", "invalid tournament")
	ErrInvalidTeam       = failure.New(failure.Validation, "invalid_team", "invalid team")
	ErrInvalidDrone      = failure.New(failure.Validation, "invalid_drone", "invalid drone")
	ErrInvalidMatch      = failure.New(failure.Validation, "invalid_match", "invalid match")
	ErrInvalidTelemetry  = failure.New(failure.Validation, "invalid_telemetry", "invalid telemetry batch")
	ErrUnknownTelemetry  = failure.New(failure.NotFound, "unknown_telemetry_target", "telemetry targets an unknown match round")
	ErrNoCommandRound    = failure.New(failure.Validation, "no_command_round", "no round to command")
	ErrInvalidCommand    = failure.New(failure.Validation, "invalid_command", "command must be START, STOP or RESET")

	// ErrTiebreakerRequired is returned when a tied match still has its
	// tiebreaker round to play.
	ErrTiebreakerRequired = failure.New(failure.Validation, "tiebreaker_required", "aggregate is tied, play the tiebreaker round")
	ErrMatchInProgress    = failure.New(failure.Conflict, "match_in_progress", "match is in progress")
	ErrMatchCompleted     = failure.New(failure.Conflict, "match_completed", "match is already completed")
)
