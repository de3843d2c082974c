package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/round"
	"github.com/okian/dronesoccer/internal/domain/scoring"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/logger"
	"github.com/okian/dronesoccer/pkg/metrics"
)

// CreateMatchInput schedules a match between two teams of a tournament.
type CreateMatchInput struct {
	TournamentID  string     `json:"tournamentId"`
	TeamAID       string     `json:"teamAId"`
	TeamBID       string     `json:"teamBId"`
	ScheduledTime *time.Time `json:"scheduledTime,omitempty"`
}

// CreateMatch schedules a match with its full round list: the regulation
// rounds plus a tiebreaker when the tournament has one.
func (s *Service) CreateMatch(ctx context.Context, in CreateMatchInput) (*model.Match, error) {
	in.TeamAID, in.TeamBID = strings.TrimSpace(in.TeamAID), strings.TrimSpace(in.TeamBID)
	if in.TeamAID == "" || in.TeamBID == "" {
		return nil, failure.Wrapf(ErrInvalidMatch, "both teams are required")
	}
	if in.TeamAID == in.TeamBID {
		return nil, failure.Wrapf(ErrInvalidMatch, "a team cannot play itself")
	}
	t, err := s.GetTournament(ctx, in.TournamentID)
	if err != nil {
		return nil, err
	}
	for _, id := range []string{in.TeamAID, in.TeamBID} {
		if _, err := s.GetTeam(ctx, id); err != nil {
			return nil, err
		}
	}

	settings := t.Settings.Normalize()
	now := s.clock.Now()
	m := &model.Match{
		ID:               uuid.NewString(),
		TournamentID:     t.ID,
		TeamAID:          in.TeamAID,
		TeamBID:          in.TeamBID,
		Status:           types.MatchScheduled,
		RoundDuration:    settings.RoundDuration(),
		RegulationRounds: settings.MatchType.RegulationRounds(),
		HasTiebreaker:    settings.HasTiebreaker,
		TeamSize:         settings.TeamSize,
		ScheduledTime:    in.ScheduledTime,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	m.Rounds = make([]model.Round, settings.TotalRounds())
	for i := range m.Rounds {
		m.Rounds[i] = model.Round{
			RoundNumber:      i + 1,
			Status:           types.RoundPending,
			RegisteredDrones: []model.RegisteredDrone{},
			Timer:            model.Timer{Status: types.TimerStopped},
		}
	}
	if err := s.store.PutMatch(ctx, m); err != nil {
		metrics.RecordStoreError("put_match")
		return nil, failure.Wrap("create match", err)
	}

	metrics.RecordMatchCreated()
	s.logger.Info(ctx, "match scheduled",
		logger.String("match_id", m.ID), logger.String("tournament_id", m.TournamentID),
		logger.String("team_a", m.TeamAID), logger.String("team_b", m.TeamBID),
		logger.Int("rounds", len(m.Rounds)))
	return m, nil
}

// GetMatch returns a match.
func (s *Service) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	m, ok, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, failure.Wrap("get match", err)
	}
	if !ok {
		return nil, failure.Wrapf(ErrMatchNotFound, "id %s", id)
	}
	return m, nil
}

// ListMatches returns matches in creation order, optionally of one
// tournament.
func (s *Service) ListMatches(ctx context.Context, tournamentID string) ([]*model.Match, error) {
	out, err := s.store.ListMatches(ctx, tournamentID)
	if err != nil {
		return nil, failure.Wrap("list matches", err)
	}
	return out, nil
}

// DeleteMatch removes a match with no round in play together with its
// reports and telemetry. The current match pointer is cleared if it held
// the match.
func (s *Service) DeleteMatch(ctx context.Context, id string) error {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()
	unlock := s.locks.lock(id)
	defer unlock()

	m, err := s.GetMatch(ctx, id)
	if err != nil {
		return err
	}
	if r := m.ActiveRound(); r != nil {
		return failure.Wrapf(ErrMatchInProgress, "match %s cannot be deleted while round %d is in play", id, r.RoundNumber)
	}
	if _, err := s.store.DeleteMatch(ctx, id); err != nil {
		metrics.RecordStoreError("delete_match")
		return failure.Wrap("delete match", err)
	}
	if err := s.store.DeleteReports(ctx, id); err != nil {
		metrics.RecordStoreError("delete_reports")
		return failure.Wrap("delete reports", err)
	}
	if err := s.store.DeleteTelemetry(ctx, id); err != nil {
		metrics.RecordStoreError("delete_telemetry")
		return failure.Wrap("delete telemetry", err)
	}
	s.locks.forget(id)
	s.logger.Info(ctx, "match deleted", logger.String("match_id", id))
	return nil
}

// CurrentMatchID returns the id held by the current match pointer, or "".
func (s *Service) CurrentMatchID(ctx context.Context) (string, error) {
	id, err := s.store.CurrentMatch(ctx)
	if err != nil {
		return "", failure.Wrap("current match", err)
	}
	return id, nil
}

// GetCurrentMatch returns the match the public display is showing.
func (s *Service) GetCurrentMatch(ctx context.Context) (*model.Match, error) {
	id, err := s.CurrentMatchID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrNoCurrentMatch
	}
	return s.GetMatch(ctx, id)
}

// SetCurrentMatch moves the current match pointer to id in one swap, so no
// sequence of calls ever leaves two current matches.
func (s *Service) SetCurrentMatch(ctx context.Context, id string) (*model.Match, error) {
	s.currentMu.Lock()
	defer s.currentMu.Unlock()

	m, err := s.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	prev, err := s.store.SwapCurrentMatch(ctx, id)
	if err != nil {
		metrics.RecordStoreError("swap_current_match")
		return nil, failure.Wrap("set current match", err)
	}
	if prev != id {
		metrics.RecordCurrentMatchSwap()
		s.logger.Info(ctx, "current match changed",
			logger.String("match_id", id), logger.String("previous", prev))
	}
	return m, nil
}

// CompleteMatch closes a match once its regulation rounds are played and no
// round is in progress. A tie with the tiebreaker still to play is refused;
// a tie without one is a draw. Man of the match comes from the match's
// reports unless it was set by hand.
func (s *Service) CompleteMatch(ctx context.Context, id string) (*model.Match, error) {
	return s.mutate(ctx, id, "complete_match", func(m *model.Match) error {
		if m.Status == types.MatchCompleted {
			return failure.Wrapf(ErrMatchCompleted, "match %s", id)
		}
		if active := m.ActiveRound(); active != nil {
			metrics.RecordTransitionRejected("complete_match")
			return &round.TransitionError{Op: "complete match during", Round: active.RoundNumber, From: active.Status,
				Reason: "end the round first"}
		}
		if m.CurrentRound < m.RegulationRounds {
			metrics.RecordTransitionRejected("complete_match")
			return failure.Wrapf(round.ErrInvalidRoundTransition,
				"cannot complete match %s after %d of %d regulation rounds", id, m.CurrentRound, m.RegulationRounds)
		}

		outcome := scoring.Aggregate(m)
		if outcome.Tied() && m.HasTiebreaker {
			if tb := m.Round(m.RegulationRounds + 1); tb != nil && tb.Status != types.RoundCompleted {
				return failure.Wrapf(ErrTiebreakerRequired, "%d-%d after %d rounds", outcome.TeamAScore, outcome.TeamBScore, m.RegulationRounds)
			}
		}

		if m.ManOfTheMatch == nil || !m.ManOfTheMatch.Manual {
			reports, err := s.store.ListReports(ctx, id, 0)
			if err != nil {
				return failure.Wrap("load reports", err)
			}
			m.ManOfTheMatch = scoring.ManOfTheMatch(reports)
		}

		now := s.clock.Now()
		m.TeamAScore, m.TeamBScore = outcome.TeamAScore, outcome.TeamBScore
		m.Winner = outcome.Winner
		m.Status = types.MatchCompleted
		m.CompletedAt = &now
		m.UpdatedAt = now

		metrics.RecordMatchCompleted(outcome.Label())
		s.logger.Info(ctx, "match completed",
			logger.String("match_id", id), logger.String("winner", outcome.Label()),
			logger.Int("team_a", outcome.TeamAScore), logger.Int("team_b", outcome.TeamBScore))
		return nil
	})
}

// SetManOfTheMatch records a manual man of the match, which completion
// then keeps.
func (s *Service) SetManOfTheMatch(ctx context.Context, id string, mom model.ManOfTheMatch) (*model.Match, error) {
	mom.Pilot = strings.TrimSpace(mom.Pilot)
	if mom.Pilot == "" {
		return nil, failure.Wrapf(ErrInvalidMatch, "man of the match needs a pilot")
	}
	if mom.Team != "" && !mom.Team.Valid() {
		return nil, failure.Wrapf(round.ErrInvalidTeam, "got %q", mom.Team)
	}
	mom.DroneID = strings.ToUpper(mom.DroneID)
	mom.Manual = true
	return s.mutate(ctx, id, "set_man_of_the_match", func(m *model.Match) error {
		m.ManOfTheMatch = &mom
		m.UpdatedAt = s.clock.Now()
		return nil
	})
}

// mutate loads match id under its lock, applies fn and saves the result.
// When fn fails nothing is saved.
func (s *Service) mutate(ctx context.Context, id, op string, fn func(m *model.Match) error) (*model.Match, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	m, err := s.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(m); err != nil {
		return nil, err
	}
	if err := s.store.PutMatch(ctx, m); err != nil {
		metrics.RecordStoreError(op)
		return nil, failure.Wrap(op, err)
	}
	return m, nil
}
