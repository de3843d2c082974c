package service

import (
	"context"
	"errors"

	"github.com/okian/dronesoccer/internal/adapters/scheduler"
	"github.com/okian/dronesoccer/internal/domain/dispatch"
	"github.com/okian/dronesoccer/internal/domain/lineup"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/timer"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/logger"
)

// RegisterDrones validates and stores the lineup of pending round n.
func (s *Service) RegisterDrones(ctx context.Context, matchID string, n int, lin lineup.Lineup) (*model.Match, error) {
	return s.mutate(ctx, matchID, "register_drones", func(m *model.Match) error {
		teamA, teamB, err := s.rosters(ctx, m)
		if err != nil {
			return err
		}
		return s.rounds.RegisterDrones(ctx, m, n, lineup.Rosters{TeamA: teamA, TeamB: teamB}, lin)
	})
}

// StartRound puts round n in play and starts its countdown.
func (s *Service) StartRound(ctx context.Context, matchID string, n int) (*model.Match, error) {
	return s.mutate(ctx, matchID, "start_round", func(m *model.Match) error {
		return s.rounds.StartRound(ctx, m, n)
	})
}

// StartTimer restarts a reset countdown.
func (s *Service) StartTimer(ctx context.Context, matchID string, n int) (*model.Match, error) {
	return s.mutate(ctx, matchID, "start_timer", func(m *model.Match) error {
		return s.rounds.StartTimer(ctx, m, n)
	})
}

// PauseTimer pauses the countdown of round n.
func (s *Service) PauseTimer(ctx context.Context, matchID string, n int) (*model.Match, error) {
	return s.mutate(ctx, matchID, "pause_timer", func(m *model.Match) error {
		return s.rounds.PauseTimer(ctx, m, n)
	})
}

// ResumeTimer resumes the countdown of round n.
func (s *Service) ResumeTimer(ctx context.Context, matchID string, n int) (*model.Match, error) {
	return s.mutate(ctx, matchID, "resume_timer", func(m *model.Match) error {
		return s.rounds.ResumeTimer(ctx, m, n)
	})
}

// ResetTimer stops the countdown of round n and clears its elapsed time.
func (s *Service) ResetTimer(ctx context.Context, matchID string, n int) (*model.Match, error) {
	return s.mutate(ctx, matchID, "reset_timer", func(m *model.Match) error {
		return s.rounds.ResetTimer(ctx, m, n)
	})
}

// AdjustScore applies a +1 or -1 correction to team's score in round n.
func (s *Service) AdjustScore(ctx context.Context, matchID string, n int, team types.Team, delta int) (*model.Match, error) {
	return s.mutate(ctx, matchID, "adjust_score", func(m *model.Match) error {
		return s.rounds.AdjustScore(ctx, m, n, team, delta)
	})
}

// TimerView renders the server-side countdown of round n.
func (s *Service) TimerView(ctx context.Context, matchID string, n int) (timer.View, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return timer.View{}, err
	}
	return s.rounds.View(m, n)
}

// EndRound completes round n and then analyses it. The match lock is
// released before the analysis call, and an analysis failure only shows in
// the returned outcome: the round stays completed either way.
func (s *Service) EndRound(ctx context.Context, matchID string, n int) (*model.Match, dispatch.Outcome, error) {
	m, err := s.mutate(ctx, matchID, "end_round", func(m *model.Match) error {
		return s.rounds.EndRound(ctx, m, n)
	})
	if err != nil {
		return nil, dispatch.Outcome{}, err
	}
	return m, s.analyse(context.WithoutCancel(ctx), m.Clone(), n), nil
}

// EndRoundAtDeadline ends a round whose countdown ran out.
func (s *Service) EndRoundAtDeadline(ctx context.Context, matchID string, n int) error {
	_, _, err := s.EndRound(ctx, matchID, n)
	return err
}

// ActiveRounds lists every round in play with its remaining time.
func (s *Service) ActiveRounds(ctx context.Context) ([]scheduler.ActiveRound, error) {
	matches, err := s.ListMatches(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []scheduler.ActiveRound
	for _, m := range matches {
		if m.Status != types.MatchInProgress {
			continue
		}
		r := m.ActiveRound()
		if r == nil {
			continue
		}
		out = append(out, scheduler.ActiveRound{
			MatchID:     m.ID,
			RoundNumber: r.RoundNumber,
			Remaining:   s.timer.Remaining(r.Timer, m.RoundDuration),
		})
	}
	return out, nil
}

func (s *Service) analyse(ctx context.Context, snapshot *model.Match, n int) dispatch.Outcome {
	out, err := s.dispatcher.Dispatch(ctx, snapshot, n)
	if err == nil || errors.Is(err, dispatch.ErrAnalysisUnavailable) {
		return out
	}
	if errors.Is(err, ErrMatchNotFound) {
		s.logger.Info(ctx, "match deleted during analysis, reports dropped",
			logger.String("match_id", snapshot.ID), logger.Int("round", n))
		out.Status = dispatch.StatusUnavailable
		out.Error = err.Error()
		return out
	}
	out.Status = dispatch.StatusUnavailable
	out.Error = err.Error()
	s.logger.Error(ctx, "round analysis failed",
		logger.String("match_id", snapshot.ID), logger.Int("round", n), logger.Error(err))
	return out
}
