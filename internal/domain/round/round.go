// Package round implements the round lifecycle of a match:
// pending -> in_progress -> completed.
//
// Every operation takes the match aggregate and either applies the whole
// transition or returns an error without touching it. Callers serialize
// operations per match.
package round

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/lineup"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/timer"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/logger"
	"github.com/okian/dronesoccer/pkg/metrics"
)

// Operation names used in transition errors, logs and metrics.
const (
	OpRegisterDrones = "register_drones"
	OpStart          = "start"
	OpStartTimer     = "start_timer"
	OpPauseTimer     = "pause_timer"
	OpResumeTimer    = "resume_timer"
	OpResetTimer     = "reset_timer"
	OpAdjustScore    = "adjust_score"
	OpEnd            = "end"
)

// Machine applies round transitions.
type Machine struct {
	timer  *timer.Engine
	lineup *lineup.Validator
	log    logger.Logger
}

// New creates a Machine.
func New(engine *timer.Engine, validator *lineup.Validator, opts ...Option) *Machine {
	m := &Machine{timer: engine, lineup: validator}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Get().Named("round")
	}
	return m
}

// Timer exposes the engine rounds are timed with.
func (m *Machine) Timer() *timer.Engine { return m.timer }

// RegisterDrones validates lin and stores the lineup on pending round n.
func (m *Machine) RegisterDrones(ctx context.Context, match *model.Match, n int, rosters lineup.Rosters, lin lineup.Lineup) error {
	r, err := m.find(ctx, match, n, OpRegisterDrones)
	if err != nil {
		return err
	}
	if match.Status == types.MatchCompleted {
		return m.reject(ctx, r, OpRegisterDrones, "match is completed")
	}
	if r.Status != types.RoundPending {
		return m.reject(ctx, r, OpRegisterDrones, "")
	}

	drones, err := m.lineup.Validate(ctx, match.TeamSize, rosters, lin)
	if err != nil {
		var v *lineup.Violation
		if errors.As(err, &v) {
			metrics.RecordLineupRejection(v.RuleCode())
			m.log.Debug(ctx, "lineup rejected",
				logger.String("match_id", match.ID), logger.Int("round", n), logger.Error(err))
		}
		return err
	}

	r.RegisteredDrones = drones
	match.UpdatedAt = m.now()
	m.log.Info(ctx, "drones registered",
		logger.String("match_id", match.ID), logger.Int("round", n), logger.Int("drones", len(drones)))
	return nil
}

// StartRound moves round n to in_progress and starts its timer. The round
// must have a lineup, no other round may be in progress and every earlier
// round must be completed.
func (m *Machine) StartRound(ctx context.Context, match *model.Match, n int) error {
	r, err := m.find(ctx, match, n, OpStart)
	if err != nil {
		return err
	}
	switch {
	case match.Status == types.MatchCompleted:
		return m.reject(ctx, r, OpStart, "match is completed")
	case r.Status != types.RoundPending:
		return m.reject(ctx, r, OpStart, "")
	case len(r.RegisteredDrones) == 0:
		return m.reject(ctx, r, OpStart, "no drones registered")
	}
	if active := match.ActiveRound(); active != nil {
		return m.reject(ctx, r, OpStart, "round "+strconv.Itoa(active.RoundNumber)+" is in progress")
	}
	for i := range match.Rounds {
		prev := &match.Rounds[i]
		if prev.RoundNumber < n && prev.Status != types.RoundCompleted {
			return m.reject(ctx, r, OpStart, "round "+strconv.Itoa(prev.RoundNumber)+" is not completed")
		}
	}

	now := m.now()
	r.Status = types.RoundInProgress
	r.StartedAt = &now
	m.timer.Start(&r.Timer)
	match.Status = types.MatchInProgress
	match.CurrentRound = n
	match.UpdatedAt = now

	metrics.RecordRoundStarted()
	metrics.RecordTimerAction("start")
	m.log.Info(ctx, "round started", logger.String("match_id", match.ID), logger.Int("round", n))
	return nil
}

// StartTimer restarts the countdown of an in-progress round after a reset.
func (m *Machine) StartTimer(ctx context.Context, match *model.Match, n int) error {
	return m.timerOp(ctx, match, n, OpStartTimer, "start", func(t *model.Timer) error {
		if t.Status != types.TimerStopped {
			return failure.Wrapf(timer.ErrInvalidTimerTransition, "start requires a stopped timer, timer is %s", t.Status)
		}
		m.timer.Start(t)
		return nil
	})
}

// PauseTimer pauses the countdown of an in-progress round.
func (m *Machine) PauseTimer(ctx context.Context, match *model.Match, n int) error {
	return m.timerOp(ctx, match, n, OpPauseTimer, "pause", m.timer.Pause)
}

// ResumeTimer resumes the countdown of an in-progress round.
func (m *Machine) ResumeTimer(ctx context.Context, match *model.Match, n int) error {
	return m.timerOp(ctx, match, n, OpResumeTimer, "resume", m.timer.Resume)
}

// ResetTimer stops the countdown and clears elapsed time.
func (m *Machine) ResetTimer(ctx context.Context, match *model.Match, n int) error {
	return m.timerOp(ctx, match, n, OpResetTimer, "reset", func(t *model.Timer) error {
		m.timer.Reset(t)
		return nil
	})
}

func (m *Machine) timerOp(ctx context.Context, match *model.Match, n int, op, action string, apply func(*model.Timer) error) error {
	r, err := m.find(ctx, match, n, op)
	if err != nil {
		return err
	}
	if r.Status != types.RoundInProgress {
		return m.reject(ctx, r, op, "")
	}
	if err := apply(&r.Timer); err != nil {
		metrics.RecordTransitionRejected(op)
		m.log.Debug(ctx, "timer transition rejected",
			logger.String("match_id", match.ID), logger.Int("round", n), logger.Error(err))
		return err
	}
	match.UpdatedAt = m.now()
	metrics.RecordTimerAction(action)
	m.log.Info(ctx, "timer "+action,
		logger.String("match_id", match.ID), logger.Int("round", n),
		logger.Duration("elapsed", m.timer.Elapsed(r.Timer)))
	return nil
}

// AdjustScore applies a +1 or -1 manual correction to team's score in an
// in-progress round. Scores never go below zero.
func (m *Machine) AdjustScore(ctx context.Context, match *model.Match, n int, team types.Team, delta int) error {
	if !team.Valid() {
		return failure.Wrapf(ErrInvalidTeam, "got %q", team)
	}
	if delta != 1 && delta != -1 {
		return failure.Wrapf(ErrInvalidScoreDelta, "got %d", delta)
	}
	r, err := m.find(ctx, match, n, OpAdjustScore)
	if err != nil {
		return err
	}
	if r.Status != types.RoundInProgress {
		return m.reject(ctx, r, OpAdjustScore, "")
	}

	score := &r.TeamAScore
	if team == types.TeamB {
		score = &r.TeamBScore
	}
	*score = max(*score+delta, 0)
	match.RecomputeScores()
	match.UpdatedAt = m.now()

	metrics.RecordScoreAdjustment(string(team), delta)
	m.log.Info(ctx, "score adjusted",
		logger.String("match_id", match.ID), logger.Int("round", n),
		logger.String("team", string(team)), logger.Int("delta", delta),
		logger.Int("team_a", r.TeamAScore), logger.Int("team_b", r.TeamBScore))
	return nil
}

// EndRound completes an in-progress round and freezes its timer. Analysis is
// the caller's concern and runs after the match is released.
func (m *Machine) EndRound(ctx context.Context, match *model.Match, n int) error {
	r, err := m.find(ctx, match, n, OpEnd)
	if err != nil {
		return err
	}
	if r.Status != types.RoundInProgress {
		return m.reject(ctx, r, OpEnd, "")
	}

	now := m.now()
	m.timer.Freeze(&r.Timer)
	r.Status = types.RoundCompleted
	r.EndedAt = &now
	match.RecomputeScores()
	match.UpdatedAt = now

	metrics.RecordRoundCompleted()
	m.log.Info(ctx, "round ended",
		logger.String("match_id", match.ID), logger.Int("round", n),
		logger.Duration("played", r.Timer.Elapsed),
		logger.Int("team_a", r.TeamAScore), logger.Int("team_b", r.TeamBScore))
	return nil
}

// View renders round n's timer for displays.
func (m *Machine) View(match *model.Match, n int) (timer.View, error) {
	r := match.Round(n)
	if r == nil {
		return timer.View{}, failure.Wrapf(ErrRoundNotFound, "match %s has no round %d", match.ID, n)
	}
	return m.timer.Snapshot(r.Timer, match.RoundDuration), nil
}

func (m *Machine) find(ctx context.Context, match *model.Match, n int, op string) (*model.Round, error) {
	r := match.Round(n)
	if r == nil {
		metrics.RecordTransitionRejected(op)
		m.log.Debug(ctx, "round not found", logger.String("match_id", match.ID), logger.Int("round", n))
		return nil, failure.Wrapf(ErrRoundNotFound, "match %s has no round %d", match.ID, n)
	}
	return r, nil
}

func (m *Machine) reject(ctx context.Context, r *model.Round, op, reason string) error {
	metrics.RecordTransitionRejected(op)
	err := &TransitionError{Op: op, Round: r.RoundNumber, From: r.Status, Reason: reason}
	m.log.Debug(ctx, "round transition rejected", logger.Error(err))
	return err
}

func (m *Machine) now() time.Time { return m.timer.Clock().Now() }
