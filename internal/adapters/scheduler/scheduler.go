// Package scheduler runs the engine's periodic jobs on gocron: the device
// liveness sweep and the round deadline watch.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/okian/dronesoccer/pkg/logger"
	"github.com/okian/dronesoccer/pkg/metrics"
)

// Sweeper flips stale devices offline.
type Sweeper interface {
	SweepOffline(ctx context.Context, threshold time.Duration) (int, error)
}

// ActiveRound is an in-progress round and its server-side remaining time.
type ActiveRound struct {
	MatchID     string
	RoundNumber int
	Remaining   time.Duration
}

// Rounds lists the rounds currently in play.
type Rounds interface {
	ActiveRounds(ctx context.Context) ([]ActiveRound, error)
}

// RoundEnder ends a round through the normal end-round path.
type RoundEnder interface {
	EndRoundAtDeadline(ctx context.Context, matchID string, round int) error
}

// Scheduler owns a gocron scheduler.
type Scheduler struct {
	cron  gocron.Scheduler
	clock clockwork.Clock
	log   logger.Logger
	ender RoundEnder

	mu       sync.Mutex
	reported map[string]struct{}
}

// New creates a stopped scheduler.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		clock:    clockwork.NewRealClock(),
		reported: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("scheduler")
	}
	cron, err := gocron.NewScheduler(gocron.WithClock(s.clock), gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s.cron = cron
	return s, nil
}

// ScheduleSweep runs a liveness sweep every interval. A non-positive
// interval leaves sweeps on demand only.
func (s *Scheduler) ScheduleSweep(interval, threshold time.Duration, sweeper Sweeper) error {
	if interval <= 0 {
		return nil
	}
	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			n, err := sweeper.SweepOffline(ctx, threshold)
			if err != nil {
				metrics.RecordErrorByComponent("scheduler", "sweep_failed")
				s.log.Warn(ctx, "scheduled sweep failed", logger.Error(err))
				return
			}
			if n > 0 {
				s.log.Info(ctx, "scheduled sweep flipped devices offline", logger.Int("count", n))
			}
		}),
		gocron.WithName("device-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	return nil
}

// WatchDeadlines checks in-progress rounds every interval.
func (s *Scheduler) WatchDeadlines(interval time.Duration, rounds Rounds) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) {
			if err := s.CheckDeadlines(ctx, rounds); err != nil {
				metrics.RecordErrorByComponent("scheduler", "deadline_check_failed")
				s.log.Warn(ctx, "deadline check failed", logger.Error(err))
			}
		}),
		gocron.WithName("round-deadline-watch"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule deadline watch: %w", err)
	}
	return nil
}

// CheckDeadlines reports every round whose countdown reached zero, once
// per countdown, and ends it when auto end is configured. A round with time
// left again after a timer reset is re-armed; a failed auto end is retried
// on the next check.
func (s *Scheduler) CheckDeadlines(ctx context.Context, rounds Rounds) error {
	active, err := rounds.ActiveRounds(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	live := make(map[string]struct{}, len(active))
	var due []ActiveRound
	for _, r := range active {
		key := r.MatchID + "/" + strconv.Itoa(r.RoundNumber)
		live[key] = struct{}{}
		if r.Remaining > 0 {
			delete(s.reported, key)
			continue
		}
		if _, seen := s.reported[key]; seen {
			continue
		}
		s.reported[key] = struct{}{}
		due = append(due, r)
	}
	for key := range s.reported {
		if _, ok := live[key]; !ok {
			delete(s.reported, key)
		}
	}
	s.mu.Unlock()

	for _, r := range due {
		metrics.RecordRoundDeadline("reached")
		s.log.Info(ctx, "round deadline reached",
			logger.String("match_id", r.MatchID), logger.Int("round", r.RoundNumber),
			logger.Duration("overtime", -r.Remaining), logger.Bool("auto_end", s.ender != nil))
		if s.ender == nil {
			continue
		}
		if err := s.ender.EndRoundAtDeadline(ctx, r.MatchID, r.RoundNumber); err != nil {
			metrics.RecordRoundDeadline("auto_end_failed")
			s.log.Warn(ctx, "auto end failed, retrying on next check",
				logger.String("match_id", r.MatchID), logger.Int("round", r.RoundNumber), logger.Error(err))
			s.mu.Lock()
			delete(s.reported, r.MatchID+"/"+strconv.Itoa(r.RoundNumber))
			s.mu.Unlock()
			continue
		}
		metrics.RecordRoundDeadline("auto_ended")
	}
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() { s.cron.Start() }

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error { return s.cron.Shutdown() }

// JobNames lists the scheduled jobs.
func (s *Scheduler) JobNames() []string {
	jobs := s.cron.Jobs()
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.Name()
	}
	return out
}
