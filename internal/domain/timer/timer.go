// Package timer implements the round countdown on absolute timestamps.
//
// A timer never ticks. Its state is the accumulated elapsed time plus the
// instant the current running segment began, so elapsed and remaining time
// are recomputed from the clock on every read and stay correct across
// reconnects and process restarts.
package timer

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
)

// Engine applies timer transitions using an injected clock.
type Engine struct {
	clock clockwork.Clock
}

// New creates an Engine on the real clock unless WithClock is given.
func New(opts ...Option) *Engine {
	e := &Engine{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock exposes the engine's clock to collaborators that must agree on "now".
func (e *Engine) Clock() clockwork.Clock { return e.clock }

// Start begins a fresh countdown.
func (e *Engine) Start(t *model.Timer) {
	now := e.clock.Now()
	t.Status = types.TimerRunning
	t.StartTime = &now
	t.Elapsed = 0
}

// Pause folds the running segment into Elapsed.
func (e *Engine) Pause(t *model.Timer) error {
	if t.Status != types.TimerRunning {
		return failure.Wrapf(ErrInvalidTimerTransition, "pause requires a running timer, timer is %s", t.Status)
	}
	t.Elapsed += e.segment(t)
	t.StartTime = nil
	t.Status = types.TimerPaused
	return nil
}

// Resume opens a new running segment; Elapsed is preserved.
func (e *Engine) Resume(t *model.Timer) error {
	if t.Status != types.TimerPaused {
		return failure.Wrapf(ErrInvalidTimerTransition, "resume requires a paused timer, timer is %s", t.Status)
	}
	now := e.clock.Now()
	t.StartTime = &now
	t.Status = types.TimerRunning
	return nil
}

// Reset forces the timer to stopped with nothing elapsed, from any state.
func (e *Engine) Reset(t *model.Timer) {
	t.Status = types.TimerStopped
	t.StartTime = nil
	t.Elapsed = 0
}

// Freeze stops the timer but keeps the time played, for rounds that end.
func (e *Engine) Freeze(t *model.Timer) {
	if t.Status == types.TimerRunning {
		t.Elapsed += e.segment(t)
	}
	t.StartTime = nil
	t.Status = types.TimerStopped
}

// Elapsed is the accumulated time plus the running segment, if any.
func (e *Engine) Elapsed(t model.Timer) time.Duration {
	if t.Status == types.TimerRunning {
		return t.Elapsed + e.segment(&t)
	}
	return t.Elapsed
}

// Remaining is duration minus Elapsed. It goes negative in overtime; the
// timer never ends a round on its own.
func (e *Engine) Remaining(t model.Timer, duration time.Duration) time.Duration {
	return duration - e.Elapsed(t)
}

// View is a display snapshot computed at ServerTime.
type View struct {
	Status           types.TimerStatus `json:"status"`
	ElapsedSeconds   float64           `json:"elapsedSeconds"`
	RemainingSeconds float64           `json:"remainingSeconds"`
	DurationSeconds  float64           `json:"durationSeconds"`
	Overtime         bool              `json:"overtime"`
	ServerTime       time.Time         `json:"serverTime"`
	StartTime        *time.Time        `json:"startTime,omitempty"`
}

// Snapshot renders the timer for clients. Remaining is clamped at zero and
// Overtime flags a countdown that has run out.
func (e *Engine) Snapshot(t model.Timer, duration time.Duration) View {
	elapsed := e.Elapsed(t)
	remaining := duration - elapsed
	v := View{
		Status:          t.Status,
		ElapsedSeconds:  elapsed.Seconds(),
		DurationSeconds: duration.Seconds(),
		ServerTime:      e.clock.Now(),
		StartTime:       t.StartTime,
	}
	if remaining <= 0 {
		v.Overtime = elapsed > 0
		remaining = 0
	}
	v.RemainingSeconds = remaining.Seconds()
	return v
}

// segment is the length of the running segment; a clock stepping backwards
// yields zero rather than negative time.
func (e *Engine) segment(t *model.Timer) time.Duration {
	if t.StartTime == nil {
		return 0
	}
	d := e.clock.Since(*t.StartTime)
	if d < 0 {
		return 0
	}
	return d
}
