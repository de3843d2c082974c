package model

import (
	"encoding/json"
	"math"
	"time"

	"github.com/okian/dronesoccer/internal/domain/types"
)

// Timer is the absolute-time state of a round countdown. Elapsed holds
// time accumulated before StartTime; the running segment is derived from
// StartTime and the current clock. On the wire Elapsed is elapsedTime in
// seconds.
type Timer struct {
	Status    types.TimerStatus
	StartTime *time.Time
	Elapsed   time.Duration
}

type timerJSON struct {
	Status      types.TimerStatus `json:"status"`
	StartTime   *time.Time        `json:"startTime,omitempty"`
	ElapsedTime float64           `json:"elapsedTime"`
}

// MarshalJSON writes Elapsed as fractional seconds.
func (t Timer) MarshalJSON() ([]byte, error) {
	return json.Marshal(timerJSON{Status: t.Status, StartTime: t.StartTime, ElapsedTime: t.Elapsed.Seconds()})
}

// UnmarshalJSON reads elapsedTime seconds back into Elapsed.
func (t *Timer) UnmarshalJSON(data []byte) error {
	var w timerJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Status = w.Status
	t.StartTime = w.StartTime
	t.Elapsed = time.Duration(math.Round(w.ElapsedTime * float64(time.Second)))
	return nil
}

// RegisteredDrone binds a pilot and a drone to a team position for one round.
type RegisteredDrone struct {
	DroneID        string     `json:"droneId"`
	Team           types.Team `json:"team"`
	Role           types.Role `json:"role"`
	Pilot          string     `json:"pilot"`
	Specifications DroneSpecs `json:"specifications"`
}

// Round is one timed bout of a match.
type Round struct {
	RoundNumber      int               `json:"roundNumber"`
	Status           types.RoundStatus `json:"status"`
	TeamAScore       int               `json:"teamAScore"`
	TeamBScore       int               `json:"teamBScore"`
	RegisteredDrones []RegisteredDrone `json:"registeredDrones"`
	Timer            Timer             `json:"timer"`
	StartedAt        *time.Time        `json:"startedAt,omitempty"`
	EndedAt          *time.Time        `json:"endedAt,omitempty"`
}

// Score returns the round-local score of team.
func (r *Round) Score(team types.Team) int {
	if team == types.TeamB {
		return r.TeamBScore
	}
	return r.TeamAScore
}

// DronesOf returns the round's registered drones flying for team.
func (r *Round) DronesOf(team types.Team) []RegisteredDrone {
	out := make([]RegisteredDrone, 0, len(r.RegisteredDrones)/2)
	for _, d := range r.RegisteredDrones {
		if d.Team == team {
			out = append(out, d)
		}
	}
	return out
}

// ManOfTheMatch records the match's best pilot.
type ManOfTheMatch struct {
	Pilot   string     `json:"pilot"`
	Team    types.Team `json:"team"`
	DroneID string     `json:"droneId,omitempty"`
	Score   float64    `json:"score"`
	Manual  bool       `json:"manual"`
}

// Match is the aggregate all round operations serialize on. Settings that
// govern play are copied from the tournament when the match is scheduled.
type Match struct {
	ID               string            `json:"id"`
	TournamentID     string            `json:"tournamentId"`
	TeamAID          string            `json:"teamAId"`
	TeamBID          string            `json:"teamBId"`
	Status           types.MatchStatus `json:"status"`
	CurrentRound     int               `json:"currentRound"`
	Rounds           []Round           `json:"rounds"`
	TeamAScore       int               `json:"teamAScore"`
	TeamBScore       int               `json:"teamBScore"`
	Winner           types.Team        `json:"winner,omitempty"`
	ManOfTheMatch    *ManOfTheMatch    `json:"manOfTheMatch,omitempty"`
	RoundDuration    time.Duration     `json:"roundDuration"`
	RegulationRounds int               `json:"regulationRounds"`
	HasTiebreaker    bool              `json:"hasTiebreaker"`
	TeamSize         int               `json:"teamSize"`
	ScheduledTime    *time.Time        `json:"scheduledTime,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
}

// Round returns the round with number n, or nil.
func (m *Match) Round(n int) *Round {
	for i := range m.Rounds {
		if m.Rounds[i].RoundNumber == n {
			return &m.Rounds[i]
		}
	}
	return nil
}

// ActiveRound returns the round in progress, or nil.
func (m *Match) ActiveRound() *Round {
	for i := range m.Rounds {
		if m.Rounds[i].Status == types.RoundInProgress {
			return &m.Rounds[i]
		}
	}
	return nil
}

// LastCompletedRound returns the highest-numbered completed round, or nil.
func (m *Match) LastCompletedRound() *Round {
	var last *Round
	for i := range m.Rounds {
		if m.Rounds[i].Status == types.RoundCompleted {
			if last == nil || m.Rounds[i].RoundNumber > last.RoundNumber {
				last = &m.Rounds[i]
			}
		}
	}
	return last
}

// TeamID returns the team id playing as side.
func (m *Match) TeamID(side types.Team) string {
	if side == types.TeamB {
		return m.TeamBID
	}
	return m.TeamAID
}

// RecomputeScores sets the aggregate scores from the round scores.
func (m *Match) RecomputeScores() {
	a, b := 0, 0
	for i := range m.Rounds {
		a += m.Rounds[i].TeamAScore
		b += m.Rounds[i].TeamBScore
	}
	m.TeamAScore, m.TeamBScore = a, b
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Rounds = make([]Round, len(m.Rounds))
	for i := range m.Rounds {
		r := m.Rounds[i]
		r.RegisteredDrones = append([]RegisteredDrone(nil), r.RegisteredDrones...)
		r.Timer.StartTime = cloneTime(r.Timer.StartTime)
		r.StartedAt = cloneTime(r.StartedAt)
		r.EndedAt = cloneTime(r.EndedAt)
		c.Rounds[i] = r
	}
	if m.ManOfTheMatch != nil {
		mom := *m.ManOfTheMatch
		c.ManOfTheMatch = &mom
	}
	c.ScheduledTime = cloneTime(m.ScheduledTime)
	c.CompletedAt = cloneTime(m.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
