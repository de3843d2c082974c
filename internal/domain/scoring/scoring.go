// Package scoring derives grades, match outcomes and man of the match.
package scoring

import (
	"math"
	"sort"

	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
)

// Man of the match weighting of a pilot's average and best round.
const (
	averageWeight = 0.6
	bestWeight    = 0.4
)

var gradeFloors = []struct {
	floor float64
	grade string
}{
	{85, "A+"},
	{75, "A"},
	{65, "B+"},
	{55, "B"},
	{45, "C"},
}

// Grade maps a 0-100 stability score to a letter grade.
func Grade(score float64) string {
	for _, g := range gradeFloors {
		if score >= g.floor {
			return g.grade
		}
	}
	return "D"
}

// Outcome is the result of a match's aggregate score.
type Outcome struct {
	TeamAScore int
	TeamBScore int
	Winner     types.Team // empty on a tie
}

// Tied reports whether neither team leads.
func (o Outcome) Tied() bool { return o.Winner == "" }

// Label is "A", "B" or "draw".
func (o Outcome) Label() string {
	if o.Tied() {
		return "draw"
	}
	return string(o.Winner)
}

// Aggregate sums the scores of the match's completed rounds.
func Aggregate(m *model.Match) Outcome {
	var o Outcome
	for i := range m.Rounds {
		r := &m.Rounds[i]
		if r.Status != types.RoundCompleted {
			continue
		}
		o.TeamAScore += r.TeamAScore
		o.TeamBScore += r.TeamBScore
	}
	switch {
	case o.TeamAScore > o.TeamBScore:
		o.Winner = types.TeamA
	case o.TeamBScore > o.TeamAScore:
		o.Winner = types.TeamB
	}
	return o
}

// Average is the mean of scores, zero when empty, rounded to two decimals.
func Average(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return round2(sum / float64(len(scores)))
}

type pilotStats struct {
	pilot   string
	team    types.Team
	droneID string
	total   float64
	rounds  int
	best    float64
}

// ManOfTheMatch picks the pilot with the best average*0.6 + best*0.4 over
// analysed reports. Ties go to the alphabetically first pilot. It returns
// nil when no report was analysed.
func ManOfTheMatch(reports []model.DroneReport) *model.ManOfTheMatch {
	stats := map[string]*pilotStats{}
	for _, r := range reports {
		if r.Status != types.ReportAnalysed || r.Pilot == "" {
			continue
		}
		key := string(r.Team) + "/" + r.Pilot
		s, ok := stats[key]
		if !ok {
			s = &pilotStats{pilot: r.Pilot, team: r.Team}
			stats[key] = s
		}
		s.total += r.StabilityScore
		s.rounds++
		if r.StabilityScore >= s.best {
			s.best = r.StabilityScore
			s.droneID = r.DroneID
		}
	}
	if len(stats) == 0 {
		return nil
	}

	ranked := make([]*pilotStats, 0, len(stats))
	for _, s := range stats {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := ranked[i].score(), ranked[j].score()
		if si != sj {
			return si > sj
		}
		return ranked[i].pilot < ranked[j].pilot
	})

	top := ranked[0]
	return &model.ManOfTheMatch{
		Pilot:   top.pilot,
		Team:    top.team,
		DroneID: top.droneID,
		Score:   round2(top.score()),
	}
}

func (s *pilotStats) score() float64 {
	avg := s.total / float64(s.rounds)
	return avg*averageWeight + s.best*bestWeight
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
