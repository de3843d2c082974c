// Package model contains the aggregates the engine reads and mutates.
package model

import (
	"strings"
	"time"

	"github.com/okian/dronesoccer/internal/domain/types"
)

// Default tournament settings.
const (
	DefaultRoundMinutes = 3
	DefaultTeamSize     = 4
)

// TournamentSettings configures every match scheduled in a tournament.
type TournamentSettings struct {
	MatchType            types.MatchType `json:"matchType"`
	HasTiebreaker        bool            `json:"hasTiebreaker"`
	RoundDurationMinutes int             `json:"roundDuration"`
	TeamSize             int             `json:"teamSize"`
}

// Normalize fills zero values with defaults.
func (s TournamentSettings) Normalize() TournamentSettings {
	if s.MatchType == "" {
		s.MatchType = types.BestOf2
	}
	if s.RoundDurationMinutes <= 0 {
		s.RoundDurationMinutes = DefaultRoundMinutes
	}
	if s.TeamSize <= 0 {
		s.TeamSize = DefaultTeamSize
	}
	return s
}

// RoundDuration is the countdown length of each round.
func (s TournamentSettings) RoundDuration() time.Duration {
	return time.Duration(s.Normalize().RoundDurationMinutes) * time.Minute
}

// TotalRounds is the regulation rounds plus the optional tiebreaker.
func (s TournamentSettings) TotalRounds() int {
	n := s.Normalize().MatchType.RegulationRounds()
	if s.HasTiebreaker {
		n++
	}
	return n
}

// Formation returns the positions one team fields, in lineup order.
func Formation(teamSize int) []types.Role {
	if teamSize == 2 {
		return []types.Role{types.RoleStriker, types.RoleKeeper}
	}
	return []types.Role{types.RoleForward, types.RoleStriker, types.RoleDefender, types.RoleKeeper}
}

// Tournament owns the settings matches are created from.
type Tournament struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Settings TournamentSettings `json:"settings"`
}

// Member is a pilot on a team roster.
type Member struct {
	Name string     `json:"name"`
	Role types.Role `json:"role"`
}

// Team is a roster of pilots.
type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

// Member looks a pilot up by name, ignoring case and surrounding space.
func (t *Team) Member(name string) (Member, bool) {
	want := strings.TrimSpace(name)
	for _, m := range t.Members {
		if strings.EqualFold(strings.TrimSpace(m.Name), want) {
			return m, true
		}
	}
	return Member{}, false
}

// DroneSpecs describes a drone's physical characteristics.
type DroneSpecs struct {
	Speed           int `json:"speed"`
	Agility         int `json:"agility"`
	Stability       int `json:"stability"`
	BatteryCapacity int `json:"batteryCapacity"`
	Weight          int `json:"weight"`
}

// IsZero reports whether no specification was provided.
func (s DroneSpecs) IsZero() bool { return s == DroneSpecs{} }

var roleSpecs = map[types.Role]DroneSpecs{
	types.RoleForward:  {Speed: 150, Agility: 90, Stability: 70, BatteryCapacity: 2200, Weight: 250},
	types.RoleStriker:  {Speed: 160, Agility: 95, Stability: 65, BatteryCapacity: 2100, Weight: 240},
	types.RoleDefender: {Speed: 100, Agility: 75, Stability: 90, BatteryCapacity: 2800, Weight: 310},
	types.RoleKeeper:   {Speed: 120, Agility: 85, Stability: 80, BatteryCapacity: 2500, Weight: 280},
}

// DefaultSpecs returns the stock specification for a drone role.
func DefaultSpecs(role types.Role) DroneSpecs {
	return roleSpecs[role]
}

// Drone is a catalogued airframe with its declared role.
type Drone struct {
	DroneID        string     `json:"droneId"`
	Role           types.Role `json:"role"`
	Specifications DroneSpecs `json:"specifications"`
}
