// Package lineup validates per-round drone assignments against team rosters
// and the drone catalog.
package lineup

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
)

// Assignment binds a pilot and a drone to one position of a team.
type Assignment struct {
	Position types.Role `json:"position"`
	Pilot    string     `json:"pilot"`
	DroneID  string     `json:"droneId"`
}

// Lineup is the ordered assignment list of both teams.
type Lineup struct {
	TeamA []Assignment `json:"teamA"`
	TeamB []Assignment `json:"teamB"`
}

// Rosters are the two teams whose pilots may be assigned.
type Rosters struct {
	TeamA *model.Team
	TeamB *model.Team
}

// DroneDirectory resolves a drone id to its declared role.
type DroneDirectory interface {
	LookupDrone(ctx context.Context, droneID string) (model.Drone, bool, error)
}

// Validator runs the lineup checks fail-fast, in a fixed order.
type Validator struct {
	drones DroneDirectory
}

// New creates a Validator over a drone directory.
func New(drones DroneDirectory) *Validator {
	return &Validator{drones: drones}
}

type slot struct {
	team types.Team
	Assignment
}

// Validate checks lin for a match fielding teamSize drones per side and
// returns the registered drones in lineup order (team A first). The first
// violation found is returned as a *Violation.
//
// Checks run in this order, each over the whole lineup:
//  0. each team fills exactly the formation's positions
//  1. every position has both a pilot and a drone
//  2. no drone id appears twice across both teams
//  3. each drone's declared role matches its position
//  4. each pilot is on the roster with the position's role or All-rounder
func (v *Validator) Validate(ctx context.Context, teamSize int, rosters Rosters, lin Lineup) ([]model.RegisteredDrone, error) {
	slots := make([]slot, 0, len(lin.TeamA)+len(lin.TeamB))
	for _, a := range lin.TeamA {
		slots = append(slots, slot{team: types.TeamA, Assignment: normalize(a)})
	}
	for _, a := range lin.TeamB {
		slots = append(slots, slot{team: types.TeamB, Assignment: normalize(a)})
	}

	if err := checkShape(teamSize, lin); err != nil {
		return nil, err
	}

	for _, s := range slots {
		if s.Pilot == "" || s.DroneID == "" {
			return nil, s.violation(ErrIncompleteAssignment, "position needs both a pilot and a drone")
		}
	}

	seen := make(map[string]types.Team, len(slots))
	for _, s := range slots {
		key := strings.ToUpper(s.DroneID)
		if first, dup := seen[key]; dup {
			return nil, s.violation(ErrDuplicateDrone, "drone already assigned to team %s", first)
		}
		seen[key] = s.team
	}

	drones := make([]model.Drone, len(slots))
	for i, s := range slots {
		d, ok, err := v.drones.LookupDrone(ctx, s.DroneID)
		if err != nil {
			return nil, fmt.Errorf("lookup drone %s: %w", s.DroneID, err)
		}
		if !ok {
			return nil, s.violation(ErrUnknownDrone, "drone is neither catalogued nor bound to a device")
		}
		if d.Role != s.Position {
			return nil, s.violation(ErrDroneRoleMismatch, "drone role is %s", d.Role)
		}
		drones[i] = d
	}

	for _, s := range slots {
		roster := rosters.TeamA
		if s.team == types.TeamB {
			roster = rosters.TeamB
		}
		if roster == nil {
			return nil, s.violation(ErrPilotNotOnRoster, "team has no roster")
		}
		m, ok := roster.Member(s.Pilot)
		if !ok {
			return nil, s.violation(ErrPilotNotOnRoster, "pilot is not on the %s roster", roster.Name)
		}
		if m.Role != s.Position && m.Role != types.RoleAllRounder {
			return nil, s.violation(ErrPilotRoleMismatch, "pilot roster role is %s", m.Role)
		}
	}

	out := make([]model.RegisteredDrone, len(slots))
	for i, s := range slots {
		specs := drones[i].Specifications
		if specs.IsZero() {
			specs = model.DefaultSpecs(drones[i].Role)
		}
		out[i] = model.RegisteredDrone{
			DroneID:        drones[i].DroneID,
			Team:           s.team,
			Role:           s.Position,
			Pilot:          s.Pilot,
			Specifications: specs,
		}
	}
	return out, nil
}

func checkShape(teamSize int, lin Lineup) error {
	formation := model.Formation(teamSize)
	for _, side := range []struct {
		team types.Team
		list []Assignment
	}{{types.TeamA, lin.TeamA}, {types.TeamB, lin.TeamB}} {
		if len(side.list) != len(formation) {
			return &Violation{Rule: ErrLineupShape, Team: side.team,
				Detail: fmt.Sprintf("team fields %d positions, formation needs %d", len(side.list), len(formation))}
		}
		want := make(map[types.Role]int, len(formation))
		for _, r := range formation {
			want[r]++
		}
		for _, a := range side.list {
			pos := normalize(a).Position
			if want[pos] == 0 {
				return &Violation{Rule: ErrLineupShape, Team: side.team, Position: pos,
					Detail: "position is not in the formation or is filled twice"}
			}
			want[pos]--
		}
	}
	return nil
}

func normalize(a Assignment) Assignment {
	if r, ok := types.ParseRole(string(a.Position)); ok {
		a.Position = r
	}
	a.Pilot = strings.TrimSpace(a.Pilot)
	a.DroneID = strings.ToUpper(strings.TrimSpace(a.DroneID))
	return a
}

func (s slot) violation(rule error, format string, args ...any) *Violation {
	return &Violation{
		Rule:     rule,
		Team:     s.team,
		Position: s.Position,
		DroneID:  s.DroneID,
		Pilot:    s.Pilot,
		Detail:   fmt.Sprintf(format, args...),
	}
}
