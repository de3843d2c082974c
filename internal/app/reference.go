package service

import (
	"context"
	"strings"

	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/metrics"
)

// PutTournament creates or replaces a tournament. Zero settings take their
// defaults. Matches already scheduled keep the settings they were created
// with.
func (s *Service) PutTournament(ctx context.Context, t model.Tournament) (model.Tournament, error) {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return model.Tournament{}, failure.Wrapf(ErrInvalidTournament, "id is required")
	}
	t.Settings = t.Settings.Normalize()
	if !t.Settings.MatchType.Valid() {
		return model.Tournament{}, failure.Wrapf(ErrInvalidTournament, "unknown match type %q", t.Settings.MatchType)
	}
	if t.Settings.TeamSize != 2 && t.Settings.TeamSize != 4 {
		return model.Tournament{}, failure.Wrapf(ErrInvalidTournament, "team size must be 2 or 4, got %d", t.Settings.TeamSize)
	}
	if err := s.store.PutTournament(ctx, t); err != nil {
		metrics.RecordStoreError("put_tournament")
		return model.Tournament{}, failure.Wrap("put tournament", err)
	}
	return t, nil
}

// GetTournament returns a tournament.
func (s *Service) GetTournament(ctx context.Context, id string) (model.Tournament, error) {
	t, ok, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return model.Tournament{}, failure.Wrap("get tournament", err)
	}
	if !ok {
		return model.Tournament{}, failure.Wrapf(ErrTournamentNotFound, "id %s", id)
	}
	return t, nil
}

// PutTeam creates or replaces a team roster.
func (s *Service) PutTeam(ctx context.Context, t model.Team) (model.Team, error) {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return model.Team{}, failure.Wrapf(ErrInvalidTeam, "id is required")
	}
	for i, m := range t.Members {
		t.Members[i].Name = strings.TrimSpace(m.Name)
		if t.Members[i].Name == "" {
			return model.Team{}, failure.Wrapf(ErrInvalidTeam, "member %d has no name", i+1)
		}
		if !m.Role.Valid() {
			return model.Team{}, failure.Wrapf(ErrInvalidTeam, "member %s has unknown role %q", m.Name, m.Role)
		}
	}
	if err := s.store.PutTeam(ctx, t); err != nil {
		metrics.RecordStoreError("put_team")
		return model.Team{}, failure.Wrap("put team", err)
	}
	return t, nil
}

// GetTeam returns a team roster.
func (s *Service) GetTeam(ctx context.Context, id string) (model.Team, error) {
	t, ok, err := s.store.GetTeam(ctx, id)
	if err != nil {
		return model.Team{}, failure.Wrap("get team", err)
	}
	if !ok {
		return model.Team{}, failure.Wrapf(ErrTeamNotFound, "id %s", id)
	}
	return t, nil
}

// PutDrone catalogues a drone. Missing specifications default from its role.
func (s *Service) PutDrone(ctx context.Context, d model.Drone) (model.Drone, error) {
	d.DroneID = strings.ToUpper(strings.TrimSpace(d.DroneID))
	if d.DroneID == "" {
		return model.Drone{}, failure.Wrapf(ErrInvalidDrone, "droneId is required")
	}
	if !d.Role.Playable() {
		return model.Drone{}, failure.Wrapf(ErrInvalidDrone, "role %q cannot fly a position", d.Role)
	}
	if d.Specifications.IsZero() {
		d.Specifications = model.DefaultSpecs(d.Role)
	}
	if err := s.store.PutDrone(ctx, d); err != nil {
		metrics.RecordStoreError("put_drone")
		return model.Drone{}, failure.Wrap("put drone", err)
	}
	return d, nil
}

// GetDrone returns a catalogued drone.
func (s *Service) GetDrone(ctx context.Context, droneID string) (model.Drone, error) {
	id := strings.ToUpper(strings.TrimSpace(droneID))
	d, ok, err := s.store.GetDrone(ctx, id)
	if err != nil {
		return model.Drone{}, failure.Wrap("get drone", err)
	}
	if !ok {
		return model.Drone{}, failure.Wrapf(ErrDroneNotFound, "id %s", id)
	}
	return d, nil
}

// ListDrones returns the drone catalog.
func (s *Service) ListDrones(ctx context.Context) ([]model.Drone, error) {
	out, err := s.store.ListDrones(ctx)
	if err != nil {
		return nil, failure.Wrap("list drones", err)
	}
	return out, nil
}

func (s *Service) rosters(ctx context.Context, m *model.Match) (*model.Team, *model.Team, error) {
	teams := make([]*model.Team, 0, 2)
	for _, side := range []types.Team{types.TeamA, types.TeamB} {
		t, err := s.GetTeam(ctx, m.TeamID(side))
		if err != nil {
			return nil, nil, err
		}
		teams = append(teams, &t)
	}
	return teams[0], teams[1], nil
}
