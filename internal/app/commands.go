package service

import (
	"context"

	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/logger"
	"github.com/okian/dronesoccer/pkg/metrics"
)

// CommandResult lists where a batch hardware command went. Delivery itself
// is not tracked.
type CommandResult struct {
	Command     types.Command `json:"command"`
	MatchID     string        `json:"matchId"`
	RoundNumber int           `json:"roundNumber"`
	Queued      []string      `json:"queued"`
	Skipped     []string      `json:"skipped"`
	Dropped     []string      `json:"dropped"`
}

// SendCommand queues cmd for every drone registered in the round it
// targets. START targets the round in progress; STOP and RESET fall back to
// the latest completed round. Drones without a device are skipped. Match
// and round state are never changed.
func (s *Service) SendCommand(ctx context.Context, matchID string, cmd types.Command) (CommandResult, error) {
	parsed, ok := types.ParseCommand(string(cmd))
	if !ok {
		return CommandResult{}, failure.Wrapf(ErrInvalidCommand, "got %q", cmd)
	}
	cmd = parsed
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return CommandResult{}, err
	}

	r := m.ActiveRound()
	if r == nil && cmd != types.CommandStart {
		r = m.LastCompletedRound()
	}
	if r == nil {
		return CommandResult{}, failure.Wrapf(ErrNoCommandRound, "%s needs a round in progress", cmd)
	}

	res := CommandResult{
		Command:     cmd,
		MatchID:     m.ID,
		RoundNumber: r.RoundNumber,
		Queued:      []string{},
		Skipped:     []string{},
		Dropped:     []string{},
	}
	now := s.clock.Now()
	for _, d := range r.RegisteredDrones {
		_, bound, err := s.registry.LookupByDrone(ctx, d.DroneID)
		if err != nil {
			return CommandResult{}, err
		}
		if !bound {
			res.Skipped = append(res.Skipped, d.DroneID)
			metrics.RecordHardwareCommand(string(cmd), "skipped")
			continue
		}
		hc := model.HardwareCommand{
			Command:     cmd,
			DroneID:     d.DroneID,
			MatchID:     m.ID,
			TeamID:      m.TeamID(d.Team),
			RoundNumber: r.RoundNumber,
			IssuedAt:    now,
		}
		if cmd == types.CommandStart {
			hc.ServerURL = s.serverURL
		}
		if !s.commands.Enqueue(ctx, hc) {
			res.Dropped = append(res.Dropped, d.DroneID)
			metrics.RecordHardwareCommand(string(cmd), "dropped")
			continue
		}
		res.Queued = append(res.Queued, d.DroneID)
		metrics.RecordHardwareCommand(string(cmd), "queued")
	}
	metrics.UpdateQueueSize(s.commands.Len(ctx))

	s.logger.Info(ctx, "hardware command queued",
		logger.String("match_id", m.ID), logger.Int("round", r.RoundNumber),
		logger.String("command", string(cmd)), logger.Int("queued", len(res.Queued)),
		logger.Int("skipped", len(res.Skipped)), logger.Int("dropped", len(res.Dropped)))
	return res, nil
}
