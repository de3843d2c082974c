package worker

import (
	"context"

	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/pkg/logger"
)

// LogPublisher stands in for a broker when none is configured: commands are
// logged and considered delivered.
type LogPublisher struct {
	log logger.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{log: logger.Get().Named("command-log")}
}

// Publish logs cmd.
func (p *LogPublisher) Publish(ctx context.Context, cmd model.HardwareCommand) error { //nolint:gocritic // hugeParam: commands travel by value
	p.log.Info(ctx, "hardware command (no broker configured)",
		logger.String("drone_id", cmd.DroneID),
		logger.String("command", string(cmd.Command)),
		logger.String("match_id", cmd.MatchID),
		logger.Int("round", cmd.RoundNumber))
	return nil
}
