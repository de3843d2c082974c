package service

import (
	"context"
	"strings"

	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/pkg/logger"
	"github.com/okian/dronesoccer/pkg/metrics"
)

// TelemetryAck answers a telemetry post.
type TelemetryAck struct {
	BatchID   string `json:"batchId,omitempty"`
	Accepted  int    `json:"accepted"`
	Duplicate bool   `json:"duplicate"`
}

// IngestTelemetry stores a drone's samples for a match round. A batch id
// seen before is acknowledged without storing it twice. Samples also count
// as a heartbeat of the drone's device.
func (s *Service) IngestTelemetry(ctx context.Context, b model.TelemetryBatch) (TelemetryAck, error) {
	b.DroneID = strings.ToUpper(strings.TrimSpace(b.DroneID))
	switch {
	case b.MatchID == "" || b.DroneID == "":
		return TelemetryAck{}, failure.Wrapf(ErrInvalidTelemetry, "matchId and droneId are required")
	case b.RoundNumber < 1:
		return TelemetryAck{}, failure.Wrapf(ErrInvalidTelemetry, "roundNumber must be positive, got %d", b.RoundNumber)
	case len(b.Samples) == 0:
		return TelemetryAck{}, failure.Wrapf(ErrInvalidTelemetry, "batch has no samples")
	}

	ack := TelemetryAck{BatchID: b.BatchID}
	if b.BatchID != "" && s.deduper.SeenAndRecord(ctx, b.BatchID) {
		metrics.RecordTelemetryDuplicate()
		s.logger.Debug(ctx, "duplicate telemetry batch", logger.String("batch_id", b.BatchID))
		ack.Duplicate = true
		return ack, nil
	}

	if err := s.checkTarget(ctx, b); err != nil {
		s.forget(ctx, b.BatchID)
		return TelemetryAck{}, err
	}
	if err := s.store.AppendTelemetry(ctx, b); err != nil {
		s.forget(ctx, b.BatchID)
		metrics.RecordStoreError("append_telemetry")
		return TelemetryAck{}, failure.Wrap("append telemetry", err)
	}
	if _, err := s.registry.HeartbeatByDrone(ctx, b.DroneID); err != nil {
		s.logger.Warn(ctx, "telemetry heartbeat failed", logger.String("drone_id", b.DroneID), logger.Error(err))
	}

	metrics.RecordTelemetrySamples(len(b.Samples))
	ack.Accepted = len(b.Samples)
	return ack, nil
}

func (s *Service) checkTarget(ctx context.Context, b model.TelemetryBatch) error {
	m, ok, err := s.store.GetMatch(ctx, b.MatchID)
	if err != nil {
		return failure.Wrap("load match", err)
	}
	if !ok {
		return failure.Wrapf(ErrUnknownTelemetry, "match %s", b.MatchID)
	}
	if m.Round(b.RoundNumber) == nil {
		return failure.Wrapf(ErrUnknownTelemetry, "match %s has no round %d", b.MatchID, b.RoundNumber)
	}
	return nil
}

func (s *Service) forget(ctx context.Context, batchID string) {
	if batchID != "" {
		s.deduper.Unrecord(ctx, batchID)
	}
}
