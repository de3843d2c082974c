package service

import (
	"context"

	"github.com/okian/dronesoccer/internal/domain/dispatch"
	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/pkg/logger"
)

// RedispatchAnalysis re-runs analysis of completed round n on operator
// request. Unlike EndRound it returns the failure, so the operator sees why
// no reports were written.
func (s *Service) RedispatchAnalysis(ctx context.Context, matchID string, n int) (dispatch.Outcome, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return dispatch.Outcome{}, err
	}
	s.logger.Info(ctx, "analysis re-fetch requested", logger.String("match_id", matchID), logger.Int("round", n))
	return s.dispatcher.Dispatch(ctx, m, n)
}

// ListReports returns a match's drone reports; a round of zero lists all.
func (s *Service) ListReports(ctx context.Context, matchID string, n int) ([]model.DroneReport, error) {
	if _, err := s.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	out, err := s.store.ListReports(ctx, matchID, n)
	if err != nil {
		return nil, failure.Wrap("list reports", err)
	}
	return out, nil
}

// AnalysisHealth probes the analysis service for diagnostics.
func (s *Service) AnalysisHealth(ctx context.Context) (dispatch.Health, error) {
	return s.dispatcher.Health(ctx)
}
