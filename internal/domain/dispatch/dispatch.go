// Package dispatch sends a completed round's telemetry to the external
// analysis service and turns the answer into drone reports.
//
// A failed call is contained here: it is logged, counted and reported as an
// unavailable outcome, and no report of the round is written.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/scoring"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/logger"
	"github.com/okian/dronesoccer/pkg/metrics"
)

// Mode selects how a round is sent to the analysis service.
type Mode string

const (
	// ModeBatch sends both teams in one /batch-analyze call.
	ModeBatch Mode = "batch"
	// ModePerTeam sends one /analyze call per team, concurrently.
	ModePerTeam Mode = "per_team"
)

// Outcome statuses.
const (
	StatusAnalysed    = "analysed"
	StatusUnavailable = "unavailable"
)

const gradeUnavailable = "N/A"

var (
	notRegisteredHints = []string{
		"Register the ESP device in the admin panel",
		"Assign its MAC address to this drone id",
	}
	disconnectedHints = []string{
		"Check the ESP32 power supply",
		"Verify the WiFi connection",
		"Ensure the device was online during the round",
		"Check the serial monitor for connection errors",
	}
)

// Analyzer is the external analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, req TeamPayload) (TeamResult, error)
	BatchAnalyze(ctx context.Context, req BatchPayload) (BatchResult, error)
	Health(ctx context.Context) (Health, error)
}

// TelemetrySource returns a round's samples keyed by drone id.
type TelemetrySource interface {
	RoundTelemetry(ctx context.Context, matchID string, round int) (map[string][]model.TelemetrySample, error)
}

// DeviceLookup resolves the ESP device bound to a drone.
type DeviceLookup interface {
	LookupByDrone(ctx context.Context, droneID string) (model.ESPDevice, bool, error)
}

// ReportWriter replaces a round's reports as a unit.
type ReportWriter interface {
	ReplaceReports(ctx context.Context, matchID string, round int, reports []model.DroneReport) error
}

// Outcome summarizes one dispatch.
type Outcome struct {
	MatchID       string        `json:"matchId"`
	RoundNumber   int           `json:"roundNumber"`
	Mode          Mode          `json:"mode"`
	Status        string        `json:"status"`
	Reports       int           `json:"reports"`
	Analysed      int           `json:"analysed"`
	Disconnected  int           `json:"disconnected"`
	NotRegistered int           `json:"notRegistered"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Dispatcher runs round analysis.
type Dispatcher struct {
	analyzer  Analyzer
	telemetry TelemetrySource
	devices   DeviceLookup
	reports   ReportWriter
	mode      Mode
	clock     clockwork.Clock
	log       logger.Logger
	newID     func() string
}

// New creates a Dispatcher in batch mode.
func New(analyzer Analyzer, telemetry TelemetrySource, devices DeviceLookup, reports ReportWriter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		analyzer:  analyzer,
		telemetry: telemetry,
		devices:   devices,
		reports:   reports,
		mode:      ModeBatch,
		clock:     clockwork.NewRealClock(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Get().Named("dispatch")
	}
	return d
}

// Mode returns the configured dispatch mode.
func (d *Dispatcher) Mode() Mode { return d.mode }

// Health probes the analysis service. It never gates Dispatch.
func (d *Dispatcher) Health(ctx context.Context) (Health, error) {
	return d.analyzer.Health(ctx)
}

// pending is a registered drone awaiting its report.
type pending struct {
	drone  model.RegisteredDrone
	teamID string
	status types.ReportStatus
	logs   []model.TelemetrySample
}

// Dispatch analyses completed round n of match. The match is a snapshot
// the caller no longer mutates. A service failure returns an unavailable
// outcome together with an error wrapping ErrAnalysisUnavailable; storage
// failures return a plain error.
func (d *Dispatcher) Dispatch(ctx context.Context, match *model.Match, n int) (Outcome, error) {
	start := d.clock.Now()
	out := Outcome{MatchID: match.ID, RoundNumber: n, Mode: d.mode}

	r := match.Round(n)
	if r == nil || r.Status != types.RoundCompleted {
		return out, failure.Wrapf(ErrRoundNotCompleted, "match %s round %d", match.ID, n)
	}

	samples, err := d.telemetry.RoundTelemetry(ctx, match.ID, n)
	if err != nil {
		return out, failure.Wrap("load telemetry", err)
	}
	drones, err := d.classify(ctx, match, r, samples)
	if err != nil {
		return out, err
	}

	results, averages, err := d.call(ctx, match, n, drones)
	out.Duration = d.clock.Since(start)
	if err != nil {
		out.Status = StatusUnavailable
		out.Error = err.Error()
		metrics.RecordAnalysisDispatch(string(d.mode), "failed")
		d.log.Warn(ctx, "analysis unavailable, round stays completed without reports",
			logger.String("match_id", match.ID), logger.Int("round", n),
			logger.String("mode", string(d.mode)), logger.Error(err))
		return out, err
	}

	reports := d.build(match, n, drones, results, averages)
	if err := d.reports.ReplaceReports(ctx, match.ID, n, reports); err != nil {
		metrics.RecordAnalysisDispatch(string(d.mode), "store_failed")
		return out, failure.Wrap("write reports", err)
	}

	out.Status = StatusAnalysed
	out.Reports = len(reports)
	for _, rep := range reports {
		switch rep.Status {
		case types.ReportAnalysed:
			out.Analysed++
		case types.ReportDisconnected:
			out.Disconnected++
		case types.ReportNotRegistered:
			out.NotRegistered++
		}
	}
	metrics.RecordAnalysisDispatch(string(d.mode), "ok")
	metrics.RecordAnalysisReports(string(types.ReportAnalysed), out.Analysed)
	metrics.RecordAnalysisReports(string(types.ReportDisconnected), out.Disconnected)
	metrics.RecordAnalysisReports(string(types.ReportNotRegistered), out.NotRegistered)
	d.log.Info(ctx, "round analysed",
		logger.String("match_id", match.ID), logger.Int("round", n),
		logger.Int("analysed", out.Analysed), logger.Int("disconnected", out.Disconnected),
		logger.Int("not_registered", out.NotRegistered), logger.Duration("took", out.Duration))
	return out, nil
}

func (d *Dispatcher) classify(ctx context.Context, match *model.Match, r *model.Round, samples map[string][]model.TelemetrySample) ([]pending, error) {
	out := make([]pending, 0, len(r.RegisteredDrones))
	for _, rd := range r.RegisteredDrones {
		p := pending{drone: rd, teamID: match.TeamID(rd.Team)}
		_, bound, err := d.devices.LookupByDrone(ctx, rd.DroneID)
		if err != nil {
			return nil, failure.Wrap("lookup device", err)
		}
		logs := samples[strings.ToUpper(rd.DroneID)]
		switch {
		case !bound:
			p.status = types.ReportNotRegistered
		case len(logs) == 0:
			p.status = types.ReportDisconnected
		default:
			p.status = types.ReportAnalysed
			p.logs = logs
		}
		out = append(out, p)
	}
	return out, nil
}

// call returns results keyed by drone id. The service is always called,
// with empty drone lists for teams that sent nothing, so marker reports are
// only written after it answered.
func (d *Dispatcher) call(ctx context.Context, match *model.Match, n int, drones []pending) (map[string]DroneResult, map[types.Team]float64, error) {
	teams := map[types.Team]*TeamPayload{}
	for _, side := range []types.Team{types.TeamA, types.TeamB} {
		teams[side] = &TeamPayload{MatchID: match.ID, TeamID: match.TeamID(side), RoundNo: n, Drones: []DronePayload{}}
	}
	for _, p := range drones {
		if p.status != types.ReportAnalysed {
			continue
		}
		t := teams[p.drone.Team]
		t.Drones = append(t.Drones, DronePayload{DroneID: p.drone.DroneID, Logs: p.logs})
	}

	results := map[string]DroneResult{}
	averages := map[types.Team]float64{}

	collect := func(side types.Team, tr TeamResult) {
		for _, dr := range tr.Drones {
			results[strings.ToUpper(dr.DroneID)] = dr
		}
		averages[side] = tr.TeamAverage
	}

	switch d.mode {
	case ModePerTeam:
		var got [2]TeamResult
		g, gctx := errgroup.WithContext(ctx)
		for i, side := range []types.Team{types.TeamA, types.TeamB} {
			g.Go(func() error {
				res, err := timed(d, "analyze", func() (TeamResult, error) {
					return d.analyzer.Analyze(gctx, *teams[side])
				})
				got[i] = res
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, unavailable(err)
		}
		collect(types.TeamA, got[0])
		collect(types.TeamB, got[1])
	default:
		batch := BatchPayload{MatchID: match.ID, Teams: []TeamPayload{*teams[types.TeamA], *teams[types.TeamB]}}
		res, err := timed(d, "batch_analyze", func() (BatchResult, error) {
			return d.analyzer.BatchAnalyze(ctx, batch)
		})
		if err != nil {
			return nil, nil, unavailable(err)
		}
		for i, tr := range res.Results {
			side := types.TeamA
			switch {
			case tr.TeamID == match.TeamBID && tr.TeamID != match.TeamAID:
				side = types.TeamB
			case tr.TeamID != match.TeamAID && i == 1:
				side = types.TeamB
			}
			collect(side, tr)
		}
	}
	return results, averages, nil
}

func timed[T any](d *Dispatcher, endpoint string, fn func() (T, error)) (T, error) {
	start := d.clock.Now()
	res, err := fn()
	metrics.RecordAnalysisLatency(endpoint, d.clock.Since(start).Seconds())
	return res, err
}

func (d *Dispatcher) build(match *model.Match, n int, drones []pending, results map[string]DroneResult, averages map[types.Team]float64) []model.DroneReport {
	now := d.clock.Now()
	reports := make([]model.DroneReport, 0, len(drones))
	for _, p := range drones {
		rep := model.DroneReport{
			ID:          d.newID(),
			MatchID:     match.ID,
			RoundNumber: n,
			DroneID:     p.drone.DroneID,
			Team:        p.drone.Team,
			TeamID:      p.teamID,
			Pilot:       p.drone.Pilot,
			Role:        p.drone.Role,
			Status:      p.status,
			Grade:       gradeUnavailable,
			TeamAverage: averages[p.drone.Team],
			CreatedAt:   now,
		}
		switch p.status {
		case types.ReportNotRegistered:
			rep.Issues = []string{"ESP hardware not registered for this drone"}
			rep.Hints = notRegisteredHints
		case types.ReportDisconnected:
			rep.Issues = []string{"No telemetry received during the round"}
			rep.Hints = disconnectedHints
		case types.ReportAnalysed:
			res, ok := results[strings.ToUpper(p.drone.DroneID)]
			if !ok {
				rep.Status = types.ReportDisconnected
				rep.Issues = []string{"Analysis returned no result for this drone"}
				rep.Hints = disconnectedHints
				break
			}
			rep.StabilityScore = res.StabilityScore
			rep.Classification = res.Classification
			rep.Grade = scoring.Grade(res.StabilityScore)
			rep.Issues = res.Issues
			rep.Metrics = model.DroneMetrics{
				Variance:   res.Variance,
				Smoothness: res.Smoothness,
				Spikes:     res.Spikes,
				DataPoints: res.DataPoints,
			}
		}
		reports = append(reports, rep)
	}
	return reports
}

func unavailable(err error) error {
	if errors.Is(err, ErrAnalysisUnavailable) {
		return err
	}
	return failure.Wrapf(ErrAnalysisUnavailable, "%v", err)
}
