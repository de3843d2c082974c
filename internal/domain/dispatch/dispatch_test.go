package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/dronesoccer/internal/adapters/repository"
	"github.com/okian/dronesoccer/internal/domain/dispatch"
	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	block    bool
	failTeam string
	batches  []dispatch.BatchPayload
	teams    []dispatch.TeamPayload
}

func score(p dispatch.TeamPayload) dispatch.TeamResult {
	res := dispatch.TeamResult{TeamID: p.TeamID}
	for i, d := range p.Drones {
		res.Drones = append(res.Drones, dispatch.DroneResult{
			DroneID:        d.DroneID,
			StabilityScore: 90 - float64(i*20),
			Classification: "Good",
			Issues:         []string{"No major issues detected"},
			DataPoints:     len(d.Logs),
		})
	}
	res.TeamAverage = 80
	return res
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req dispatch.TeamPayload) (dispatch.TeamResult, error) {
	f.mu.Lock()
	f.teams = append(f.teams, req)
	f.mu.Unlock()
	if req.TeamID == f.failTeam {
		return dispatch.TeamResult{}, errors.New("connection refused")
	}
	return score(req), nil
}

func (f *fakeAnalyzer) BatchAnalyze(ctx context.Context, req dispatch.BatchPayload) (dispatch.BatchResult, error) {
	f.mu.Lock()
	f.batches = append(f.batches, req)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return dispatch.BatchResult{}, ctx.Err()
	}
	out := dispatch.BatchResult{Success: true, MatchID: req.MatchID}
	for _, t := range req.Teams {
		out.Results = append(out.Results, score(t))
	}
	return out, nil
}

func (f *fakeAnalyzer) Health(context.Context) (dispatch.Health, error) {
	return dispatch.Health{Status: "healthy"}, nil
}

type fixture struct {
	ctx      context.Context
	store    *repository.MemoryStore
	analyzer *fakeAnalyzer
	match    *model.Match
}

func newFixture() fixture {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	match := &model.Match{
		ID: "m1", TeamAID: "ta", TeamBID: "tb",
		Rounds: []model.Round{{
			RoundNumber: 1,
			Status:      types.RoundCompleted,
			RegisteredDrones: []model.RegisteredDrone{
				{DroneID: "R1", Team: types.TeamA, Role: types.RoleStriker, Pilot: "Ana"},
				{DroneID: "R2", Team: types.TeamA, Role: types.RoleKeeper, Pilot: "Ben"},
				{DroneID: "B1", Team: types.TeamB, Role: types.RoleStriker, Pilot: "Fay"},
				{DroneID: "B2", Team: types.TeamB, Role: types.RoleKeeper, Pilot: "Gus"},
			},
		}},
	}
	// R1, R2 and B1 have devices; B2 has none. R2 sent no telemetry.
	for mac, id := range map[string]string{"AA:01": "R1", "AA:02": "R2", "AA:03": "B1"} {
		_ = store.PutDevice(ctx, model.ESPDevice{MACAddress: mac, DroneID: id})
	}
	for _, id := range []string{"R1", "B1"} {
		_ = store.AppendTelemetry(ctx, model.TelemetryBatch{MatchID: "m1", RoundNumber: 1, DroneID: id,
			Samples: []model.TelemetrySample{{X: 1}, {X: 2}}})
	}
	return fixture{ctx: ctx, store: store, analyzer: &fakeAnalyzer{}, match: match}
}

type deviceLookup struct{ store *repository.MemoryStore }

func (l deviceLookup) LookupByDrone(ctx context.Context, id string) (model.ESPDevice, bool, error) {
	return l.store.DeviceByDrone(ctx, id)
}

func (f fixture) dispatcher(opts ...dispatch.Option) *dispatch.Dispatcher {
	return dispatch.New(f.analyzer, f.store, deviceLookup{f.store}, f.store, opts...)
}

func TestDispatchBatch(t *testing.T) {
	Convey("Given a completed round with one drone of each liveness class", t, func() {
		f := newFixture()
		d := f.dispatcher()

		Convey("When the round is dispatched in batch mode", func() {
			out, err := d.Dispatch(f.ctx, f.match, 1)
			reports, _ := f.store.ListReports(f.ctx, "m1", 1)

			Convey("Then one call carries only drones with telemetry", func() {
				So(err, ShouldBeNil)
				So(f.analyzer.batches, ShouldHaveLength, 1)
				batch := f.analyzer.batches[0]
				So(batch.Teams, ShouldHaveLength, 2)
				So(batch.Teams[0].TeamID, ShouldEqual, "ta")
				So(batch.Teams[0].Drones, ShouldHaveLength, 1)
				So(batch.Teams[0].Drones[0].Logs, ShouldHaveLength, 2)
			})

			Convey("Then every registered drone gets a report", func() {
				So(out.Status, ShouldEqual, dispatch.StatusAnalysed)
				So(out.Analysed, ShouldEqual, 2)
				So(out.Disconnected, ShouldEqual, 1)
				So(out.NotRegistered, ShouldEqual, 1)
				So(reports, ShouldHaveLength, 4)

				byDrone := map[string]model.DroneReport{}
				for _, r := range reports {
					byDrone[r.DroneID] = r
				}
				So(byDrone["R1"].Status, ShouldEqual, types.ReportAnalysed)
				So(byDrone["R1"].Grade, ShouldEqual, "A+")
				So(byDrone["R1"].TeamAverage, ShouldEqual, 80.0)
				So(byDrone["R2"].Status, ShouldEqual, types.ReportDisconnected)
				So(byDrone["R2"].Hints, ShouldNotBeEmpty)
				So(byDrone["B2"].Status, ShouldEqual, types.ReportNotRegistered)
				So(byDrone["B2"].Grade, ShouldEqual, "N/A")
				So(byDrone["B1"].TeamID, ShouldEqual, "tb")
			})
		})

		Convey("When the analysis service times out", func() {
			f.analyzer.block = true
			ctx, cancel := context.WithTimeout(f.ctx, 20*time.Millisecond)
			defer cancel()
			out, err := d.Dispatch(ctx, f.match, 1)
			reports, _ := f.store.ListReports(f.ctx, "m1", 0)

			Convey("Then the outcome is unavailable and no report is written", func() {
				So(errors.Is(err, dispatch.ErrAnalysisUnavailable), ShouldBeTrue)
				So(failure.KindOf(err), ShouldEqual, failure.Unavailable)
				So(out.Status, ShouldEqual, dispatch.StatusUnavailable)
				So(out.Error, ShouldContainSubstring, "deadline exceeded")
				So(reports, ShouldBeEmpty)
			})
		})

		Convey("When the round is re-run after earlier reports", func() {
			_ = f.store.ReplaceReports(f.ctx, "m1", 1, []model.DroneReport{{DroneID: "OLD", RoundNumber: 1}})
			_, err := d.Dispatch(f.ctx, f.match, 1)
			reports, _ := f.store.ListReports(f.ctx, "m1", 1)

			Convey("Then the earlier reports are replaced, not merged", func() {
				So(err, ShouldBeNil)
				So(reports, ShouldHaveLength, 4)
				for _, r := range reports {
					So(r.DroneID, ShouldNotEqual, "OLD")
				}
			})
		})

		Convey("When the round is still in play", func() {
			f.match.Rounds[0].Status = types.RoundInProgress
			_, err := d.Dispatch(f.ctx, f.match, 1)

			Convey("Then nothing is sent", func() {
				So(errors.Is(err, dispatch.ErrRoundNotCompleted), ShouldBeTrue)
				So(f.analyzer.batches, ShouldBeEmpty)
			})
		})
	})
}

func TestDispatchPerTeam(t *testing.T) {
	Convey("Given a dispatcher in per-team mode", t, func() {
		f := newFixture()
		d := f.dispatcher(dispatch.WithMode(dispatch.ModePerTeam))

		Convey("When both teams are analysed", func() {
			out, err := d.Dispatch(f.ctx, f.match, 1)

			Convey("Then two single-team calls are made", func() {
				So(err, ShouldBeNil)
				So(f.analyzer.teams, ShouldHaveLength, 2)
				So(f.analyzer.teams[0].RoundNo, ShouldEqual, 1)
				So(out.Analysed, ShouldEqual, 2)
			})
		})

		Convey("When one team's call fails", func() {
			f.analyzer.failTeam = "tb"
			_, err := d.Dispatch(f.ctx, f.match, 1)
			reports, _ := f.store.ListReports(f.ctx, "m1", 1)

			Convey("Then the whole round is unavailable and nothing is written", func() {
				So(errors.Is(err, dispatch.ErrAnalysisUnavailable), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "connection refused")
				So(reports, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a round where no drone sent telemetry", t, func() {
		f := newFixture()
		_ = f.store.DeleteTelemetry(f.ctx, "m1")
		out, err := f.dispatcher().Dispatch(f.ctx, f.match, 1)

		Convey("Then the service is still called with empty drone lists", func() {
			So(err, ShouldBeNil)
			So(f.analyzer.batches, ShouldHaveLength, 1)
			So(f.analyzer.batches[0].Teams[0].Drones, ShouldBeEmpty)
			So(f.analyzer.batches[0].Teams[1].Drones, ShouldBeEmpty)
			So(out.Reports, ShouldEqual, 4)
			So(out.Analysed, ShouldEqual, 0)
		})
	})

	Convey("Given a round where no drone sent telemetry and the service is down", t, func() {
		f := newFixture()
		_ = f.store.DeleteTelemetry(f.ctx, "m1")
		f.analyzer.failTeam = "ta"
		out, err := f.dispatcher(dispatch.WithMode(dispatch.ModePerTeam)).Dispatch(f.ctx, f.match, 1)
		reports, _ := f.store.ListReports(f.ctx, "m1", 1)

		Convey("Then the round is unavailable and no marker is written", func() {
			So(errors.Is(err, dispatch.ErrAnalysisUnavailable), ShouldBeTrue)
			So(out.Status, ShouldEqual, dispatch.StatusUnavailable)
			So(f.analyzer.teams, ShouldHaveLength, 2)
			So(reports, ShouldBeEmpty)
		})
	})
}
