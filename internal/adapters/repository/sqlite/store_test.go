package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/dronesoccer/internal/adapters/repository"
	"github.com/okian/dronesoccer/internal/adapters/repository/sqlite"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
)

func open(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestSQLiteMatches(t *testing.T) {
	Convey("Given a fresh sqlite store", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "dronesoccer.db")
		s := open(t, path)
		Reset(func() { _ = s.Close() })

		t0 := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
		m := &model.Match{
			ID: "m1", TournamentID: "t1", TeamAID: "ta", TeamBID: "tb",
			Status: types.MatchInProgress, CurrentRound: 1, CreatedAt: t0,
			RoundDuration: 3 * time.Minute,
			Rounds: []model.Round{{
				RoundNumber: 1, Status: types.RoundInProgress, TeamAScore: 2,
				Timer: model.Timer{Status: types.TimerPaused, Elapsed: 45 * time.Second},
			}},
		}
		So(s.PutMatch(ctx, m), ShouldBeNil)
		So(s.PutMatch(ctx, &model.Match{ID: "m0", TournamentID: "t2", CreatedAt: t0.Add(-time.Hour)}), ShouldBeNil)

		Convey("When the match is read back", func() {
			got, ok, err := s.GetMatch(ctx, "m1")

			Convey("Then rounds and timer state survive", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(got.Rounds[0].TeamAScore, ShouldEqual, 2)
				So(got.Rounds[0].Timer.Elapsed, ShouldEqual, 45*time.Second)
				So(got.RoundDuration, ShouldEqual, 3*time.Minute)
				So(got.CreatedAt.Equal(t0), ShouldBeTrue)
			})
		})

		Convey("When an unknown match is read", func() {
			got, ok, err := s.GetMatch(ctx, "nope")

			Convey("Then it is simply not found", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(got, ShouldBeNil)
			})
		})

		Convey("When matches are listed", func() {
			all, _ := s.ListMatches(ctx, "")
			t1, _ := s.ListMatches(ctx, "t1")

			Convey("Then they come in creation order", func() {
				So(all, ShouldHaveLength, 2)
				So(all[0].ID, ShouldEqual, "m0")
				So(t1, ShouldHaveLength, 1)
			})
		})

		Convey("When the current pointer is swapped and its match deleted", func() {
			prev1, err1 := s.SwapCurrentMatch(ctx, "m0")
			prev2, err2 := s.SwapCurrentMatch(ctx, "m1")
			ok, err3 := s.DeleteMatch(ctx, "m1")
			cur, _ := s.CurrentMatch(ctx)

			Convey("Then swaps return the previous holder and deletion clears it", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(err3, ShouldBeNil)
				So(prev1, ShouldBeEmpty)
				So(prev2, ShouldEqual, "m0")
				So(ok, ShouldBeTrue)
				So(cur, ShouldBeEmpty)
			})
		})

		Convey("When the store is reopened", func() {
			_, _ = s.SwapCurrentMatch(ctx, "m1")
			So(s.Close(), ShouldBeNil)
			s2 := open(t, path)
			defer s2.Close()
			cur, err := s2.CurrentMatch(ctx)
			got, ok, _ := s2.GetMatch(ctx, "m1")

			Convey("Then migrations are not re-applied and data persists", func() {
				So(err, ShouldBeNil)
				So(cur, ShouldEqual, "m1")
				So(ok, ShouldBeTrue)
				So(got.Status, ShouldEqual, types.MatchInProgress)
			})
		})

		Convey("When the store is closed", func() {
			So(s.Close(), ShouldBeNil)
			_, _, err := s.GetMatch(ctx, "m1")

			Convey("Then calls fail with ErrStoreClosed", func() {
				So(errors.Is(err, repository.ErrStoreClosed), ShouldBeTrue)
			})
		})
	})
}

func TestSQLiteDevicesReportsTelemetry(t *testing.T) {
	Convey("Given a sqlite store with devices", t, func() {
		ctx := context.Background()
		s := open(t, filepath.Join(t.TempDir(), "dronesoccer.db"))
		Reset(func() { _ = s.Close() })

		So(s.PutDevice(ctx, model.ESPDevice{MACAddress: "AA:01", DroneID: "R2", Role: types.RoleStriker}), ShouldBeNil)
		So(s.PutDevice(ctx, model.ESPDevice{MACAddress: "AA:02", DroneID: "B1"}), ShouldBeNil)

		Convey("Then devices are found by drone id in any case", func() {
			d, ok, err := s.DeviceByDrone(ctx, "r2")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(d.Role, ShouldEqual, types.RoleStriker)
			list, _ := s.ListDevices(ctx)
			So(list, ShouldHaveLength, 2)
			So(list[0].DroneID, ShouldEqual, "B1")
		})

		Convey("When a device is deleted twice", func() {
			first, _ := s.DeleteDevice(ctx, "AA:01")
			second, _ := s.DeleteDevice(ctx, "AA:01")

			Convey("Then only the first reports a deletion", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
			})
		})

		Convey("When a round's reports are replaced", func() {
			So(s.ReplaceReports(ctx, "m1", 1, []model.DroneReport{
				{ID: "a", DroneID: "R1", RoundNumber: 1},
				{ID: "b", DroneID: "B1", RoundNumber: 1},
			}), ShouldBeNil)
			So(s.ReplaceReports(ctx, "m1", 2, []model.DroneReport{{ID: "c", DroneID: "R1", RoundNumber: 2}}), ShouldBeNil)
			So(s.ReplaceReports(ctx, "m1", 1, []model.DroneReport{{
				ID: "d", DroneID: "R3", RoundNumber: 1, Status: types.ReportAnalysed,
				Metrics: model.DroneMetrics{Spikes: map[string]int{"x": 2}, DataPoints: 40},
			}}), ShouldBeNil)
			r1, _ := s.ListReports(ctx, "m1", 1)
			all, _ := s.ListReports(ctx, "m1", 0)

			Convey("Then only the latest run of round 1 remains", func() {
				So(r1, ShouldHaveLength, 1)
				So(r1[0].DroneID, ShouldEqual, "R3")
				So(r1[0].Metrics.Spikes["x"], ShouldEqual, 2)
				So(all, ShouldHaveLength, 2)
				So(all[1].RoundNumber, ShouldEqual, 2)
			})
		})

		Convey("When a report without id is written", func() {
			err := s.ReplaceReports(ctx, "m1", 1, []model.DroneReport{{DroneID: "R1"}})

			Convey("Then the whole replacement is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidRecord), ShouldBeTrue)
			})
		})

		Convey("When telemetry arrives in batches", func() {
			b := model.TelemetryBatch{MatchID: "m1", RoundNumber: 1, DroneID: "R1",
				Samples: []model.TelemetrySample{{Timestamp: 1, X: 0.5}}}
			So(s.AppendTelemetry(ctx, b), ShouldBeNil)
			b.Samples = []model.TelemetrySample{{Timestamp: 2, X: 0.7}, {Timestamp: 3, Roll: 1.5}}
			So(s.AppendTelemetry(ctx, b), ShouldBeNil)
			So(s.AppendTelemetry(ctx, model.TelemetryBatch{MatchID: "m1", RoundNumber: 2, DroneID: "R1",
				Samples: []model.TelemetrySample{{Timestamp: 9}}}), ShouldBeNil)
			got, err := s.RoundTelemetry(ctx, "m1", 1)

			Convey("Then the round's samples come back in arrival order", func() {
				So(err, ShouldBeNil)
				So(got["R1"], ShouldHaveLength, 3)
				So(got["R1"][2].Roll, ShouldEqual, 1.5)
			})

			Convey("Then deleting the match telemetry clears every round", func() {
				So(s.DeleteTelemetry(ctx, "m1"), ShouldBeNil)
				r2, _ := s.RoundTelemetry(ctx, "m1", 2)
				So(r2, ShouldBeEmpty)
			})
		})
	})
}

func TestSQLiteReferenceData(t *testing.T) {
	Convey("Given tournaments, teams and drones", t, func() {
		ctx := context.Background()
		s := open(t, filepath.Join(t.TempDir(), "dronesoccer.db"))
		Reset(func() { _ = s.Close() })

		So(s.PutTournament(ctx, model.Tournament{ID: "t1", Settings: model.TournamentSettings{MatchType: types.BestOf3, HasTiebreaker: true}}), ShouldBeNil)
		So(s.PutTeam(ctx, model.Team{ID: "ta", Members: []model.Member{{Name: "Ana", Role: types.RoleStriker}}}), ShouldBeNil)
		So(s.PutDrone(ctx, model.Drone{DroneID: "r1", Role: types.RoleForward}), ShouldBeNil)
		So(s.PutDrone(ctx, model.Drone{DroneID: "B1", Role: types.RoleKeeper}), ShouldBeNil)

		Convey("Then each reads back", func() {
			tr, ok, _ := s.GetTournament(ctx, "t1")
			So(ok, ShouldBeTrue)
			So(tr.Settings.HasTiebreaker, ShouldBeTrue)
			team, _, _ := s.GetTeam(ctx, "ta")
			So(team.Members, ShouldHaveLength, 1)
			d, ok, _ := s.GetDrone(ctx, "R1")
			So(ok, ShouldBeTrue)
			So(d.Role, ShouldEqual, types.RoleForward)
			list, _ := s.ListDrones(ctx)
			So(list, ShouldHaveLength, 2)
		})

		Convey("Then a tournament without id is rejected", func() {
			So(errors.Is(s.PutTournament(ctx, model.Tournament{}), repository.ErrInvalidRecord), ShouldBeTrue)
		})
	})
}
