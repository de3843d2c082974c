package service_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/dronesoccer/internal/app"
	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/lineup"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/round"
	"github.com/okian/dronesoccer/internal/domain/types"
	"github.com/okian/dronesoccer/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var t0 = time.Date(2026, 6, 13, 15, 0, 0, 0, time.UTC)

// seed stores a 2v2 best-of-2 tournament with a tiebreaker, its two teams
// and four catalogued drones.
func seed(ctx context.Context, svc *service.Service) {
	_, err := svc.PutTournament(ctx, model.Tournament{ID: "cup", Settings: model.TournamentSettings{
		MatchType: types.BestOf2, HasTiebreaker: true, TeamSize: 2,
	}})
	So(err, ShouldBeNil)
	_, err = svc.PutTeam(ctx, model.Team{ID: "ta", Name: "Falcons", Members: []model.Member{
		{Name: "Ben", Role: types.RoleStriker}, {Name: "Dev", Role: types.RoleKeeper},
	}})
	So(err, ShouldBeNil)
	_, err = svc.PutTeam(ctx, model.Team{ID: "tb", Name: "Owls", Members: []model.Member{
		{Name: "Gus", Role: types.RoleStriker}, {Name: "Ivy", Role: types.RoleAllRounder},
	}})
	So(err, ShouldBeNil)
	for id, role := range map[string]types.Role{
		"r2": types.RoleStriker, "R4": types.RoleKeeper, "B2": types.RoleStriker, "B4": types.RoleKeeper,
	} {
		_, err := svc.PutDrone(ctx, model.Drone{DroneID: id, Role: role})
		So(err, ShouldBeNil)
	}
}

func newService(opts ...service.Option) (*service.Service, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(t0)
	svc := service.New(append([]service.Option{service.WithClock(clock), service.WithWorkerCount(1)}, opts...)...)
	seed(context.Background(), svc)
	return svc, clock
}

func newMatch(ctx context.Context, svc *service.Service) *model.Match {
	m, err := svc.CreateMatch(ctx, service.CreateMatchInput{TournamentID: "cup", TeamAID: "ta", TeamBID: "tb"})
	So(err, ShouldBeNil)
	return m
}

func validLineup() lineup.Lineup {
	return lineup.Lineup{
		TeamA: []lineup.Assignment{{Position: types.RoleStriker, Pilot: "Ben", DroneID: "R2"}, {Position: types.RoleKeeper, Pilot: "Dev", DroneID: "R4"}},
		TeamB: []lineup.Assignment{{Position: types.RoleStriker, Pilot: "Gus", DroneID: "B2"}, {Position: types.RoleKeeper, Pilot: "Ivy", DroneID: "B4"}},
	}
}

// play runs round n start to end with the given goals.
func play(ctx context.Context, svc *service.Service, id string, n, goalsA, goalsB int) {
	_, err := svc.RegisterDrones(ctx, id, n, validLineup())
	So(err, ShouldBeNil)
	_, err = svc.StartRound(ctx, id, n)
	So(err, ShouldBeNil)
	for range goalsA {
		_, err = svc.AdjustScore(ctx, id, n, types.TeamA, 1)
		So(err, ShouldBeNil)
	}
	for range goalsB {
		_, err = svc.AdjustScore(ctx, id, n, types.TeamB, 1)
		So(err, ShouldBeNil)
	}
	_, _, err = svc.EndRound(ctx, id, n)
	So(err, ShouldBeNil)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldBeFalse)
			So(stats["analysisMode"], ShouldEqual, "batch")
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(64),
			service.WithDedupeSize(128),
		)
		ctx := context.Background()

		Convey("When starting and stopping the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			stats := svc.GetStats(ctx)
			svc.Stop(ctx)

			Convey("Then the stats reflect the configuration", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["workerCount"], ShouldEqual, 4)
				So(stats["queueSize"], ShouldEqual, 64)
				So(stats["queueLength"], ShouldEqual, 0)
				So(svc.GetStats(ctx)["started"], ShouldBeFalse)
			})
		})
	})
}

func TestReferenceData(t *testing.T) {
	Convey("Given a seeded service", t, func() {
		ctx := context.Background()
		svc, _ := newService()

		Convey("Then drones are stored upper case with role specifications", func() {
			d, err := svc.GetDrone(ctx, "r2")
			So(err, ShouldBeNil)
			So(d.DroneID, ShouldEqual, "R2")
			So(d.Specifications, ShouldResemble, model.DefaultSpecs(types.RoleStriker))
			all, err := svc.ListDrones(ctx)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 4)
		})

		Convey("Then invalid reference data is rejected", func() {
			_, err := svc.PutTournament(ctx, model.Tournament{ID: "x", Settings: model.TournamentSettings{TeamSize: 3}})
			So(errors.Is(err, service.ErrInvalidTournament), ShouldBeTrue)
			_, err = svc.PutDrone(ctx, model.Drone{DroneID: "R9", Role: types.RoleSubstitute})
			So(errors.Is(err, service.ErrInvalidDrone), ShouldBeTrue)
			_, err = svc.GetTeam(ctx, "nobody")
			So(failure.KindOf(err), ShouldEqual, failure.NotFound)
		})

		Convey("When a match is created", func() {
			m := newMatch(ctx, svc)

			Convey("Then it has the regulation rounds plus the tiebreaker, all pending", func() {
				So(m.Status, ShouldEqual, types.MatchScheduled)
				So(m.CurrentRound, ShouldEqual, 0)
				So(m.Rounds, ShouldHaveLength, 3)
				So(m.RegulationRounds, ShouldEqual, 2)
				So(m.RoundDuration, ShouldEqual, 3*time.Minute)
				for i, r := range m.Rounds {
					So(r.RoundNumber, ShouldEqual, i+1)
					So(r.Status, ShouldEqual, types.RoundPending)
					So(r.Timer.Status, ShouldEqual, types.TimerStopped)
				}
			})
		})

		Convey("Then a match against the same team or an unknown tournament is refused", func() {
			_, err := svc.CreateMatch(ctx, service.CreateMatchInput{TournamentID: "cup", TeamAID: "ta", TeamBID: "ta"})
			So(errors.Is(err, service.ErrInvalidMatch), ShouldBeTrue)
			_, err = svc.CreateMatch(ctx, service.CreateMatchInput{TournamentID: "league", TeamAID: "ta", TeamBID: "tb"})
			So(errors.Is(err, service.ErrTournamentNotFound), ShouldBeTrue)
		})
	})
}

func TestCurrentMatch(t *testing.T) {
	Convey("Given several matches", t, func() {
		ctx := context.Background()
		svc, _ := newService()
		ids := make([]string, 5)
		for i := range ids {
			ids[i] = newMatch(ctx, svc).ID
		}

		Convey("Then no match is current at first", func() {
			_, err := svc.GetCurrentMatch(ctx)
			So(errors.Is(err, service.ErrNoCurrentMatch), ShouldBeTrue)
		})

		Convey("When the current match is set in a random order", func() {
			rng := rand.New(rand.NewPCG(7, 11))
			for range 50 {
				want := ids[rng.IntN(len(ids))]
				_, err := svc.SetCurrentMatch(ctx, want)
				So(err, ShouldBeNil)

				cur, err := svc.GetCurrentMatch(ctx)
				So(err, ShouldBeNil)
				So(cur.ID, ShouldEqual, want)
			}

			Convey("Then an unknown match does not move the pointer", func() {
				before, _ := svc.CurrentMatchID(ctx)
				_, err := svc.SetCurrentMatch(ctx, "missing")
				So(errors.Is(err, service.ErrMatchNotFound), ShouldBeTrue)
				after, _ := svc.CurrentMatchID(ctx)
				So(after, ShouldEqual, before)
			})

			Convey("Then deleting the current match clears the pointer", func() {
				cur, _ := svc.CurrentMatchID(ctx)
				So(svc.DeleteMatch(ctx, cur), ShouldBeNil)
				after, _ := svc.CurrentMatchID(ctx)
				So(after, ShouldBeEmpty)
			})
		})
	})
}

func TestCompleteMatch(t *testing.T) {
	Convey("Given a scheduled match", t, func() {
		ctx := context.Background()
		svc, _ := newService()
		m := newMatch(ctx, svc)

		Convey("When completion is attempted with a round in progress", func() {
			play(ctx, svc, m.ID, 1, 1, 0)
			_, err := svc.RegisterDrones(ctx, m.ID, 2, validLineup())
			So(err, ShouldBeNil)
			_, err = svc.StartRound(ctx, m.ID, 2)
			So(err, ShouldBeNil)
			_, err = svc.CompleteMatch(ctx, m.ID)

			Convey("Then it fails as an invalid round transition and nothing changes", func() {
				So(errors.Is(err, round.ErrInvalidRoundTransition), ShouldBeTrue)
				var te *round.TransitionError
				So(errors.As(err, &te), ShouldBeTrue)
				So(te.Round, ShouldEqual, 2)
				got, _ := svc.GetMatch(ctx, m.ID)
				So(got.Status, ShouldEqual, types.MatchInProgress)
				So(got.Round(2).Status, ShouldEqual, types.RoundInProgress)
			})
		})

		Convey("When completion is attempted before the regulation rounds are played", func() {
			play(ctx, svc, m.ID, 1, 1, 0)
			_, err := svc.CompleteMatch(ctx, m.ID)

			Convey("Then it is refused", func() {
				So(errors.Is(err, round.ErrInvalidRoundTransition), ShouldBeTrue)
			})
		})

		Convey("When team A wins on aggregate", func() {
			play(ctx, svc, m.ID, 1, 2, 1)
			play(ctx, svc, m.ID, 2, 0, 0)
			done, err := svc.CompleteMatch(ctx, m.ID)

			Convey("Then the match is completed with A as winner", func() {
				So(err, ShouldBeNil)
				So(done.Status, ShouldEqual, types.MatchCompleted)
				So(done.Winner, ShouldEqual, types.TeamA)
				So(done.TeamAScore, ShouldEqual, 2)
				So(done.TeamBScore, ShouldEqual, 1)
				So(done.CompletedAt, ShouldNotBeNil)
			})

			Convey("Then completing again is a conflict", func() {
				_, err := svc.CompleteMatch(ctx, m.ID)
				So(errors.Is(err, service.ErrMatchCompleted), ShouldBeTrue)
			})
		})

		Convey("When regulation ends in a tie", func() {
			play(ctx, svc, m.ID, 1, 1, 0)
			play(ctx, svc, m.ID, 2, 0, 1)
			_, err := svc.CompleteMatch(ctx, m.ID)

			Convey("Then the tiebreaker must be played first", func() {
				So(errors.Is(err, service.ErrTiebreakerRequired), ShouldBeTrue)
				So(failure.KindOf(err), ShouldEqual, failure.Validation)
			})

			Convey("Then the tiebreaker decides the match", func() {
				play(ctx, svc, m.ID, 3, 0, 1)
				done, err := svc.CompleteMatch(ctx, m.ID)
				So(err, ShouldBeNil)
				So(done.Winner, ShouldEqual, types.TeamB)
				So(done.TeamBScore, ShouldEqual, 2)
			})
		})

		Convey("When a man of the match is set by hand", func() {
			_, err := svc.SetManOfTheMatch(ctx, m.ID, model.ManOfTheMatch{Pilot: "Ivy", Team: types.TeamB})
			So(err, ShouldBeNil)
			play(ctx, svc, m.ID, 1, 1, 0)
			play(ctx, svc, m.ID, 2, 1, 0)
			done, err := svc.CompleteMatch(ctx, m.ID)

			Convey("Then completion keeps it", func() {
				So(err, ShouldBeNil)
				So(done.ManOfTheMatch.Pilot, ShouldEqual, "Ivy")
				So(done.ManOfTheMatch.Manual, ShouldBeTrue)
			})
		})
	})

	Convey("Given a match without a tiebreaker that ends level", t, func() {
		ctx := context.Background()
		svc, _ := newService()
		_, err := svc.PutTournament(ctx, model.Tournament{ID: "friendly", Settings: model.TournamentSettings{TeamSize: 2}})
		So(err, ShouldBeNil)
		m, err := svc.CreateMatch(ctx, service.CreateMatchInput{TournamentID: "friendly", TeamAID: "ta", TeamBID: "tb"})
		So(err, ShouldBeNil)
		play(ctx, svc, m.ID, 1, 0, 0)
		play(ctx, svc, m.ID, 2, 0, 0)

		Convey("Then the result is a draw", func() {
			done, err := svc.CompleteMatch(ctx, m.ID)
			So(err, ShouldBeNil)
			So(done.Winner, ShouldBeEmpty)
			So(done.Rounds, ShouldHaveLength, 2)
		})
	})
}

func TestDeleteMatch(t *testing.T) {
	Convey("Given a match with a round in progress", t, func() {
		ctx := context.Background()
		svc, _ := newService()
		m := newMatch(ctx, svc)
		_, err := svc.RegisterDrones(ctx, m.ID, 1, validLineup())
		So(err, ShouldBeNil)
		_, err = svc.StartRound(ctx, m.ID, 1)
		So(err, ShouldBeNil)

		Convey("Then it cannot be deleted", func() {
			err := svc.DeleteMatch(ctx, m.ID)
			So(errors.Is(err, service.ErrMatchInProgress), ShouldBeTrue)
			So(failure.KindOf(err), ShouldEqual, failure.Conflict)
		})

		Convey("When the round ends", func() {
			_, _, err := svc.EndRound(ctx, m.ID, 1)
			So(err, ShouldBeNil)

			Convey("Then the match can be deleted with its reports", func() {
				So(svc.DeleteMatch(ctx, m.ID), ShouldBeNil)
				_, err := svc.GetMatch(ctx, m.ID)
				So(errors.Is(err, service.ErrMatchNotFound), ShouldBeTrue)
				_, err = svc.ListReports(ctx, m.ID, 0)
				So(errors.Is(err, service.ErrMatchNotFound), ShouldBeTrue)
			})
		})
	})
}
