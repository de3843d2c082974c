package lineup_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/dronesoccer/internal/domain/failure"
	"github.com/okian/dronesoccer/internal/domain/lineup"
	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/types"
)

type catalog map[string]model.Drone

func (c catalog) LookupDrone(_ context.Context, id string) (model.Drone, bool, error) {
	d, ok := c[id]
	return d, ok, nil
}

type brokenCatalog struct{}

func (brokenCatalog) LookupDrone(context.Context, string) (model.Drone, bool, error) {
	return model.Drone{}, false, errors.New("store offline")
}

func fleet() catalog {
	c := catalog{}
	roles := []types.Role{types.RoleForward, types.RoleStriker, types.RoleDefender, types.RoleKeeper}
	for i, r := range roles {
		for _, prefix := range []string{"R", "B"} {
			id := prefix + string(rune('1'+i))
			c[id] = model.Drone{DroneID: id, Role: r}
		}
	}
	return c
}

func rosters() lineup.Rosters {
	return lineup.Rosters{
		TeamA: &model.Team{ID: "ta", Name: "Falcons", Members: []model.Member{
			{Name: "Ana", Role: types.RoleForward},
			{Name: "Ben", Role: types.RoleStriker},
			{Name: "Cai", Role: types.RoleDefender},
			{Name: "Dev", Role: types.RoleAllRounder},
			{Name: "Eli", Role: types.RoleSubstitute},
		}},
		TeamB: &model.Team{ID: "tb", Name: "Hornets", Members: []model.Member{
			{Name: "Fay", Role: types.RoleForward},
			{Name: "Gus", Role: types.RoleStriker},
			{Name: "Hal", Role: types.RoleDefender},
			{Name: "Ivy", Role: types.RoleKeeper},
		}},
	}
}

func validLineup() lineup.Lineup {
	return lineup.Lineup{
		TeamA: []lineup.Assignment{
			{Position: types.RoleForward, Pilot: "Ana", DroneID: "R1"},
			{Position: types.RoleStriker, Pilot: "Ben", DroneID: "R2"},
			{Position: types.RoleDefender, Pilot: "Cai", DroneID: "R3"},
			{Position: types.RoleKeeper, Pilot: "Dev", DroneID: "R4"},
		},
		TeamB: []lineup.Assignment{
			{Position: types.RoleForward, Pilot: "Fay", DroneID: "B1"},
			{Position: types.RoleStriker, Pilot: "Gus", DroneID: "B2"},
			{Position: types.RoleDefender, Pilot: "Hal", DroneID: "B3"},
			{Position: types.RoleKeeper, Pilot: "Ivy", DroneID: "B4"},
		},
	}
}

func TestValidate(t *testing.T) {
	Convey("Given a 4v4 validator with a full drone catalog", t, func() {
		ctx := context.Background()
		v := lineup.New(fleet())
		lin := validLineup()

		Convey("When the lineup is valid", func() {
			drones, err := v.Validate(ctx, 4, rosters(), lin)

			Convey("Then eight registered drones come back in order with stock specs", func() {
				So(err, ShouldBeNil)
				So(drones, ShouldHaveLength, 8)
				So(drones[0].DroneID, ShouldEqual, "R1")
				So(drones[0].Team, ShouldEqual, types.TeamA)
				So(drones[7].Team, ShouldEqual, types.TeamB)
				So(drones[3].Pilot, ShouldEqual, "Dev")
				So(drones[1].Specifications.Speed, ShouldEqual, 160)
			})
		})

		Convey("When a team fields too few positions", func() {
			lin.TeamB = lin.TeamB[:3]
			_, err := v.Validate(ctx, 4, rosters(), lin)

			Convey("Then the lineup shape is rejected", func() {
				So(errors.Is(err, lineup.ErrLineupShape), ShouldBeTrue)
			})
		})

		Convey("When a position is missing its drone", func() {
			lin.TeamA[2].DroneID = " "
			lin.TeamB[0].DroneID = "R1"
			_, err := v.Validate(ctx, 4, rosters(), lin)

			Convey("Then the incomplete slot is reported before any duplicate", func() {
				So(errors.Is(err, lineup.ErrIncompleteAssignment), ShouldBeTrue)
				var viol *lineup.Violation
				So(errors.As(err, &viol), ShouldBeTrue)
				So(viol.Position, ShouldEqual, types.RoleDefender)
				So(viol.Team, ShouldEqual, types.TeamA)
			})
		})

		Convey("When one drone is assigned to both teams under different roles", func() {
			lin.TeamB[0].DroneID = "r2"
			_, err := v.Validate(ctx, 4, rosters(), lin)

			Convey("Then the duplicate is rejected as a validation error", func() {
				So(errors.Is(err, lineup.ErrDuplicateDrone), ShouldBeTrue)
				So(failure.KindOf(err), ShouldEqual, failure.Validation)
				So(err.Error(), ShouldContainSubstring, "drone R2")
			})
		})

		Convey("When a drone flies a position it was not built for", func() {
			lin.TeamA[0].DroneID = "R9"
			_, err := v.Validate(ctx, 4, rosters(), lin)

			Convey("Then an unknown drone is rejected", func() {
				So(errors.Is(err, lineup.ErrUnknownDrone), ShouldBeTrue)
			})
		})

		Convey("When drones swap positions", func() {
			lin.TeamA[0].DroneID, lin.TeamA[1].DroneID = "R2", "R1"
			_, err := v.Validate(ctx, 4, rosters(), lin)

			Convey("Then the drone role check fails", func() {
				So(errors.Is(err, lineup.ErrDroneRoleMismatch), ShouldBeTrue)
				var viol *lineup.Violation
				So(errors.As(err, &viol), ShouldBeTrue)
				So(viol.RuleCode(), ShouldEqual, "drone_role_mismatch")
			})
		})

		Convey("When a substitute is put in goal", func() {
			lin.TeamA[3].Pilot = "Eli"
			_, err := v.Validate(ctx, 4, rosters(), lin)

			Convey("Then the pilot role check fails", func() {
				So(errors.Is(err, lineup.ErrPilotRoleMismatch), ShouldBeTrue)
			})
		})

		Convey("When a pilot from the other team is assigned", func() {
			lin.TeamA[0].Pilot = "Fay"
			_, err := v.Validate(ctx, 4, rosters(), lin)

			Convey("Then the pilot is not on the roster", func() {
				So(errors.Is(err, lineup.ErrPilotNotOnRoster), ShouldBeTrue)
			})
		})

		Convey("When the drone directory fails", func() {
			_, err := lineup.New(brokenCatalog{}).Validate(ctx, 4, rosters(), lin)

			Convey("Then the error is internal, not a violation", func() {
				So(err, ShouldNotBeNil)
				var viol *lineup.Violation
				So(errors.As(err, &viol), ShouldBeFalse)
				So(failure.KindOf(err), ShouldEqual, failure.Internal)
			})
		})
	})

	Convey("Given a 2v2 validator", t, func() {
		v := lineup.New(fleet())
		lin := lineup.Lineup{
			TeamA: []lineup.Assignment{{Position: "striker", Pilot: "Ben", DroneID: "R2"}, {Position: "Keeper", Pilot: "Dev", DroneID: "R4"}},
			TeamB: []lineup.Assignment{{Position: "Striker", Pilot: "Gus", DroneID: "B2"}, {Position: "keeper", Pilot: "Ivy", DroneID: "B4"}},
		}

		Convey("When the lineup covers striker and keeper", func() {
			drones, err := v.Validate(context.Background(), 2, rosters(), lin)

			Convey("Then four drones are registered", func() {
				So(err, ShouldBeNil)
				So(drones, ShouldHaveLength, 4)
				So(drones[0].Role, ShouldEqual, types.RoleStriker)
			})
		})
	})
}
