package scoring_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/dronesoccer/internal/domain/model"
	"github.com/okian/dronesoccer/internal/domain/scoring"
	"github.com/okian/dronesoccer/internal/domain/types"
)

func TestGrade(t *testing.T) {
	Convey("Given stability scores on each grade boundary", t, func() {
		cases := map[float64]string{
			100: "A+", 85: "A+", 84.99: "A", 75: "A", 65: "B+", 55: "B", 45: "C", 44.9: "D", 0: "D",
		}

		Convey("Then each maps to its letter", func() {
			for score, want := range cases {
				So(scoring.Grade(score), ShouldEqual, want)
			}
		})
	})
}

func TestAggregate(t *testing.T) {
	Convey("Given a match with two completed rounds and one pending", t, func() {
		m := &model.Match{Rounds: []model.Round{
			{RoundNumber: 1, Status: types.RoundCompleted, TeamAScore: 3, TeamBScore: 1},
			{RoundNumber: 2, Status: types.RoundCompleted, TeamAScore: 0, TeamBScore: 2},
			{RoundNumber: 3, Status: types.RoundPending, TeamAScore: 5},
		}}

		Convey("When the completed rounds are level", func() {
			o := scoring.Aggregate(m)

			Convey("Then the outcome is a draw", func() {
				So(o.TeamAScore, ShouldEqual, 3)
				So(o.TeamBScore, ShouldEqual, 3)
				So(o.Tied(), ShouldBeTrue)
				So(o.Label(), ShouldEqual, "draw")
			})
		})

		Convey("When the tiebreaker is played", func() {
			m.Rounds[2].Status = types.RoundCompleted
			o := scoring.Aggregate(m)

			Convey("Then team A wins", func() {
				So(o.Winner, ShouldEqual, types.TeamA)
				So(o.Label(), ShouldEqual, "A")
			})
		})
	})
}

func TestManOfTheMatch(t *testing.T) {
	Convey("Given reports across two rounds", t, func() {
		reports := []model.DroneReport{
			{Pilot: "Ana", Team: types.TeamA, DroneID: "R1", Status: types.ReportAnalysed, StabilityScore: 80},
			{Pilot: "Ana", Team: types.TeamA, DroneID: "R1", Status: types.ReportAnalysed, StabilityScore: 60},
			{Pilot: "Fay", Team: types.TeamB, DroneID: "B1", Status: types.ReportAnalysed, StabilityScore: 72},
			{Pilot: "Fay", Team: types.TeamB, DroneID: "B1", Status: types.ReportAnalysed, StabilityScore: 72},
			{Pilot: "Gus", Team: types.TeamB, DroneID: "B2", Status: types.ReportDisconnected},
		}

		Convey("When the best pilot is picked", func() {
			mom := scoring.ManOfTheMatch(reports)

			Convey("Then the average and best round are weighted 0.6 and 0.4", func() {
				So(mom, ShouldNotBeNil)
				// Ana: 70*0.6 + 80*0.4 = 74; Fay: 72*0.6 + 72*0.4 = 72
				So(mom.Pilot, ShouldEqual, "Ana")
				So(mom.Team, ShouldEqual, types.TeamA)
				So(mom.DroneID, ShouldEqual, "R1")
				So(mom.Score, ShouldEqual, 74.0)
				So(mom.Manual, ShouldBeFalse)
			})
		})

		Convey("When nothing was analysed", func() {
			Convey("Then there is no man of the match", func() {
				So(scoring.ManOfTheMatch(reports[4:]), ShouldBeNil)
			})
		})
	})

	Convey("Given an average of stability scores", t, func() {
		So(scoring.Average([]float64{70, 80, 91}), ShouldEqual, 80.33)
		So(scoring.Average(nil), ShouldEqual, 0.0)
	})
}
