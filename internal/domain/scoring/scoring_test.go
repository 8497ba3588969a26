package scoring_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/prediction"
	"github.com/okian/fplcoach/internal/domain/scoring"
	"github.com/okian/fplcoach/internal/domain/squad/squadtest"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

// flatPoints gives every squad player 5 points and the captain 9.
func flatPoints() map[int]float64 {
	pts := make(map[int]float64)
	for id := 1; id <= 15; id++ {
		pts[id] = 5
	}
	pts[squadtest.FwdA] = 9
	return pts
}

func reference(floor, ceiling float64) prediction.Reference {
	return prediction.Reference{
		Averages: map[model.Position]float64{
			model.Goalkeeper: 5, model.Defender: 5, model.Midfielder: 10, model.Forward: 6,
		},
		Floor:   floor,
		Ceiling: ceiling,
	}
}

func TestRate(t *testing.T) {
	Convey("Given a scorer and a fully predicted squad", t, func() {
		s := scoring.New(scoring.WithMinSquadValue(decimal.Zero))
		sq := squadtest.Squad()
		pts := flatPoints()

		Convey("When rating against a 0-100 range", func() {
			got, err := s.Rate(sq, prediction.NewTable(pts), reference(0, 100))
			So(err, ShouldBeNil)

			Convey("Then the captain should count twice", func() {
				// ten starters at 5 plus the captain at 9 doubled
				So(got.AggregatePoints, ShouldEqual, 68)
				So(got.Score, ShouldEqual, 68)
				So(got.Rating, ShouldEqual, model.RatingNeedsImprovement)
				So(got.Degraded, ShouldBeFalse)
				So(got.Confidence, ShouldEqual, 1)
			})

			Convey("Then only positions below the league fraction should be flagged", func() {
				So(got.Suggestions, ShouldResemble, []string{
					"Strengthen your midfielders: squad average 5.0 pts vs league average 10.0 pts",
				})
			})
		})

		Convey("When several positions trail the league", func() {
			ref := reference(0, 100)
			ref.Averages[model.Defender] = 20
			ref.Averages[model.Goalkeeper] = 10
			got, err := s.Rate(sq, prediction.NewTable(pts), ref)
			So(err, ShouldBeNil)

			Convey("Then the largest deficit should come first and ties keep squad order", func() {
				So(len(got.Suggestions), ShouldEqual, 3)
				So(got.Suggestions[0], ShouldContainSubstring, "defenders")
				So(got.Suggestions[1], ShouldContainSubstring, "goalkeepers")
				So(got.Suggestions[2], ShouldContainSubstring, "midfielders")
			})
		})

		Convey("When the aggregate falls outside the reference range", func() {
			high, _ := s.Rate(sq, prediction.NewTable(pts), reference(0, 50))
			low, _ := s.Rate(sq, prediction.NewTable(pts), reference(80, 120))
			flat, _ := s.Rate(sq, prediction.NewTable(pts), reference(10, 10))

			Convey("Then the score should be clamped", func() {
				So(high.Score, ShouldEqual, 100)
				So(high.Rating, ShouldEqual, model.RatingExcellent)
				So(low.Score, ShouldEqual, 0)
				So(flat.Score, ShouldEqual, 100)
			})
		})

		Convey("When a starter has no prediction", func() {
			delete(pts, 3)
			got, err := s.Rate(sq, prediction.NewTable(pts), reference(0, 100))
			So(err, ShouldBeNil)

			Convey("Then it should be excluded and the score marked degraded", func() {
				So(got.AggregatePoints, ShouldEqual, 63)
				So(got.Degraded, ShouldBeTrue)
				So(got.Excluded, ShouldResemble, []int{3})
				So(got.Confidence, ShouldEqual, 0.91)
			})
		})

		Convey("When no starter has a prediction", func() {
			_, err := s.Rate(sq, prediction.NewTable(nil), reference(0, 100))
			So(errors.Is(err, model.ErrNoUsablePlayers), ShouldBeTrue)
		})
	})

	Convey("Given random predictions", t, func() {
		s := scoring.New()
		sq := squadtest.Squad()
		rng := rand.New(rand.NewSource(7))

		Convey("Then every score should stay within 0 and 100", func() {
			for i := 0; i < 200; i++ {
				pts := make(map[int]float64)
				for id := 1; id <= 15; id++ {
					pts[id] = rng.Float64()*30 - 5
				}
				got, err := s.Rate(sq, prediction.NewTable(pts), reference(rng.Float64()*20, rng.Float64()*120))
				So(err, ShouldBeNil)
				So(got.Score, ShouldBeBetweenOrEqual, 0, 100)
			}
		})
	})
}

func TestAdvisories(t *testing.T) {
	Convey("Given a squad with availability and club problems", t, func() {
		entries := squadtest.Entries()
		entries[3].Status = model.StatusInjured
		for i := 8; i < 12; i++ {
			entries[i].Team = "LIV"
		}
		sq := model.NewSquad(entries)
		s := scoring.New()

		got, err := s.Rate(sq, prediction.NewTable(flatPoints()), reference(0, 100))
		So(err, ShouldBeNil)

		Convey("Then advice should follow the weak spots in a fixed order", func() {
			So(got.Suggestions, ShouldResemble, []string{
				"Strengthen your midfielders: squad average 5.0 pts vs league average 10.0 pts",
				"Replace injured/unavailable player: Player 04",
				"Too many players from LIV",
				"Consider upgrading to higher-value players.",
			})
		})
	})
}
