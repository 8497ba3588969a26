package prediction_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/prediction"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStaticProvider(t *testing.T) {
	Convey("Given a static provider", t, func() {
		p := prediction.NewStaticProvider([]prediction.Entry{
			{PlayerID: 1, Gameweek: 3, Variant: "basic", Points: 4.5},
			{PlayerID: 2, Gameweek: 3, Variant: "basic", Points: 6},
		}, prediction.WithVariants("premium"))
		ctx := context.Background()

		Convey("When the player is known", func() {
			pts, err := p.Predict(ctx, 1, 3, "basic")
			So(err, ShouldBeNil)
			So(pts, ShouldEqual, 4.5)
		})

		Convey("When the player is unknown for the gameweek", func() {
			_, err := p.Predict(ctx, 1, 4, "basic")
			So(errors.Is(err, prediction.ErrPlayerNotFound), ShouldBeTrue)
		})

		Convey("When the variant is declared but empty", func() {
			_, err := p.Predict(ctx, 1, 3, "premium")
			So(errors.Is(err, prediction.ErrPlayerNotFound), ShouldBeTrue)
		})

		Convey("When the variant does not exist", func() {
			_, err := p.Predict(ctx, 1, 3, "elite")
			So(errors.Is(err, prediction.ErrModelUnavailable), ShouldBeTrue)
		})
	})

	Convey("Given a provider simulating latency", t, func() {
		p := prediction.NewStaticProvider(
			[]prediction.Entry{{PlayerID: 1, Gameweek: 1, Variant: "basic", Points: 2}},
			prediction.WithLatencyRange(50*time.Millisecond, 60*time.Millisecond),
		)

		Convey("When the context expires first", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
			defer cancel()
			_, err := p.Predict(ctx, 1, 1, "basic")

			Convey("Then the context error should surface", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})
	})
}

func TestOutcome(t *testing.T) {
	Convey("Given lookup errors", t, func() {
		So(prediction.Outcome(nil), ShouldEqual, "ok")
		So(prediction.Outcome(fmt.Errorf("x: %w", prediction.ErrPlayerNotFound)), ShouldEqual, "not_found")
		So(prediction.Outcome(prediction.ErrModelUnavailable), ShouldEqual, "model_unavailable")
		So(prediction.Outcome(prediction.ErrTimeout), ShouldEqual, "timeout")
		So(prediction.Outcome(errors.New("boom")), ShouldEqual, "error")
	})
}

func TestCache(t *testing.T) {
	Convey("Given an empty cache", t, func() {
		now := time.Date(2025, 8, 16, 12, 0, 0, 0, time.UTC)
		c := prediction.NewCache(prediction.WithClock(func() time.Time { return now }))
		key := prediction.Key{Gameweek: 1, Variant: "basic"}

		So(c.Get(key), ShouldBeNil)
		So(c.Len(), ShouldEqual, 0)

		Convey("When answers are published", func() {
			first := c.Publish(key, map[int]float64{1: 3.5}, []int{9})

			Convey("Then readers should see found and missing players", func() {
				snap := c.Get(key)
				pts, found, known := snap.Resolve(1)
				So(pts, ShouldEqual, 3.5)
				So(found, ShouldBeTrue)
				So(known, ShouldBeTrue)

				_, found, known = snap.Resolve(9)
				So(found, ShouldBeFalse)
				So(known, ShouldBeTrue)

				_, _, known = snap.Resolve(2)
				So(known, ShouldBeFalse)
			})

			Convey("And a later publish should not touch the earlier version", func() {
				second := c.Publish(key, map[int]float64{2: 5, 9: 1}, nil)

				So(second.Version(), ShouldEqual, first.Version()+1)
				So(second.Len(), ShouldEqual, 3)
				So(first.Len(), ShouldEqual, 2)
				_, _, known := first.Resolve(2)
				So(known, ShouldBeFalse)
				pts, found, _ := second.Resolve(9)
				So(found, ShouldBeTrue)
				So(pts, ShouldEqual, 1)
			})
		})

		Convey("When a snapshot is invalidated", func() {
			c.Publish(key, map[int]float64{1: 1}, nil)
			So(c.Invalidate(key), ShouldBeTrue)
			So(c.Invalidate(key), ShouldBeFalse)
			So(c.Get(key), ShouldBeNil)
		})

		Convey("When old snapshots are evicted", func() {
			c.Publish(key, map[int]float64{1: 1}, nil)
			now = now.Add(time.Hour)
			fresh := prediction.Key{Gameweek: 2, Variant: "basic"}
			c.Publish(fresh, map[int]float64{1: 1}, nil)

			removed := c.EvictOlderThan(30 * time.Minute)

			Convey("Then only the stale key should go", func() {
				So(removed, ShouldEqual, 1)
				So(c.Keys(), ShouldResemble, []prediction.Key{fresh})
			})
		})

		Convey("When many goroutines publish to the same key", func() {
			var wg sync.WaitGroup
			for i := 1; i <= 50; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					c.Publish(key, map[int]float64{id: float64(id)}, nil)
				}(i)
			}
			wg.Wait()

			Convey("Then no answer should be lost", func() {
				So(c.Get(key).Len(), ShouldEqual, 50)
				So(c.Get(key).Version(), ShouldEqual, 50)
			})
		})
	})
}

func TestBuildReference(t *testing.T) {
	Convey("Given a small league", t, func() {
		var players []model.Player
		points := map[int]float64{}
		add := func(id int, pos model.Position, pts float64) {
			players = append(players, model.Player{ID: id, Position: pos})
			points[id] = pts
		}
		add(1, model.Goalkeeper, 6)
		add(2, model.Goalkeeper, 2)
		for i := 0; i < 6; i++ {
			add(10+i, model.Defender, float64(i+1)) // 1..6
		}
		for i := 0; i < 6; i++ {
			add(20+i, model.Midfielder, float64(2*(i+1))) // 2..12
		}
		for i := 0; i < 4; i++ {
			add(30+i, model.Forward, float64(3*(i+1))) // 3..12
		}
		add(99, model.Forward, 0) // unresolvable below
		delete(points, 99)

		ref := prediction.BuildReference(players, prediction.NewTable(points), 5)

		Convey("Then averages should be per position", func() {
			So(ref.Averages[model.Goalkeeper], ShouldEqual, 4)
			So(ref.Averages[model.Defender], ShouldEqual, 3.5)
			So(ref.Averages[model.Midfielder], ShouldEqual, 7)
			So(ref.Averages[model.Forward], ShouldEqual, 7.5)
		})

		Convey("Then the ceiling should be the best legal eleven with a doubled captain", func() {
			// GK 6; DEF 6,5,4; MID 12,10; FWD 12; best of rest: MID 8, FWD 9, MID 6, FWD 6 / DEF 3
			// rest sorted: 9, 8, 6, 6, 4(MID), 3(DEF), 3(FWD), 2 ... -> 9+8+6+6
			// total 6+15+22+12+29 = 84, plus captain 12
			So(ref.Ceiling, ShouldEqual, 96)
			So(ref.Floor, ShouldEqual, 5)
		})
	})
}
