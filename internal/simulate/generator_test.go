package simulate

import (
	"context"
	"math"
	"testing"

	"github.com/okian/tripqa/internal/domain/model"
	"github.com/okian/tripqa/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	Convey("Given the default generator", t, func() {
		table, err := Generate(ctx)
		So(err, ShouldBeNil)

		Convey("Then it yields 500 trips", func() {
			So(table, ShouldHaveLength, DefaultSamples)
		})

		Convey("Then the injected values are in place", func() {
			So(*table[10].TripDurationMin, ShouldEqual, 120)
			So(*table[50].TripDurationMin, ShouldEqual, 1)
			So(*table[200].TripDurationMin, ShouldEqual, 90)
			So(*table[20].SpeedKmh, ShouldEqual, 200)
			So(*table[70].SpeedKmh, ShouldEqual, 0)
			So(*table[300].SpeedKmh, ShouldEqual, -10)
			So(table[5].Latitude, ShouldEqual, 50)
			So(table[5].Longitude, ShouldEqual, 5)
			So(table[100].Latitude, ShouldEqual, 10)
			So(table[100].Longitude, ShouldEqual, 100)
			So(table[15].TripDurationMin, ShouldBeNil)
			So(table[80].TripDurationMin, ShouldBeNil)
			So(table[25].SpeedKmh, ShouldBeNil)
			So(table[25].TripDurationMin, ShouldNotBeNil)
		})

		Convey("Then untouched trips follow the configured distributions", func() {
			var sum float64
			var n int
			for i, r := range table {
				if i == 10 || i == 50 || i == 200 || r.TripDurationMin == nil {
					continue
				}
				sum += *r.TripDurationMin
				n++
			}
			So(math.Abs(sum/float64(n)-durationMean), ShouldBeLessThan, 1)
			So(math.Abs(table[0].Latitude-latitudeMean), ShouldBeLessThan, 0.1)
		})

		Convey("Then the same seed reproduces the table", func() {
			again, err := Generate(ctx)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, table)
		})
	})

	Convey("Given custom options", t, func() {
		Convey("When the sample count is smaller than some injection indices", func() {
			table, err := Generate(ctx, WithSamples(60))

			Convey("Then out-of-range injections are skipped", func() {
				So(err, ShouldBeNil)
				So(table, ShouldHaveLength, 60)
				So(*table[50].TripDurationMin, ShouldEqual, 1)
			})
		})

		Convey("When a different seed is used", func() {
			a, _ := Generate(ctx, WithSeed(1), WithInjections(nil))
			b, _ := Generate(ctx, WithSeed(2), WithInjections(nil))

			Convey("Then the tables differ", func() {
				So(*a[0].TripDurationMin, ShouldNotEqual, *b[0].TripDurationMin)
			})
		})

		Convey("When custom injections are given", func() {
			table, err := Generate(ctx, WithSamples(3), WithInjections([]Injection{
				{Index: 1, Column: model.ColumnSpeed, Value: model.Float(999)},
				{Index: 2, Column: model.ColumnLatitude},
			}))

			Convey("Then only they are applied", func() {
				So(err, ShouldBeNil)
				So(*table[1].SpeedKmh, ShouldEqual, 999)
				So(table[2].Latitude, ShouldNotEqual, 0)
			})
		})

		Convey("When the sample count is negative", func() {
			_, err := Generate(ctx, WithSamples(-1))
			So(err, ShouldNotBeNil)
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := Generate(cctx)
			So(err, ShouldNotBeNil)
		})
	})
}
