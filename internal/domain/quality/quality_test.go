package quality_test

import (
	"math"
	"testing"

	"github.com/okian/tripqa/internal/domain/model"
	"github.com/okian/tripqa/internal/domain/quality"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCheck(t *testing.T) {
	Convey("Given a clean trip", t, func() {
		r := model.Record{
			TripDurationMin: model.Float(28),
			SpeedKmh:        model.Float(41),
			Latitude:        48.85,
			Longitude:       2.35,
		}

		Convey("Then no warning is raised", func() {
			So(quality.Check(r), ShouldBeEmpty)
		})

		Convey("When the speed is negative", func() {
			r.SpeedKmh = model.Float(-10)
			So(quality.Check(r), ShouldResemble, []quality.Warning{quality.NegativeSpeed})
		})

		Convey("When the speed is exactly zero", func() {
			r.SpeedKmh = model.Float(0)
			So(quality.Check(r), ShouldBeEmpty)
		})

		Convey("When the duration is missing", func() {
			r.TripDurationMin = nil
			So(quality.Check(r), ShouldResemble, []quality.Warning{quality.MissingDuration})
		})

		Convey("When the duration is infinite", func() {
			r.TripDurationMin = model.Float(math.Inf(1))
			So(quality.Check(r), ShouldContain, quality.NonFiniteDuration)
		})

		Convey("When the GPS fix is off the globe", func() {
			r.Latitude = 95
			r.Longitude = -181
			So(quality.Check(r), ShouldResemble, []quality.Warning{
				quality.LatitudeOutOfRange, quality.LongitudeOutOfRange,
			})
		})

		Convey("When the GPS fix is far away but valid", func() {
			r.Latitude = 10
			r.Longitude = 100
			So(quality.Check(r), ShouldBeEmpty)
		})
	})
}

func TestScanAndCounts(t *testing.T) {
	Convey("Given a table with several problems", t, func() {
		table := model.Table{
			{TripDurationMin: nil, SpeedKmh: model.Float(40)},
			{TripDurationMin: model.Float(30), SpeedKmh: nil},
			{TripDurationMin: nil, SpeedKmh: model.Float(-1)},
			{TripDurationMin: model.Float(30), SpeedKmh: model.Float(40)},
		}

		warnings := quality.Scan(table)

		Convey("Then every record gets an entry and nothing is dropped", func() {
			So(warnings, ShouldHaveLength, len(table))
			So(warnings[3], ShouldBeEmpty)
		})

		Convey("Then counts tally by kind", func() {
			counts := quality.Counts(warnings)
			So(counts[quality.MissingDuration], ShouldEqual, 2)
			So(counts[quality.MissingSpeed], ShouldEqual, 1)
			So(counts[quality.NegativeSpeed], ShouldEqual, 1)
		})

		Convey("Then warnings convert to names", func() {
			So(quality.Strings(warnings[2]), ShouldResemble, []string{"missing_duration", "negative_speed"})
			So(quality.Strings(nil), ShouldBeNil)
		})
	})
}
