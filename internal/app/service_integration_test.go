package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/tripqa/internal/adapters/csvio"
	service "github.com/okian/tripqa/internal/app"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_CSVRoundTrip(t *testing.T) {
	Convey("Given a simulated fleet stored as CSV", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		in := filepath.Join(dir, "trips.csv")
		So(csvio.WriteTableFile(in, fleet()), ShouldBeNil)

		Convey("When the file is analysed and the results are written", func() {
			table, err := csvio.ReadFile(ctx, in)
			So(err, ShouldBeNil)

			m, _ := privateMetrics()
			rep, err := service.New(service.WithMetrics(m)).Run(ctx, table)
			So(err, ShouldBeNil)

			out := filepath.Join(dir, "anomalies_detected.csv")
			So(csvio.WriteFile(out, rep.Table, rep.Results), ShouldBeNil)

			Convey("Then the analysis matches one run on the in-memory fleet", func() {
				direct, derr := service.New(service.WithMetrics(m)).Run(ctx, fleet())
				So(derr, ShouldBeNil)
				So(rep.Flags, ShouldResemble, direct.Flags)
				So(rep.Ensemble, ShouldResemble, direct.Ensemble)
			})

			Convey("Then the results file reads back unchanged", func() {
				f, oerr := os.Open(out)
				So(oerr, ShouldBeNil)
				defer func() { _ = f.Close() }()

				back, results, rerr := csvio.ReadResults(ctx, f)
				So(rerr, ShouldBeNil)
				So(back, ShouldResemble, rep.Table)
				for i := range results {
					So(results[i].Flags, ShouldResemble, rep.Results[i].Flags)
					So(results[i].EnsembleVoteCount, ShouldEqual, rep.Results[i].EnsembleVoteCount)
					So(results[i].IsEnsembleAnomaly, ShouldEqual, rep.Results[i].IsEnsembleAnomaly)
				}
			})
		})
	})
}
