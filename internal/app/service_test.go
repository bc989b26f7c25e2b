package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	service "github.com/okian/tripqa/internal/app"
	"github.com/okian/tripqa/internal/config"
	"github.com/okian/tripqa/internal/domain/detect"
	"github.com/okian/tripqa/internal/domain/ensemble"
	"github.com/okian/tripqa/internal/domain/model"
	"github.com/okian/tripqa/internal/simulate"
	"github.com/okian/tripqa/pkg/logger"
	"github.com/okian/tripqa/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func fleet() model.Table {
	t, err := simulate.Generate(context.Background())
	if err != nil {
		panic(err)
	}
	return t
}

func privateMetrics() (*metrics.Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.NewManager(metrics.WithPrometheusRegistry(reg)), reg
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		m, _ := privateMetrics()
		svc := service.New(service.WithMetrics(m))

		Convey("When it analyses the simulated fleet", func() {
			rep, err := svc.Run(context.Background(), fleet())

			Convey("Then every detector contributes one flag per record", func() {
				So(err, ShouldBeNil)
				So(rep.Flags, ShouldHaveLength, len(model.AllDetectors()))
				for _, name := range model.AllDetectors() {
					So(rep.Flags[name], ShouldHaveLength, 500)
					So(rep.Durations, ShouldContainKey, name)
				}
				So(rep.Results, ShouldHaveLength, 500)
				_, perr := uuid.Parse(rep.RunID)
				So(perr, ShouldBeNil)
			})

			Convey("Then the vote counts the baseline detectors with threshold 2", func() {
				So(rep.Members, ShouldResemble, model.BaselineDetectors())
				So(rep.Threshold, ShouldEqual, ensemble.DefaultThreshold)
				for i, r := range rep.Results {
					votes := 0
					for _, d := range model.BaselineDetectors() {
						if rep.Flags[d][i] {
							votes++
						}
					}
					So(r.EnsembleVoteCount, ShouldEqual, votes)
					So(r.IsEnsembleAnomaly, ShouldEqual, votes >= 2)
					So(rep.Ensemble[i], ShouldEqual, r.IsEnsembleAnomaly)
				}
			})

			Convey("Then the injected extremes are ensemble anomalies", func() {
				for _, i := range []int{10, 20, 200, 300} {
					So(rep.Results[i].IsEnsembleAnomaly, ShouldBeTrue)
				}
			})

			Convey("Then quality warnings are attached to the records", func() {
				So(rep.Results[15].Warnings, ShouldContain, "missing_duration")
				So(rep.Results[25].Warnings, ShouldContain, "missing_speed")
				So(rep.Results[300].Warnings, ShouldContain, "negative_speed")
				So(rep.Results[0].Warnings, ShouldBeEmpty)
			})
		})
	})
}

func TestService_Options(t *testing.T) {
	Convey("Given a service limited to the threshold detectors", t, func() {
		m, _ := privateMetrics()
		members := []model.DetectorName{model.DetectorZScore, model.DetectorIQR}
		svc := service.New(
			service.WithMetrics(m),
			service.WithDetectors(members...),
			service.WithEnsemble(members, 1),
		)

		Convey("When it runs", func() {
			rep, err := svc.Run(context.Background(), fleet())

			Convey("Then only those detectors report and the vote is their union", func() {
				So(err, ShouldBeNil)
				So(rep.Flags, ShouldHaveLength, 2)
				union, uerr := ensemble.Union(rep.Flags, members)
				So(uerr, ShouldBeNil)
				So(rep.Ensemble, ShouldResemble, union)
				So(rep.Results[0].Flags, ShouldNotContainKey, model.DetectorDBSCAN)
			})
		})
	})

	Convey("Given an ensemble member that is not run", t, func() {
		m, _ := privateMetrics()
		svc := service.New(
			service.WithMetrics(m),
			service.WithDetectors(model.DetectorZScore),
			service.WithEnsemble([]model.DetectorName{model.DetectorZScore, model.DetectorIQR}, 1),
		)
		_, err := svc.Run(context.Background(), fleet())

		Convey("Then the run fails with ErrMemberMissing", func() {
			So(errors.Is(err, ensemble.ErrMemberMissing), ShouldBeTrue)
		})
	})

	Convey("Given an unknown detector name", t, func() {
		_, err := service.NewDetector("lof")

		Convey("Then it is rejected", func() {
			So(errors.Is(err, service.ErrUnknownDetector), ShouldBeTrue)
		})
	})
}

func TestService_Errors(t *testing.T) {
	Convey("Given a default service", t, func() {
		m, _ := privateMetrics()
		svc := service.New(service.WithMetrics(m))
		ctx := context.Background()

		Convey("When the table is empty", func() {
			_, err := svc.Run(ctx, model.Table{})

			Convey("Then the detector error is surfaced", func() {
				So(errors.Is(err, detect.ErrEmptyTable), ShouldBeTrue)
			})
		})

		Convey("When the table is smaller than the DBSCAN neighbourhood", func() {
			small := fleet()[:3]
			_, err := svc.Run(ctx, small)

			Convey("Then the run fails with ErrTooFewSamples", func() {
				So(errors.Is(err, detect.ErrTooFewSamples), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "dbscan")
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := svc.Run(cctx, fleet())

			Convey("Then the run stops with the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestService_Metrics(t *testing.T) {
	Convey("Given a service with a private metrics registry", t, func() {
		m, _ := privateMetrics()
		svc := service.New(service.WithMetrics(m))

		Convey("When a run completes and metrics are exported", func() {
			_, err := svc.Run(context.Background(), fleet())
			So(err, ShouldBeNil)
			path := filepath.Join(t.TempDir(), "tripqa.prom")
			So(m.WriteTextfile(path), ShouldBeNil)
			body, rerr := os.ReadFile(path)

			Convey("Then the textfile describes the run", func() {
				So(rerr, ShouldBeNil)
				out := string(body)
				So(out, ShouldContainSubstring, "tripqa_detection_records 500")
				So(out, ShouldContainSubstring, `tripqa_detection_runs_total{status="ok"} 1`)
				So(out, ShouldContainSubstring, `tripqa_detection_quality_warnings{kind="missing_duration"} 2`)
				So(out, ShouldContainSubstring, `tripqa_detection_anomalies{detector="dbscan"}`)
			})
		})
	})
}

func TestOptionsFromConfig(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := config.New()
		opts, err := service.OptionsFromConfig(cfg)

		Convey("Then it yields service options", func() {
			So(err, ShouldBeNil)
			So(opts, ShouldNotBeEmpty)
		})
	})

	Convey("Given a config restricted to two detectors", t, func() {
		cfg := config.New()
		cfg.Detectors = []string{"zscore", "iqr"}
		cfg.EnsembleMembers = []string{"zscore", "iqr"}
		cfg.EnsembleThreshold = 2
		opts, err := service.OptionsFromConfig(cfg)
		So(err, ShouldBeNil)

		m, _ := privateMetrics()
		rep, rerr := service.New(append(opts, service.WithMetrics(m))...).Run(context.Background(), fleet())

		Convey("Then the service honours it", func() {
			So(rerr, ShouldBeNil)
			So(rep.Flags, ShouldHaveLength, 2)
			So(rep.Threshold, ShouldEqual, 2)
		})
	})

	Convey("Given a config with unknown names", t, func() {
		cfg := config.New()

		Convey("When a column is unknown", func() {
			cfg.Columns = []string{"altitude"}
			_, err := service.OptionsFromConfig(cfg)
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When a detector is unknown", func() {
			cfg.Detectors = []string{"lof"}
			_, err := service.OptionsFromConfig(cfg)
			So(errors.Is(err, service.ErrUnknownDetector), ShouldBeTrue)
		})
	})
}
