package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/tripqa/internal/adapters/csvio"
	"github.com/okian/tripqa/internal/config"
	"github.com/okian/tripqa/internal/domain/detect"
	"github.com/okian/tripqa/pkg/logger"
	"github.com/okian/tripqa/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"
)

func testConfig(dir string) *config.Config {
	cfg := config.New()
	cfg.OutputCSV = filepath.Join(dir, "anomalies_detected.csv")
	cfg.OutputXLSX = filepath.Join(dir, "report.xlsx")
	cfg.MetricsTextfile = filepath.Join(dir, "tripqa.prom")
	return cfg
}

func TestRun(t *testing.T) {
	convey.Convey("Given the analysis command", t, func() {
		convey.So(logger.Init(logger.WithOutput(&bytes.Buffer{})), convey.ShouldBeNil)
		ctx := context.Background()
		dir := t.TempDir()
		m := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
		var stdout bytes.Buffer

		convey.Convey("When it runs on the simulated fleet", func() {
			cfg := testConfig(dir)
			err := run(ctx, cfg, m, &stdout)

			convey.Convey("Then every output is written", func() {
				convey.So(err, convey.ShouldBeNil)

				f, oerr := os.Open(cfg.OutputCSV)
				convey.So(oerr, convey.ShouldBeNil)
				defer func() { _ = f.Close() }()
				table, results, rerr := csvio.ReadResults(ctx, f)
				convey.So(rerr, convey.ShouldBeNil)
				convey.So(table, convey.ShouldHaveLength, 500)
				convey.So(results[10].IsEnsembleAnomaly, convey.ShouldBeTrue)

				wb, werr := excelize.OpenFile(cfg.OutputXLSX)
				convey.So(werr, convey.ShouldBeNil)
				_ = wb.Close()

				prom, perr := os.ReadFile(cfg.MetricsTextfile)
				convey.So(perr, convey.ShouldBeNil)
				convey.So(string(prom), convey.ShouldContainSubstring, "tripqa_detection_records 500")

				convey.So(stdout.String(), convey.ShouldContainSubstring, "500 records")
			})
		})

		convey.Convey("When it reads an input CSV", func() {
			cfg := testConfig(dir)
			cfg.OutputXLSX = ""
			cfg.MetricsTextfile = ""
			cfg.InputPath = filepath.Join(dir, "trips.csv")
			convey.So(generate(ctx, cfg.InputPath), convey.ShouldBeNil)

			err := run(ctx, cfg, m, &stdout)

			convey.Convey("Then only the CSV result is produced", func() {
				convey.So(err, convey.ShouldBeNil)
				_, serr := os.Stat(cfg.OutputCSV)
				convey.So(serr, convey.ShouldBeNil)
				_, xerr := os.Stat(filepath.Join(dir, "report.xlsx"))
				convey.So(os.IsNotExist(xerr), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the input file is missing", func() {
			cfg := testConfig(dir)
			cfg.InputPath = filepath.Join(dir, "absent.csv")

			err := run(ctx, cfg, m, &stdout)

			convey.Convey("Then the run fails with a parse error", func() {
				convey.So(errors.Is(err, csvio.ErrParse), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the fleet is too small for DBSCAN", func() {
			cfg := testConfig(dir)
			cfg.Samples = 3

			err := run(ctx, cfg, m, &stdout)

			convey.Convey("Then the detector error is surfaced and failure metrics are exported", func() {
				convey.So(errors.Is(err, detect.ErrTooFewSamples), convey.ShouldBeTrue)
				prom, perr := os.ReadFile(cfg.MetricsTextfile)
				convey.So(perr, convey.ShouldBeNil)
				convey.So(string(prom), convey.ShouldContainSubstring, `status="error"`)
			})
		})
	})
}

func TestConfigureLogging(t *testing.T) {
	convey.Convey("Given a config asking for JSON logs", t, func() {
		convey.So(logger.Init(logger.WithOutput(&bytes.Buffer{})), convey.ShouldBeNil)
		ctx := context.Background()
		var buf bytes.Buffer
		cfg := config.New()
		cfg.LogFormat = "json"

		convey.Convey("When the level is debug", func() {
			cfg.LogLevel = "debug"
			err := configureLogging(ctx, cfg, &buf)
			logger.Get().Debug(ctx, "detector finished")

			convey.Convey("Then debug lines are written as JSON", func() {
				convey.So(err, convey.ShouldBeNil)
				var line map[string]interface{}
				convey.So(json.Unmarshal(buf.Bytes(), &line), convey.ShouldBeNil)
				convey.So(line["msg"], convey.ShouldEqual, "detector finished")
				convey.So(line["level"], convey.ShouldEqual, "DEBUG")
			})
		})

		convey.Convey("When the level is unknown", func() {
			cfg.LogLevel = "loud"
			err := configureLogging(ctx, cfg, &buf)

			convey.Convey("Then it warns and falls back to info", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(buf.String(), convey.ShouldContainSubstring, "falling back to info")
				buf.Reset()
				logger.Get().Debug(ctx, "hidden")
				convey.So(buf.Len(), convey.ShouldEqual, 0)
			})
		})
	})
}

// generate writes a small trip CSV.
func generate(ctx context.Context, path string) error {
	cfg := config.New()
	cfg.Samples = 120
	table, err := source(ctx, cfg)
	if err != nil {
		return err
	}
	return csvio.WriteTableFile(path, table)
}
