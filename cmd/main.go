package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/tripqa/internal/adapters/csvio"
	"github.com/okian/tripqa/internal/adapters/report"
	app "github.com/okian/tripqa/internal/app"
	"github.com/okian/tripqa/internal/config"
	"github.com/okian/tripqa/internal/domain/model"
	"github.com/okian/tripqa/internal/simulate"
	"github.com/okian/tripqa/pkg/logger"
	"github.com/okian/tripqa/pkg/metrics"
)

func main() {
	// Initialize logging on stderr; stdout carries the run digest.
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := configureLogging(ctx, cfg, os.Stderr); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg, metrics.Default(), os.Stdout); err != nil {
		logger.Get().Error(ctx, "run failed", logger.Error(err))
		os.Exit(1)
	}
}

// configureLogging applies the configured log format and level to the
// global logger writing to w.
func configureLogging(ctx context.Context, cfg *config.Config, w io.Writer) error {
	if cfg.LogFormat == "json" {
		if err := logger.Init(logger.WithOutput(w), logger.WithJSON(true)); err != nil {
			return err
		}
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		return logger.SetLevelString("info")
	}
	return nil
}

// run loads or simulates the trip table, analyses it and writes every
// configured output.
func run(ctx context.Context, cfg *config.Config, m *metrics.Manager, stdout io.Writer) error {
	log := logger.Named("main")

	opts, err := app.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	svc := app.New(append(opts, app.WithMetrics(m))...)

	table, err := source(ctx, cfg)
	if err != nil {
		return err
	}

	rep, err := svc.Run(ctx, table)
	if err != nil {
		// Export the failure counters before giving up.
		writeMetrics(ctx, cfg, m)
		return err
	}

	if err := csvio.WriteFile(cfg.OutputCSV, rep.Table, rep.Results); err != nil {
		return fmt.Errorf("write %s: %w", cfg.OutputCSV, err)
	}
	log.Info(ctx, "results written", logger.String("path", cfg.OutputCSV))

	summary, err := report.Summarize(rep)
	if err != nil {
		return err
	}
	if cfg.OutputXLSX != "" {
		if err := report.WriteWorkbook(cfg.OutputXLSX, rep, summary); err != nil {
			return err
		}
		log.Info(ctx, "workbook written", logger.String("path", cfg.OutputXLSX))
	}
	writeMetrics(ctx, cfg, m)

	return report.WriteText(stdout, summary)
}

func source(ctx context.Context, cfg *config.Config) (model.Table, error) {
	if cfg.InputPath != "" {
		logger.Get().Info(ctx, "reading trips", logger.String("path", cfg.InputPath))
		return csvio.ReadFile(ctx, cfg.InputPath)
	}
	logger.Get().Info(ctx, "simulating trips",
		logger.Int("samples", cfg.Samples),
		logger.Any("seed", cfg.SimulationSeed))
	return simulate.Generate(ctx,
		simulate.WithSamples(cfg.Samples),
		simulate.WithSeed(cfg.SimulationSeed))
}

func writeMetrics(ctx context.Context, cfg *config.Config, m *metrics.Manager) {
	if cfg.MetricsTextfile == "" {
		return
	}
	if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
		logger.Get().Warn(ctx, "metrics textfile not written", logger.Error(err))
		return
	}
	logger.Get().Debug(ctx, "metrics written", logger.String("path", cfg.MetricsTextfile))
}
