package main

import (
	"context"
	"flag"
	"os"

	"github.com/okian/tripqa/internal/adapters/csvio"
	"github.com/okian/tripqa/internal/simulate"
	"github.com/okian/tripqa/pkg/logger"
)

const defaultOutput = "synthetic_trips.csv"

func main() {
	var (
		samples  = flag.Int("samples", simulate.DefaultSamples, "Number of trips to generate")
		seed     = flag.Int64("seed", simulate.DefaultSeed, "Random seed")
		output   = flag.String("output", defaultOutput, "Output CSV file")
		noInject = flag.Bool("clean", false, "Skip the injected anomalies and missing values")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	if err := generate(context.Background(), *samples, *seed, !*noInject, *output); err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func generate(ctx context.Context, samples int, seed int64, inject bool, output string) error {
	opts := []simulate.Option{simulate.WithSamples(samples), simulate.WithSeed(seed)}
	if !inject {
		opts = append(opts, simulate.WithInjections(nil))
	}
	table, err := simulate.Generate(ctx, opts...)
	if err != nil {
		return err
	}
	if err := csvio.WriteTableFile(output, table); err != nil {
		return err
	}
	logger.Get().Info(ctx, "synthetic trips written",
		logger.String("path", output),
		logger.Int("records", len(table)))
	return nil
}
