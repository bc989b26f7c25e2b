// Package service runs the detector set over a trip table and aggregates
// the per-detector flags into an ensemble decision.
package service

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/tripqa/internal/domain/detect"
	"github.com/okian/tripqa/internal/domain/ensemble"
	"github.com/okian/tripqa/internal/domain/model"
	"github.com/okian/tripqa/internal/domain/quality"
	"github.com/okian/tripqa/pkg/logger"
	"github.com/okian/tripqa/pkg/metrics"
)

const millisecondsPerSecond = 1e3

// Run status labels.
const (
	statusOK    = "ok"
	statusError = "error"
)

// Service holds the detector configuration for analysis runs. A Service is
// safe for concurrent use; every Run works on its own state.
type Service struct {
	detectors []model.DetectorName
	detectOps []detect.Option
	members   []model.DetectorName
	threshold int

	logger  logger.Logger
	metrics *metrics.Manager
}

// Report is the outcome of one run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Table     model.Table
	Detectors []model.DetectorName
	Flags     map[model.DetectorName]model.Flags
	Durations map[model.DetectorName]time.Duration

	Members   []model.DetectorName
	Threshold int
	Decisions []ensemble.Decision
	Ensemble  model.Flags

	Warnings [][]quality.Warning
	Results  []model.DetectionResult
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records run metrics on m instead of the global manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDetectors selects which detectors run, in reporting order.
func WithDetectors(names ...model.DetectorName) Option {
	return func(s *Service) {
		if len(names) > 0 {
			s.detectors = append([]model.DetectorName(nil), names...)
		}
	}
}

// WithDetectorOptions passes options to every detector constructor.
func WithDetectorOptions(opts ...detect.Option) Option {
	return func(s *Service) {
		s.detectOps = append(s.detectOps, opts...)
	}
}

// WithEnsemble sets the voting members and the vote threshold.
func WithEnsemble(members []model.DetectorName, threshold int) Option {
	return func(s *Service) {
		if len(members) > 0 {
			s.members = append([]model.DetectorName(nil), members...)
		}
		s.threshold = threshold
	}
}

// New constructs a Service running every detector with default parameters
// and the baseline majority vote.
func New(opts ...Option) *Service {
	s := &Service{
		detectors: model.AllDetectors(),
		members:   model.BaselineDetectors(),
		threshold: ensemble.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.metrics == nil {
		s.metrics = metrics.Default()
	}
	return s
}

// Run analyses t. Detectors run concurrently over the shared table; the
// first detector error cancels the others and fails the run.
func (s *Service) Run(ctx context.Context, t model.Table) (*Report, error) {
	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Table:     t,
		Detectors: s.detectors,
		Members:   s.members,
		Threshold: s.threshold,
	}
	log := s.logger.Named("run")
	log.Info(ctx, "analysis started",
		logger.String("run_id", rep.RunID),
		logger.Int("records", len(t)),
		logger.Int("detectors", len(s.detectors)))

	detectors, err := s.build()
	if err != nil {
		return nil, s.fail(ctx, rep, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, s.fail(ctx, rep, err)
	}

	rep.Warnings = quality.Scan(t)
	s.reportWarnings(ctx, rep)

	flags := make([]model.Flags, len(detectors))
	durations := make([]time.Duration, len(detectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range detectors {
		g.Go(func() error {
			start := time.Now()
			f, err := d.Detect(gctx, t)
			durations[i] = time.Since(start)
			if err != nil {
				s.metrics.RecordDetectorError(string(d.Name()))
				return fmt.Errorf("%s: %w", d.Name(), err)
			}
			flags[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.fail(ctx, rep, err)
	}

	rep.Flags = make(map[model.DetectorName]model.Flags, len(detectors))
	rep.Durations = make(map[model.DetectorName]time.Duration, len(detectors))
	for i, d := range detectors {
		rep.Flags[d.Name()] = flags[i]
		rep.Durations[d.Name()] = durations[i]
		s.metrics.RecordDetector(string(d.Name()), flags[i].Count(), float64(durations[i].Microseconds())/millisecondsPerSecond)
		log.Debug(ctx, "detector finished",
			logger.String("detector", string(d.Name())),
			logger.Int("anomalies", flags[i].Count()),
			logger.Duration("took", durations[i]))
	}

	rep.Decisions, err = ensemble.Vote(rep.Flags, s.members, s.threshold)
	if err != nil {
		return nil, s.fail(ctx, rep, err)
	}
	rep.Ensemble = ensemble.Anomalies(rep.Decisions)
	rep.Results = s.results(rep)
	rep.FinishedAt = time.Now()

	s.metrics.RecordRecords(len(t))
	s.metrics.UpdateEnsembleAnomalies(rep.Ensemble.Count())
	s.recordRun(statusOK, rep)

	log.Info(ctx, "analysis finished",
		logger.String("run_id", rep.RunID),
		logger.Int("ensemble_anomalies", rep.Ensemble.Count()),
		logger.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)))
	return rep, nil
}

// build constructs the configured detectors.
func (s *Service) build() ([]detect.Detector, error) {
	out := make([]detect.Detector, 0, len(s.detectors))
	for _, name := range s.detectors {
		d, err := NewDetector(name, s.detectOps...)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// NewDetector returns the detector registered under name.
func NewDetector(name model.DetectorName, opts ...detect.Option) (detect.Detector, error) {
	switch name {
	case model.DetectorZScore:
		return detect.NewZScore(opts...), nil
	case model.DetectorIQR:
		return detect.NewIQR(opts...), nil
	case model.DetectorIsolationForest:
		return detect.NewIsolationForest(opts...), nil
	case model.DetectorDBSCAN:
		return detect.NewDBSCAN(opts...), nil
	case model.DetectorPCAReconstruction:
		return detect.NewPCAReconstruction(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDetector, name)
	}
}

func (s *Service) results(rep *Report) []model.DetectionResult {
	out := make([]model.DetectionResult, len(rep.Table))
	for i := range rep.Table {
		r := model.DetectionResult{
			Flags:             make(map[model.DetectorName]bool, len(rep.Flags)),
			EnsembleVoteCount: rep.Decisions[i].VoteCount,
			IsEnsembleAnomaly: rep.Decisions[i].Anomaly,
			Warnings:          quality.Strings(rep.Warnings[i]),
		}
		for name, f := range rep.Flags {
			r.Flags[name] = f[i]
		}
		out[i] = r
	}
	return out
}

func (s *Service) reportWarnings(ctx context.Context, rep *Report) {
	counts := quality.Counts(rep.Warnings)
	fields := make([]logger.Field, 0, len(counts)+1)
	fields = append(fields, logger.String("run_id", rep.RunID))
	for _, w := range quality.AllWarnings() {
		s.metrics.UpdateQualityWarnings(string(w), counts[w])
		if counts[w] > 0 {
			fields = append(fields, logger.Int(string(w), counts[w]))
		}
	}
	if len(fields) > 1 {
		s.logger.Warn(ctx, "data quality warnings", fields...)
	}
}

func (s *Service) fail(ctx context.Context, rep *Report, err error) error {
	rep.FinishedAt = time.Now()
	s.recordRun(statusError, rep)
	s.logger.Error(ctx, "analysis failed", logger.String("run_id", rep.RunID), logger.Error(err))
	return err
}

func (s *Service) recordRun(status string, rep *Report) {
	took := rep.FinishedAt.Sub(rep.StartedAt)
	s.metrics.RecordRun(status, float64(took.Microseconds())/millisecondsPerSecond, float64(rep.FinishedAt.Unix()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	s.metrics.UpdateSystemMemoryUsage(m.Alloc)
}
