// Package metrics provides Prometheus metrics for tripqa detection runs.
//
// A run is a batch job, so metrics are gathered from a private registry and
// written to a node-exporter textfile rather than served over HTTP.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics of a detection run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer
	gatherer         prometheus.Gatherer

	// Run metrics
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	lastRunTimestamp  prometheus.Gauge
	recordsProcessed  prometheus.Counter
	recordsInLastRun  prometheus.Gauge
	ensembleAnomalies prometheus.Gauge

	// Detector metrics
	detectorAnomalies *prometheus.GaugeVec
	detectorDuration  *prometheus.HistogramVec
	detectorErrors    *prometheus.CounterVec

	// Data quality metrics
	qualityWarnings *prometheus.GaugeVec

	// System metrics
	systemMemoryUsage prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tripqa",
		subsystem:        "detection",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
		gatherer:         prometheus.DefaultGatherer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("runs_total"),
		Help:        "Total number of detection runs by outcome",
		ConstLabels: labels,
	}, []string{"status"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("run_duration_milliseconds"),
		Help:        "Wall time of a full detection run in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.lastRunTimestamp = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("last_run_timestamp_seconds"),
		Help:        "Unix time of the last completed run",
		ConstLabels: labels,
	})

	m.recordsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("records_processed_total"),
		Help:        "Total number of trip records analysed",
		ConstLabels: labels,
	})

	m.recordsInLastRun = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("records"),
		Help:        "Number of trip records in the last run",
		ConstLabels: labels,
	})

	m.ensembleAnomalies = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("ensemble_anomalies"),
		Help:        "Records flagged by the ensemble vote in the last run",
		ConstLabels: labels,
	})

	m.detectorAnomalies = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("anomalies"),
		Help:        "Records flagged per detector in the last run",
		ConstLabels: labels,
	}, []string{"detector"})

	m.detectorDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("detector_duration_milliseconds"),
		Help:        "Detector execution time in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"detector"})

	m.detectorErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("detector_errors_total"),
		Help:        "Detector failures by detector",
		ConstLabels: labels,
	}, []string{"detector"})

	m.qualityWarnings = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("quality_warnings"),
		Help:        "Data-quality warnings by kind in the last run",
		ConstLabels: labels,
	}, []string{"kind"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("memory_usage_bytes"),
		Help:        "Heap bytes allocated at the end of the run",
		ConstLabels: labels,
	})
}

// RecordRun records the outcome and duration of a run.
func (m *Manager) RecordRun(status string, durationMs float64, finishedUnix float64) {
	if !m.enabled {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(durationMs)
	m.lastRunTimestamp.Set(finishedUnix)
}

// RecordRecords records the number of analysed records.
func (m *Manager) RecordRecords(n int) {
	if !m.enabled {
		return
	}
	m.recordsProcessed.Add(float64(n))
	m.recordsInLastRun.Set(float64(n))
}

// RecordDetector records one detector's outcome.
func (m *Manager) RecordDetector(detector string, anomalies int, durationMs float64) {
	if !m.enabled {
		return
	}
	m.detectorAnomalies.WithLabelValues(detector).Set(float64(anomalies))
	m.detectorDuration.WithLabelValues(detector).Observe(durationMs)
}

// RecordDetectorError counts a detector failure.
func (m *Manager) RecordDetectorError(detector string) {
	if !m.enabled {
		return
	}
	m.detectorErrors.WithLabelValues(detector).Inc()
}

// UpdateEnsembleAnomalies sets the ensemble anomaly count.
func (m *Manager) UpdateEnsembleAnomalies(n int) {
	if !m.enabled {
		return
	}
	m.ensembleAnomalies.Set(float64(n))
}

// UpdateQualityWarnings sets the warning count of one kind.
func (m *Manager) UpdateQualityWarnings(kind string, n int) {
	if !m.enabled {
		return
	}
	m.qualityWarnings.WithLabelValues(kind).Set(float64(n))
}

// UpdateSystemMemoryUsage sets the heap usage gauge.
func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) {
	if !m.enabled {
		return
	}
	m.systemMemoryUsage.Set(float64(bytes))
}

// WriteTextfile writes every gathered metric to path in the Prometheus text
// format. The write is atomic (temp file + rename).
func (m *Manager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Default returns the global manager.
func Default() *Manager {
	return globalManager
}

// GetRegistry returns the custom registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
