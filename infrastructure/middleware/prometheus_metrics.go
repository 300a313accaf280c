// Package middleware provides cross-cutting concerns for the fusion engine:
// Prometheus metrics, OpenTelemetry tracing and an instrumented fuser
// decorator that keeps both out of the algorithms.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-rankfuse/internal/ports"
)

// Metric names understood by PrometheusMetrics. Other names are routed to
// the generic vectors with the name as a label.
const (
	MetricFusionRequests   = "fusion_requests_total"
	MetricValidationIssues = "fusion_validation_issues_total"
	MetricResultCount      = "fusion_result_count"
	MetricInputItems       = "fusion_input_items"
	MetricInputLists       = "fusion_input_lists"
	MetricConsensusScore   = "fusion_consensus_score"
)

// Label keys read from the labels map.
const (
	LabelFuser     = "fuser"
	LabelAlgorithm = "algorithm"
	LabelStatus    = "status"
	LabelSeverity  = "severity"
)

const unknownLabel = "unknown"

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks fusion call volume, latency, output sizes and
// validation outcomes.
type PrometheusMetrics struct {
	requests         *prometheus.CounterVec
	validationIssues *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	resultCount      *prometheus.HistogramVec
	consensus        *prometheus.HistogramVec
	values           *prometheus.HistogramVec
	operations       *prometheus.CounterVec
	gauges           *prometheus.GaugeVec
}

type metricsConfig struct {
	registerer prometheus.Registerer
	buckets    []float64
}

// MetricsOption customizes PrometheusMetrics.
type MetricsOption func(*metricsConfig)

// WithRegisterer overrides the default Prometheus registerer. Tests pass a
// fresh prometheus.NewRegistry() so collectors do not collide.
func WithRegisterer(r prometheus.Registerer) MetricsOption {
	return func(cfg *metricsConfig) {
		cfg.registerer = r
	}
}

// WithLatencyBuckets overrides the latency histogram buckets, in seconds.
func WithLatencyBuckets(buckets []float64) MetricsOption {
	return func(cfg *metricsConfig) {
		cfg.buckets = buckets
	}
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and registers
// all required metrics, in the global registry unless WithRegisterer says
// otherwise.
func NewPrometheusMetrics(opts ...MetricsOption) *PrometheusMetrics {
	cfg := metricsConfig{
		registerer: prometheus.DefaultRegisterer,
		buckets:    []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.registerer)
	return &PrometheusMetrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFusionRequests,
				Help: "Total number of fusion calls by fuser, algorithm and outcome.",
			},
			[]string{LabelFuser, LabelAlgorithm, LabelStatus},
		),
		validationIssues: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricValidationIssues,
				Help: "Validation errors and warnings found in fused rankings.",
			},
			[]string{LabelAlgorithm, LabelSeverity},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fusion_duration_seconds",
				Help:    "Execution time of fusion operations.",
				Buckets: cfg.buckets,
			},
			[]string{"operation", LabelAlgorithm},
		),
		resultCount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricResultCount,
				Help:    "Number of documents in fused rankings.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{LabelAlgorithm},
		),
		consensus: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricConsensusScore,
				Help:    "Consensus score of explained fused documents.",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{LabelAlgorithm},
		),
		values: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fusion_observed_values",
				Help:    "Distribution of other fusion values by metric name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric", LabelAlgorithm},
		),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusion_operations_total",
				Help: "Total number of other fusion engine events by metric name.",
			},
			[]string{"metric", LabelAlgorithm},
		),
		gauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fusion_engine_state",
				Help: "Most recent values describing fusion inputs.",
			},
			[]string{"metric", LabelFuser},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.latency.WithLabelValues(operation, label(labels, LabelAlgorithm)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	algorithm := label(labels, LabelAlgorithm)

	switch metric {
	case MetricFusionRequests:
		pm.requests.WithLabelValues(label(labels, LabelFuser), algorithm, label(labels, LabelStatus)).Add(value)
	case MetricValidationIssues:
		pm.validationIssues.WithLabelValues(algorithm, label(labels, LabelSeverity)).Add(value)
	default:
		pm.operations.WithLabelValues(metric, algorithm).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.gauges.WithLabelValues(metric, label(labels, LabelFuser)).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	algorithm := label(labels, LabelAlgorithm)

	switch metric {
	case MetricResultCount:
		pm.resultCount.WithLabelValues(algorithm).Observe(value)
	case MetricConsensusScore:
		pm.consensus.WithLabelValues(algorithm).Observe(value)
	default:
		pm.values.WithLabelValues(metric, algorithm).Observe(value)
	}
}

func label(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return unknownLabel
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
