package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-rankfuse/internal/domain"
)

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like fusion calls, errors, or
	// validation issues.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like the number of input lists.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like result counts or
	// consensus scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// FusionCall describes one fusion invocation for observers.
type FusionCall struct {
	// Fuser is the name of the fuser handling the call.
	Fuser string

	// Algorithm is the fuser's algorithm.
	Algorithm domain.Algorithm

	// Lists is the number of input lists.
	Lists int

	// Items is the total number of items across input lists.
	Items int

	// Explain reports whether provenance was requested.
	Explain bool
}

// FusionObserver receives hooks around fusion calls so tracing and metrics
// stay out of the algorithms.
type FusionObserver interface {
	// Start is called before fusion and may return a derived context that
	// carries a span.
	Start(ctx context.Context, call FusionCall) context.Context

	// Finish is called after fusion with the number of fused results, the
	// elapsed time and the outcome.
	Finish(ctx context.Context, call FusionCall, results int, elapsed time.Duration, err error)
}
