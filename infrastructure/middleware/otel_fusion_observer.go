package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

var _ ports.FusionObserver = (*OTelFusionObserver)(nil)

// tracerName identifies spans created by the fusion engine.
const tracerName = "github.com/ahrav/go-rankfuse"

// OTelFusionObserver implements observability for fusion calls using
// OpenTelemetry tracing. It opens a span per call, records the input shape
// and outcome as attributes and events, and forwards latency and counts to
// an optional MetricsCollector. The span travels in the context, so one
// observer serves concurrent calls.
type OTelFusionObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewOTelFusionObserver creates a new OpenTelemetry fusion observer using
// the global tracer provider. metrics may be nil.
func NewOTelFusionObserver(metrics ports.MetricsCollector) *OTelFusionObserver {
	return NewOTelFusionObserverWithTracer(metrics, otel.Tracer(tracerName))
}

// NewOTelFusionObserverWithTracer creates an observer that records spans on
// the given tracer.
func NewOTelFusionObserverWithTracer(metrics ports.MetricsCollector, tracer trace.Tracer) *OTelFusionObserver {
	return &OTelFusionObserver{metrics: metrics, tracer: tracer}
}

// Start implements the FusionObserver interface. It starts a span named
// after the operation and records the input shape.
func (o *OTelFusionObserver) Start(ctx context.Context, call ports.FusionCall) context.Context {
	name := "Fuser.Fuse"
	if call.Explain {
		name = "Fuser.FuseExplained"
	}

	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("fusion.fuser", call.Fuser),
		attribute.String("fusion.algorithm", call.Algorithm.String()),
		attribute.Int("fusion.input_lists", call.Lists),
		attribute.Int("fusion.input_items", call.Items),
		attribute.Bool("fusion.explain", call.Explain),
	))

	if call.Lists < 2 {
		span.AddEvent("fusion.degenerate_input", trace.WithAttributes(
			attribute.Int("lists", call.Lists),
		))
	}

	if o.metrics != nil {
		labels := o.createMetricLabels(call)
		o.metrics.RecordGauge(MetricInputLists, float64(call.Lists), labels)
		o.metrics.RecordGauge(MetricInputItems, float64(call.Items), labels)
	}
	return ctx
}

// Finish implements the FusionObserver interface. It finalizes the span,
// records metrics and marks failures.
func (o *OTelFusionObserver) Finish(
	ctx context.Context,
	call ports.FusionCall,
	results int,
	elapsed time.Duration,
	err error,
) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	labels := o.createMetricLabels(call)
	if o.metrics != nil {
		o.metrics.RecordLatency(operationName(call), elapsed, labels)
	}

	if err != nil {
		var configErr bool
		for _, target := range []error{
			domain.ErrWeightCountMismatch,
			domain.ErrRetrieverCountMismatch,
			domain.ErrZeroWeights,
		} {
			if errors.Is(err, target) {
				configErr = true
				break
			}
		}
		if configErr {
			span.AddEvent("fusion.configuration_error", trace.WithAttributes(
				attribute.String("error", err.Error()),
			))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if o.metrics != nil {
			labels[LabelStatus] = "error"
			o.metrics.RecordCounter(MetricFusionRequests, 1, labels)
		}
		return
	}

	span.SetAttributes(attribute.Int("fusion.results", results))
	span.SetStatus(codes.Ok, "fusion completed")

	if o.metrics != nil {
		labels[LabelStatus] = "success"
		o.metrics.RecordCounter(MetricFusionRequests, 1, labels)
		o.metrics.RecordHistogram(MetricResultCount, float64(results), labels)
	}
}

// createMetricLabels creates the standard set of metric labels for a call.
func (o *OTelFusionObserver) createMetricLabels(call ports.FusionCall) map[string]string {
	return map[string]string{
		LabelFuser:     call.Fuser,
		LabelAlgorithm: call.Algorithm.String(),
	}
}

func operationName(call ports.FusionCall) string {
	if call.Explain {
		return "fuse_explained"
	}
	return "fuse"
}
