package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ahrav/go-rankfuse/infrastructure/logger"
	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

// InstrumentedFuser wraps an ExplainingFuser with observability. It reports
// every call to an optional FusionObserver, records the consensus of
// explained results on an optional MetricsCollector and logs failures.
// The wrapper holds no per-call state and is safe for concurrent use as
// long as the wrapped fuser is.
type InstrumentedFuser[I comparable] struct {
	// next holds the fuser doing the actual work.
	next ports.ExplainingFuser[I]

	// observer provides optional tracing hooks.
	observer ports.FusionObserver

	// metrics receives per-result consensus observations.
	metrics ports.MetricsCollector

	log *logger.Logger
}

// InstrumentOption customizes an InstrumentedFuser.
type InstrumentOption[I comparable] func(*InstrumentedFuser[I])

// WithObserver attaches a FusionObserver.
func WithObserver[I comparable](o ports.FusionObserver) InstrumentOption[I] {
	return func(f *InstrumentedFuser[I]) { f.observer = o }
}

// WithMetrics attaches a MetricsCollector.
func WithMetrics[I comparable](m ports.MetricsCollector) InstrumentOption[I] {
	return func(f *InstrumentedFuser[I]) { f.metrics = m }
}

// WithLogger attaches a logger. The default discards output.
func WithLogger[I comparable](l *logger.Logger) InstrumentOption[I] {
	return func(f *InstrumentedFuser[I]) {
		if l != nil {
			f.log = l
		}
	}
}

// NewInstrumentedFuser wraps next. It panics when next is nil since that is
// a wiring bug, not a runtime condition.
func NewInstrumentedFuser[I comparable](
	next ports.ExplainingFuser[I],
	opts ...InstrumentOption[I],
) *InstrumentedFuser[I] {
	if next == nil {
		panic("instrumented fuser: next fuser is required")
	}
	f := &InstrumentedFuser[I]{next: next, log: logger.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.Named("fuser").With(
		zap.String("fuser", next.Name()),
		zap.String("algorithm", next.Algorithm().String()),
	)
	return f
}

// Name returns the wrapped fuser's name.
func (f *InstrumentedFuser[I]) Name() string { return f.next.Name() }

// Algorithm returns the wrapped fuser's algorithm.
func (f *InstrumentedFuser[I]) Algorithm() domain.Algorithm { return f.next.Algorithm() }

// Validate delegates to the wrapped fuser.
func (f *InstrumentedFuser[I]) Validate() error { return f.next.Validate() }

// Unwrap returns the wrapped fuser.
func (f *InstrumentedFuser[I]) Unwrap() ports.ExplainingFuser[I] { return f.next }

// Fuse runs the wrapped fuser between observer hooks.
func (f *InstrumentedFuser[I]) Fuse(
	ctx context.Context,
	lists ...domain.RankedList[I],
) ([]domain.FusedResult[I], error) {
	call := f.call(false, lists)
	ctx = f.start(ctx, call)

	start := time.Now()
	results, err := f.next.Fuse(ctx, lists...)
	f.finish(ctx, call, len(results), time.Since(start), err)
	return results, err
}

// FuseExplained runs the wrapped fuser between observer hooks and records
// the consensus score of each explained result.
func (f *InstrumentedFuser[I]) FuseExplained(
	ctx context.Context,
	retrievers []string,
	lists ...domain.RankedList[I],
) ([]domain.ExplainedResult[I], error) {
	call := f.call(true, lists)
	ctx = f.start(ctx, call)

	start := time.Now()
	results, err := f.next.FuseExplained(ctx, retrievers, lists...)
	f.finish(ctx, call, len(results), time.Since(start), err)

	if err == nil && f.metrics != nil {
		labels := map[string]string{
			LabelFuser:     call.Fuser,
			LabelAlgorithm: call.Algorithm.String(),
		}
		for _, r := range results {
			f.metrics.RecordHistogram(MetricConsensusScore, r.Explanation.ConsensusScore, labels)
		}
	}
	return results, err
}

func (f *InstrumentedFuser[I]) call(explain bool, lists []domain.RankedList[I]) ports.FusionCall {
	items := 0
	for _, l := range lists {
		items += len(l)
	}
	return ports.FusionCall{
		Fuser:     f.next.Name(),
		Algorithm: f.next.Algorithm(),
		Lists:     len(lists),
		Items:     items,
		Explain:   explain,
	}
}

func (f *InstrumentedFuser[I]) start(ctx context.Context, call ports.FusionCall) context.Context {
	if f.observer == nil {
		return ctx
	}
	return f.observer.Start(ctx, call)
}

func (f *InstrumentedFuser[I]) finish(
	ctx context.Context,
	call ports.FusionCall,
	results int,
	elapsed time.Duration,
	err error,
) {
	if f.observer != nil {
		f.observer.Finish(ctx, call, results, elapsed, err)
	}

	log := f.log
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		log = log.With(zap.String("request_id", requestID))
	}
	if err != nil {
		log.Warn("fusion failed",
			zap.Int("lists", call.Lists),
			zap.Int("items", call.Items),
			zap.Error(err),
		)
		return
	}
	log.Debug("fusion completed",
		zap.Bool("explain", call.Explain),
		zap.Int("lists", call.Lists),
		zap.Int("items", call.Items),
		zap.Int("results", results),
		zap.Duration("elapsed", elapsed),
	)
}

var _ ports.ExplainingFuser[string] = (*InstrumentedFuser[string])(nil)
