package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-rankfuse/infrastructure/logger"
)

// DefaultBatchConcurrency is used when a BatchRunner is created without an
// explicit concurrency limit.
const DefaultBatchConcurrency = 8

// BatchRunner runs a pipeline over many queries concurrently. It is a
// caller-side scheduling utility: fusion itself never blocks, so the
// limiter only paces how fast queries are dispatched.
type BatchRunner[I comparable] struct {
	pipeline    *Pipeline[I]
	concurrency int
	limiter     *rate.Limiter
	log         *logger.Logger
}

// BatchOption customizes a BatchRunner.
type BatchOption[I comparable] func(*BatchRunner[I])

// WithConcurrency bounds the number of queries fused at once. Values below
// one select DefaultBatchConcurrency.
func WithConcurrency[I comparable](n int) BatchOption[I] {
	return func(b *BatchRunner[I]) { b.concurrency = n }
}

// WithRateLimit paces dispatch with a token bucket of the given rate and
// burst.
func WithRateLimit[I comparable](limit rate.Limit, burst int) BatchOption[I] {
	return func(b *BatchRunner[I]) { b.limiter = rate.NewLimiter(limit, burst) }
}

// WithBatchLogger sets the logger used for batch progress.
func WithBatchLogger[I comparable](log *logger.Logger) BatchOption[I] {
	return func(b *BatchRunner[I]) {
		if log != nil {
			b.log = log
		}
	}
}

// NewBatchRunner creates a runner for pipeline.
func NewBatchRunner[I comparable](pipeline *Pipeline[I], opts ...BatchOption[I]) *BatchRunner[I] {
	b := &BatchRunner[I]{
		pipeline:    pipeline,
		concurrency: DefaultBatchConcurrency,
		log:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.concurrency < 1 {
		b.concurrency = DefaultBatchConcurrency
	}
	return b
}

// Pipeline returns the pipeline the runner executes.
func (b *BatchRunner[I]) Pipeline() *Pipeline[I] { return b.pipeline }

// Run fuses every query and returns the outcomes in query order. The first
// failure cancels the remaining work and is returned.
func (b *BatchRunner[I]) Run(ctx context.Context, queries []Query[I]) ([]*Outcome[I], error) {
	outcomes := make([]*Outcome[I], len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, q := range queries {
		if b.limiter != nil {
			if err := b.limiter.Wait(gctx); err != nil {
				// Either ctx was cancelled or a query already failed;
				// Wait reports the latter through g.Wait below.
				if werr := g.Wait(); werr != nil {
					return nil, werr
				}
				return nil, fmt.Errorf("rate limit: %w", err)
			}
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := b.pipeline.Run(gctx, q)
			if err != nil {
				return fmt.Errorf("query %d (%s): %w", i, q.ID, err)
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.log.Debug("batch completed",
		zap.String("pipeline", b.pipeline.Name()),
		zap.Int("queries", len(queries)),
		zap.Int("concurrency", b.concurrency),
	)
	return outcomes, nil
}
