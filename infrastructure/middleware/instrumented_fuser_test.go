package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	zapobserver "go.uber.org/zap/zaptest/observer"

	"github.com/ahrav/go-rankfuse/infrastructure/fusers"
	"github.com/ahrav/go-rankfuse/infrastructure/logger"
	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

// countingObserver counts hook invocations.
type countingObserver struct {
	mu       sync.Mutex
	started  int
	finished int
	lastErr  error
	results  int
}

func (o *countingObserver) Start(ctx context.Context, _ ports.FusionCall) context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
	return ctx
}

func (o *countingObserver) Finish(_ context.Context, _ ports.FusionCall, results int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished++
	o.results = results
	o.lastErr = err
}

func hybrid() []domain.RankedList[string] {
	return []domain.RankedList[string]{
		{{ID: "d1", Score: 12.5}, {ID: "d2", Score: 11.0}},
		{{ID: "d2", Score: 0.9}, {ID: "d3", Score: 0.8}},
	}
}

func TestInstrumentedFuser_DelegatesAndObserves(t *testing.T) {
	inner, err := fusers.NewRRFFuser[string]("hybrid", fusers.DefaultRRFConfig())
	require.NoError(t, err)

	obs := &countingObserver{}
	f := NewInstrumentedFuser[string](inner, WithObserver[string](obs))

	assert.Equal(t, "hybrid", f.Name())
	assert.Equal(t, domain.AlgorithmRRF, f.Algorithm())
	assert.NoError(t, f.Validate())
	assert.Same(t, inner, f.Unwrap())

	want, err := inner.Fuse(context.Background(), hybrid()...)
	require.NoError(t, err)

	got, err := f.Fuse(context.Background(), hybrid()...)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, obs.started)
	assert.Equal(t, 1, obs.finished)
	assert.Equal(t, 3, obs.results)
	assert.NoError(t, obs.lastErr)
}

func TestInstrumentedFuser_FuseExplainedRecordsConsensus(t *testing.T) {
	inner, err := fusers.NewRRFFuser[string]("hybrid", fusers.DefaultRRFConfig())
	require.NoError(t, err)

	metrics := newRecordingCollector()
	f := NewInstrumentedFuser[string](inner, WithMetrics[string](metrics))

	results, err := f.FuseExplained(context.Background(), []string{"bm25", "dense"}, hybrid()...)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []float64{1, 0.5, 0.5}, metrics.histograms[MetricConsensusScore])
}

func TestInstrumentedFuser_LogsFailures(t *testing.T) {
	inner, err := fusers.NewWeightedFuser[string]("weighted", fusers.DefaultWeightedConfig().WithWeights(0.7, 0.3))
	require.NoError(t, err)

	core, logs := zapobserver.New(zap.DebugLevel)
	obs := &countingObserver{}
	f := NewInstrumentedFuser[string](inner,
		WithObserver[string](obs),
		WithLogger[string](logger.Wrap(zap.New(core))),
	)

	ctx := logger.WithRequestID(context.Background(), "req-42")
	_, err = f.Fuse(ctx, hybrid()[0])
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrWeightCountMismatch))

	var fusionErr *ports.FusionError
	require.ErrorAs(t, err, &fusionErr)
	assert.Equal(t, "weighted", fusionErr.Fuser)

	assert.ErrorIs(t, obs.lastErr, domain.ErrWeightCountMismatch)

	failures := logs.FilterMessage("fusion failed").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	assert.Equal(t, "weighted", fields["fuser"])
	assert.Equal(t, "req-42", fields["request_id"])
}

func TestInstrumentedFuser_NilNextPanics(t *testing.T) {
	assert.Panics(t, func() { NewInstrumentedFuser[string](nil) })
}

func TestInstrumentedFuser_ConcurrentCalls(t *testing.T) {
	inner, err := fusers.NewCombFuser[string]("comb", domain.AlgorithmCombSUM, fusers.DefaultCombConfig())
	require.NoError(t, err)

	obs := &countingObserver{}
	f := NewInstrumentedFuser[string](inner, WithObserver[string](obs), WithMetrics[string](newRecordingCollector()))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.FuseExplained(context.Background(), nil, hybrid()...)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, obs.started)
	assert.Equal(t, 16, obs.finished)
}
