package fusers

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

func weightedLists() (domain.RankedList[string], domain.RankedList[string]) {
	a := domain.RankedList[string]{{ID: "d1", Score: 1}, {ID: "d2", Score: 0}}
	b := domain.RankedList[string]{{ID: "d3", Score: 5}}
	return a, b
}

func TestWeightedFuser_Fuse(t *testing.T) {
	a, b := weightedLists()

	t.Run("weights divided by their total", func(t *testing.T) {
		results, err := Weighted([]float64{3, 1}, a, b)
		require.NoError(t, err)

		assert.Equal(t, []string{"d1", "d3", "d2"}, domain.ResultIDs(results))
		assert.InDelta(t, 0.75, results[0].Score, 1e-12)
		assert.InDelta(t, 0.25, results[1].Score, 1e-12)
		assert.InDelta(t, 0.0, results[2].Score, 1e-12)
	})

	t.Run("scaling weights does not change scores", func(t *testing.T) {
		small, err := Weighted([]float64{3, 1}, a, b)
		require.NoError(t, err)
		large, err := Weighted([]float64{300, 100}, a, b)
		require.NoError(t, err)

		for i := range small {
			assert.InDelta(t, small[i].Score, large[i].Score, 1e-12)
		}
	})

	t.Run("equal weights when none configured", func(t *testing.T) {
		fuser, err := NewWeightedFuser[string]("w", DefaultWeightedConfig())
		require.NoError(t, err)

		results, err := fuser.Fuse(context.Background(), a, b)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, results[0].Score, 1e-12)
		assert.InDelta(t, 0.5, results[1].Score, 1e-12)
	})
}

func TestWeightedFuser_Errors(t *testing.T) {
	a, b := weightedLists()

	t.Run("zero weights", func(t *testing.T) {
		results, err := Weighted([]float64{0, 0}, a, b)
		assert.ErrorIs(t, err, domain.ErrZeroWeights)
		assert.Nil(t, results)
	})

	t.Run("weights cancelling out", func(t *testing.T) {
		_, err := NewWeightedFuser[string]("w", DefaultWeightedConfig().WithWeights(1, -1))
		assert.ErrorIs(t, err, domain.ErrZeroWeights)
	})

	t.Run("non-finite weight", func(t *testing.T) {
		_, err := NewWeightedFuser[string]("w", DefaultWeightedConfig().WithWeights(1, math.NaN()))
		assert.ErrorIs(t, err, domain.ErrInvalidWeight)
	})

	t.Run("weight count mismatch", func(t *testing.T) {
		fuser, err := NewWeightedFuser[string]("w", DefaultWeightedConfig().WithWeights(1, 2, 3))
		require.NoError(t, err)

		_, err = fuser.Fuse(context.Background(), a, b)
		assert.ErrorIs(t, err, domain.ErrWeightCountMismatch)

		var fusionErr *ports.FusionError
		require.True(t, errors.As(err, &fusionErr))
		assert.Equal(t, domain.AlgorithmWeighted, fusionErr.Algorithm)
		assert.Equal(t, "Fuse", fusionErr.Operation)
	})

	t.Run("no weights given to helper", func(t *testing.T) {
		_, err := Weighted(nil, a, b)
		assert.ErrorIs(t, err, domain.ErrWeightCountMismatch)
	})
}

func TestWeightedFuser_FuseExplained(t *testing.T) {
	a, b := weightedLists()

	fuser, err := NewWeightedFuser[string]("w", DefaultWeightedConfig().WithWeights(3, 1))
	require.NoError(t, err)

	explained, err := fuser.FuseExplained(context.Background(), []string{"bm25", "dense"}, a, b)
	require.NoError(t, err)
	require.Len(t, explained, 3)

	byID := make(map[string]domain.ExplainedResult[string], len(explained))
	for _, e := range explained {
		byID[e.ID] = e
	}

	assert.InDelta(t, 0.75, byID["d1"].Explanation.ConsensusScore, 1e-12)
	assert.InDelta(t, 0.25, byID["d3"].Explanation.ConsensusScore, 1e-12)
	assert.InDelta(t, 0.75, byID["d1"].Explanation.Sources[0].Contribution, 1e-12)
	assert.Equal(t, "dense", byID["d3"].Explanation.Sources[0].RetrieverID)

	plain, err := fuser.Fuse(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, plain, domain.Plain(explained))
}

func TestNewWeightedFromConfig(t *testing.T) {
	fuser, err := NewWeightedFromConfig[string]("w", map[string]any{
		"weights":       []any{0.3, 0.7},
		"normalization": "none",
	})
	require.NoError(t, err)

	cfg := fuser.(*WeightedFuser[string]).Config()
	assert.Equal(t, []float64{0.3, 0.7}, cfg.Weights)
	assert.Equal(t, domain.NormalizationNone, cfg.Normalization)

	_, err = NewWeightedFromConfig[string]("w", map[string]any{"weights": []any{0.0, 0.0}})
	assert.ErrorIs(t, err, domain.ErrZeroWeights)
}

func TestWeightedConfig_WithWeightsCopies(t *testing.T) {
	weights := []float64{1, 2}
	cfg := DefaultWeightedConfig().WithWeights(weights...)
	weights[0] = 100

	assert.Equal(t, []float64{1, 2}, cfg.Weights)
}
