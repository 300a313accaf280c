package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareScores(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	tests := []struct {
		name string
		a, b float64
		want int
	}{
		{name: "larger first", a: 2, b: 1, want: -1},
		{name: "smaller after", a: 1, b: 2, want: 1},
		{name: "equal ties", a: 1, b: 1, want: 0},
		{name: "nan after number", a: nan, b: -inf, want: 1},
		{name: "number before nan", a: -5, b: nan, want: -1},
		{name: "nan ties nan", a: nan, b: nan, want: 0},
		{name: "inf first", a: inf, b: 1e300, want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareScores(tt.a, tt.b))
		})
	}
}

func TestAccumulator_ResultsOrderingAndTies(t *testing.T) {
	acc := NewAccumulator[string](2, 4)
	acc.Add("late", Contribution{List: 0, Rank: 0, Value: 1})
	acc.Add("tie-a", Contribution{List: 0, Rank: 1, Value: 2})
	acc.Add("tie-b", Contribution{List: 1, Rank: 0, Value: 2})
	acc.Add("top", Contribution{List: 1, Rank: 1, Value: 3})

	results := acc.Results(SumCombiner, 0)
	require.Len(t, results, 4)

	assert.Equal(t, []string{"top", "tie-a", "tie-b", "late"}, ResultIDs(results))
	for i, r := range results {
		assert.Equal(t, i, r.Rank, "rank should be the output position")
	}
}

func TestAccumulator_NaNSortsLast(t *testing.T) {
	acc := NewAccumulator[string](1, 4)
	acc.Add("nan", Contribution{Value: math.NaN()})
	acc.Add("neg-inf", Contribution{Value: math.Inf(-1)})
	acc.Add("pos-inf", Contribution{Value: math.Inf(1)})
	acc.Add("one", Contribution{Value: 1})

	for range 5 {
		results := acc.Results(SumCombiner, 0)
		assert.Equal(t, []string{"pos-inf", "one", "neg-inf", "nan"}, ResultIDs(results))
	}
}

func TestAccumulator_DuplicateOccurrencesSum(t *testing.T) {
	acc := NewAccumulator[string](1, 2)
	acc.Add("d1", Contribution{List: 0, Rank: 0, Value: 1.0 / 60})
	acc.Add("d1", Contribution{List: 0, Rank: 1, Value: 1.0 / 61})

	results := acc.Results(OverlapCombiner, 0)
	require.Len(t, results, 1)

	// Both occurrences belong to one list, so the overlap multiplier stays 1.
	assert.InDelta(t, 1.0/60+1.0/61, results[0].Score, 1e-12)
}

func TestAccumulator_TopK(t *testing.T) {
	acc := NewAccumulator[int](1, 5)
	for i := range 5 {
		acc.Add(i, Contribution{Rank: i, Value: float64(5 - i)})
	}

	assert.Len(t, acc.Results(SumCombiner, 2), 2)
	assert.Len(t, acc.Results(SumCombiner, 0), 5, "zero disables truncation")
	assert.Len(t, acc.Results(SumCombiner, 10), 5, "larger than input keeps everything")
}

func TestCombiners(t *testing.T) {
	values := []float64{0.2, 0.9, 0.4, 0.1}

	assert.InDelta(t, 1.6, SumCombiner(values, 4), 1e-12)
	assert.InDelta(t, 6.4, OverlapCombiner(values, 4), 1e-12)
	assert.InDelta(t, 0.9, MaxCombiner(values, 4), 1e-12)
	assert.InDelta(t, 0.3, MedianCombiner(values, 4), 1e-12)
	assert.InDelta(t, 0.4, MeanCombiner(values, 4), 1e-12)
	assert.InDelta(t, 0.4, MedianCombiner([]float64{0.9, 0.4, 0.1}, 3), 1e-12)
}

func TestAccumulator_Explained(t *testing.T) {
	acc := NewAccumulator[string](2, 3)
	acc.Add("d1", Contribution{List: 0, Rank: 0, Score: 12.5, Value: 1.0 / 60})
	acc.Add("d2", Contribution{List: 0, Rank: 1, Score: 11.0, Value: 1.0 / 61})
	acc.Add("d2", Contribution{List: 1, Rank: 0, Score: 0.9, Value: 1.0 / 60})

	explained := acc.Explained(SumCombiner, 0, AlgorithmRRF, []string{"bm25", "dense"}, nil)
	require.Len(t, explained, 2)

	top := explained[0]
	assert.Equal(t, "d2", top.ID)
	assert.Equal(t, AlgorithmRRF, top.Explanation.Method)
	assert.InDelta(t, 1.0, top.Explanation.ConsensusScore, 1e-12)
	require.Len(t, top.Explanation.Sources, 2)
	assert.Equal(t, "bm25", top.Explanation.Sources[0].RetrieverID)
	assert.Equal(t, 1, *top.Explanation.Sources[0].OriginalRank)
	assert.Equal(t, "dense", top.Explanation.Sources[1].RetrieverID)
	assert.Nil(t, top.Explanation.Sources[0].NormalizedScore)

	single := explained[1]
	assert.Equal(t, "d1", single.ID)
	assert.InDelta(t, 0.5, single.Explanation.ConsensusScore, 1e-12)
	assert.InDelta(t, 12.5, *single.Explanation.Sources[0].OriginalScore, 1e-12)

	// Scores must match the plain path exactly.
	assert.Equal(t, acc.Results(SumCombiner, 0), Plain(explained))
}

func TestAccumulator_ExplainedWeightedConsensus(t *testing.T) {
	acc := NewAccumulator[string](2, 1)
	acc.Add("d1", Contribution{List: 1, Value: 0.5})

	explained := acc.Explained(SumCombiner, 0, AlgorithmWeighted, nil, []float64{0.25, 0.75})
	require.Len(t, explained, 1)

	assert.InDelta(t, 0.75, explained[0].Explanation.ConsensusScore, 1e-12)
	assert.Equal(t, "retriever_1", explained[0].Explanation.Sources[0].RetrieverID)
}
