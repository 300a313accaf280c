package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		method Normalization
		scores []float64
		want   []float64
	}{
		{
			name:   "minmax spreads to unit interval",
			method: NormalizationMinMax,
			scores: []float64{10, 5, 0},
			want:   []float64{1, 0.5, 0},
		},
		{
			name:   "minmax degenerate list maps to one",
			method: NormalizationMinMax,
			scores: []float64{0.4, 0.4, 0.4},
			want:   []float64{1, 1, 1},
		},
		{
			name:   "minmax single item maps to one",
			method: NormalizationMinMax,
			scores: []float64{7},
			want:   []float64{1},
		},
		{
			name:   "zscore centers and scales",
			method: NormalizationZScore,
			scores: []float64{1, 2, 3},
			want:   []float64{-1.224744871, 0, 1.224744871},
		},
		{
			name:   "zscore zero variance maps to zero",
			method: NormalizationZScore,
			scores: []float64{0.1, 0.1, 0.1},
			want:   []float64{0, 0, 0},
		},
		{
			name:   "sum divides by total",
			method: NormalizationSum,
			scores: []float64{3, 1},
			want:   []float64{0.75, 0.25},
		},
		{
			name:   "sum with zero total maps to zero",
			method: NormalizationSum,
			scores: []float64{1, -1},
			want:   []float64{0, 0},
		},
		{
			name:   "rank ignores scores",
			method: NormalizationRank,
			scores: []float64{0.1, 99, -3},
			want:   []float64{3, 2, 1},
		},
		{
			name:   "none is identity",
			method: NormalizationNone,
			scores: []float64{0.3, -2},
			want:   []float64{0.3, -2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.method, tt.scores)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-6, "index %d", i)
			}
		})
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	for _, method := range []Normalization{
		NormalizationMinMax, NormalizationZScore, NormalizationSum, NormalizationRank, NormalizationNone,
	} {
		t.Run(method.String(), func(t *testing.T) {
			assert.Empty(t, Normalize(method, nil))
		})
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	scores := []float64{3, 2, 1}
	_ = Normalize(NormalizationNone, scores)
	_ = Normalize(NormalizationMinMax, scores)

	assert.Equal(t, []float64{3, 2, 1}, scores)
}

func TestMinMax_NonFiniteScores(t *testing.T) {
	got := MinMax([]float64{math.NaN(), 4, 2})

	assert.True(t, math.IsNaN(got[0]), "NaN should propagate")
	assert.InDelta(t, 1.0, got[1], 1e-9)
	assert.InDelta(t, 0.0, got[2], 1e-9)
}

func TestZScoreAndSum_NonFiniteScores(t *testing.T) {
	scores := []float64{3, 2, 1, math.NaN(), math.Inf(1)}

	t.Run("zscore uses finite scores only", func(t *testing.T) {
		got := ZScore(scores)
		z := 1 / math.Sqrt(2.0/3.0)
		assert.InDelta(t, z, got[0], 1e-9)
		assert.InDelta(t, 0, got[1], 1e-9)
		assert.InDelta(t, -z, got[2], 1e-9)
		assert.True(t, math.IsNaN(got[3]), "NaN should propagate")
		assert.True(t, math.IsInf(got[4], 1), "+Inf should propagate")
	})

	t.Run("sum uses finite total", func(t *testing.T) {
		got := SumNormalize(scores)
		assert.InDelta(t, 0.5, got[0], 1e-9)
		assert.InDelta(t, 1.0/3.0, got[1], 1e-9)
		assert.InDelta(t, 1.0/6.0, got[2], 1e-9)
		assert.True(t, math.IsNaN(got[3]))
		assert.True(t, math.IsInf(got[4], 1))
	})

	t.Run("no finite scores", func(t *testing.T) {
		got := ZScore([]float64{math.NaN(), math.Inf(-1)})
		assert.True(t, math.IsNaN(got[0]))
		assert.True(t, math.IsInf(got[1], -1))
	})
}

func TestClippedZScore(t *testing.T) {
	scores := []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 100}
	got := ClippedZScore(scores, -1, 1)

	for i, z := range got {
		assert.GreaterOrEqual(t, z, -1.0, "index %d", i)
		assert.LessOrEqual(t, z, 1.0, "index %d", i)
	}
	assert.Equal(t, 1.0, got[9], "outlier should be clipped to the upper bound")
}

func TestParseNormalization(t *testing.T) {
	tests := []struct {
		input   string
		want    Normalization
		wantErr bool
	}{
		{input: "minmax", want: NormalizationMinMax},
		{input: "ZScore", want: NormalizationZScore},
		{input: " SUM ", want: NormalizationSum},
		{input: "rank", want: NormalizationRank},
		{input: "None", want: NormalizationNone},
		{input: "l2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNormalization(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownNormalization)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
