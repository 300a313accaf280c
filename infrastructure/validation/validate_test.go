package validation

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-rankfuse/infrastructure/fusers"
	"github.com/ahrav/go-rankfuse/internal/domain"
)

func results(pairs ...any) []domain.FusedResult[string] {
	out := make([]domain.FusedResult[string], 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.FusedResult[string]{
			ID:    pairs[i].(string),
			Score: pairs[i+1].(float64),
			Rank:  i / 2,
		})
	}
	return out
}

func TestValidateSorted(t *testing.T) {
	tests := []struct {
		name       string
		results    []domain.FusedResult[string]
		wantErrors []string
	}{
		{name: "empty", results: nil},
		{name: "sorted", results: results("a", 0.9, "b", 0.8, "c", 0.7)},
		{name: "equal scores", results: results("a", 0.5, "b", 0.5)},
		{
			name:       "unsorted",
			results:    results("a", 0.9, "b", 0.95, "c", 0.7),
			wantErrors: []string{"Results not sorted: position 0 has score 0.9 < position 1 has score 0.95"},
		},
		{name: "nan last", results: results("a", 1.0, "b", math.NaN())},
		{
			name:       "nan first",
			results:    results("a", math.NaN(), "b", 1.0),
			wantErrors: []string{"Results not sorted: position 0 has score NaN < position 1 has score 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateSorted(tt.results)
			if tt.wantErrors == nil {
				assert.True(t, got.IsValid())
				return
			}
			assert.Equal(t, tt.wantErrors, got.Errors)
		})
	}
}

func TestValidateNoDuplicates(t *testing.T) {
	assert.True(t, ValidateNoDuplicates(results("a", 0.9, "b", 0.8)).IsValid())

	got := ValidateNoDuplicates(results("a", 0.9, "b", 0.8, "a", 0.7))
	assert.Equal(t, []string{"Duplicate document ID at position 2: a"}, got.Errors)
}

func TestValidateFiniteScores(t *testing.T) {
	assert.True(t, ValidateFiniteScores(results("a", 0.9, "b", -0.8)).IsValid())

	got := ValidateFiniteScores(results("a", math.Inf(1), "b", math.NaN()))
	assert.Equal(t, []string{
		"Non-finite score at position 0 for document a: +Inf",
		"Non-finite score at position 1 for document b: NaN",
	}, got.Errors)
}

func TestValidateNonNegativeScores(t *testing.T) {
	got := ValidateNonNegativeScores(results("a", 1.0, "b", -0.5, "c", -1.0))

	assert.True(t, got.IsValid())
	assert.Equal(t, []string{"Found 2 negative scores (may be expected for some algorithms)"}, got.Warnings)
}

func TestValidateBounds(t *testing.T) {
	r := results("a", 0.9, "b", 0.8, "c", 0.7)

	assert.Empty(t, ValidateBounds(r, 0).Warnings)
	assert.Empty(t, ValidateBounds(r, 3).Warnings)
	assert.Equal(t, []string{"Results exceed expected maximum: 3 > 2"}, ValidateBounds(r, 2).Warnings)
}

func TestValidate(t *testing.T) {
	t.Run("combines errors and warnings", func(t *testing.T) {
		got := Validate(results("a", 0.9, "b", 0.95, "a", -0.7),
			WithNonNegativeCheck(), WithMaxResults(2))

		assert.False(t, got.IsValid())
		assert.Len(t, got.Errors, 2)
		assert.Len(t, got.Warnings, 2)
	})

	t.Run("warnings off by default", func(t *testing.T) {
		got := Validate(results("a", -0.1, "b", -0.2))
		assert.True(t, got.IsValid())
		assert.Empty(t, got.Warnings)
	})
}

// TestValidate_EngineOutput checks that output from every fuser passes
// validation when the input scores are finite.
func TestValidate_EngineOutput(t *testing.T) {
	a := domain.RankedList[string]{{ID: "d1", Score: 12.5}, {ID: "d2", Score: 11}, {ID: "d3", Score: 11}, {ID: "d1", Score: 2}}
	b := domain.RankedList[string]{{ID: "d4", Score: 0.9}, {ID: "d2", Score: 0.4}, {ID: "d5", Score: 0.4}}

	for algorithm, factory := range fusers.Factories[string]() {
		t.Run(algorithm.String(), func(t *testing.T) {
			var params map[string]any
			if algorithm == domain.AlgorithmAdditiveMultiTask {
				params = map[string]any{"tasks": []any{
					map[string]any{"name": "a", "weight": 1.0},
					map[string]any{"name": "b", "weight": 20.0},
				}}
			}
			fuser, err := factory("v", params)
			require.NoError(t, err)

			explained, err := fuser.FuseExplained(context.Background(), nil, a, b)
			require.NoError(t, err)

			report := ValidateExplained(explained)
			assert.True(t, report.IsValid(), "errors: %v", report.Errors)
		})
	}
}

func TestValidate_NaNInputSurfaces(t *testing.T) {
	a := domain.RankedList[string]{{ID: "d1", Score: 3}, {ID: "d2", Score: 2}, {ID: "d3", Score: 1}, {ID: "d4", Score: math.NaN()}}
	b := domain.RankedList[string]{{ID: "x", Score: 1}, {ID: "y", Score: 0}}

	for name, fused := range map[string][]domain.FusedResult[string]{
		"dbsf":    fusers.DBSF(a, b),
		"combsum": fusers.CombSUM(a, b),
	} {
		t.Run(name, func(t *testing.T) {
			report := Validate(fused)
			require.Len(t, report.Errors, 1)
			assert.Contains(t, report.Errors[0], "document d4")
		})
	}
}
