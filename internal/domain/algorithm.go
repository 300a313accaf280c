package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Algorithm names one member of the closed set of fusion algorithms.
type Algorithm string

// Supported fusion algorithms.
const (
	// AlgorithmRRF is Reciprocal Rank Fusion: Σ 1/(k+rank).
	AlgorithmRRF Algorithm = "rrf"

	// AlgorithmISR is Inverse Square Rank: Σ 1/√(k+rank).
	AlgorithmISR Algorithm = "isr"

	// AlgorithmBorda is the Borda count: Σ (N-rank).
	AlgorithmBorda Algorithm = "borda"

	// AlgorithmRBC is Rank-Biased Centroid with persistence q.
	AlgorithmRBC Algorithm = "rbc"

	// AlgorithmCombSUM sums normalized scores.
	AlgorithmCombSUM Algorithm = "combsum"

	// AlgorithmCombMNZ multiplies CombSUM by the number of lists containing the document.
	AlgorithmCombMNZ Algorithm = "combmnz"

	// AlgorithmCombMAX keeps the maximum normalized score.
	AlgorithmCombMAX Algorithm = "combmax"

	// AlgorithmCombMED keeps the median normalized score.
	AlgorithmCombMED Algorithm = "combmed"

	// AlgorithmCombANZ averages normalized scores over the lists containing the document.
	AlgorithmCombANZ Algorithm = "combanz"

	// AlgorithmDBSF is Distribution-Based Score Fusion.
	AlgorithmDBSF Algorithm = "dbsf"

	// AlgorithmStandardized sums z-scores clipped to a configurable range.
	AlgorithmStandardized Algorithm = "standardized"

	// AlgorithmWeighted sums per-list weighted normalized scores.
	AlgorithmWeighted Algorithm = "weighted"

	// AlgorithmAdditiveMultiTask sums weighted scores of named tasks.
	AlgorithmAdditiveMultiTask Algorithm = "additive_multi_task"
)

// allAlgorithms lists every supported algorithm in documentation order.
var allAlgorithms = []Algorithm{
	AlgorithmRRF,
	AlgorithmISR,
	AlgorithmBorda,
	AlgorithmRBC,
	AlgorithmCombSUM,
	AlgorithmCombMNZ,
	AlgorithmCombMAX,
	AlgorithmCombMED,
	AlgorithmCombANZ,
	AlgorithmDBSF,
	AlgorithmStandardized,
	AlgorithmWeighted,
	AlgorithmAdditiveMultiTask,
}

// Algorithms returns every supported algorithm.
func Algorithms() []Algorithm {
	out := make([]Algorithm, len(allAlgorithms))
	copy(out, allAlgorithms)
	return out
}

// String returns the canonical name of the algorithm.
func (a Algorithm) String() string { return string(a) }

// IsRankBased reports whether the algorithm ignores score magnitudes.
func (a Algorithm) IsRankBased() bool {
	switch a {
	case AlgorithmRRF, AlgorithmISR, AlgorithmBorda, AlgorithmRBC:
		return true
	default:
		return false
	}
}

// Valid reports whether a is a member of the supported set.
func (a Algorithm) Valid() bool {
	for _, known := range allAlgorithms {
		if a == known {
			return true
		}
	}
	return false
}

// ParseAlgorithm resolves a user-supplied algorithm name. Matching is
// case-insensitive and treats '-' and ' ' like '_'.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(CanonicalName(name))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return a, nil
}

// CanonicalName folds case and separators so "Additive-Multi-Task" and
// "additive_multi_task" resolve to the same name.
func CanonicalName(name string) string {
	name = cases.Fold().String(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", " ", "_").Replace(name)
}
