package domain

import (
	"fmt"
	"math"
)

// Normalization selects how one list's scores are mapped onto a comparable
// scale before score-based fusion.
type Normalization string

// Supported normalization strategies.
const (
	// NormalizationMinMax rescales scores to [0,1]. A list whose scores are
	// all equal maps every score to 1.0.
	NormalizationMinMax Normalization = "minmax"

	// NormalizationZScore standardizes scores to zero mean and unit
	// variance. A list with zero variance maps every finite score to 0.0.
	NormalizationZScore Normalization = "zscore"

	// NormalizationSum divides each score by the list total. A list whose
	// scores sum to zero maps every finite score to 0.0.
	NormalizationSum Normalization = "sum"

	// NormalizationRank discards scores and emits N-position.
	NormalizationRank Normalization = "rank"

	// NormalizationNone passes scores through unchanged.
	NormalizationNone Normalization = "none"
)

// degenerateEpsilon is the threshold below which a range, deviation or
// total is treated as zero.
const degenerateEpsilon = 1e-9

// String returns the canonical name of the normalization.
func (n Normalization) String() string { return string(n) }

// Valid reports whether n is a supported normalization.
func (n Normalization) Valid() bool {
	switch n {
	case NormalizationMinMax, NormalizationZScore, NormalizationSum, NormalizationRank, NormalizationNone:
		return true
	default:
		return false
	}
}

// ParseNormalization resolves a case-insensitive normalization name.
func ParseNormalization(name string) (Normalization, error) {
	n := Normalization(CanonicalName(name))
	if !n.Valid() {
		return "", fmt.Errorf("%w: %q (must be one of minmax, zscore, sum, rank, none)",
			ErrUnknownNormalization, name)
	}
	return n, nil
}

// Normalize maps scores with the given strategy. The output has the same
// length and order as the input; empty input yields empty output.
// An unknown strategy behaves like NormalizationNone.
func Normalize(method Normalization, scores []float64) []float64 {
	switch method {
	case NormalizationMinMax:
		return MinMax(scores)
	case NormalizationZScore:
		return ZScore(scores)
	case NormalizationSum:
		return SumNormalize(scores)
	case NormalizationRank:
		return RankNormalize(len(scores))
	default:
		out := make([]float64, len(scores))
		copy(out, scores)
		return out
	}
}

// NormalizeList normalizes the scores of a ranked list.
func NormalizeList[I comparable](method Normalization, list RankedList[I]) []float64 {
	return Normalize(method, list.Scores())
}

// MinMax computes (s-min)/(max-min). Non-finite scores are ignored when
// locating the bounds and propagate through the arithmetic unchanged.
func MinMax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}

	rng := hi - lo
	if math.IsInf(lo, 1) || rng < degenerateEpsilon {
		for i, s := range scores {
			if math.IsNaN(s) {
				out[i] = s
				continue
			}
			out[i] = 1.0
		}
		return out
	}

	for i, s := range scores {
		out[i] = (s - lo) / rng
	}
	return out
}

// ZScore computes (s-mean)/stddev using the population standard deviation
// of the finite scores. Non-finite scores are passed through unchanged.
func ZScore(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	mean, stddev, ok := meanStddev(scores)
	degenerate := !ok || stddev < degenerateEpsilon
	for i, s := range scores {
		switch {
		case !isFinite(s):
			out[i] = s
		case degenerate:
			out[i] = 0
		default:
			out[i] = (s - mean) / stddev
		}
	}
	return out
}

// ClippedZScore computes z-scores and clamps each to [lo, hi].
func ClippedZScore(scores []float64, lo, hi float64) []float64 {
	out := ZScore(scores)
	for i, z := range out {
		out[i] = clamp(z, lo, hi)
	}
	return out
}

// SumNormalize computes s/Σs over the finite scores. Non-finite scores are
// passed through unchanged.
func SumNormalize(scores []float64) []float64 {
	out := make([]float64, len(scores))

	var total float64
	for _, s := range scores {
		if isFinite(s) {
			total += s
		}
	}
	degenerate := math.Abs(total) < degenerateEpsilon || !isFinite(total)

	for i, s := range scores {
		switch {
		case !isFinite(s):
			out[i] = s
		case degenerate:
			out[i] = 0
		default:
			out[i] = s / total
		}
	}
	return out
}

// RankNormalize emits N-position for a list of length n, so position 0
// receives the largest value.
func RankNormalize(n int) []float64 {
	out := make([]float64, n)
	for i := range n {
		out[i] = float64(n - i)
	}
	return out
}

// meanStddev returns the mean and population standard deviation of the
// finite scores. ok is false when there are none.
func meanStddev(scores []float64) (mean, stddev float64, ok bool) {
	var sum float64
	n := 0
	for _, s := range scores {
		if !isFinite(s) {
			continue
		}
		sum += s
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	mean = sum / float64(n)

	var sq float64
	for _, s := range scores {
		if !isFinite(s) {
			continue
		}
		d := s - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(n))
	return mean, stddev, isFinite(stddev)
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// clamp bounds v to [lo, hi]; NaN is returned unchanged.
func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return v
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
