// Package validation checks finished fused rankings for structural
// invariants before they are used downstream. The checks only look at the
// output shape and work with results from any fuser.
package validation

import (
	"fmt"
	"math"

	"github.com/ahrav/go-rankfuse/internal/domain"
)

// ValidateSorted reports an error for every adjacent pair that is out of
// descending order. NaN sorts after every number, matching the fusion
// engine's order.
func ValidateSorted[I comparable](results []domain.FusedResult[I]) domain.ValidationResult {
	out := domain.NewValidationResult()
	for i := 1; i < len(results); i++ {
		a, b := results[i-1].Score, results[i].Score
		if domain.CompareScores(a, b) > 0 {
			out.AddError(fmt.Sprintf("Results not sorted: position %d has score %v < position %d has score %v",
				i-1, a, i, b))
		}
	}
	return out
}

// ValidateNoDuplicates reports an error for every repeated identifier after
// its first occurrence.
func ValidateNoDuplicates[I comparable](results []domain.FusedResult[I]) domain.ValidationResult {
	out := domain.NewValidationResult()
	seen := make(map[I]struct{}, len(results))
	for i, r := range results {
		if _, ok := seen[r.ID]; ok {
			out.AddError(fmt.Sprintf("Duplicate document ID at position %d: %v", i, r.ID))
			continue
		}
		seen[r.ID] = struct{}{}
	}
	return out
}

// ValidateFiniteScores reports an error for every NaN or infinite score.
func ValidateFiniteScores[I comparable](results []domain.FusedResult[I]) domain.ValidationResult {
	out := domain.NewValidationResult()
	for i, r := range results {
		if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
			out.AddError(fmt.Sprintf("Non-finite score at position %d for document %v: %v", i, r.ID, r.Score))
		}
	}
	return out
}

// ValidateNonNegativeScores warns once when any score is negative. Negative
// scores are expected from z-score based fusers, so this is never an error.
func ValidateNonNegativeScores[I comparable](results []domain.FusedResult[I]) domain.ValidationResult {
	out := domain.NewValidationResult()
	negative := 0
	for _, r := range results {
		if r.Score < 0 {
			negative++
		}
	}
	if negative > 0 {
		out.AddWarning(fmt.Sprintf("Found %d negative scores (may be expected for some algorithms)", negative))
	}
	return out
}

// ValidateBounds warns when there are more results than maxResults.
// maxResults <= 0 disables the check.
func ValidateBounds[I comparable](results []domain.FusedResult[I], maxResults int) domain.ValidationResult {
	out := domain.NewValidationResult()
	if maxResults > 0 && len(results) > maxResults {
		out.AddWarning(fmt.Sprintf("Results exceed expected maximum: %d > %d", len(results), maxResults))
	}
	return out
}

type options struct {
	checkNonNegative bool
	maxResults       int
}

// Option configures Validate.
type Option func(*options)

// WithNonNegativeCheck enables the negative-score warning.
func WithNonNegativeCheck() Option {
	return func(o *options) { o.checkNonNegative = true }
}

// WithMaxResults enables the result-count warning.
func WithMaxResults(n int) Option {
	return func(o *options) { o.maxResults = n }
}

// Validate runs the sorted, duplicate and finite-score checks, which produce
// errors, plus the optional warning checks selected by opts.
//
// Example:
//
//	report := validation.Validate(results, validation.WithMaxResults(10))
//	if !report.IsValid() {
//	    return fmt.Errorf("fused ranking rejected: %v", report.Errors)
//	}
func Validate[I comparable](results []domain.FusedResult[I], opts ...Option) domain.ValidationResult {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	out := domain.NewValidationResult()
	out.Merge(ValidateSorted(results))
	out.Merge(ValidateNoDuplicates(results))
	out.Merge(ValidateFiniteScores(results))
	if o.checkNonNegative {
		out.Merge(ValidateNonNegativeScores(results))
	}
	out.Merge(ValidateBounds(results, o.maxResults))
	return out
}

// ValidateExplained validates the fused results underlying explained output.
func ValidateExplained[I comparable](results []domain.ExplainedResult[I], opts ...Option) domain.ValidationResult {
	return Validate(domain.Plain(results), opts...)
}
