package domain

import (
	"errors"
	"fmt"
)

// Configuration errors reported by fuser constructors and weighted entry
// points. Callers should match them with errors.Is.
var (
	// ErrInvalidK indicates a rank smoothing constant below 1, including 0.
	ErrInvalidK = errors.New("smoothing constant k must be >= 1")

	// ErrInvalidPersistence indicates an RBC persistence outside (0,1).
	ErrInvalidPersistence = errors.New("persistence must be in (0, 1)")

	// ErrInvalidClipRange indicates a clip range whose lower bound is not
	// below its upper bound, or that is not finite.
	ErrInvalidClipRange = errors.New("clip range must satisfy min < max")

	// ErrZeroWeights indicates per-list weights that sum to zero or close to it.
	ErrZeroWeights = errors.New("weights sum to zero")

	// ErrWeightCountMismatch indicates a weight vector whose length differs
	// from the number of input lists.
	ErrWeightCountMismatch = errors.New("weight count does not match list count")

	// ErrInvalidWeight indicates a NaN or infinite weight.
	ErrInvalidWeight = errors.New("weight must be finite")

	// ErrRetrieverCountMismatch indicates retriever ids whose count differs
	// from the number of input lists.
	ErrRetrieverCountMismatch = errors.New("retriever id count does not match list count")

	// ErrUnknownAlgorithm indicates an algorithm name outside the supported set.
	ErrUnknownAlgorithm = errors.New("unknown fusion algorithm")

	// ErrUnknownNormalization indicates a normalization name outside the supported set.
	ErrUnknownNormalization = errors.New("unknown normalization")

	// ErrEmptyFuserName indicates an attempt to create a fuser without a name.
	ErrEmptyFuserName = errors.New("fuser name cannot be empty")

	// ErrEmptyTaskName indicates a multi-task entry without a name.
	ErrEmptyTaskName = errors.New("task name cannot be empty")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets errors.Is match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
