package application

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/ahrav/go-rankfuse/infrastructure/fusers"
	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.FuserRegistry[string] = (*DefaultFuserRegistry[string])(nil)

// maxSuggestionDistance bounds how far a misspelled algorithm name may be
// from a registered one before no suggestion is offered.
const maxSuggestionDistance = 3

// DefaultFuserRegistry implements the FuserRegistry interface, providing a
// factory for creating fusers by algorithm name and configuration.
// It comes with every built-in algorithm registered and supports
// registering replacements at runtime.
type DefaultFuserRegistry[I comparable] struct {
	// factories maps algorithms to their factory functions.
	factories map[domain.Algorithm]ports.FuserFactory[I]
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
}

// NewDefaultFuserRegistry creates a new registry with every built-in
// algorithm pre-registered.
func NewDefaultFuserRegistry[I comparable]() *DefaultFuserRegistry[I] {
	return &DefaultFuserRegistry[I]{factories: fusers.Factories[I]()}
}

// CreateFuser creates a new fuser for the named algorithm.
// The name is matched case-insensitively; an unknown name yields an error
// wrapping domain.ErrUnknownAlgorithm with the closest registered name as
// a suggestion.
func (r *DefaultFuserRegistry[I]) CreateFuser(
	algorithm string,
	id string,
	params map[string]any,
) (ports.ExplainingFuser[I], error) {
	if id == "" {
		return nil, domain.ErrEmptyFuserName
	}

	alg, parseErr := domain.ParseAlgorithm(algorithm)

	r.mu.RLock()
	factory, exists := r.factories[alg]
	r.mu.RUnlock()

	if parseErr != nil || !exists {
		return nil, r.unknownAlgorithm(algorithm, parseErr)
	}

	if params == nil {
		params = make(map[string]any)
	}

	fuser, err := factory(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create fuser %s of algorithm %s: %w", id, alg, err)
	}
	return fuser, nil
}

// RegisterFuserFactory registers a factory for an algorithm, replacing any
// existing one. Only members of the supported algorithm set are accepted.
func (r *DefaultFuserRegistry[I]) RegisterFuserFactory(
	algorithm domain.Algorithm,
	factory ports.FuserFactory[I],
) error {
	if !algorithm.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownAlgorithm, algorithm)
	}
	if factory == nil {
		return ports.ErrNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[algorithm] = factory
	return nil
}

// GetSupportedAlgorithms returns the registered algorithms in
// documentation order.
func (r *DefaultFuserRegistry[I]) GetSupportedAlgorithms() []domain.Algorithm {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Algorithm, 0, len(r.factories))
	for _, alg := range domain.Algorithms() {
		if _, ok := r.factories[alg]; ok {
			out = append(out, alg)
		}
	}
	return out
}

// unknownAlgorithm builds the error for a name with no factory.
func (r *DefaultFuserRegistry[I]) unknownAlgorithm(name string, cause error) error {
	if cause == nil {
		cause = fmt.Errorf("%w: %q", ports.ErrUnsupportedAlgorithm, name)
	}
	if suggestion := r.suggest(name); suggestion != "" {
		return fmt.Errorf("%w (did you mean %q?)", cause, suggestion)
	}
	return cause
}

// suggest returns the registered algorithm closest to name by edit
// distance, or "" when none is close enough.
func (r *DefaultFuserRegistry[I]) suggest(name string) string {
	name = domain.CanonicalName(name)
	best, bestDistance := "", maxSuggestionDistance+1
	for _, alg := range r.GetSupportedAlgorithms() {
		d := levenshtein.ComputeDistance(name, alg.String())
		if d < bestDistance {
			best, bestDistance = alg.String(), d
		}
	}
	return best
}

// IsUnknownAlgorithm reports whether err came from naming an algorithm the
// registry cannot build.
func IsUnknownAlgorithm(err error) bool {
	return errors.Is(err, domain.ErrUnknownAlgorithm) || errors.Is(err, ports.ErrUnsupportedAlgorithm)
}

// SupportedAlgorithmNames returns the registered algorithm names, sorted.
func (r *DefaultFuserRegistry[I]) SupportedAlgorithmNames() []string {
	algs := r.GetSupportedAlgorithms()
	names := make([]string, len(algs))
	for i, a := range algs {
		names[i] = a.String()
	}
	slices.Sort(names)
	return names
}
