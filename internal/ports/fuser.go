// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-rankfuse/internal/domain"
)

// Fuser combines several ranked lists into one fused ranking.
// Implementations are immutable value objects and safe for concurrent use.
type Fuser[I comparable] interface {
	// Name returns the identifier this fuser was created with.
	// The name is used for logging, metrics labels and configuration.
	Name() string

	// Algorithm reports which fusion algorithm the fuser implements.
	Algorithm() domain.Algorithm

	// Fuse combines lists into a single ranking ordered by descending
	// score. Degenerate input (no lists, empty lists, all-equal scores)
	// produces empty or partial output rather than an error. Errors are
	// reserved for caller configuration problems such as a weight vector
	// whose length does not match the number of lists.
	//
	// The context carries tracing and logging metadata; fusion itself
	// never blocks.
	//
	// Example:
	//
	//	results, err := fuser.Fuse(ctx, bm25, dense)
	//	if err != nil {
	//	    return nil, fmt.Errorf("fuse %s: %w", fuser.Name(), err)
	//	}
	Fuse(ctx context.Context, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error)

	// Validate checks that the fuser's configuration is usable.
	Validate() error
}

// ExplainingFuser is a Fuser that can also report, per fused document,
// which retrievers contributed what.
type ExplainingFuser[I comparable] interface {
	Fuser[I]

	// FuseExplained behaves like Fuse and attaches an Explanation to each
	// result. retrievers names the input lists in order; nil selects
	// retriever_0, retriever_1, ... A non-nil slice whose length differs
	// from len(lists) is an error. Scores are identical to Fuse.
	FuseExplained(
		ctx context.Context,
		retrievers []string,
		lists ...domain.RankedList[I],
	) ([]domain.ExplainedResult[I], error)
}

// FuserFactory builds a fuser from an identifier and a loosely typed
// parameter map decoded from YAML or JSON.
type FuserFactory[I comparable] func(id string, params map[string]any) (ExplainingFuser[I], error)

// FuserRegistry maps algorithm names to fuser factories.
type FuserRegistry[I comparable] interface {
	// CreateFuser builds a fuser for the named algorithm.
	CreateFuser(algorithm string, id string, params map[string]any) (ExplainingFuser[I], error)

	// RegisterFuserFactory adds or replaces the factory for an algorithm.
	RegisterFuserFactory(algorithm domain.Algorithm, factory FuserFactory[I]) error

	// GetSupportedAlgorithms lists the registered algorithms.
	GetSupportedAlgorithms() []domain.Algorithm
}
