package fusers

import (
	"context"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

var _ ports.ExplainingFuser[string] = (*RBCFuser[string])(nil)

// DefaultRBCPersistence is the persistence q used by Rank-Biased Centroid
// fusion when none is configured.
const DefaultRBCPersistence = 0.8

// RBCFuser implements Rank-Biased Centroid fusion. A document at position p
// in a list of length N contributes (1-q)·q^p/(1-q^N), so each list spends
// the same total mass regardless of its length.
type RBCFuser[I comparable] struct {
	name   string
	config RBCConfig
}

// RBCConfig defines the configuration parameters for the RBCFuser.
type RBCConfig struct {
	// Persistence is q, the probability a reader continues to the next
	// position. Must lie strictly between 0 and 1.
	Persistence float64 `yaml:"persistence" json:"persistence"`

	// TopK truncates the fused output when positive.
	TopK int `yaml:"top_k" json:"top_k" validate:"min=0"`
}

// DefaultRBCConfig returns an RBCConfig with q=0.8.
func DefaultRBCConfig() RBCConfig {
	return RBCConfig{Persistence: DefaultRBCPersistence}
}

// WithPersistence returns a copy of the config using persistence q.
func (c RBCConfig) WithPersistence(q float64) RBCConfig {
	c.Persistence = q
	return c
}

// WithTopK returns a copy of the config truncating output to topK results.
func (c RBCConfig) WithTopK(topK int) RBCConfig {
	c.TopK = topK
	return c
}

func (c RBCConfig) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	// Written so NaN fails too.
	if !(c.Persistence > 0 && c.Persistence < 1) {
		return fmt.Errorf("%w: got %v", domain.ErrInvalidPersistence, c.Persistence)
	}
	return nil
}

// NewRBCFuser creates a new RBCFuser with the specified configuration.
// Returns domain.ErrInvalidPersistence when q is outside (0,1).
func NewRBCFuser[I comparable](name string, config RBCConfig) (*RBCFuser[I], error) {
	if name == "" {
		return nil, domain.ErrEmptyFuserName
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &RBCFuser[I]{name: name, config: config}, nil
}

// Name returns the unique identifier for this fuser instance.
func (f *RBCFuser[I]) Name() string { return f.name }

// Algorithm returns domain.AlgorithmRBC.
func (f *RBCFuser[I]) Algorithm() domain.Algorithm { return domain.AlgorithmRBC }

// Config returns the fuser's configuration.
func (f *RBCFuser[I]) Config() RBCConfig { return f.config }

// Fuse combines lists by summing rank-biased weights.
func (f *RBCFuser[I]) Fuse(_ context.Context, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	return f.accumulate(lists).Results(domain.SumCombiner, f.config.TopK), nil
}

// FuseExplained combines lists like Fuse and attaches provenance.
func (f *RBCFuser[I]) FuseExplained(
	_ context.Context,
	retrievers []string,
	lists ...domain.RankedList[I],
) ([]domain.ExplainedResult[I], error) {
	ids, err := resolveRetrievers(retrievers, len(lists))
	if err != nil {
		return nil, wrapFusion(f, opFuseExplained, err)
	}
	return f.accumulate(lists).Explained(domain.SumCombiner, f.config.TopK, domain.AlgorithmRBC, ids, nil), nil
}

func (f *RBCFuser[I]) accumulate(lists []domain.RankedList[I]) *domain.Accumulator[I] {
	q := f.config.Persistence
	return accumulateRanks(lists, func(pos, n int) float64 {
		return (1 - q) * math.Pow(q, float64(pos)) / (1 - math.Pow(q, float64(n)))
	})
}

// Validate checks if the fuser is properly configured.
func (f *RBCFuser[I]) Validate() error { return f.config.validate() }

// WithParameters returns a copy of the fuser configured from strictly
// decoded YAML parameters. The receiver is never modified.
func (f *RBCFuser[I]) WithParameters(params yaml.Node) (*RBCFuser[I], error) {
	config, err := decodeNode(params, DefaultRBCConfig())
	if err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}
	return &RBCFuser[I]{name: f.name, config: config}, nil
}

// NewRBCFromConfig creates an RBCFuser from a configuration map.
func NewRBCFromConfig[I comparable](id string, params map[string]any) (ports.ExplainingFuser[I], error) {
	config, err := decodeConfig(params, DefaultRBCConfig())
	if err != nil {
		return nil, err
	}
	return NewRBCFuser[I](id, config)
}

// RBC fuses lists with Rank-Biased Centroid using q=0.8.
func RBC[I comparable](lists ...domain.RankedList[I]) []domain.FusedResult[I] {
	f := &RBCFuser[I]{name: string(domain.AlgorithmRBC), config: DefaultRBCConfig()}
	results, _ := f.Fuse(context.Background(), lists...)
	return results
}
