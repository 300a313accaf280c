package fusers

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

var _ ports.ExplainingFuser[string] = (*RRFFuser[string])(nil)

// DefaultRRFK is the smoothing constant used by Reciprocal Rank Fusion when
// none is configured.
const DefaultRRFK = 60

// RRFFuser implements Reciprocal Rank Fusion.
// A document at 0-indexed position p in a list contributes 1/(k+p), and the
// fused score is the sum over every list containing the document. Scores
// reported by retrievers are ignored. The fuser is stateless and safe for
// concurrent use.
type RRFFuser[I comparable] struct {
	// name is the unique identifier for this fuser instance.
	name string
	// config contains the validated configuration parameters.
	config RRFConfig
}

// RRFConfig defines the configuration parameters for the RRFFuser.
type RRFConfig struct {
	// K is the smoothing constant added to every rank. Larger values flatten
	// the difference between the head and the tail of each list.
	// Must be at least 1.
	K int `yaml:"k" json:"k"`

	// TopK truncates the fused output when positive.
	TopK int `yaml:"top_k" json:"top_k" validate:"min=0"`
}

// DefaultRRFConfig returns an RRFConfig with k=60 and no truncation.
func DefaultRRFConfig() RRFConfig {
	return RRFConfig{K: DefaultRRFK}
}

// WithK returns a copy of the config using smoothing constant k.
func (c RRFConfig) WithK(k int) RRFConfig {
	c.K = k
	return c
}

// WithTopK returns a copy of the config truncating output to topK results.
func (c RRFConfig) WithTopK(topK int) RRFConfig {
	c.TopK = topK
	return c
}

func (c RRFConfig) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return checkRankConstant(c.K)
}

// NewRRFFuser creates a new RRFFuser with the specified configuration.
// Returns domain.ErrInvalidK when k is below 1.
func NewRRFFuser[I comparable](name string, config RRFConfig) (*RRFFuser[I], error) {
	if name == "" {
		return nil, domain.ErrEmptyFuserName
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &RRFFuser[I]{name: name, config: config}, nil
}

// Name returns the unique identifier for this fuser instance.
func (f *RRFFuser[I]) Name() string { return f.name }

// Algorithm returns domain.AlgorithmRRF.
func (f *RRFFuser[I]) Algorithm() domain.Algorithm { return domain.AlgorithmRRF }

// Config returns the fuser's configuration.
func (f *RRFFuser[I]) Config() RRFConfig { return f.config }

// Fuse combines lists by summing reciprocal ranks.
func (f *RRFFuser[I]) Fuse(_ context.Context, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	return f.accumulate(lists).Results(domain.SumCombiner, f.config.TopK), nil
}

// FuseExplained combines lists like Fuse and records, per document, the
// reciprocal rank each retriever contributed.
func (f *RRFFuser[I]) FuseExplained(
	_ context.Context,
	retrievers []string,
	lists ...domain.RankedList[I],
) ([]domain.ExplainedResult[I], error) {
	ids, err := resolveRetrievers(retrievers, len(lists))
	if err != nil {
		return nil, wrapFusion(f, opFuseExplained, err)
	}
	return f.accumulate(lists).Explained(domain.SumCombiner, f.config.TopK, domain.AlgorithmRRF, ids, nil), nil
}

func (f *RRFFuser[I]) accumulate(lists []domain.RankedList[I]) *domain.Accumulator[I] {
	k := float64(f.config.K)
	return accumulateRanks(lists, func(pos, _ int) float64 {
		return 1.0 / (k + float64(pos))
	})
}

// Validate checks if the fuser is properly configured.
func (f *RRFFuser[I]) Validate() error { return f.config.validate() }

// WithParameters returns a copy of the fuser configured from YAML
// parameters. Unknown fields are rejected so configuration typos are not
// silently ignored. The receiver is never modified.
func (f *RRFFuser[I]) WithParameters(params yaml.Node) (*RRFFuser[I], error) {
	config, err := decodeNode(params, DefaultRRFConfig())
	if err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}
	return &RRFFuser[I]{name: f.name, config: config}, nil
}

// NewRRFFromConfig is a factory function that creates an RRFFuser from a
// configuration map, following the ports.FuserFactory pattern.
func NewRRFFromConfig[I comparable](id string, params map[string]any) (ports.ExplainingFuser[I], error) {
	config, err := decodeConfig(params, DefaultRRFConfig())
	if err != nil {
		return nil, err
	}
	return NewRRFFuser[I](id, config)
}

// RRF fuses lists with Reciprocal Rank Fusion using k=60.
//
// Example:
//
//	bm25 := domain.RankedList[string]{{ID: "d1", Score: 12.5}, {ID: "d2", Score: 11.0}}
//	dense := domain.RankedList[string]{{ID: "d2", Score: 0.9}, {ID: "d3", Score: 0.8}}
//	fused := fusers.RRF(bm25, dense) // d2, d1, d3
func RRF[I comparable](lists ...domain.RankedList[I]) []domain.FusedResult[I] {
	f := &RRFFuser[I]{name: string(domain.AlgorithmRRF), config: DefaultRRFConfig()}
	results, _ := f.Fuse(context.Background(), lists...)
	return results
}

// RRFWithK fuses lists with Reciprocal Rank Fusion using a custom k.
func RRFWithK[I comparable](k int, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	f, err := NewRRFFuser[I](string(domain.AlgorithmRRF), DefaultRRFConfig().WithK(k))
	if err != nil {
		return nil, err
	}
	return f.Fuse(context.Background(), lists...)
}
