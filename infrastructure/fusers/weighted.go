package fusers

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

var _ ports.ExplainingFuser[string] = (*WeightedFuser[string])(nil)

// WeightedFuser sums per-list weighted normalized scores.
// Weights are divided by their total, so only their ratios matter; a total
// close to zero is rejected. With no weights configured every list counts
// equally.
type WeightedFuser[I comparable] struct {
	name   string
	config WeightedConfig
}

// WeightedConfig defines the configuration parameters for the WeightedFuser.
type WeightedConfig struct {
	// Weights holds one weight per input list, in list order. Empty means
	// equal weights for however many lists a call supplies.
	Weights []float64 `yaml:"weights" json:"weights"`

	// Normalization is applied to each list's scores before weighting.
	// Use "none" to weight raw scores.
	Normalization domain.Normalization `yaml:"normalization" json:"normalization" validate:"required,oneof=minmax zscore sum rank none"`

	// TopK truncates the fused output when positive.
	TopK int `yaml:"top_k" json:"top_k" validate:"min=0"`
}

// DefaultWeightedConfig returns a WeightedConfig with equal weights and
// min-max normalization.
func DefaultWeightedConfig() WeightedConfig {
	return WeightedConfig{Normalization: domain.NormalizationMinMax}
}

// WithWeights returns a copy of the config using the given per-list weights.
func (c WeightedConfig) WithWeights(weights ...float64) WeightedConfig {
	c.Weights = append([]float64(nil), weights...)
	return c
}

// WithNormalization returns a copy of the config using method.
func (c WeightedConfig) WithNormalization(method domain.Normalization) WeightedConfig {
	c.Normalization = method
	return c
}

// WithTopK returns a copy of the config truncating output to topK results.
func (c WeightedConfig) WithTopK(topK int) WeightedConfig {
	c.TopK = topK
	return c
}

func (c WeightedConfig) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return checkWeights(c.Weights)
}

// NewWeightedFuser creates a new WeightedFuser with the specified
// configuration. Returns domain.ErrZeroWeights when the weights sum to zero
// and domain.ErrInvalidWeight when any weight is not finite.
func NewWeightedFuser[I comparable](name string, config WeightedConfig) (*WeightedFuser[I], error) {
	if name == "" {
		return nil, domain.ErrEmptyFuserName
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	config.Weights = append([]float64(nil), config.Weights...)
	return &WeightedFuser[I]{name: name, config: config}, nil
}

// Name returns the unique identifier for this fuser instance.
func (f *WeightedFuser[I]) Name() string { return f.name }

// Algorithm returns domain.AlgorithmWeighted.
func (f *WeightedFuser[I]) Algorithm() domain.Algorithm { return domain.AlgorithmWeighted }

// Config returns the fuser's configuration.
func (f *WeightedFuser[I]) Config() WeightedConfig { return f.config }

// Fuse combines lists by summing weighted normalized scores.
// Returns a ports.FusionError wrapping domain.ErrWeightCountMismatch when
// configured weights do not pair with the lists one to one.
func (f *WeightedFuser[I]) Fuse(_ context.Context, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	weights, err := f.effectiveWeights(len(lists))
	if err != nil {
		return nil, wrapFusion(f, opFuse, err)
	}
	return f.accumulate(lists, weights).Results(domain.SumCombiner, f.config.TopK), nil
}

// FuseExplained combines lists like Fuse and attaches provenance. The
// consensus score is the share of total weight held by the lists that
// contain each document.
func (f *WeightedFuser[I]) FuseExplained(
	_ context.Context,
	retrievers []string,
	lists ...domain.RankedList[I],
) ([]domain.ExplainedResult[I], error) {
	weights, err := f.effectiveWeights(len(lists))
	if err != nil {
		return nil, wrapFusion(f, opFuseExplained, err)
	}
	ids, err := resolveRetrievers(retrievers, len(lists))
	if err != nil {
		return nil, wrapFusion(f, opFuseExplained, err)
	}
	return f.accumulate(lists, weights).Explained(
		domain.SumCombiner, f.config.TopK, domain.AlgorithmWeighted, ids, weights), nil
}

// effectiveWeights returns the per-list weights divided by their total.
func (f *WeightedFuser[I]) effectiveWeights(lists int) ([]float64, error) {
	if len(f.config.Weights) == 0 {
		weights := make([]float64, lists)
		for i := range weights {
			weights[i] = 1.0 / float64(lists)
		}
		return weights, nil
	}
	if err := checkWeightCount(len(f.config.Weights), lists); err != nil {
		return nil, err
	}

	var total float64
	for _, w := range f.config.Weights {
		total += w
	}
	weights := make([]float64, lists)
	for i, w := range f.config.Weights {
		weights[i] = w / total
	}
	return weights, nil
}

func (f *WeightedFuser[I]) accumulate(lists []domain.RankedList[I], weights []float64) *domain.Accumulator[I] {
	return accumulateScores(lists, normalizeWith(f.config.Normalization), func(list int) float64 {
		return weights[list]
	})
}

// Validate checks if the fuser is properly configured.
func (f *WeightedFuser[I]) Validate() error { return f.config.validate() }

// WithParameters returns a copy of the fuser configured from strictly
// decoded YAML parameters. The receiver is never modified.
func (f *WeightedFuser[I]) WithParameters(params yaml.Node) (*WeightedFuser[I], error) {
	config, err := decodeNode(params, DefaultWeightedConfig())
	if err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}
	return &WeightedFuser[I]{name: f.name, config: config}, nil
}

// NewWeightedFromConfig creates a WeightedFuser from a configuration map.
func NewWeightedFromConfig[I comparable](id string, params map[string]any) (ports.ExplainingFuser[I], error) {
	config, err := decodeConfig(params, DefaultWeightedConfig())
	if err != nil {
		return nil, err
	}
	return NewWeightedFuser[I](id, config)
}

// Weighted fuses lists with per-list weights over min-max normalized scores.
//
// Example:
//
//	// Trust the dense retriever twice as much as BM25.
//	fused, err := fusers.Weighted([]float64{1, 2}, bm25, dense)
func Weighted[I comparable](weights []float64, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	f, err := NewWeightedFuser[I](string(domain.AlgorithmWeighted), DefaultWeightedConfig().WithWeights(weights...))
	if err != nil {
		return nil, err
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: no weights given for %d lists", domain.ErrWeightCountMismatch, len(lists))
	}
	return f.Fuse(context.Background(), lists...)
}
