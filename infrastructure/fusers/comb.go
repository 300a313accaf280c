package fusers

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

var _ ports.ExplainingFuser[string] = (*CombFuser[string])(nil)

// combiners maps each member of the Comb family to the function folding a
// document's per-list normalized scores into its fused score.
var combiners = map[domain.Algorithm]domain.Combiner{
	domain.AlgorithmCombSUM: domain.SumCombiner,
	domain.AlgorithmCombMNZ: domain.OverlapCombiner,
	domain.AlgorithmCombMAX: domain.MaxCombiner,
	domain.AlgorithmCombMED: domain.MedianCombiner,
	domain.AlgorithmCombANZ: domain.MeanCombiner,
}

// CombFuser implements the Comb family of score-based fusers. Each list's
// scores are normalized independently, then a document's normalized scores
// from the lists that contain it are combined:
//
//   - CombSUM sums them.
//   - CombMNZ multiplies the sum by the number of lists containing the
//     document, rewarding agreement.
//   - CombMAX keeps the maximum.
//   - CombMED keeps the median.
//   - CombANZ averages them.
//
// Lists that do not contain a document contribute nothing.
type CombFuser[I comparable] struct {
	name      string
	algorithm domain.Algorithm
	combine   domain.Combiner
	config    CombConfig
}

// CombConfig defines the configuration parameters shared by the Comb family.
type CombConfig struct {
	// Normalization is applied to each list's scores before combination.
	Normalization domain.Normalization `yaml:"normalization" json:"normalization" validate:"required,oneof=minmax zscore sum rank none"`

	// TopK truncates the fused output when positive.
	TopK int `yaml:"top_k" json:"top_k" validate:"min=0"`
}

// DefaultCombConfig returns a CombConfig using min-max normalization.
func DefaultCombConfig() CombConfig {
	return CombConfig{Normalization: domain.NormalizationMinMax}
}

// WithNormalization returns a copy of the config using method.
func (c CombConfig) WithNormalization(method domain.Normalization) CombConfig {
	c.Normalization = method
	return c
}

// WithTopK returns a copy of the config truncating output to topK results.
func (c CombConfig) WithTopK(topK int) CombConfig {
	c.TopK = topK
	return c
}

// NewCombFuser creates a fuser for one member of the Comb family.
// algorithm must be one of combsum, combmnz, combmax, combmed or combanz.
func NewCombFuser[I comparable](name string, algorithm domain.Algorithm, config CombConfig) (*CombFuser[I], error) {
	if name == "" {
		return nil, domain.ErrEmptyFuserName
	}

	combine, ok := combiners[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a comb algorithm", domain.ErrUnknownAlgorithm, algorithm)
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &CombFuser[I]{
		name:      name,
		algorithm: algorithm,
		combine:   combine,
		config:    config,
	}, nil
}

// Name returns the unique identifier for this fuser instance.
func (f *CombFuser[I]) Name() string { return f.name }

// Algorithm returns the Comb variant this fuser implements.
func (f *CombFuser[I]) Algorithm() domain.Algorithm { return f.algorithm }

// Config returns the fuser's configuration.
func (f *CombFuser[I]) Config() CombConfig { return f.config }

// Fuse normalizes each list and combines the per-list scores.
func (f *CombFuser[I]) Fuse(_ context.Context, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	return f.accumulate(lists).Results(f.combine, f.config.TopK), nil
}

// FuseExplained combines lists like Fuse and attaches provenance. For
// CombMAX, CombMED and CombANZ each source's Contribution is its normalized
// score; the fused score is the combination of those values.
func (f *CombFuser[I]) FuseExplained(
	_ context.Context,
	retrievers []string,
	lists ...domain.RankedList[I],
) ([]domain.ExplainedResult[I], error) {
	ids, err := resolveRetrievers(retrievers, len(lists))
	if err != nil {
		return nil, wrapFusion(f, opFuseExplained, err)
	}
	return f.accumulate(lists).Explained(f.combine, f.config.TopK, f.algorithm, ids, nil), nil
}

func (f *CombFuser[I]) accumulate(lists []domain.RankedList[I]) *domain.Accumulator[I] {
	return accumulateScores(lists, normalizeWith(f.config.Normalization), nil)
}

// Validate checks if the fuser is properly configured.
func (f *CombFuser[I]) Validate() error {
	if _, ok := combiners[f.algorithm]; !ok {
		return fmt.Errorf("%w: %q is not a comb algorithm", domain.ErrUnknownAlgorithm, f.algorithm)
	}
	if err := validate.Struct(f.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// WithParameters returns a copy of the fuser configured from strictly
// decoded YAML parameters. The receiver is never modified.
func (f *CombFuser[I]) WithParameters(params yaml.Node) (*CombFuser[I], error) {
	config, err := decodeNode(params, DefaultCombConfig())
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}
	return &CombFuser[I]{name: f.name, algorithm: f.algorithm, combine: f.combine, config: config}, nil
}

// CombFactory returns a ports.FuserFactory for one Comb variant.
func CombFactory[I comparable](algorithm domain.Algorithm) ports.FuserFactory[I] {
	return func(id string, params map[string]any) (ports.ExplainingFuser[I], error) {
		config, err := decodeConfig(params, DefaultCombConfig())
		if err != nil {
			return nil, err
		}
		return NewCombFuser[I](id, algorithm, config)
	}
}

func comb[I comparable](algorithm domain.Algorithm, lists []domain.RankedList[I]) []domain.FusedResult[I] {
	f := &CombFuser[I]{
		name:      string(algorithm),
		algorithm: algorithm,
		combine:   combiners[algorithm],
		config:    DefaultCombConfig(),
	}
	results, _ := f.Fuse(context.Background(), lists...)
	return results
}

// CombSUM fuses lists by summing min-max normalized scores.
func CombSUM[I comparable](lists ...domain.RankedList[I]) []domain.FusedResult[I] {
	return comb(domain.AlgorithmCombSUM, lists)
}

// CombMNZ fuses lists by summing min-max normalized scores and multiplying
// by the number of lists containing each document.
func CombMNZ[I comparable](lists ...domain.RankedList[I]) []domain.FusedResult[I] {
	return comb(domain.AlgorithmCombMNZ, lists)
}

// CombMAX fuses lists by keeping each document's best normalized score.
func CombMAX[I comparable](lists ...domain.RankedList[I]) []domain.FusedResult[I] {
	return comb(domain.AlgorithmCombMAX, lists)
}

// CombMED fuses lists by keeping each document's median normalized score.
func CombMED[I comparable](lists ...domain.RankedList[I]) []domain.FusedResult[I] {
	return comb(domain.AlgorithmCombMED, lists)
}

// CombANZ fuses lists by averaging each document's normalized scores.
func CombANZ[I comparable](lists ...domain.RankedList[I]) []domain.FusedResult[I] {
	return comb(domain.AlgorithmCombANZ, lists)
}
