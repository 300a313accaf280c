package fusers

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

var _ ports.ExplainingFuser[string] = (*BordaFuser[string])(nil)

// BordaFuser implements the Borda count. A document at position p in a list
// of length N earns N-p points from that list.
//
// Points depend on each list's own length, so combining a short list with a
// long one biases the result toward the long list.
type BordaFuser[I comparable] struct {
	name   string
	config BordaConfig
}

// BordaConfig defines the configuration parameters for the BordaFuser.
type BordaConfig struct {
	// TopK truncates the fused output when positive.
	TopK int `yaml:"top_k" json:"top_k" validate:"min=0"`
}

// DefaultBordaConfig returns a BordaConfig without truncation.
func DefaultBordaConfig() BordaConfig { return BordaConfig{} }

// WithTopK returns a copy of the config truncating output to topK results.
func (c BordaConfig) WithTopK(topK int) BordaConfig {
	c.TopK = topK
	return c
}

// NewBordaFuser creates a new BordaFuser with the specified configuration.
func NewBordaFuser[I comparable](name string, config BordaConfig) (*BordaFuser[I], error) {
	if name == "" {
		return nil, domain.ErrEmptyFuserName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &BordaFuser[I]{name: name, config: config}, nil
}

// Name returns the unique identifier for this fuser instance.
func (f *BordaFuser[I]) Name() string { return f.name }

// Algorithm returns domain.AlgorithmBorda.
func (f *BordaFuser[I]) Algorithm() domain.Algorithm { return domain.AlgorithmBorda }

// Config returns the fuser's configuration.
func (f *BordaFuser[I]) Config() BordaConfig { return f.config }

// Fuse combines lists by summing Borda points.
func (f *BordaFuser[I]) Fuse(_ context.Context, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	return f.accumulate(lists).Results(domain.SumCombiner, f.config.TopK), nil
}

// FuseExplained combines lists like Fuse and attaches provenance.
func (f *BordaFuser[I]) FuseExplained(
	_ context.Context,
	retrievers []string,
	lists ...domain.RankedList[I],
) ([]domain.ExplainedResult[I], error) {
	ids, err := resolveRetrievers(retrievers, len(lists))
	if err != nil {
		return nil, wrapFusion(f, opFuseExplained, err)
	}
	return f.accumulate(lists).Explained(domain.SumCombiner, f.config.TopK, domain.AlgorithmBorda, ids, nil), nil
}

func (f *BordaFuser[I]) accumulate(lists []domain.RankedList[I]) *domain.Accumulator[I] {
	return accumulateRanks(lists, func(pos, n int) float64 {
		return float64(n - pos)
	})
}

// Validate checks if the fuser is properly configured.
func (f *BordaFuser[I]) Validate() error {
	if err := validate.Struct(f.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// WithParameters returns a copy of the fuser configured from strictly
// decoded YAML parameters. The receiver is never modified.
func (f *BordaFuser[I]) WithParameters(params yaml.Node) (*BordaFuser[I], error) {
	config, err := decodeNode(params, DefaultBordaConfig())
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}
	return &BordaFuser[I]{name: f.name, config: config}, nil
}

// NewBordaFromConfig creates a BordaFuser from a configuration map.
func NewBordaFromConfig[I comparable](id string, params map[string]any) (ports.ExplainingFuser[I], error) {
	config, err := decodeConfig(params, DefaultBordaConfig())
	if err != nil {
		return nil, err
	}
	return NewBordaFuser[I](id, config)
}

// Borda fuses lists with the Borda count.
func Borda[I comparable](lists ...domain.RankedList[I]) []domain.FusedResult[I] {
	f := &BordaFuser[I]{name: string(domain.AlgorithmBorda)}
	results, _ := f.Fuse(context.Background(), lists...)
	return results
}
