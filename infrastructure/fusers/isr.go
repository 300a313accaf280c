package fusers

import (
	"context"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

var _ ports.ExplainingFuser[string] = (*ISRFuser[string])(nil)

// DefaultISRK is the smoothing constant used by Inverse Square Rank fusion.
const DefaultISRK = 1

// ISRFuser implements Inverse Square Rank fusion: a document at position p
// contributes 1/sqrt(k+p). The decay is gentler than RRF, so agreement deep
// in the lists carries more weight.
type ISRFuser[I comparable] struct {
	name   string
	config ISRConfig
}

// ISRConfig defines the configuration parameters for the ISRFuser.
type ISRConfig struct {
	// K is the smoothing constant. Must be at least 1.
	K int `yaml:"k" json:"k"`

	// TopK truncates the fused output when positive.
	TopK int `yaml:"top_k" json:"top_k" validate:"min=0"`
}

// DefaultISRConfig returns an ISRConfig with k=1.
func DefaultISRConfig() ISRConfig {
	return ISRConfig{K: DefaultISRK}
}

// WithK returns a copy of the config using smoothing constant k.
func (c ISRConfig) WithK(k int) ISRConfig {
	c.K = k
	return c
}

// WithTopK returns a copy of the config truncating output to topK results.
func (c ISRConfig) WithTopK(topK int) ISRConfig {
	c.TopK = topK
	return c
}

func (c ISRConfig) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return checkRankConstant(c.K)
}

// NewISRFuser creates a new ISRFuser with the specified configuration.
func NewISRFuser[I comparable](name string, config ISRConfig) (*ISRFuser[I], error) {
	if name == "" {
		return nil, domain.ErrEmptyFuserName
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &ISRFuser[I]{name: name, config: config}, nil
}

// Name returns the unique identifier for this fuser instance.
func (f *ISRFuser[I]) Name() string { return f.name }

// Algorithm returns domain.AlgorithmISR.
func (f *ISRFuser[I]) Algorithm() domain.Algorithm { return domain.AlgorithmISR }

// Config returns the fuser's configuration.
func (f *ISRFuser[I]) Config() ISRConfig { return f.config }

// Fuse combines lists by summing inverse square ranks.
func (f *ISRFuser[I]) Fuse(_ context.Context, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	return f.accumulate(lists).Results(domain.SumCombiner, f.config.TopK), nil
}

// FuseExplained combines lists like Fuse and attaches provenance.
func (f *ISRFuser[I]) FuseExplained(
	_ context.Context,
	retrievers []string,
	lists ...domain.RankedList[I],
) ([]domain.ExplainedResult[I], error) {
	ids, err := resolveRetrievers(retrievers, len(lists))
	if err != nil {
		return nil, wrapFusion(f, opFuseExplained, err)
	}
	return f.accumulate(lists).Explained(domain.SumCombiner, f.config.TopK, domain.AlgorithmISR, ids, nil), nil
}

func (f *ISRFuser[I]) accumulate(lists []domain.RankedList[I]) *domain.Accumulator[I] {
	k := float64(f.config.K)
	return accumulateRanks(lists, func(pos, _ int) float64 {
		return 1.0 / math.Sqrt(k+float64(pos))
	})
}

// Validate checks if the fuser is properly configured.
func (f *ISRFuser[I]) Validate() error { return f.config.validate() }

// WithParameters returns a copy of the fuser configured from strictly
// decoded YAML parameters. The receiver is never modified.
func (f *ISRFuser[I]) WithParameters(params yaml.Node) (*ISRFuser[I], error) {
	config, err := decodeNode(params, DefaultISRConfig())
	if err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}
	return &ISRFuser[I]{name: f.name, config: config}, nil
}

// NewISRFromConfig creates an ISRFuser from a configuration map.
func NewISRFromConfig[I comparable](id string, params map[string]any) (ports.ExplainingFuser[I], error) {
	config, err := decodeConfig(params, DefaultISRConfig())
	if err != nil {
		return nil, err
	}
	return NewISRFuser[I](id, config)
}

// ISR fuses lists with Inverse Square Rank using k=1.
func ISR[I comparable](lists ...domain.RankedList[I]) []domain.FusedResult[I] {
	f := &ISRFuser[I]{name: string(domain.AlgorithmISR), config: DefaultISRConfig()}
	results, _ := f.Fuse(context.Background(), lists...)
	return results
}

// ISRWithK fuses lists with Inverse Square Rank using a custom k.
func ISRWithK[I comparable](k int, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	f, err := NewISRFuser[I](string(domain.AlgorithmISR), DefaultISRConfig().WithK(k))
	if err != nil {
		return nil, err
	}
	return f.Fuse(context.Background(), lists...)
}
