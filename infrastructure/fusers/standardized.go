package fusers

import (
	"context"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

var _ ports.ExplainingFuser[string] = (*StandardizedFuser[string])(nil)

// StandardizedFuser sums per-list z-scores clipped to a configurable range.
// Unlike DBSF it applies no agreement multiplier, and the clip range controls
// how much a single outlier score can move a document.
type StandardizedFuser[I comparable] struct {
	name   string
	config StandardizedConfig
}

// StandardizedConfig defines the configuration parameters for the
// StandardizedFuser.
type StandardizedConfig struct {
	// ClipMin is the lower bound applied to every z-score.
	ClipMin float64 `yaml:"clip_min" json:"clip_min"`

	// ClipMax is the upper bound applied to every z-score. Must exceed ClipMin.
	ClipMax float64 `yaml:"clip_max" json:"clip_max"`

	// TopK truncates the fused output when positive.
	TopK int `yaml:"top_k" json:"top_k" validate:"min=0"`
}

// DefaultStandardizedConfig returns a StandardizedConfig clipping to [-3,3].
func DefaultStandardizedConfig() StandardizedConfig {
	return StandardizedConfig{ClipMin: -3, ClipMax: 3}
}

// WithClipRange returns a copy of the config clipping z-scores to [lo,hi].
func (c StandardizedConfig) WithClipRange(lo, hi float64) StandardizedConfig {
	c.ClipMin, c.ClipMax = lo, hi
	return c
}

// WithTopK returns a copy of the config truncating output to topK results.
func (c StandardizedConfig) WithTopK(topK int) StandardizedConfig {
	c.TopK = topK
	return c
}

func (c StandardizedConfig) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if math.IsNaN(c.ClipMin) || math.IsNaN(c.ClipMax) || math.IsInf(c.ClipMin, 0) || math.IsInf(c.ClipMax, 0) {
		return fmt.Errorf("%w: [%v, %v] is not finite", domain.ErrInvalidClipRange, c.ClipMin, c.ClipMax)
	}
	if c.ClipMin >= c.ClipMax {
		return fmt.Errorf("%w: got [%v, %v]", domain.ErrInvalidClipRange, c.ClipMin, c.ClipMax)
	}
	return nil
}

// NewStandardizedFuser creates a new StandardizedFuser with the specified
// configuration. Returns domain.ErrInvalidClipRange unless ClipMin < ClipMax.
func NewStandardizedFuser[I comparable](name string, config StandardizedConfig) (*StandardizedFuser[I], error) {
	if name == "" {
		return nil, domain.ErrEmptyFuserName
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &StandardizedFuser[I]{name: name, config: config}, nil
}

// Name returns the unique identifier for this fuser instance.
func (f *StandardizedFuser[I]) Name() string { return f.name }

// Algorithm returns domain.AlgorithmStandardized.
func (f *StandardizedFuser[I]) Algorithm() domain.Algorithm { return domain.AlgorithmStandardized }

// Config returns the fuser's configuration.
func (f *StandardizedFuser[I]) Config() StandardizedConfig { return f.config }

// Fuse sums clipped z-scores.
func (f *StandardizedFuser[I]) Fuse(_ context.Context, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	return f.accumulate(lists).Results(domain.SumCombiner, f.config.TopK), nil
}

// FuseExplained combines lists like Fuse and attaches provenance.
func (f *StandardizedFuser[I]) FuseExplained(
	_ context.Context,
	retrievers []string,
	lists ...domain.RankedList[I],
) ([]domain.ExplainedResult[I], error) {
	ids, err := resolveRetrievers(retrievers, len(lists))
	if err != nil {
		return nil, wrapFusion(f, opFuseExplained, err)
	}
	return f.accumulate(lists).Explained(domain.SumCombiner, f.config.TopK, domain.AlgorithmStandardized, ids, nil), nil
}

func (f *StandardizedFuser[I]) accumulate(lists []domain.RankedList[I]) *domain.Accumulator[I] {
	lo, hi := f.config.ClipMin, f.config.ClipMax
	return accumulateScores(lists, func(_ int, scores []float64) []float64 {
		return domain.ClippedZScore(scores, lo, hi)
	}, nil)
}

// Validate checks if the fuser is properly configured.
func (f *StandardizedFuser[I]) Validate() error { return f.config.validate() }

// WithParameters returns a copy of the fuser configured from strictly
// decoded YAML parameters. The receiver is never modified.
func (f *StandardizedFuser[I]) WithParameters(params yaml.Node) (*StandardizedFuser[I], error) {
	config, err := decodeNode(params, DefaultStandardizedConfig())
	if err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}
	return &StandardizedFuser[I]{name: f.name, config: config}, nil
}

// NewStandardizedFromConfig creates a StandardizedFuser from a configuration map.
func NewStandardizedFromConfig[I comparable](id string, params map[string]any) (ports.ExplainingFuser[I], error) {
	config, err := decodeConfig(params, DefaultStandardizedConfig())
	if err != nil {
		return nil, err
	}
	return NewStandardizedFuser[I](id, config)
}

// Standardized fuses lists by summing z-scores clipped to [lo,hi].
func Standardized[I comparable](lo, hi float64, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	f, err := NewStandardizedFuser[I](string(domain.AlgorithmStandardized),
		DefaultStandardizedConfig().WithClipRange(lo, hi))
	if err != nil {
		return nil, err
	}
	return f.Fuse(context.Background(), lists...)
}
