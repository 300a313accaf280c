package fusers

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

var _ ports.ExplainingFuser[string] = (*DBSFFuser[string])(nil)

// DBSF clips z-scores to this symmetric range.
const (
	DBSFClipMin = -3.0
	DBSFClipMax = 3.0
)

// DBSFFuser implements Distribution-Based Score Fusion. Each list is z-score
// normalized and clipped to [-3,3]; the clipped scores are summed and the sum
// is multiplied by the number of lists containing the document.
type DBSFFuser[I comparable] struct {
	name   string
	config DBSFConfig
}

// DBSFConfig defines the configuration parameters for the DBSFFuser.
type DBSFConfig struct {
	// TopK truncates the fused output when positive.
	TopK int `yaml:"top_k" json:"top_k" validate:"min=0"`
}

// DefaultDBSFConfig returns a DBSFConfig without truncation.
func DefaultDBSFConfig() DBSFConfig { return DBSFConfig{} }

// WithTopK returns a copy of the config truncating output to topK results.
func (c DBSFConfig) WithTopK(topK int) DBSFConfig {
	c.TopK = topK
	return c
}

// NewDBSFFuser creates a new DBSFFuser with the specified configuration.
func NewDBSFFuser[I comparable](name string, config DBSFConfig) (*DBSFFuser[I], error) {
	if name == "" {
		return nil, domain.ErrEmptyFuserName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &DBSFFuser[I]{name: name, config: config}, nil
}

// Name returns the unique identifier for this fuser instance.
func (f *DBSFFuser[I]) Name() string { return f.name }

// Algorithm returns domain.AlgorithmDBSF.
func (f *DBSFFuser[I]) Algorithm() domain.Algorithm { return domain.AlgorithmDBSF }

// Config returns the fuser's configuration.
func (f *DBSFFuser[I]) Config() DBSFConfig { return f.config }

// Fuse combines clipped z-scores with an agreement multiplier.
func (f *DBSFFuser[I]) Fuse(_ context.Context, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	return f.accumulate(lists).Results(domain.OverlapCombiner, f.config.TopK), nil
}

// FuseExplained combines lists like Fuse and attaches provenance. Each
// source's NormalizedScore is its clipped z-score.
func (f *DBSFFuser[I]) FuseExplained(
	_ context.Context,
	retrievers []string,
	lists ...domain.RankedList[I],
) ([]domain.ExplainedResult[I], error) {
	ids, err := resolveRetrievers(retrievers, len(lists))
	if err != nil {
		return nil, wrapFusion(f, opFuseExplained, err)
	}
	return f.accumulate(lists).Explained(domain.OverlapCombiner, f.config.TopK, domain.AlgorithmDBSF, ids, nil), nil
}

func (f *DBSFFuser[I]) accumulate(lists []domain.RankedList[I]) *domain.Accumulator[I] {
	return accumulateScores(lists, func(_ int, scores []float64) []float64 {
		return domain.ClippedZScore(scores, DBSFClipMin, DBSFClipMax)
	}, nil)
}

// Validate checks if the fuser is properly configured.
func (f *DBSFFuser[I]) Validate() error {
	if err := validate.Struct(f.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// WithParameters returns a copy of the fuser configured from strictly
// decoded YAML parameters. The receiver is never modified.
func (f *DBSFFuser[I]) WithParameters(params yaml.Node) (*DBSFFuser[I], error) {
	config, err := decodeNode(params, DefaultDBSFConfig())
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}
	return &DBSFFuser[I]{name: f.name, config: config}, nil
}

// NewDBSFFromConfig creates a DBSFFuser from a configuration map.
func NewDBSFFromConfig[I comparable](id string, params map[string]any) (ports.ExplainingFuser[I], error) {
	config, err := decodeConfig(params, DefaultDBSFConfig())
	if err != nil {
		return nil, err
	}
	return NewDBSFFuser[I](id, config)
}

// DBSF fuses lists with Distribution-Based Score Fusion.
func DBSF[I comparable](lists ...domain.RankedList[I]) []domain.FusedResult[I] {
	f := &DBSFFuser[I]{name: string(domain.AlgorithmDBSF)}
	results, _ := f.Fuse(context.Background(), lists...)
	return results
}
