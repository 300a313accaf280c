package application

import (
	"gopkg.in/yaml.v3"
)

// PipelineConfig defines a complete fusion pipeline and serves as the
// primary configuration entry point for the system.
// Use PipelineConfig to describe which algorithm fuses which retrievers,
// whether results are explained, and which post-fusion checks run.
type PipelineConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across system updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the pipeline
	// including name, tags, and labels for organization and discovery.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Fusion selects the algorithm and its parameters.
	Fusion FusionConfig `yaml:"fusion" validate:"required"`
	// Retrievers names the input lists in the order callers supply them.
	// When empty, lists are named retriever_0, retriever_1, ...
	Retrievers []RetrieverConfig `yaml:"retrievers" validate:"omitempty,max=64,dive"`
	// Explain controls provenance output and consensus analysis.
	Explain ExplainConfig `yaml:"explain"`
	// Validation controls the checks run on every fused ranking.
	Validation ValidationConfig `yaml:"validation"`
}

// Metadata provides descriptive information about a pipeline to support
// organization, discovery, and operational management.
type Metadata struct {
	// Name is the human-readable identifier for this pipeline and doubles
	// as the fuser name in logs, traces and metrics.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description provides a detailed explanation of the pipeline's purpose.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags are categorical labels that enable filtering and grouping.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
	// Labels are arbitrary key-value pairs for integration with external
	// systems and custom categorization.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// FusionConfig selects the fusion algorithm for a pipeline.
type FusionConfig struct {
	// Algorithm names one of the supported fusion algorithms. Matching is
	// case-insensitive.
	Algorithm string `yaml:"algorithm" validate:"required,algorithm"`
	// TopK truncates the fused output when positive and overrides any
	// top_k inside Parameters.
	TopK int `yaml:"top_k" validate:"min=0"`
	// Normalization overrides the per-list score normalization of the
	// score-based algorithms that take one (the comb family, weighted and
	// additive_multi_task).
	Normalization string `yaml:"normalization" validate:"omitempty,normalization"`
	// Parameters contains algorithm-specific configuration as flexible
	// YAML that is decoded strictly by the algorithm's config type.
	Parameters yaml.Node `yaml:"parameters"`
}

// RetrieverConfig names one input list.
type RetrieverConfig struct {
	// Name identifies the retriever in explanations and must be unique
	// within the pipeline.
	Name string `yaml:"name" validate:"required,min=1,max=100"`
	// Description documents where the list comes from.
	Description string `yaml:"description" validate:"max=500"`
}

// ExplainConfig controls explanation output.
type ExplainConfig struct {
	// Enabled switches the pipeline to explained fusion.
	Enabled bool `yaml:"enabled"`
	// AttributionTopK limits retriever attribution to the top results.
	// Zero attributes over the whole output.
	AttributionTopK int `yaml:"attribution_top_k" validate:"min=0"`
	// RankSpreadThreshold overrides the rank spread above which a document
	// counts as disputed. Zero keeps the default.
	RankSpreadThreshold int `yaml:"rank_spread_threshold" validate:"min=0"`
}

// ValidationConfig controls the checks run on fused rankings.
type ValidationConfig struct {
	// Enabled runs the sorted, duplicate and finite-score checks.
	Enabled bool `yaml:"enabled"`
	// CheckNonNegative adds a warning for negative fused scores.
	CheckNonNegative bool `yaml:"check_non_negative"`
	// MaxResults adds a warning when the output exceeds this size.
	// Zero disables the check.
	MaxResults int `yaml:"max_results" validate:"min=0"`
	// FailOnError turns blocking validation errors into a pipeline error.
	FailOnError bool `yaml:"fail_on_error"`
}

// RetrieverNames returns the configured retriever names in order, or nil
// when none are configured.
func (c *PipelineConfig) RetrieverNames() []string {
	if len(c.Retrievers) == 0 {
		return nil
	}
	names := make([]string, len(c.Retrievers))
	for i, r := range c.Retrievers {
		names[i] = r.Name
	}
	return names
}
