package fusers

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

var _ ports.ExplainingFuser[string] = (*AdditiveMultiTaskFuser[string])(nil)

// AdditiveMultiTaskFuser fuses per-task score lists for multi-objective
// ranking, such as click-through and conversion predictions. Each task owns
// one input list, a weight and optionally its own normalization. Weights are
// applied as given, so a 1:20 ratio between tasks is preserved exactly.
type AdditiveMultiTaskFuser[I comparable] struct {
	name   string
	config AdditiveMultiTaskConfig
}

// TaskConfig describes one task of an AdditiveMultiTaskFuser.
type TaskConfig struct {
	// Name identifies the task in explanations.
	Name string `yaml:"name" json:"name"`

	// Weight multiplies the task's normalized scores.
	Weight float64 `yaml:"weight" json:"weight"`

	// Normalization overrides the fuser-wide normalization for this task.
	Normalization domain.Normalization `yaml:"normalization,omitempty" json:"normalization,omitempty" validate:"omitempty,oneof=minmax zscore sum rank none"`
}

// AdditiveMultiTaskConfig defines the configuration parameters for the
// AdditiveMultiTaskFuser.
type AdditiveMultiTaskConfig struct {
	// Tasks pairs one task with each input list, in list order.
	Tasks []TaskConfig `yaml:"tasks" json:"tasks" validate:"required,min=1,dive"`

	// Normalization is applied to tasks that do not set their own.
	Normalization domain.Normalization `yaml:"normalization" json:"normalization" validate:"required,oneof=minmax zscore sum rank none"`

	// TopK truncates the fused output when positive.
	TopK int `yaml:"top_k" json:"top_k" validate:"min=0"`
}

// DefaultAdditiveMultiTaskConfig returns a config with min-max normalization
// and no tasks. Tasks must be added before the config validates.
func DefaultAdditiveMultiTaskConfig() AdditiveMultiTaskConfig {
	return AdditiveMultiTaskConfig{Normalization: domain.NormalizationMinMax}
}

// WithTask returns a copy of the config with one more task.
func (c AdditiveMultiTaskConfig) WithTask(name string, weight float64) AdditiveMultiTaskConfig {
	c.Tasks = append(append([]TaskConfig(nil), c.Tasks...), TaskConfig{Name: name, Weight: weight})
	return c
}

// WithNormalization returns a copy of the config using method for tasks that
// do not set their own.
func (c AdditiveMultiTaskConfig) WithNormalization(method domain.Normalization) AdditiveMultiTaskConfig {
	c.Normalization = method
	return c
}

// WithTopK returns a copy of the config truncating output to topK results.
func (c AdditiveMultiTaskConfig) WithTopK(topK int) AdditiveMultiTaskConfig {
	c.TopK = topK
	return c
}

func (c AdditiveMultiTaskConfig) validate() error {
	for i, task := range c.Tasks {
		if task.Name == "" {
			return fmt.Errorf("%w: task %d", domain.ErrEmptyTaskName, i)
		}
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return checkWeights(c.weights())
}

func (c AdditiveMultiTaskConfig) weights() []float64 {
	weights := make([]float64, len(c.Tasks))
	for i, task := range c.Tasks {
		weights[i] = task.Weight
	}
	return weights
}

func (c AdditiveMultiTaskConfig) taskNames() []string {
	names := make([]string, len(c.Tasks))
	for i, task := range c.Tasks {
		names[i] = task.Name
	}
	return names
}

// NewAdditiveMultiTaskFuser creates a new AdditiveMultiTaskFuser with the
// specified configuration.
func NewAdditiveMultiTaskFuser[I comparable](name string, config AdditiveMultiTaskConfig) (*AdditiveMultiTaskFuser[I], error) {
	if name == "" {
		return nil, domain.ErrEmptyFuserName
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	config.Tasks = append([]TaskConfig(nil), config.Tasks...)
	return &AdditiveMultiTaskFuser[I]{name: name, config: config}, nil
}

// Name returns the unique identifier for this fuser instance.
func (f *AdditiveMultiTaskFuser[I]) Name() string { return f.name }

// Algorithm returns domain.AlgorithmAdditiveMultiTask.
func (f *AdditiveMultiTaskFuser[I]) Algorithm() domain.Algorithm {
	return domain.AlgorithmAdditiveMultiTask
}

// Config returns the fuser's configuration.
func (f *AdditiveMultiTaskFuser[I]) Config() AdditiveMultiTaskConfig { return f.config }

// Fuse sums each task's weighted normalized scores. lists must pair one to
// one with the configured tasks.
func (f *AdditiveMultiTaskFuser[I]) Fuse(_ context.Context, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	if err := checkWeightCount(len(f.config.Tasks), len(lists)); err != nil {
		return nil, wrapFusion(f, opFuse, err)
	}
	return f.accumulate(lists).Results(domain.SumCombiner, f.config.TopK), nil
}

// FuseExplained combines lists like Fuse and attaches provenance. When
// retrievers is nil the task names label the sources.
func (f *AdditiveMultiTaskFuser[I]) FuseExplained(
	_ context.Context,
	retrievers []string,
	lists ...domain.RankedList[I],
) ([]domain.ExplainedResult[I], error) {
	if err := checkWeightCount(len(f.config.Tasks), len(lists)); err != nil {
		return nil, wrapFusion(f, opFuseExplained, err)
	}
	if retrievers == nil {
		retrievers = f.config.taskNames()
	}
	ids, err := resolveRetrievers(retrievers, len(lists))
	if err != nil {
		return nil, wrapFusion(f, opFuseExplained, err)
	}
	return f.accumulate(lists).Explained(
		domain.SumCombiner, f.config.TopK, domain.AlgorithmAdditiveMultiTask, ids, f.config.weights()), nil
}

func (f *AdditiveMultiTaskFuser[I]) accumulate(lists []domain.RankedList[I]) *domain.Accumulator[I] {
	tasks := f.config.Tasks
	return accumulateScores(lists,
		func(list int, scores []float64) []float64 {
			method := tasks[list].Normalization
			if method == "" {
				method = f.config.Normalization
			}
			return domain.Normalize(method, scores)
		},
		func(list int) float64 { return tasks[list].Weight },
	)
}

// Validate checks if the fuser is properly configured.
func (f *AdditiveMultiTaskFuser[I]) Validate() error { return f.config.validate() }

// WithParameters returns a copy of the fuser configured from strictly
// decoded YAML parameters. The receiver is never modified.
func (f *AdditiveMultiTaskFuser[I]) WithParameters(params yaml.Node) (*AdditiveMultiTaskFuser[I], error) {
	config, err := decodeNode(params, DefaultAdditiveMultiTaskConfig())
	if err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("parameter validation failed: %w", err)
	}
	return &AdditiveMultiTaskFuser[I]{name: f.name, config: config}, nil
}

// NewAdditiveMultiTaskFromConfig creates an AdditiveMultiTaskFuser from a
// configuration map.
func NewAdditiveMultiTaskFromConfig[I comparable](id string, params map[string]any) (ports.ExplainingFuser[I], error) {
	config, err := decodeConfig(params, DefaultAdditiveMultiTaskConfig())
	if err != nil {
		return nil, err
	}
	return NewAdditiveMultiTaskFuser[I](id, config)
}

// AdditiveMultiTask fuses one list per task with min-max normalization.
func AdditiveMultiTask[I comparable](tasks []TaskConfig, lists ...domain.RankedList[I]) ([]domain.FusedResult[I], error) {
	config := DefaultAdditiveMultiTaskConfig()
	config.Tasks = tasks
	f, err := NewAdditiveMultiTaskFuser[I](string(domain.AlgorithmAdditiveMultiTask), config)
	if err != nil {
		return nil, err
	}
	return f.Fuse(context.Background(), lists...)
}
