package application

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
)

// ValidateFusionParameters checks the algorithm-specific parameters of a
// pipeline against the retrievers it declares. Value ranges are enforced by
// each fuser's constructor; this catches the cross-field mistakes a single
// config type cannot see, such as a weight vector sized for a different
// number of retrievers.
// retrievers is the number of declared retrievers, or 0 when the pipeline
// names none.
func ValidateFusionParameters(algorithm domain.Algorithm, params yaml.Node, retrievers int) error {
	if params.Kind == 0 {
		return nil
	}

	var paramMap map[string]any
	if err := params.Decode(&paramMap); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}

	if method, ok := paramMap["normalization"]; ok {
		name, ok := method.(string)
		if !ok {
			return fmt.Errorf("normalization must be a string")
		}
		if _, err := domain.ParseNormalization(name); err != nil {
			return err
		}
	}

	switch algorithm {
	case domain.AlgorithmWeighted:
		return validateWeightedParams(paramMap, retrievers)
	case domain.AlgorithmAdditiveMultiTask:
		return validateMultiTaskParams(paramMap, retrievers)
	default:
		return nil
	}
}

// validateWeightedParams requires one weight per declared retriever.
func validateWeightedParams(params map[string]any, retrievers int) error {
	raw, ok := params["weights"]
	if !ok {
		return nil
	}
	weights, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("weights must be a list of numbers")
	}
	for i, w := range weights {
		switch w.(type) {
		case int, float64:
		default:
			return fmt.Errorf("weight %d must be a number", i)
		}
	}
	if retrievers > 0 && len(weights) != retrievers {
		return fmt.Errorf("%w: %d weights for %d retrievers",
			domain.ErrWeightCountMismatch, len(weights), retrievers)
	}
	return nil
}

// validateMultiTaskParams requires one task per declared retriever, each
// with a name.
func validateMultiTaskParams(params map[string]any, retrievers int) error {
	raw, ok := params["tasks"]
	if !ok {
		return fmt.Errorf("additive_multi_task requires 'tasks' parameter")
	}
	tasks, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("tasks must be a list")
	}
	for i, task := range tasks {
		entry, ok := task.(map[string]any)
		if !ok {
			return fmt.Errorf("task %d must be a mapping", i)
		}
		if name, _ := entry["name"].(string); name == "" {
			return fmt.Errorf("task %d: %w", i, domain.ErrEmptyTaskName)
		}
	}
	if retrievers > 0 && len(tasks) != retrievers {
		return fmt.Errorf("%w: %d tasks for %d retrievers",
			domain.ErrWeightCountMismatch, len(tasks), retrievers)
	}
	return nil
}

// RegisterPipelineValidators registers custom validation functions with
// the validator instance for use in pipeline configuration validation.
// RegisterPipelineValidators adds semver, algorithm and normalization
// validators that can be referenced in struct tags.
func RegisterPipelineValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}

	if err := v.RegisterValidation("algorithm", validateAlgorithmTag); err != nil {
		return fmt.Errorf("failed to register algorithm validator: %w", err)
	}

	if err := v.RegisterValidation("normalization", validateNormalizationTag); err != nil {
		return fmt.Errorf("failed to register normalization validator: %w", err)
	}

	return nil
}

// validateAlgorithmTag accepts any spelling ParseAlgorithm resolves.
func validateAlgorithmTag(fl validator.FieldLevel) bool {
	_, err := domain.ParseAlgorithm(fl.Field().String())
	return err == nil
}

// validateNormalizationTag accepts an empty value or any spelling
// ParseNormalization resolves.
func validateNormalizationTag(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := domain.ParseNormalization(value)
	return err == nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}
