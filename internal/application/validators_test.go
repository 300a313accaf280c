package application

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
)

func parseNode(t *testing.T, src string) yaml.Node {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &node))
	// Unwrap the document node the way struct decoding would.
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		return *node.Content[0]
	}
	return node
}

func TestValidateFusionParameters(t *testing.T) {
	tests := []struct {
		name       string
		algorithm  domain.Algorithm
		params     string
		retrievers int
		wantErr    error
		wantMsg    string
	}{
		{name: "rrf with k", algorithm: domain.AlgorithmRRF, params: "k: 60"},
		{name: "valid normalization", algorithm: domain.AlgorithmCombSUM, params: "normalization: ZScore"},
		{
			name:      "unknown normalization",
			algorithm: domain.AlgorithmCombSUM,
			params:    "normalization: softmax",
			wantErr:   domain.ErrUnknownNormalization,
		},
		{
			name:      "non-string normalization",
			algorithm: domain.AlgorithmCombSUM,
			params:    "normalization: 3",
			wantMsg:   "normalization must be a string",
		},
		{
			name:       "weights match retrievers",
			algorithm:  domain.AlgorithmWeighted,
			params:     "weights: [0.7, 0.3]",
			retrievers: 2,
		},
		{
			name:       "weights without declared retrievers",
			algorithm:  domain.AlgorithmWeighted,
			params:     "weights: [0.7, 0.2, 0.1]",
			retrievers: 0,
		},
		{
			name:       "weights mismatch",
			algorithm:  domain.AlgorithmWeighted,
			params:     "weights: [1]",
			retrievers: 2,
			wantErr:    domain.ErrWeightCountMismatch,
		},
		{
			name:      "non-numeric weight",
			algorithm: domain.AlgorithmWeighted,
			params:    "weights: [1, heavy]",
			wantMsg:   "weight 1 must be a number",
		},
		{
			name:       "tasks match retrievers",
			algorithm:  domain.AlgorithmAdditiveMultiTask,
			params:     "tasks: [{name: ctr, weight: 1}, {name: cvr, weight: 20}]",
			retrievers: 2,
		},
		{
			name:      "task without name",
			algorithm: domain.AlgorithmAdditiveMultiTask,
			params:    "tasks: [{weight: 1}]",
			wantErr:   domain.ErrEmptyTaskName,
		},
		{
			name:       "tasks mismatch",
			algorithm:  domain.AlgorithmAdditiveMultiTask,
			params:     "tasks: [{name: ctr, weight: 1}]",
			retrievers: 3,
			wantErr:    domain.ErrWeightCountMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFusionParameters(tt.algorithm, parseNode(t, tt.params), tt.retrievers)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantMsg != "":
				assert.ErrorContains(t, err, tt.wantMsg)
			default:
				assert.NoError(t, err)
			}
		})
	}

	t.Run("empty node", func(t *testing.T) {
		assert.NoError(t, ValidateFusionParameters(domain.AlgorithmWeighted, yaml.Node{}, 2))
	})
}

func TestRegisterPipelineValidators(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterPipelineValidators(v))

	type sample struct {
		Version       string `validate:"semver"`
		Algorithm     string `validate:"algorithm"`
		Normalization string `validate:"normalization"`
	}

	tests := []struct {
		name    string
		value   sample
		wantErr bool
	}{
		{name: "all valid", value: sample{"1.2.3", "RRF", "minmax"}},
		{name: "empty normalization", value: sample{"0.0.1", "borda", ""}},
		{name: "short version", value: sample{"1.2", "rrf", ""}, wantErr: true},
		{name: "unknown algorithm", value: sample{"1.0.0", "bm25", ""}, wantErr: true},
		{name: "unknown normalization", value: sample{"1.0.0", "rrf", "l2"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
