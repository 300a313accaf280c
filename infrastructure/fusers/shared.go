// Package fusers provides the rank fusion algorithms that implement the
// ports.ExplainingFuser interface. Every fuser is an immutable value built
// from a validated config struct, and every fuser feeds its per-document
// contributions through domain.Accumulator so ordering, tie-breaking and
// truncation behave identically across algorithms.
package fusers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// Operation names reported in ports.FusionError.
const (
	opFuse          = "Fuse"
	opFuseExplained = "FuseExplained"
)

// weightEpsilon is the magnitude below which a weight total counts as zero.
const weightEpsilon = 1e-9

// rankValue computes the contribution of an item at 0-indexed position pos
// in a list of length n.
type rankValue func(pos, n int) float64

// accumulateRanks builds an accumulator from position information only.
func accumulateRanks[I comparable](lists []domain.RankedList[I], value rankValue) *domain.Accumulator[I] {
	acc := domain.NewAccumulator[I](len(lists), totalItems(lists))
	for l, list := range lists {
		n := len(list)
		for pos, item := range list {
			acc.Add(item.ID, domain.Contribution{
				List:  l,
				Rank:  pos,
				Score: item.Score,
				Value: value(pos, n),
			})
		}
	}
	return acc
}

// scoreTransform maps one list's raw scores onto the scale the fuser combines.
type scoreTransform func(list int, scores []float64) []float64

// accumulateScores builds an accumulator from transformed scores. weight
// scales each list's transformed values; nil means a weight of one.
func accumulateScores[I comparable](
	lists []domain.RankedList[I],
	transform scoreTransform,
	weight func(list int) float64,
) *domain.Accumulator[I] {
	acc := domain.NewAccumulator[I](len(lists), totalItems(lists))
	for l, list := range lists {
		normalized := transform(l, list.Scores())
		w := 1.0
		if weight != nil {
			w = weight(l)
		}
		for pos, item := range list {
			acc.Add(item.ID, domain.Contribution{
				List:          l,
				Rank:          pos,
				Score:         item.Score,
				Normalized:    normalized[pos],
				HasNormalized: true,
				Value:         w * normalized[pos],
			})
		}
	}
	return acc
}

// normalizeWith returns a transform applying one normalization to every list.
func normalizeWith(method domain.Normalization) scoreTransform {
	return func(_ int, scores []float64) []float64 {
		return domain.Normalize(method, scores)
	}
}

func totalItems[I comparable](lists []domain.RankedList[I]) int {
	total := 0
	for _, list := range lists {
		total += len(list)
	}
	return total
}

// resolveRetrievers returns the retriever names for an explained call.
// nil selects the default names.
func resolveRetrievers(retrievers []string, lists int) ([]string, error) {
	if retrievers == nil {
		return domain.DefaultRetrieverIDs(lists), nil
	}
	if len(retrievers) != lists {
		return nil, fmt.Errorf("%w: got %d retriever ids for %d lists",
			domain.ErrRetrieverCountMismatch, len(retrievers), lists)
	}
	return retrievers, nil
}

// checkRankConstant enforces k >= 1.
func checkRankConstant(k int) error {
	if k < 1 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidK, k)
	}
	return nil
}

// checkWeights rejects non-finite weights and totals close to zero.
func checkWeights(weights []float64) error {
	var total float64
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight %d is %v", domain.ErrInvalidWeight, i, w)
		}
		total += w
	}
	if len(weights) > 0 && math.Abs(total) < weightEpsilon {
		return fmt.Errorf("%w: total %v", domain.ErrZeroWeights, total)
	}
	return nil
}

// checkWeightCount pairs weights with lists one to one.
func checkWeightCount(weights, lists int) error {
	if weights != lists {
		return fmt.Errorf("%w: got %d weights for %d lists", domain.ErrWeightCountMismatch, weights, lists)
	}
	return nil
}

// decodeConfig overlays a loosely typed parameter map onto defaults by
// round-tripping it through YAML, so map keys follow the config's yaml tags.
// Unknown keys are rejected.
func decodeConfig[T any](params map[string]any, defaults T) (T, error) {
	if len(params) == 0 {
		return defaults, nil
	}

	raw, err := yaml.Marshal(params)
	if err != nil {
		return defaults, fmt.Errorf("failed to encode parameters: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return defaults, fmt.Errorf("failed to parse parameters: %w", err)
	}
	return decodeNode(node, defaults)
}

// decodeNode decodes a YAML parameter node over defaults and rejects keys
// the config does not declare.
func decodeNode[T any](params yaml.Node, defaults T) (T, error) {
	config := defaults
	if params.Kind == 0 {
		return config, nil
	}

	raw, err := yaml.Marshal(&params)
	if err != nil {
		return defaults, fmt.Errorf("failed to encode parameters: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return defaults, fmt.Errorf("failed to decode parameters: %w", err)
	}
	return config, nil
}

// wrapFusion tags a call-time failure with the fuser that produced it.
func wrapFusion(f interface {
	Name() string
	Algorithm() domain.Algorithm
}, op string, err error,
) error {
	return ports.NewFusionError(f.Name(), f.Algorithm(), op, err)
}
