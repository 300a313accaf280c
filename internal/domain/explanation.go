package domain

import (
	"encoding/json"
	"fmt"
)

// SourceContribution describes what one retriever added to a fused document.
type SourceContribution struct {
	// RetrieverID names the retriever whose list contained the document.
	RetrieverID string `json:"retriever_id"`

	// OriginalRank is the document's 0-indexed position in that list.
	OriginalRank *int `json:"original_rank,omitempty"`

	// OriginalScore is the raw score the retriever reported.
	OriginalScore *float64 `json:"original_score,omitempty"`

	// NormalizedScore is the score after per-list normalization. It is nil
	// for rank-based algorithms.
	NormalizedScore *float64 `json:"normalized_score,omitempty"`

	// Contribution is the amount this retriever added before the
	// algorithm's final combination step.
	Contribution float64 `json:"contribution"`
}

// MarshalJSON encodes non-finite scores as null.
func (c SourceContribution) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RetrieverID     string     `json:"retriever_id"`
		OriginalRank    *int       `json:"original_rank,omitempty"`
		OriginalScore   *JSONFloat `json:"original_score,omitempty"`
		NormalizedScore *JSONFloat `json:"normalized_score,omitempty"`
		Contribution    JSONFloat  `json:"contribution"`
	}{
		RetrieverID:     c.RetrieverID,
		OriginalRank:    c.OriginalRank,
		OriginalScore:   (*JSONFloat)(c.OriginalScore),
		NormalizedScore: (*JSONFloat)(c.NormalizedScore),
		Contribution:    JSONFloat(c.Contribution),
	})
}

// Explanation is the provenance attached to one fused result.
type Explanation struct {
	// Sources holds one entry per retriever that contained the document,
	// in retriever order.
	Sources []SourceContribution `json:"sources"`

	// Method is the algorithm that produced the fused score.
	Method Algorithm `json:"method"`

	// ConsensusScore is the fraction of retrievers (or of total retriever
	// weight) that contained the document, in [0,1].
	ConsensusScore float64 `json:"consensus_score"`
}

// ExplainedResult pairs a fused result with its explanation.
type ExplainedResult[I comparable] struct {
	FusedResult[I]

	Explanation Explanation `json:"explanation"`
}

// MarshalJSON flattens the embedded result next to the explanation. It
// shadows FusedResult.MarshalJSON, which would otherwise drop the
// explanation.
func (r ExplainedResult[I]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          I           `json:"id"`
		Score       JSONFloat   `json:"score"`
		Rank        int         `json:"rank"`
		Explanation Explanation `json:"explanation"`
	}{
		ID:          r.ID,
		Score:       JSONFloat(r.Score),
		Rank:        r.Rank,
		Explanation: r.Explanation,
	})
}

// DefaultRetrieverIDs returns the names used when a caller does not name
// its retrievers: retriever_0, retriever_1, ...
func DefaultRetrieverIDs(n int) []string {
	ids := make([]string, n)
	for i := range n {
		ids[i] = fmt.Sprintf("retriever_%d", i)
	}
	return ids
}

// Plain strips explanations, returning the underlying fused results.
func Plain[I comparable](explained []ExplainedResult[I]) []FusedResult[I] {
	out := make([]FusedResult[I], len(explained))
	for i, e := range explained {
		out[i] = e.FusedResult
	}
	return out
}

func retrieverName(retrievers []string, list int) string {
	if list < len(retrievers) {
		return retrievers[list]
	}
	return fmt.Sprintf("retriever_%d", list)
}
