// Package domain holds the pure types and algorithms of the fusion engine:
// ranked lists, fused results, score normalization, the aggregation and
// sort engine, and the explanation and validation result shapes.
// Nothing in this package performs I/O or keeps state across calls.
package domain

import (
	"encoding/json"
	"math"
)

// Item is a single (identifier, score) pair produced by one retriever.
// The engine never inspects the identifier beyond equality.
type Item[I comparable] struct {
	// ID identifies the document within the caller's key space.
	ID I `json:"id" yaml:"id"`

	// Score is the retriever's raw score. It may be non-finite; fusers
	// tolerate NaN and Inf without corrupting the output order.
	Score float64 `json:"score" yaml:"score"`
}

// RankedList is the ordered output of one retriever. Position in the slice
// is the item's rank (0-indexed) regardless of whether scores are sorted.
type RankedList[I comparable] []Item[I]

// NewRankedList builds a RankedList from ids in rank order, assigning each a
// descending synthetic score so score-based fusers see a consistent order.
func NewRankedList[I comparable](ids ...I) RankedList[I] {
	list := make(RankedList[I], len(ids))
	for i, id := range ids {
		list[i] = Item[I]{ID: id, Score: float64(len(ids) - i)}
	}
	return list
}

// Scores returns the scores of the list in rank order.
func (l RankedList[I]) Scores() []float64 {
	scores := make([]float64, len(l))
	for i, item := range l {
		scores[i] = item.Score
	}
	return scores
}

// IDs returns the identifiers of the list in rank order.
func (l RankedList[I]) IDs() []I {
	ids := make([]I, len(l))
	for i, item := range l {
		ids[i] = item.ID
	}
	return ids
}

// FusedResult is one entry of a fused ranking.
// Rank is the 0-indexed position in the fused output and is always
// recomputed by the engine, never inherited from an input list.
type FusedResult[I comparable] struct {
	// ID identifies the document.
	ID I `json:"id" yaml:"id"`

	// Score is the fused score under the selected algorithm.
	Score float64 `json:"score" yaml:"score"`

	// Rank is the position of this result in the fused output.
	Rank int `json:"rank" yaml:"rank"`
}

// MarshalJSON encodes a non-finite score as null.
func (r FusedResult[I]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID    I         `json:"id"`
		Score JSONFloat `json:"score"`
		Rank  int       `json:"rank"`
	}{ID: r.ID, Score: JSONFloat(r.Score), Rank: r.Rank})
}

// JSONFloat is a float64 that encodes NaN and ±Inf as null, which
// encoding/json otherwise refuses to encode.
type JSONFloat float64

// MarshalJSON implements json.Marshaler.
func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// ResultIDs returns the identifiers of results in output order.
func ResultIDs[I comparable](results []FusedResult[I]) []I {
	ids := make([]I, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}
