package domain

import (
	"math"
	"slices"
	"sort"
)

// Contribution records what one occurrence of a document in one input list
// adds to its fused score.
type Contribution struct {
	// List is the index of the input list the occurrence came from.
	List int

	// Rank is the 0-indexed position of the occurrence in that list.
	Rank int

	// Score is the raw score the retriever reported.
	Score float64

	// Normalized is the score after per-list normalization. It is only
	// meaningful when HasNormalized is set.
	Normalized float64

	// HasNormalized reports whether the fuser normalized scores.
	HasNormalized bool

	// Value is the amount this occurrence adds before combination.
	Value float64
}

// Combiner folds the per-list values of one document into its fused score.
// values holds one entry per input list containing the document, in list
// order; lists is the total number of input lists.
type Combiner func(values []float64, lists int) float64

// SumCombiner adds the per-list values.
func SumCombiner(values []float64, _ int) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// OverlapCombiner multiplies the sum of per-list values by the number of
// lists containing the document.
func OverlapCombiner(values []float64, lists int) float64 {
	return SumCombiner(values, lists) * float64(len(values))
}

// MaxCombiner keeps the largest per-list value.
func MaxCombiner(values []float64, _ int) float64 {
	best := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			return v
		}
		if v > best {
			best = v
		}
	}
	return best
}

// MedianCombiner keeps the median per-list value; an even count averages
// the two middle values.
func MedianCombiner(values []float64, _ int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MeanCombiner averages the per-list values over the lists that contain the
// document.
func MeanCombiner(values []float64, lists int) float64 {
	if len(values) == 0 {
		return 0
	}
	return SumCombiner(values, lists) / float64(len(values))
}

// CompareScores orders scores for a descending ranking under a total order.
// It returns a negative number when a ranks before b, a positive number when
// a ranks after b, and zero when they tie. NaN ranks after every number and
// ties with itself.
func CompareScores(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

// Accumulator collects per-document contributions keyed by identifier and
// turns them into a deterministically ordered fused ranking.
// Documents keep the order in which they were first seen; that order breaks
// exact score ties. An Accumulator is not safe for concurrent use and is
// meant to live for a single fusion call.
type Accumulator[I comparable] struct {
	lists int
	index map[I]int
	docs  []accumulated[I]
}

type accumulated[I comparable] struct {
	id            I
	contributions []Contribution
}

// listValue is one list's collapsed input for a document.
type listValue struct {
	list  int
	first Contribution
	value float64
}

// NewAccumulator creates an accumulator for a call over the given number of
// input lists. capacity is a sizing hint for the number of distinct ids.
func NewAccumulator[I comparable](lists, capacity int) *Accumulator[I] {
	return &Accumulator[I]{
		lists: lists,
		index: make(map[I]int, capacity),
		docs:  make([]accumulated[I], 0, capacity),
	}
}

// Add records a contribution for id. Repeated occurrences of id in the same
// list all contribute and are summed.
func (a *Accumulator[I]) Add(id I, c Contribution) {
	idx, ok := a.index[id]
	if !ok {
		idx = len(a.docs)
		a.index[id] = idx
		a.docs = append(a.docs, accumulated[I]{id: id})
	}
	a.docs[idx].contributions = append(a.docs[idx].contributions, c)
}

// Len returns the number of distinct identifiers seen.
func (a *Accumulator[I]) Len() int { return len(a.docs) }

// Lists returns the number of input lists the accumulator was built for.
func (a *Accumulator[I]) Lists() int { return a.lists }

// Results combines the contributions of every document, sorts descending
// under CompareScores with first-seen tie-breaking, truncates to topK when
// topK is positive and assigns output ranks.
func (a *Accumulator[I]) Results(combine Combiner, topK int) []FusedResult[I] {
	order := a.rank(combine, topK)
	results := make([]FusedResult[I], len(order))
	for i, s := range order {
		results[i] = FusedResult[I]{
			ID:    a.docs[s.doc].id,
			Score: s.score,
			Rank:  i,
		}
	}
	return results
}

// Explained behaves like Results and additionally attaches provenance for
// every surviving document. retrievers names each input list and must have
// one entry per list. weights, when non-nil, gives each list's share for
// the consensus score; otherwise every list counts equally.
func (a *Accumulator[I]) Explained(
	combine Combiner,
	topK int,
	method Algorithm,
	retrievers []string,
	weights []float64,
) []ExplainedResult[I] {
	order := a.rank(combine, topK)

	var totalWeight float64
	for _, w := range weights {
		totalWeight += w
	}

	results := make([]ExplainedResult[I], len(order))
	for i, s := range order {
		doc := a.docs[s.doc]
		groups := collapse(doc.contributions)

		sources := make([]SourceContribution, len(groups))
		var share float64
		for j, g := range groups {
			sources[j] = newSourceContribution(retrieverName(retrievers, g.list), g)
			if weights != nil && g.list < len(weights) {
				share += weights[g.list]
			}
		}

		consensus := 0.0
		switch {
		case weights != nil && totalWeight != 0:
			consensus = share / totalWeight
		case a.lists > 0:
			consensus = float64(len(groups)) / float64(a.lists)
		}

		results[i] = ExplainedResult[I]{
			FusedResult: FusedResult[I]{ID: doc.id, Score: s.score, Rank: i},
			Explanation: Explanation{
				Sources:        sources,
				Method:         method,
				ConsensusScore: consensus,
			},
		}
	}
	return results
}

type scoredDoc struct {
	doc   int
	score float64
}

func (a *Accumulator[I]) rank(combine Combiner, topK int) []scoredDoc {
	scored := make([]scoredDoc, len(a.docs))
	for i, doc := range a.docs {
		groups := collapse(doc.contributions)
		values := make([]float64, len(groups))
		for j, g := range groups {
			values[j] = g.value
		}
		scored[i] = scoredDoc{doc: i, score: combine(values, a.lists)}
	}

	slices.SortStableFunc(scored, func(x, y scoredDoc) int {
		return CompareScores(x.score, y.score)
	})

	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}
	return scored
}

// collapse sums contributions per input list, keeping the first occurrence
// for provenance. The result is ordered by list index.
func collapse(contributions []Contribution) []listValue {
	groups := make([]listValue, 0, len(contributions))
	for _, c := range contributions {
		found := false
		for g := range groups {
			if groups[g].list == c.List {
				groups[g].value += c.Value
				found = true
				break
			}
		}
		if !found {
			groups = append(groups, listValue{list: c.List, first: c, value: c.Value})
		}
	}
	slices.SortStableFunc(groups, func(x, y listValue) int { return x.list - y.list })
	return groups
}

func newSourceContribution(retriever string, g listValue) SourceContribution {
	rank := g.first.Rank
	score := g.first.Score
	sc := SourceContribution{
		RetrieverID:   retriever,
		OriginalRank:  &rank,
		OriginalScore: &score,
		Contribution:  g.value,
	}
	if g.first.HasNormalized {
		normalized := g.first.Normalized
		sc.NormalizedScore = &normalized
	}
	return sc
}
