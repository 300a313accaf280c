package explain

import (
	"encoding/json"

	"github.com/ahrav/go-rankfuse/internal/domain"
)

// RetrieverStats summarizes one retriever's share of the top of a fused
// ranking.
type RetrieverStats struct {
	// TopKCount is the number of top-k documents the retriever returned.
	TopKCount int `json:"top_k_count"`

	// AvgContribution is the retriever's mean contribution over those
	// documents.
	AvgContribution float64 `json:"avg_contribution"`

	// UniqueDocs is the number of top-k documents no other retriever
	// returned.
	UniqueDocs int `json:"unique_docs"`
}

// MarshalJSON encodes a non-finite average contribution as null.
func (s RetrieverStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TopKCount       int              `json:"top_k_count"`
		AvgContribution domain.JSONFloat `json:"avg_contribution"`
		UniqueDocs      int              `json:"unique_docs"`
	}{
		TopKCount:       s.TopKCount,
		AvgContribution: domain.JSONFloat(s.AvgContribution),
		UniqueDocs:      s.UniqueDocs,
	})
}

// AttributeTopK reports, per retriever, how it contributed to the first k
// explained results. k <= 0 or k beyond the result count covers every result.
func AttributeTopK[I comparable](results []domain.ExplainedResult[I], k int) map[string]RetrieverStats {
	if k <= 0 || k > len(results) {
		k = len(results)
	}

	stats := make(map[string]RetrieverStats)
	totals := make(map[string]float64)
	for _, r := range results[:k] {
		sources := r.Explanation.Sources
		for _, s := range sources {
			st := stats[s.RetrieverID]
			st.TopKCount++
			if len(sources) == 1 {
				st.UniqueDocs++
			}
			stats[s.RetrieverID] = st
			totals[s.RetrieverID] += s.Contribution
		}
	}

	for id, st := range stats {
		st.AvgContribution = totals[id] / float64(st.TopKCount)
		stats[id] = st
	}
	return stats
}
