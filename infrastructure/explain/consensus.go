// Package explain analyzes explained fusion results: which documents the
// retrievers agree on, where they disagree, and how much each retriever
// contributed to the head of the ranking. Every function is read-only.
package explain

import (
	"slices"

	"github.com/ahrav/go-rankfuse/internal/domain"
)

// DefaultRankSpreadThreshold is the rank spread above which retrievers are
// considered to disagree about a document.
const DefaultRankSpreadThreshold = 5

// consensusEpsilon absorbs floating point error in weight-share consensus.
const consensusEpsilon = 1e-9

// RetrieverRank is one retriever's position for a document.
type RetrieverRank struct {
	Retriever string `json:"retriever"`
	Rank      int    `json:"rank"`
}

// RankDisagreement lists the positions retrievers gave a document whose
// rank spread exceeded the threshold.
type RankDisagreement[I comparable] struct {
	ID     I               `json:"id"`
	Spread int             `json:"spread"`
	Ranks  []RetrieverRank `json:"ranks"`
}

// ConsensusReport groups fused documents by how strongly retrievers agree.
type ConsensusReport[I comparable] struct {
	// HighConsensus holds documents every retriever returned.
	HighConsensus []I `json:"high_consensus"`

	// SingleSource holds documents exactly one retriever returned.
	SingleSource []I `json:"single_source"`

	// RankDisagreement holds documents returned by several retrievers at
	// widely different positions.
	RankDisagreement []RankDisagreement[I] `json:"rank_disagreement"`
}

type consensusOptions struct {
	spreadThreshold int
}

// ConsensusOption configures AnalyzeConsensus.
type ConsensusOption func(*consensusOptions)

// WithRankSpreadThreshold sets the rank spread above which a document is
// reported as a disagreement. Negative values are treated as zero.
func WithRankSpreadThreshold(threshold int) ConsensusOption {
	return func(o *consensusOptions) {
		o.spreadThreshold = max(threshold, 0)
	}
}

// AnalyzeConsensus classifies explained results in output order.
func AnalyzeConsensus[I comparable](results []domain.ExplainedResult[I], opts ...ConsensusOption) ConsensusReport[I] {
	options := consensusOptions{spreadThreshold: DefaultRankSpreadThreshold}
	for _, opt := range opts {
		opt(&options)
	}

	report := ConsensusReport[I]{
		HighConsensus:    make([]I, 0),
		SingleSource:     make([]I, 0),
		RankDisagreement: make([]RankDisagreement[I], 0),
	}

	for _, r := range results {
		sources := r.Explanation.Sources
		if r.Explanation.ConsensusScore >= 1-consensusEpsilon {
			report.HighConsensus = append(report.HighConsensus, r.ID)
		}
		if len(sources) == 1 {
			report.SingleSource = append(report.SingleSource, r.ID)
			continue
		}

		ranks := make([]RetrieverRank, 0, len(sources))
		for _, s := range sources {
			if s.OriginalRank == nil {
				continue
			}
			ranks = append(ranks, RetrieverRank{Retriever: s.RetrieverID, Rank: *s.OriginalRank})
		}
		if len(ranks) < 2 {
			continue
		}

		lo := slices.MinFunc(ranks, func(a, b RetrieverRank) int { return a.Rank - b.Rank })
		hi := slices.MaxFunc(ranks, func(a, b RetrieverRank) int { return a.Rank - b.Rank })
		if spread := hi.Rank - lo.Rank; spread > options.spreadThreshold {
			report.RankDisagreement = append(report.RankDisagreement, RankDisagreement[I]{
				ID:     r.ID,
				Spread: spread,
				Ranks:  ranks,
			})
		}
	}

	return report
}
