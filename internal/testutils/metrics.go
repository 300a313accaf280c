package testutils

import (
	"math"
)

// Retrieval metrics over a ranking (best first) and a set of relevant ids
// with binary relevance. Cutoffs below 1 yield 0.

// PrecisionAtK is the fraction of the top k that is relevant.
func PrecisionAtK[I comparable](ranked []I, relevant map[I]struct{}, k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(hits(ranked, relevant, k)) / float64(k)
}

// RecallAtK is the fraction of relevant documents found in the top k.
func RecallAtK[I comparable](ranked []I, relevant map[I]struct{}, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}
	return float64(hits(ranked, relevant, k)) / float64(len(relevant))
}

// ReciprocalRank is 1 over the 1-based rank of the first relevant document,
// or 0 when none is ranked.
func ReciprocalRank[I comparable](ranked []I, relevant map[I]struct{}) float64 {
	for i, id := range ranked {
		if _, ok := relevant[id]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// DCGAtK is the discounted cumulative gain of the top k.
func DCGAtK[I comparable](ranked []I, relevant map[I]struct{}, k int) float64 {
	if k <= 0 {
		return 0
	}
	var dcg float64
	for i, id := range ranked[:min(k, len(ranked))] {
		if _, ok := relevant[id]; ok {
			dcg += 1 / math.Log2(float64(i)+2)
		}
	}
	return dcg
}

// IdealDCGAtK is the DCG of a ranking that places all n relevant documents
// first.
func IdealDCGAtK(n, k int) float64 {
	var idcg float64
	for i := range min(n, k) {
		idcg += 1 / math.Log2(float64(i)+2)
	}
	return idcg
}

// NDCGAtK is DCGAtK normalized by the ideal DCG.
func NDCGAtK[I comparable](ranked []I, relevant map[I]struct{}, k int) float64 {
	ideal := IdealDCGAtK(len(relevant), k)
	if ideal == 0 {
		return 0
	}
	return DCGAtK(ranked, relevant, k) / ideal
}

// AveragePrecision averages the precision at the rank of each relevant
// document found, over all relevant documents.
func AveragePrecision[I comparable](ranked []I, relevant map[I]struct{}) float64 {
	if len(relevant) == 0 {
		return 0
	}
	var sum float64
	found := 0
	for i, id := range ranked {
		if _, ok := relevant[id]; ok {
			found++
			sum += float64(found) / float64(i+1)
		}
	}
	return sum / float64(len(relevant))
}

func hits[I comparable](ranked []I, relevant map[I]struct{}, k int) int {
	n := 0
	for _, id := range ranked[:min(k, len(ranked))] {
		if _, ok := relevant[id]; ok {
			n++
		}
	}
	return n
}

// QueryMetrics holds every metric for one ranking at cutoff K.
type QueryMetrics struct {
	K                int     `json:"k"`
	Precision        float64 `json:"precision_at_k"`
	Recall           float64 `json:"recall_at_k"`
	ReciprocalRank   float64 `json:"mrr"`
	NDCG             float64 `json:"ndcg_at_k"`
	AveragePrecision float64 `json:"average_precision"`
}

// ComputeMetrics evaluates one ranking at cutoff k.
func ComputeMetrics[I comparable](ranked []I, relevant map[I]struct{}, k int) QueryMetrics {
	return QueryMetrics{
		K:                k,
		Precision:        PrecisionAtK(ranked, relevant, k),
		Recall:           RecallAtK(ranked, relevant, k),
		ReciprocalRank:   ReciprocalRank(ranked, relevant),
		NDCG:             NDCGAtK(ranked, relevant, k),
		AveragePrecision: AveragePrecision(ranked, relevant),
	}
}

// MetricSummary accumulates per-query metrics into means. The zero value is
// ready to use with cutoff taken from the first added query.
type MetricSummary struct {
	Queries int
	sum     QueryMetrics
}

// Add records one query's metrics.
func (s *MetricSummary) Add(m QueryMetrics) {
	if s.Queries == 0 {
		s.sum.K = m.K
	}
	s.Queries++
	s.sum.Precision += m.Precision
	s.sum.Recall += m.Recall
	s.sum.ReciprocalRank += m.ReciprocalRank
	s.sum.NDCG += m.NDCG
	s.sum.AveragePrecision += m.AveragePrecision
}

// Mean returns the averaged metrics. MRR and MAP are the means of the
// reciprocal rank and the average precision respectively.
func (s *MetricSummary) Mean() QueryMetrics {
	if s.Queries == 0 {
		return QueryMetrics{}
	}
	n := float64(s.Queries)
	return QueryMetrics{
		K:                s.sum.K,
		Precision:        s.sum.Precision / n,
		Recall:           s.sum.Recall / n,
		ReciprocalRank:   s.sum.ReciprocalRank / n,
		NDCG:             s.sum.NDCG / n,
		AveragePrecision: s.sum.AveragePrecision / n,
	}
}
