package testutils

import (
	"context"

	"github.com/ahrav/go-rankfuse/internal/application"
	"github.com/ahrav/go-rankfuse/internal/domain"
)

// Evaluation compares a fuser against the retrievers it fuses.
type Evaluation struct {
	// Algorithm is the fuser's algorithm.
	Algorithm domain.Algorithm `json:"algorithm"`
	// Fused holds mean metrics of the fused rankings.
	Fused QueryMetrics `json:"fused"`
	// Retrievers holds mean metrics of each input run on its own.
	Retrievers map[string]QueryMetrics `json:"retrievers"`
	// Queries is the number of queries evaluated.
	Queries int `json:"queries"`
}

// Evaluate runs every query of dataset through runner and reports the mean
// metrics at cutoff k alongside each retriever's own metrics.
func Evaluate(
	ctx context.Context,
	runner *application.BatchRunner[string],
	dataset *Dataset,
	k int,
) (*Evaluation, error) {
	if k <= 0 {
		k = DefaultCutoff
	}

	queries := make([]application.Query[string], len(dataset.Queries))
	for i, q := range dataset.Queries {
		queries[i] = q.Query()
	}
	outcomes, err := runner.Run(ctx, queries)
	if err != nil {
		return nil, err
	}

	var fused MetricSummary
	perRetriever := make(map[string]*MetricSummary, len(dataset.Metadata.Retrievers))
	for _, name := range dataset.Metadata.Retrievers {
		perRetriever[name] = &MetricSummary{}
	}

	for i, q := range dataset.Queries {
		relevant := q.RelevantSet()
		fused.Add(ComputeMetrics(domain.ResultIDs(outcomes[i].Results), relevant, k))

		for _, run := range q.Runs {
			if s, ok := perRetriever[run.Retriever]; ok {
				s.Add(ComputeMetrics(run.Results.IDs(), relevant, k))
			}
		}
	}

	eval := &Evaluation{
		Algorithm:  runner.Pipeline().Fuser().Algorithm(),
		Fused:      fused.Mean(),
		Retrievers: make(map[string]QueryMetrics, len(perRetriever)),
		Queries:    fused.Queries,
	}
	for name, s := range perRetriever {
		eval.Retrievers[name] = s.Mean()
	}
	return eval, nil
}
