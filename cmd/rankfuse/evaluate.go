package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-rankfuse/internal/api"
	"github.com/ahrav/go-rankfuse/internal/application"
	"github.com/ahrav/go-rankfuse/internal/testutils"
)

type evaluateOptions struct {
	dataset       string
	algorithms    []string
	normalization string
	params        []string
	cutoff        int
	format        string
	concurrency   int
	rate          float64
}

func newEvaluateCmd(a *app) *cobra.Command {
	opts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score fusion algorithms against a dataset's relevance judgments",
		Example: `  rankfuse evaluate --dataset testdata/dataset.json --algorithm rrf
  rankfuse evaluate --dataset testdata/dataset.json --algorithm rrf,combmnz,dbsf --k 5 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runEvaluate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.dataset, "dataset", "d", "", "dataset JSON file")
	f.StringSliceVarP(&opts.algorithms, "algorithm", "a", []string{"rrf"}, "fusion algorithms to evaluate")
	f.StringVar(&opts.normalization, "normalization", "", "score normalization for score-based algorithms")
	f.StringArrayVar(&opts.params, "param", nil, "algorithm parameter key=value (repeatable)")
	f.IntVar(&opts.cutoff, "k", testutils.DefaultCutoff, "rank cutoff for P@k, R@k and nDCG@k")
	f.StringVar(&opts.format, "format", "text", "output format (text, json)")
	f.IntVar(&opts.concurrency, "concurrency", application.DefaultBatchConcurrency, "queries fused at once")
	f.Float64Var(&opts.rate, "rate", 0, "maximum queries dispatched per second (0 for no limit)")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func (a *app) runEvaluate(cmd *cobra.Command, opts *evaluateOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.rate < 0 {
		return fmt.Errorf("rate must be non-negative, got %v", opts.rate)
	}

	dataset, err := testutils.LoadDataset(opts.dataset)
	if err != nil {
		return err
	}

	params, err := parseParams(opts.params)
	if err != nil {
		return err
	}

	loader, err := a.newLoader()
	if err != nil {
		return err
	}
	batchOpts := []application.BatchOption[string]{
		application.WithConcurrency[string](opts.concurrency),
		application.WithBatchLogger[string](a.log),
	}
	if opts.rate > 0 {
		batchOpts = append(batchOpts, application.WithRateLimit[string](rate.Limit(opts.rate), 1))
	}

	evaluations := make([]*testutils.Evaluation, 0, len(opts.algorithms))
	for _, algorithm := range opts.algorithms {
		config, err := api.AdHocConfig(algorithm, opts.normalization, params, 0, false, false)
		if err != nil {
			return err
		}
		pipeline, err := loader.Load(cmd.Context(), config)
		if err != nil {
			return err
		}

		runner := application.NewBatchRunner(pipeline, batchOpts...)
		eval, err := testutils.Evaluate(cmd.Context(), runner, dataset, opts.cutoff)
		if err != nil {
			return fmt.Errorf("evaluate %s: %w", algorithm, err)
		}
		a.log.Info("evaluation completed",
			zap.String("algorithm", eval.Algorithm.String()),
			zap.Int("queries", eval.Queries),
			zap.Float64("ndcg", eval.Fused.NDCG),
		)
		evaluations = append(evaluations, eval)
	}

	if opts.format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(evaluations)
	}
	return writeEvaluationTable(cmd.OutOrStdout(), dataset, evaluations)
}

func writeEvaluationTable(w io.Writer, dataset *testutils.Dataset, evaluations []*testutils.Evaluation) error {
	if len(evaluations) == 0 {
		return nil
	}
	k := evaluations[0].Fused.K

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "RANKING\tP@%d\tR@%d\tMRR\tnDCG@%d\tMAP\n", k, k, k)
	row := func(name string, m testutils.QueryMetrics) {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
			name, m.Precision, m.Recall, m.ReciprocalRank, m.NDCG, m.AveragePrecision)
	}

	for _, name := range dataset.Metadata.Retrievers {
		row(name, evaluations[0].Retrievers[name])
	}
	sorted := slices.Clone(evaluations)
	slices.SortStableFunc(sorted, func(x, y *testutils.Evaluation) int {
		switch {
		case x.Fused.NDCG > y.Fused.NDCG:
			return -1
		case x.Fused.NDCG < y.Fused.NDCG:
			return 1
		default:
			return 0
		}
	})
	for _, eval := range sorted {
		row("fused:"+eval.Algorithm.String(), eval.Fused)
	}
	return tw.Flush()
}
