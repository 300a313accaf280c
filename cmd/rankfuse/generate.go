package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahrav/go-rankfuse/internal/testutils"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		cfg    testutils.GeneratorConfig
		seed   int64
		output string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic retrieval dataset",
		Long: `Generate writes a synthetic dataset: per query, several simulated
retrievers rank a shared candidate pool on their own score scales, and a
planted set of relevant documents serves as ground truth for evaluate.`,
		Example: `  rankfuse generate --queries 200 --retrievers 3 --seed 42 --output testdata/dataset.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}

			dataset, err := testutils.GenerateDataset(cfg, seed)
			if err != nil {
				return err
			}
			if err := testutils.SaveDataset(dataset, output); err != nil {
				return err
			}

			stats := testutils.ComputeDatasetStatistics(dataset)
			a.log.Info("dataset generated",
				zap.String("path", output),
				zap.Int64("seed", seed),
				zap.Int("queries", stats.TotalQueries),
			)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated dataset:\n")
			fmt.Fprintf(out, "- Path: %s\n", output)
			fmt.Fprintf(out, "- Seed: %d\n", seed)
			fmt.Fprintf(out, "- Queries: %d\n", stats.TotalQueries)
			fmt.Fprintf(out, "- Retrievers: %v\n", dataset.Metadata.Retrievers)
			fmt.Fprintf(out, "- Average list length: %.2f\n", stats.AvgListLength)
			fmt.Fprintf(out, "- Average relevant per query: %.2f\n", stats.AvgRelevant)
			for _, name := range dataset.Metadata.Retrievers {
				fmt.Fprintf(out, "- Recall of %s: %.3f\n", name, stats.RecallByRetriever[name])
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.Queries, "queries", testutils.DefaultQueryCount, "number of queries")
	f.IntVar(&cfg.Retrievers, "retrievers", testutils.DefaultRetrieverCount, "number of simulated retrievers")
	f.IntVar(&cfg.CorpusSize, "corpus-size", testutils.DefaultCorpusSize, "candidate documents per query")
	f.IntVar(&cfg.ListLength, "list-length", testutils.DefaultListLength, "documents each retriever returns")
	f.IntVar(&cfg.Relevant, "relevant", testutils.DefaultRelevantCount, "relevant documents per query")
	f.Int64Var(&seed, "seed", 0, "random seed (defaults to the current time)")
	f.StringVarP(&output, "output", "o", "", "output JSON file")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
