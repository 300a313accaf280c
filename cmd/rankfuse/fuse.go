package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-rankfuse/internal/api"
	"github.com/ahrav/go-rankfuse/internal/application"
)

type fuseOptions struct {
	input         string
	pipeline      string
	algorithm     string
	normalization string
	params        []string
	topK          int
	explain       bool
	validate      bool
	compact       bool
}

func newFuseCmd(a *app) *cobra.Command {
	opts := &fuseOptions{}

	cmd := &cobra.Command{
		Use:   "fuse",
		Short: "Fuse ranked lists read as JSON",
		Long: `Fuse reads ranked lists as JSON and prints the fused ranking.

Input format:
  {"query_id":"q1","retrievers":[{"name":"bm25","results":[{"id":"d1","score":12.5}]}]}

Select the fusion either with a pipeline file or with --algorithm and
repeated --param key=value flags.`,
		Example: `  rankfuse fuse --input runs.json --algorithm rrf --param k=60 --top-k 10
  rankfuse fuse --input runs.json --algorithm weighted --param weights=[0.3,0.7] --explain
  cat runs.json | rankfuse fuse --pipeline hybrid.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runFuse(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "-", "input JSON file, - for stdin")
	f.StringVarP(&opts.pipeline, "pipeline", "p", "", "pipeline YAML file")
	f.StringVarP(&opts.algorithm, "algorithm", "a", "", "fusion algorithm")
	f.StringVar(&opts.normalization, "normalization", "", "score normalization for score-based algorithms")
	f.StringArrayVar(&opts.params, "param", nil, "algorithm parameter key=value (repeatable)")
	f.IntVarP(&opts.topK, "top-k", "k", 0, "truncate output to the top k results")
	f.BoolVar(&opts.explain, "explain", false, "include provenance and consensus analysis")
	f.BoolVar(&opts.validate, "validate", false, "validate the fused ranking")
	f.BoolVar(&opts.compact, "compact", false, "print compact JSON")
	cmd.MarkFlagsMutuallyExclusive("pipeline", "algorithm")

	return cmd
}

func (a *app) runFuse(cmd *cobra.Command, opts *fuseOptions) error {
	ctx := cmd.Context()

	input, err := a.readInput(cmd, opts.input)
	if err != nil {
		return err
	}
	query, err := input.Query()
	if err != nil {
		return err
	}

	loader, err := a.newLoader()
	if err != nil {
		return err
	}

	var pipeline *application.Pipeline[string]
	switch {
	case opts.pipeline != "":
		pipeline, err = loader.LoadFromFile(ctx, opts.pipeline)
	case opts.algorithm != "":
		var params map[string]any
		if params, err = parseParams(opts.params); err != nil {
			return err
		}
		var config *application.PipelineConfig
		config, err = api.AdHocConfig(opts.algorithm, opts.normalization, params, opts.topK, opts.explain, opts.validate)
		if err != nil {
			return err
		}
		pipeline, err = loader.Load(ctx, config)
	default:
		return errors.New("either --pipeline or --algorithm is required")
	}
	if err != nil {
		return err
	}

	outcome, runErr := pipeline.Run(ctx, query)
	if outcome != nil {
		if err := a.writeOutcome(cmd.OutOrStdout(), outcome, opts.compact); err != nil {
			return err
		}
	}
	return runErr
}

func (a *app) readInput(cmd *cobra.Command, path string) (api.Input, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return api.Input{}, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var input api.Input
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		return api.Input{}, fmt.Errorf("failed to parse input: %w", err)
	}
	return input, nil
}

func (a *app) writeOutcome(w io.Writer, outcome *application.Outcome[string], compact bool) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(outcome); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
