// Package application orchestrates fusion: it loads pipeline configurations,
// builds fusers through the registry and runs them over queries.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahrav/go-rankfuse/infrastructure/explain"
	"github.com/ahrav/go-rankfuse/infrastructure/logger"
	"github.com/ahrav/go-rankfuse/infrastructure/middleware"
	"github.com/ahrav/go-rankfuse/infrastructure/validation"
	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

// ErrValidationFailed is returned by Pipeline.Run when validation is
// configured to fail on error and the fused ranking has blocking problems.
var ErrValidationFailed = errors.New("fused ranking failed validation")

// Query is one fusion request: the ranked lists retrieved for a single
// user query, in retriever order.
type Query[I comparable] struct {
	// ID identifies the query in logs and outcomes. Optional.
	ID string `json:"id,omitempty"`
	// Retrievers names the lists. When nil the pipeline's configured
	// names are used if they match the list count, otherwise the default
	// retriever_<i> names.
	Retrievers []string `json:"retrievers,omitempty"`
	// Lists holds one ranked list per retriever.
	Lists []domain.RankedList[I] `json:"lists"`
}

// Outcome is the result of running a pipeline on one query.
type Outcome[I comparable] struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`
	// QueryID echoes Query.ID.
	QueryID string `json:"query_id,omitempty"`
	// Pipeline is the name of the pipeline that produced the outcome.
	Pipeline string `json:"pipeline"`
	// Algorithm is the fusion algorithm used.
	Algorithm domain.Algorithm `json:"algorithm"`
	// Results is the fused ranking.
	Results []domain.FusedResult[I] `json:"results"`
	// Explained carries provenance when explanation is enabled.
	Explained []domain.ExplainedResult[I] `json:"explained,omitempty"`
	// Consensus summarizes agreement between retrievers when explanation
	// is enabled.
	Consensus *explain.ConsensusReport[I] `json:"consensus,omitempty"`
	// Attribution reports per-retriever influence on the top results when
	// explanation is enabled.
	Attribution map[string]explain.RetrieverStats `json:"attribution,omitempty"`
	// Validation holds the check results when validation is enabled.
	Validation *domain.ValidationResult `json:"validation,omitempty"`
	// Elapsed is the wall time of the run.
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Pipeline runs one configured fuser over queries and post-processes the
// output. A Pipeline is immutable after construction and safe for
// concurrent use.
type Pipeline[I comparable] struct {
	config     *PipelineConfig
	fuser      ports.ExplainingFuser[I]
	validation []validation.Option
	consensus  []explain.ConsensusOption
	metrics    ports.MetricsCollector
	log        *logger.Logger
}

// NewPipeline assembles a pipeline from a validated configuration and a
// ready fuser. Loaders are the usual way to obtain one.
func NewPipeline[I comparable](
	config *PipelineConfig,
	fuser ports.ExplainingFuser[I],
	metrics ports.MetricsCollector,
	log *logger.Logger,
) *Pipeline[I] {
	if log == nil {
		log = logger.NewNop()
	}

	var validationOpts []validation.Option
	if config.Validation.CheckNonNegative {
		validationOpts = append(validationOpts, validation.WithNonNegativeCheck())
	}
	if config.Validation.MaxResults > 0 {
		validationOpts = append(validationOpts, validation.WithMaxResults(config.Validation.MaxResults))
	}

	var consensusOpts []explain.ConsensusOption
	if config.Explain.RankSpreadThreshold > 0 {
		consensusOpts = append(consensusOpts, explain.WithRankSpreadThreshold(config.Explain.RankSpreadThreshold))
	}

	return &Pipeline[I]{
		config:     config,
		fuser:      fuser,
		validation: validationOpts,
		consensus:  consensusOpts,
		metrics:    metrics,
		log:        log.Named("pipeline").With(zap.String("pipeline", config.Metadata.Name)),
	}
}

// Name returns the pipeline name.
func (p *Pipeline[I]) Name() string { return p.config.Metadata.Name }

// Config returns the pipeline configuration. Callers must not modify it.
func (p *Pipeline[I]) Config() *PipelineConfig { return p.config }

// Fuser returns the fuser the pipeline runs.
func (p *Pipeline[I]) Fuser() ports.ExplainingFuser[I] { return p.fuser }

// Run fuses one query and applies the configured explanation and
// validation steps.
func (p *Pipeline[I]) Run(ctx context.Context, q Query[I]) (*Outcome[I], error) {
	start := time.Now()
	out := &Outcome[I]{
		RunID:     uuid.NewString(),
		QueryID:   q.ID,
		Pipeline:  p.Name(),
		Algorithm: p.fuser.Algorithm(),
	}
	log := p.log.With(zap.String("run_id", out.RunID))
	if requestID := logger.GetRequestID(ctx); requestID != "" {
		log = log.With(zap.String("request_id", requestID))
	}

	if p.config.Explain.Enabled {
		explained, err := p.fuser.FuseExplained(ctx, p.retrievers(q), q.Lists...)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", p.Name(), err)
		}
		out.Explained = explained
		out.Results = domain.Plain(explained)

		report := explain.AnalyzeConsensus(explained, p.consensus...)
		out.Consensus = &report
		out.Attribution = explain.AttributeTopK(explained, p.config.Explain.AttributionTopK)
	} else {
		results, err := p.fuser.Fuse(ctx, q.Lists...)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", p.Name(), err)
		}
		out.Results = results
	}

	if p.config.Validation.Enabled {
		result := validation.Validate(out.Results, p.validation...)
		out.Validation = &result
		p.recordValidation(result)

		if !result.IsValid() {
			log.Warn("fused ranking failed validation", zap.Strings("errors", result.Errors))
			if p.config.Validation.FailOnError {
				out.Elapsed = time.Since(start)
				return out, fmt.Errorf("pipeline %s: %w: %v", p.Name(), ErrValidationFailed, result.Errors)
			}
		}
	}

	out.Elapsed = time.Since(start)
	log.Debug("pipeline run completed",
		zap.String("query_id", q.ID),
		zap.Int("results", len(out.Results)),
		zap.Duration("elapsed", out.Elapsed),
	)
	return out, nil
}

// retrievers picks the names attached to the query's lists.
func (p *Pipeline[I]) retrievers(q Query[I]) []string {
	if q.Retrievers != nil {
		return q.Retrievers
	}
	if names := p.config.RetrieverNames(); len(names) == len(q.Lists) {
		return names
	}
	return nil
}

func (p *Pipeline[I]) recordValidation(result domain.ValidationResult) {
	if p.metrics == nil {
		return
	}
	algorithm := p.fuser.Algorithm().String()
	if n := len(result.Errors); n > 0 {
		p.metrics.RecordCounter(middleware.MetricValidationIssues, float64(n), map[string]string{
			middleware.LabelAlgorithm: algorithm,
			middleware.LabelSeverity:  "error",
		})
	}
	if n := len(result.Warnings); n > 0 {
		p.metrics.RecordCounter(middleware.MetricValidationIssues, float64(n), map[string]string{
			middleware.LabelAlgorithm: algorithm,
			middleware.LabelSeverity:  "warning",
		})
	}
}
