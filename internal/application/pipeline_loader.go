package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/infrastructure/logger"
	"github.com/ahrav/go-rankfuse/infrastructure/middleware"
	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

// PipelineLoader provides YAML configuration parsing, validation, and
// caching for fusion pipelines, transforming declarative YAML into ready
// to run Pipeline values.
// Use PipelineLoader to load pipelines from files or readers while
// benefiting from SHA256-based caching and strict validation.
type PipelineLoader[I comparable] struct {
	// validator performs struct field validation and the custom
	// semver, algorithm and normalization rules.
	validator *validator.Validate
	// registry builds fusers by algorithm name.
	registry ports.FuserRegistry[I]
	// cache stores compiled pipelines indexed by SHA256 hash of the
	// normalized configuration, evicting the least recently used.
	cache     *lru.Cache[string, *Pipeline[I]]
	cacheSize int
	// sf prevents duplicate compilation when several goroutines request
	// the same pipeline simultaneously.
	sf singleflight.Group

	observer ports.FusionObserver
	metrics  ports.MetricsCollector
	log      *logger.Logger
}

// DefaultPipelineCacheSize bounds the compiled pipelines a loader keeps when
// no explicit size is given.
const DefaultPipelineCacheSize = 256

// LoaderOption customizes a PipelineLoader.
type LoaderOption[I comparable] func(*PipelineLoader[I])

// WithFusionObserver attaches an observer to every fuser the loader builds.
func WithFusionObserver[I comparable](o ports.FusionObserver) LoaderOption[I] {
	return func(l *PipelineLoader[I]) { l.observer = o }
}

// WithMetricsCollector attaches a collector to every pipeline and fuser
// the loader builds.
func WithMetricsCollector[I comparable](m ports.MetricsCollector) LoaderOption[I] {
	return func(l *PipelineLoader[I]) { l.metrics = m }
}

// WithCacheSize bounds the number of compiled pipelines kept. Values below
// one select DefaultPipelineCacheSize.
func WithCacheSize[I comparable](n int) LoaderOption[I] {
	return func(l *PipelineLoader[I]) { l.cacheSize = n }
}

// WithLoaderLogger sets the logger handed to pipelines and fusers.
func WithLoaderLogger[I comparable](log *logger.Logger) LoaderOption[I] {
	return func(l *PipelineLoader[I]) {
		if log != nil {
			l.log = log
		}
	}
}

// NewPipelineLoader creates a new loader with validation capabilities and
// an empty cache.
// NewPipelineLoader returns an error if validator registration or cache
// creation fails.
func NewPipelineLoader[I comparable](registry ports.FuserRegistry[I], opts ...LoaderOption[I]) (*PipelineLoader[I], error) {
	v := validator.New()
	if err := RegisterPipelineValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	l := &PipelineLoader[I]{
		validator: v,
		registry:  registry,
		cacheSize: DefaultPipelineCacheSize,
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cacheSize < 1 {
		l.cacheSize = DefaultPipelineCacheSize
	}

	cache, err := lru.New[string, *Pipeline[I]](l.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline cache: %w", err)
	}
	l.cache = cache
	return l, nil
}

// LoadFromFile loads and compiles a pipeline from a YAML file.
// The returned pipeline may be shared with other callers loading the same
// configuration.
func (pl *PipelineLoader[I]) LoadFromFile(ctx context.Context, path string) (*Pipeline[I], error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return pl.LoadFromBytes(ctx, data)
}

// LoadFromReader loads and compiles a pipeline from an io.Reader.
func (pl *PipelineLoader[I]) LoadFromReader(ctx context.Context, r io.Reader) (*Pipeline[I], error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return pl.LoadFromBytes(ctx, data)
}

// LoadFromBytes loads and compiles a pipeline from YAML bytes.
func (pl *PipelineLoader[I]) LoadFromBytes(ctx context.Context, data []byte) (*Pipeline[I], error) {
	config, err := pl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return pl.Load(ctx, config)
}

// Load validates and compiles an in-memory configuration, such as one
// assembled from CLI flags. Identical configurations share one compiled
// pipeline.
func (pl *PipelineLoader[I]) Load(ctx context.Context, config *PipelineConfig) (*Pipeline[I], error) {
	if config == nil {
		return nil, ports.NewConfigError("pipeline", ports.ErrConfigNotFound)
	}

	// Hash the normalized config, not raw bytes, so formatting differences
	// share a cache entry.
	hash, err := pl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := pl.sf.Do(hash, func() (any, error) {
		if pipeline, ok := pl.getCachedPipeline(hash); ok {
			return pipeline, nil
		}

		if err := pl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		pipeline, err := pl.buildPipeline(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to build pipeline: %w", err)
		}

		pl.cachePipeline(hash, pipeline)
		return pipeline, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Pipeline[I]), nil
}

// parseYAML decodes strictly so configuration typos are not silently
// ignored.
func (pl *PipelineLoader[I]) parseYAML(data []byte) (*PipelineConfig, error) {
	var config PipelineConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ports.NewConfigError("pipeline", ports.ErrConfigNotFound)
		}
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

// validateConfig runs struct validation followed by the semantic checks
// struct tags cannot express.
func (pl *PipelineLoader[I]) validateConfig(config *PipelineConfig) error {
	if err := pl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}

	if err := pl.validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}

	return nil
}

// validateSemantics checks retriever name uniqueness and the algorithm
// parameters against the declared retrievers. Every problem found is
// reported in one domain.ValidationError.
func (pl *PipelineLoader[I]) validateSemantics(config *PipelineConfig) error {
	verr := domain.NewValidationError("pipeline " + config.Metadata.Name)

	seen := make(map[string]struct{}, len(config.Retrievers))
	for _, r := range config.Retrievers {
		if _, dup := seen[r.Name]; dup {
			verr.AddError(fmt.Sprintf("duplicate retriever name %q", r.Name))
		}
		seen[r.Name] = struct{}{}
	}

	algorithm, err := domain.ParseAlgorithm(config.Fusion.Algorithm)
	if err != nil {
		return err
	}

	if config.Fusion.Normalization != "" && !acceptsNormalization(algorithm) {
		verr.AddError(fmt.Sprintf("algorithm %s does not take a normalization", algorithm))
	}

	if err := ValidateFusionParameters(algorithm, config.Fusion.Parameters, len(config.Retrievers)); err != nil {
		verr.AddError(fmt.Sprintf("fusion parameter validation failed: %v", err))
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// buildPipeline creates the fuser through the registry, wraps it with
// instrumentation and assembles the pipeline.
func (pl *PipelineLoader[I]) buildPipeline(_ context.Context, config *PipelineConfig) (*Pipeline[I], error) {
	params, err := fusionParams(config)
	if err != nil {
		return nil, err
	}

	fuser, err := pl.registry.CreateFuser(config.Fusion.Algorithm, config.Metadata.Name, params)
	if err != nil {
		return nil, err
	}

	instrumented := middleware.NewInstrumentedFuser(fuser,
		middleware.WithObserver[I](pl.observer),
		middleware.WithMetrics[I](pl.metrics),
		middleware.WithLogger[I](pl.log),
	)

	pl.log.Info("pipeline compiled",
		zap.String("pipeline", config.Metadata.Name),
		zap.String("algorithm", fuser.Algorithm().String()),
		zap.Bool("explain", config.Explain.Enabled),
		zap.Bool("validate", config.Validation.Enabled),
	)

	return NewPipeline[I](config, instrumented, pl.metrics, pl.log), nil
}

// fusionParams merges the pipeline-level overrides into the algorithm
// parameters.
func fusionParams(config *PipelineConfig) (map[string]any, error) {
	params := make(map[string]any)
	if config.Fusion.Parameters.Kind != 0 {
		if err := config.Fusion.Parameters.Decode(&params); err != nil {
			return nil, ports.NewConfigError("fusion.parameters", err)
		}
		if params == nil {
			params = make(map[string]any)
		}
	}

	if config.Fusion.TopK > 0 {
		params["top_k"] = config.Fusion.TopK
	}
	if config.Fusion.Normalization != "" {
		method, err := domain.ParseNormalization(config.Fusion.Normalization)
		if err != nil {
			return nil, ports.NewConfigError("fusion.normalization", err)
		}
		params["normalization"] = method.String()
	}
	return params, nil
}

// acceptsNormalization reports whether an algorithm's config has a
// normalization field.
func acceptsNormalization(a domain.Algorithm) bool {
	switch a {
	case domain.AlgorithmCombSUM, domain.AlgorithmCombMNZ, domain.AlgorithmCombMAX,
		domain.AlgorithmCombMED, domain.AlgorithmCombANZ,
		domain.AlgorithmWeighted, domain.AlgorithmAdditiveMultiTask:
		return true
	default:
		return false
	}
}

// calculateConfigHash computes the SHA256 hash of a normalized config so
// semantically identical configurations share a cache entry regardless of
// whitespace or key order.
func (pl *PipelineLoader[I]) calculateConfigHash(config *PipelineConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (pl *PipelineLoader[I]) getCachedPipeline(hash string) (*Pipeline[I], bool) {
	return pl.cache.Get(hash)
}

func (pl *PipelineLoader[I]) cachePipeline(hash string, pipeline *Pipeline[I]) {
	if evicted := pl.cache.Add(hash, pipeline); evicted {
		pl.log.Debug("pipeline cache full, evicted least recently used entry",
			zap.Int("capacity", pl.cacheSize))
	}
}

// CacheSize returns the number of compiled pipelines held.
func (pl *PipelineLoader[I]) CacheSize() int { return pl.cache.Len() }

// ClearCache removes all cached pipelines, forcing subsequent loads to
// recompile.
func (pl *PipelineLoader[I]) ClearCache() { pl.cache.Purge() }
