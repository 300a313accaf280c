// Package api exposes fusion pipelines over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ahrav/go-rankfuse/infrastructure/logger"
	"github.com/ahrav/go-rankfuse/internal/application"
	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

const (
	requestIDHeader = "X-Request-Id"

	defaultMaxBodyBytes = 8 << 20
	defaultTimeout      = 10 * time.Second
)

// Config wires the router to the application layer.
type Config struct {
	// Loader compiles ad hoc pipelines for requests that name an algorithm.
	Loader *application.PipelineLoader[string]
	// Registry lists supported algorithms. Optional.
	Registry ports.FuserRegistry[string]
	// Pipelines are preloaded pipelines addressable by name.
	Pipelines map[string]*application.Pipeline[string]
	// Default runs when a request names neither pipeline nor algorithm.
	Default *application.Pipeline[string]
	// Gatherer backs /metrics. Defaults to the global Prometheus registry.
	Gatherer prometheus.Gatherer
	// Logger receives request logs. Optional.
	Logger *logger.Logger
	// MaxBodyBytes caps request bodies. Zero selects 8 MiB.
	MaxBodyBytes int64
	// Timeout bounds each request. Zero selects 10s.
	Timeout time.Duration
}

// Router wires the HTTP endpoints for the fusion service.
type Router struct {
	cfg Config
	log *logger.Logger
}

// NewRouter constructs the HTTP router.
func NewRouter(cfg Config) (*chi.Mux, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("pipeline loader is required")
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	r := &Router{cfg: cfg, log: log.Named("api")}

	mux := chi.NewRouter()
	mux.Use(r.requestID)
	mux.Use(chimiddleware.Recoverer)
	mux.Use(chimiddleware.Timeout(cfg.Timeout))

	mux.Get("/healthz", r.handleHealthz)
	mux.Get("/v1/algorithms", r.handleAlgorithms)
	mux.Post("/v1/fuse", r.handleFuse)
	mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	return mux, nil
}

// requestID propagates or assigns an X-Request-Id and stores it in the
// request context for downstream logging.
func (r *Router) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := logger.WithRequestID(req.Context(), id)
		start := time.Now()
		next.ServeHTTP(w, req.WithContext(ctx))

		r.log.Debug("request served",
			zap.String("request_id", id),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) handleAlgorithms(w http.ResponseWriter, req *http.Request) {
	algorithms := domain.Algorithms()
	if r.cfg.Registry != nil {
		algorithms = r.cfg.Registry.GetSupportedAlgorithms()
	}
	pipelines := make([]string, 0, len(r.cfg.Pipelines))
	for name := range r.cfg.Pipelines {
		pipelines = append(pipelines, name)
	}
	r.writeJSON(w, logger.GetRequestID(req.Context()), http.StatusOK, map[string]any{
		"algorithms": algorithms,
		"pipelines":  pipelines,
	})
}

func (r *Router) handleFuse(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	requestID := logger.GetRequestID(ctx)

	body := http.MaxBytesReader(w, req.Body, r.cfg.MaxBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	var fuseReq FuseRequest
	if err := decoder.Decode(&fuseReq); err != nil {
		r.writeError(w, requestID, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	query, err := fuseReq.Query()
	if err != nil {
		r.writeError(w, requestID, http.StatusBadRequest, err)
		return
	}

	pipeline, status, err := r.resolvePipeline(req, fuseReq)
	if err != nil {
		r.writeError(w, requestID, status, err)
		return
	}

	outcome, err := pipeline.Run(ctx, query)
	if err != nil {
		if errors.Is(err, application.ErrValidationFailed) && outcome != nil {
			r.writeJSON(w, requestID, http.StatusUnprocessableEntity, FuseResponse{RequestID: requestID, Outcome: outcome})
			return
		}
		r.writeError(w, requestID, statusFor(err), err)
		return
	}

	r.writeJSON(w, requestID, http.StatusOK, FuseResponse{RequestID: requestID, Outcome: outcome})
}

// resolvePipeline picks a named pipeline, compiles an ad hoc one, or falls
// back to the default.
func (r *Router) resolvePipeline(req *http.Request, fuseReq FuseRequest) (*application.Pipeline[string], int, error) {
	switch {
	case fuseReq.Pipeline != "":
		p, ok := r.cfg.Pipelines[fuseReq.Pipeline]
		if !ok {
			return nil, http.StatusNotFound, fmt.Errorf("unknown pipeline %q", fuseReq.Pipeline)
		}
		return p, http.StatusOK, nil

	case fuseReq.Algorithm != "":
		config, err := AdHocConfig(fuseReq.Algorithm, fuseReq.Normalization, fuseReq.Parameters,
			fuseReq.TopK, fuseReq.Explain, fuseReq.Validate)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		p, err := r.cfg.Loader.Load(req.Context(), config)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		return p, http.StatusOK, nil

	case r.cfg.Default != nil:
		return r.cfg.Default, http.StatusOK, nil

	default:
		return nil, http.StatusBadRequest, fmt.Errorf("request must name a pipeline or an algorithm")
	}
}

// AdHocConfig builds a pipeline configuration from loose parameters, as
// supplied by HTTP requests and CLI flags.
func AdHocConfig(
	algorithm, normalization string,
	params map[string]any,
	topK int,
	explain, validate bool,
) (*application.PipelineConfig, error) {
	config := &application.PipelineConfig{
		Version:  "1.0.0",
		Metadata: application.Metadata{Name: "adhoc-" + algorithm},
		Fusion: application.FusionConfig{
			Algorithm:     algorithm,
			TopK:          topK,
			Normalization: normalization,
		},
		Explain:    application.ExplainConfig{Enabled: explain},
		Validation: application.ValidationConfig{Enabled: validate},
	}
	if len(params) > 0 {
		if err := config.Fusion.Parameters.Encode(params); err != nil {
			return nil, fmt.Errorf("invalid parameters: %w", err)
		}
	}
	return config, nil
}

// statusFor maps a pipeline error to an HTTP status. Fusion only fails on
// caller configuration, so those are client errors.
func statusFor(err error) int {
	var fusionErr *ports.FusionError
	switch {
	case errors.As(err, &fusionErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) writeError(w http.ResponseWriter, requestID string, status int, err error) {
	if status >= http.StatusInternalServerError {
		r.log.Error("request failed", zap.String("request_id", requestID), zap.Error(err))
	}
	r.writeJSON(w, requestID, status, ErrorResponse{RequestID: requestID, Error: err.Error()})
}

// writeJSON encodes payload before committing the status so an encoding
// failure can still be reported as a 500.
func (r *Router) writeJSON(w http.ResponseWriter, requestID string, status int, payload any) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		if _, isError := payload.(ErrorResponse); isError {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		r.writeError(w, requestID, http.StatusInternalServerError, fmt.Errorf("failed to encode response: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		r.log.Debug("failed to write response", zap.String("request_id", requestID), zap.Error(err))
	}
}
