package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-rankfuse/infrastructure/middleware"
	"github.com/ahrav/go-rankfuse/internal/api"
	"github.com/ahrav/go-rankfuse/internal/application"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fusion HTTP API",
		Long: `Serve exposes POST /v1/fuse, GET /v1/algorithms, GET /healthz and
GET /metrics. Pipelines given with --pipeline are addressable by their
metadata name; the first one also serves requests that name neither a
pipeline nor an algorithm.`,
		Example: `  rankfuse serve --addr :8080 --pipeline hybrid.yaml
  RANKFUSE_SERVER_ADDR=:9090 rankfuse serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("addr", "", "listen address (default :8080)")
	f.StringSlice("pipeline", nil, "pipeline YAML files to preload")
	f.Duration("request-timeout", 0, "per-request timeout (default 10s)")
	_ = a.v.BindPFlag("server.addr", f.Lookup("addr"))
	_ = a.v.BindPFlag("server.pipelines", f.Lookup("pipeline"))
	_ = a.v.BindPFlag("server.request_timeout", f.Lookup("request-timeout"))

	return cmd
}

func (a *app) runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg.Server

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "rankfuse"))),
	)
	otel.SetTracerProvider(tp)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("tracer provider shutdown failed", zap.Error(err))
		}
	}()

	metrics := middleware.NewPrometheusMetrics(middleware.WithRegisterer(prometheus.DefaultRegisterer))
	registry := application.NewDefaultFuserRegistry[string]()
	loader, err := application.NewPipelineLoader[string](registry,
		application.WithFusionObserver[string](middleware.NewOTelFusionObserver(metrics)),
		application.WithMetricsCollector[string](metrics),
		application.WithLoaderLogger[string](a.log),
		application.WithCacheSize[string](cfg.PipelineCacheSize),
	)
	if err != nil {
		return err
	}

	pipelines := make(map[string]*application.Pipeline[string], len(cfg.Pipelines))
	var defaultPipeline *application.Pipeline[string]
	for _, path := range cfg.Pipelines {
		p, err := loader.LoadFromFile(ctx, path)
		if err != nil {
			return fmt.Errorf("load pipeline %s: %w", path, err)
		}
		if _, dup := pipelines[p.Name()]; dup {
			return fmt.Errorf("load pipeline %s: duplicate pipeline name %q", path, p.Name())
		}
		pipelines[p.Name()] = p
		if defaultPipeline == nil {
			defaultPipeline = p
		}
	}

	router, err := api.NewRouter(api.Config{
		Loader:    loader,
		Registry:  registry,
		Pipelines: pipelines,
		Default:   defaultPipeline,
		Gatherer:  prometheus.DefaultGatherer,
		Logger:    a.log,
		Timeout:   cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("fusion API listening",
			zap.String("addr", cfg.Addr),
			zap.Int("pipelines", len(pipelines)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		a.log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
