package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rankfuse/infrastructure/logger"
	"github.com/ahrav/go-rankfuse/internal/application"
)

const envPrefix = "RANKFUSE"

// config is the CLI configuration. Values come from flags, RANKFUSE_*
// environment variables and an optional config file, in that order of
// precedence.
type config struct {
	Log    logger.Config `mapstructure:"log"`
	Server serverConfig  `mapstructure:"server"`
}

type serverConfig struct {
	Addr            string        `mapstructure:"addr"`
	Pipelines       []string      `mapstructure:"pipelines"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// PipelineCacheSize bounds the compiled ad hoc pipelines kept in memory.
	PipelineCacheSize int `mapstructure:"pipeline_cache_size"`
}

// app carries the state shared by every subcommand.
type app struct {
	v   *viper.Viper
	cfg config
	log *logger.Logger

	in  io.Reader
	out io.Writer

	configFile string
}

func newApp(in io.Reader, out io.Writer) *app {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &app{v: v, in: in, out: out, log: logger.NewNop()}
}

// setDefaults registers every key so environment variables can override
// values absent from the config file.
func setDefaults(v *viper.Viper) {
	def := logger.DefaultConfig()
	v.SetDefault("log.level", def.Level)
	v.SetDefault("log.format", def.Format)
	v.SetDefault("log.output", def.Output)
	v.SetDefault("log.enable_stacktrace", def.EnableStacktrace)
	v.SetDefault("log.file.filename", def.File.Filename)
	v.SetDefault("log.file.max_size", def.File.MaxSize)
	v.SetDefault("log.file.max_age", def.File.MaxAge)
	v.SetDefault("log.file.max_backups", def.File.MaxBackups)
	v.SetDefault("log.file.compress", def.File.Compress)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.pipelines", []string{})
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.pipeline_cache_size", application.DefaultPipelineCacheSize)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "rankfuse",
		Short:         "Fuse ranked lists from multiple retrievers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (YAML, JSON or TOML)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, console)")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(
		newFuseCmd(a),
		newServeCmd(a),
		newGenerateCmd(a),
		newEvaluateCmd(a),
	)
	return root
}

// init reads configuration and builds the logger.
func (a *app) init() error {
	if a.configFile != "" {
		a.v.SetConfigFile(a.configFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := a.v.Unmarshal(&a.cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	log, err := logger.New(&a.cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.log = log.Named("rankfuse")
	a.log.Debug("configuration loaded", zap.String("config_file", a.v.ConfigFileUsed()))
	return nil
}

// newLoader builds a pipeline loader over the built-in algorithms.
func (a *app) newLoader(opts ...application.LoaderOption[string]) (*application.PipelineLoader[string], error) {
	opts = append([]application.LoaderOption[string]{application.WithLoaderLogger[string](a.log)}, opts...)
	return application.NewPipelineLoader[string](application.NewDefaultFuserRegistry[string](), opts...)
}

// parseParams turns repeated key=value flags into algorithm parameters.
// Values are read as YAML scalars or flow sequences, so "k=60",
// "weights=[1,2]" and "normalization=zscore" all decode to natural types.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid parameter %q: %w", pair, err)
		}
		params[key] = value
	}
	return params, nil
}
