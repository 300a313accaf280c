package logger

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config defines the logger configuration.
type Config struct {
	Level            string     `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	Format           string     `mapstructure:"format" yaml:"format" validate:"required,oneof=json console"`
	Output           string     `mapstructure:"output" yaml:"output" validate:"required,oneof=console stderr file both"`
	File             FileConfig `mapstructure:"file" yaml:"file"`
	EnableStacktrace bool       `mapstructure:"enable_stacktrace" yaml:"enable_stacktrace"`
}

// FileConfig defines rotated file output.
type FileConfig struct {
	Filename   string `mapstructure:"filename" yaml:"filename"`       // log file path
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`       // megabytes
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`         // days
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // rotated files kept
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DefaultConfig returns the default logger configuration: info level JSON
// to stderr, so CLI output on stdout stays machine readable.
func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Format:           "json",
		Output:           "stderr",
		EnableStacktrace: true,
		File: FileConfig{
			Filename:   "logs/rankfuse.log",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

// Validate validates the logger configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid logger configuration: %w", err)
	}

	if c.Output == "file" || c.Output == "both" {
		if c.File.Filename == "" {
			return fmt.Errorf("log file filename is required when output is %q", c.Output)
		}
		if c.File.MaxSize <= 0 {
			return fmt.Errorf("log file max_size must be greater than 0")
		}
		if c.File.MaxAge <= 0 {
			return fmt.Errorf("log file max_age must be greater than 0")
		}
		if c.File.MaxBackups < 0 {
			return fmt.Errorf("log file max_backups must be greater than or equal to 0")
		}
	}
	return nil
}
