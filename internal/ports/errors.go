package ports

import (
	"errors"
	"fmt"

	"github.com/ahrav/go-rankfuse/internal/domain"
)

// Common infrastructure errors.
var (
	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrUnsupportedAlgorithm indicates that no factory is registered for
	// an algorithm.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrNilFactory indicates an attempt to register a nil factory.
	ErrNilFactory = errors.New("factory function cannot be nil")
)

// FusionError represents a failure of a single fusion call.
// It records which fuser and operation failed.
type FusionError struct {
	// Fuser is the name of the fuser that failed.
	Fuser string

	// Algorithm is the algorithm the fuser implements.
	Algorithm domain.Algorithm

	// Operation is the entry point that failed, such as "Fuse" or
	// "FuseExplained".
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for FusionError.
func (e *FusionError) Error() string {
	return fmt.Sprintf("fusion error: fuser=%s, algorithm=%s, operation=%s, err=%v",
		e.Fuser, e.Algorithm, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *FusionError) Unwrap() error { return e.Err }

// NewFusionError creates a new FusionError with the given details.
func NewFusionError(fuser string, algorithm domain.Algorithm, operation string, err error) *FusionError {
	return &FusionError{
		Fuser:     fuser,
		Algorithm: algorithm,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
