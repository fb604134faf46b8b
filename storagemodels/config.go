/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"time"

	"github.com/suparena/lakeio/errors"
)

// RetryConfig configures how a storage handle retries raw operations.
type RetryConfig struct {
	Enabled               bool          // When false the first error propagates
	MaxRetryInterval      time.Duration // Backoff ceiling (default: 2s)
	MaxRetryCount         int           // Retries after the first attempt (default: 4)
	InitialRetryInterval  time.Duration // First backoff (default: 100ms)
	RetryableErrorPattern string        // Regexp over error type names and messages; empty matches all
}

// DefaultRetryConfig returns an enabled retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:              true,
		MaxRetryInterval:     2 * time.Second,
		MaxRetryCount:        4,
		InitialRetryInterval: 100 * time.Millisecond,
	}
}

// Validate checks the invariants of an enabled configuration.
func (c RetryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxRetryCount < 0 {
		return errors.NewValidationError("MaxRetryCount", "must be >= 0")
	}
	if c.InitialRetryInterval < 0 {
		return errors.NewValidationError("InitialRetryInterval", "must be >= 0")
	}
	if c.InitialRetryInterval > c.MaxRetryInterval {
		return errors.NewValidationError("InitialRetryInterval", "must not exceed MaxRetryInterval")
	}
	return nil
}

// GuardKind selects a consistency guard implementation.
type GuardKind string

const (
	GuardNoOp       GuardKind = "noop"
	GuardPolling    GuardKind = "polling"
	GuardOptimistic GuardKind = "optimistic"
)

// GuardConfig configures a consistency guard.
type GuardConfig struct {
	Kind                 GuardKind
	InitialCheckInterval time.Duration // First sleep between checks (default: 400ms)
	MaxCheckInterval     time.Duration // Sleep ceiling (default: 20s)
	MaxChecks            int           // Checks before giving up (default: 7)
	MaxWait              time.Duration // Total wall-clock budget, required for polling (default: 60s)
	OptimisticWait       time.Duration // Single sleep of the optimistic guard (default: 500ms)
}

// DefaultGuardConfig returns a no-op guard configuration with polling
// parameters filled in, so flipping Kind is enough to enable it.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Kind:                 GuardNoOp,
		InitialCheckInterval: 400 * time.Millisecond,
		MaxCheckInterval:     20 * time.Second,
		MaxChecks:            7,
		MaxWait:              60 * time.Second,
		OptimisticWait:       500 * time.Millisecond,
	}
}

// Validate checks the parameters used by the selected guard kind.
func (c GuardConfig) Validate() error {
	switch c.Kind {
	case "", GuardNoOp:
		return nil
	case GuardPolling:
		if c.MaxChecks <= 0 {
			return errors.NewValidationError("MaxChecks", "must be > 0")
		}
		if c.MaxWait <= 0 {
			return errors.NewValidationError("MaxWait", "must be > 0")
		}
		if c.InitialCheckInterval <= 0 || c.InitialCheckInterval > c.MaxCheckInterval {
			return errors.NewValidationError("InitialCheckInterval", "must be > 0 and not exceed MaxCheckInterval")
		}
		return nil
	case GuardOptimistic:
		if c.OptimisticWait < 0 {
			return errors.NewValidationError("OptimisticWait", "must be >= 0")
		}
		return nil
	default:
		return errors.NewValidationError("Kind", "unknown guard kind "+string(c.Kind))
	}
}

// AWSConfig holds credentials and endpoints for the S3 and DynamoDB backends.
// Empty keys fall back to the default AWS credential chain.
type AWSConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string // Optional S3-compatible endpoint (MinIO, R2, ...)
}

// StorageConfig is the configuration an IOFactory is built from and the
// single argument handed to external codec constructors.
type StorageConfig struct {
	Retry         RetryConfig
	Guard         GuardConfig
	ExternalCodec string // Registry name served for RecordTypeExternal (default: "parquet")
	AWS           AWSConfig
}

// DefaultStorageConfig returns a configuration with retries disabled and a no-op guard.
func DefaultStorageConfig() StorageConfig {
	retry := DefaultRetryConfig()
	retry.Enabled = false
	return StorageConfig{
		Retry:         retry,
		Guard:         DefaultGuardConfig(),
		ExternalCodec: "parquet",
	}
}

// Validate checks the nested configurations.
func (c StorageConfig) Validate() error {
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	return c.Guard.Validate()
}

// WriterOptions configures a codec writer
type WriterOptions struct {
	Schema      string // Writer schema; required by the Avro codec
	Compression string // Codec-specific name, e.g. "snappy", "deflate", "zstd", "null"
	Overwrite   bool   // Replace an existing file instead of failing
}

// WriterOption is a functional option for configuring writers
type WriterOption func(*WriterOptions)

// DefaultWriterOptions returns default writer options
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		Compression: "snappy",
	}
}

// WithSchema sets the writer schema
func WithSchema(schema string) WriterOption {
	return func(opts *WriterOptions) {
		opts.Schema = schema
	}
}

// WithCompression sets the compression codec name
func WithCompression(name string) WriterOption {
	return func(opts *WriterOptions) {
		opts.Compression = name
	}
}

// WithOverwrite allows replacing an existing file
func WithOverwrite(overwrite bool) WriterOption {
	return func(opts *WriterOptions) {
		opts.Overwrite = overwrite
	}
}
