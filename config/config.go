/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package config loads a storagemodels.StorageConfig from the environment
// or from a YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-openapi/strfmt"
	"github.com/joho/godotenv"
	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/storagemodels"
	"gopkg.in/yaml.v3"
)

// envConfig mirrors StorageConfig; defaults match DefaultStorageConfig.
type envConfig struct {
	RetryEnabled          bool          `env:"LAKEIO_RETRY_ENABLED"            envDefault:"false"`
	MaxRetryInterval      time.Duration `env:"LAKEIO_RETRY_MAX_INTERVAL"       envDefault:"2s"`
	MaxRetryCount         int           `env:"LAKEIO_RETRY_MAX_COUNT"          envDefault:"4"`
	InitialRetryInterval  time.Duration `env:"LAKEIO_RETRY_INITIAL_INTERVAL"   envDefault:"100ms"`
	RetryableErrorPattern string        `env:"LAKEIO_RETRY_PATTERN"`

	GuardKind            string        `env:"LAKEIO_GUARD"                     envDefault:"noop"`
	InitialCheckInterval time.Duration `env:"LAKEIO_GUARD_INITIAL_INTERVAL"    envDefault:"400ms"`
	MaxCheckInterval     time.Duration `env:"LAKEIO_GUARD_MAX_INTERVAL"        envDefault:"20s"`
	MaxChecks            int           `env:"LAKEIO_GUARD_MAX_CHECKS"          envDefault:"7"`
	MaxWait              time.Duration `env:"LAKEIO_GUARD_MAX_WAIT"            envDefault:"60s"`
	OptimisticWait       time.Duration `env:"LAKEIO_GUARD_OPTIMISTIC_WAIT"     envDefault:"500ms"`

	ExternalCodec string `env:"LAKEIO_EXTERNAL_CODEC" envDefault:"parquet"`

	AWSRegion    string `env:"AWS_REGION"`
	AWSAccessKey string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Endpoint   string `env:"LAKEIO_S3_ENDPOINT"`
}

// FromEnv loads .env from the working directory, if present, and builds the
// configuration from LAKEIO_* and AWS_* variables.
func FromEnv() (storagemodels.StorageConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Default().Warn("failed to load .env file", "component", "config", "error", err)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return storagemodels.StorageConfig{}, fmt.Errorf("parse environment: %w", err)
	}

	conf := storagemodels.StorageConfig{
		Retry: storagemodels.RetryConfig{
			Enabled:               raw.RetryEnabled,
			MaxRetryInterval:      raw.MaxRetryInterval,
			MaxRetryCount:         raw.MaxRetryCount,
			InitialRetryInterval:  raw.InitialRetryInterval,
			RetryableErrorPattern: raw.RetryableErrorPattern,
		},
		Guard: storagemodels.GuardConfig{
			Kind:                 storagemodels.GuardKind(raw.GuardKind),
			InitialCheckInterval: raw.InitialCheckInterval,
			MaxCheckInterval:     raw.MaxCheckInterval,
			MaxChecks:            raw.MaxChecks,
			MaxWait:              raw.MaxWait,
			OptimisticWait:       raw.OptimisticWait,
		},
		ExternalCodec: raw.ExternalCodec,
		AWS: storagemodels.AWSConfig{
			Region:    raw.AWSRegion,
			AccessKey: raw.AWSAccessKey,
			SecretKey: raw.AWSSecretKey,
			Endpoint:  raw.S3Endpoint,
		},
	}
	if err := conf.Validate(); err != nil {
		return storagemodels.StorageConfig{}, err
	}
	return conf, nil
}

// fileConfig is the YAML layout. Durations are strings such as "100ms" or
// "2 seconds"; omitted fields keep their defaults.
type fileConfig struct {
	Retry struct {
		Enabled         *bool  `yaml:"enabled"`
		MaxInterval     string `yaml:"maxInterval"`
		MaxCount        *int   `yaml:"maxCount"`
		InitialInterval string `yaml:"initialInterval"`
		Pattern         string `yaml:"pattern"`
	} `yaml:"retry"`
	Guard struct {
		Kind            string `yaml:"kind"`
		InitialInterval string `yaml:"initialInterval"`
		MaxInterval     string `yaml:"maxInterval"`
		MaxChecks       *int   `yaml:"maxChecks"`
		MaxWait         string `yaml:"maxWait"`
		OptimisticWait  string `yaml:"optimisticWait"`
	} `yaml:"guard"`
	ExternalCodec string `yaml:"externalCodec"`
	AWS           struct {
		Region    string `yaml:"region"`
		AccessKey string `yaml:"accessKey"`
		SecretKey string `yaml:"secretKey"`
		Endpoint  string `yaml:"endpoint"`
	} `yaml:"aws"`
}

// FromYAML reads the configuration file at path.
func FromYAML(path string) (storagemodels.StorageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return storagemodels.StorageConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration on top of DefaultStorageConfig.
func Parse(data []byte) (storagemodels.StorageConfig, error) {
	var raw fileConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return storagemodels.StorageConfig{}, fmt.Errorf("decode config: %w", err)
	}

	conf := storagemodels.DefaultStorageConfig()
	if raw.Retry.Enabled != nil {
		conf.Retry.Enabled = *raw.Retry.Enabled
	}
	if raw.Retry.MaxCount != nil {
		conf.Retry.MaxRetryCount = *raw.Retry.MaxCount
	}
	if raw.Retry.Pattern != "" {
		conf.Retry.RetryableErrorPattern = raw.Retry.Pattern
	}
	if raw.Guard.Kind != "" {
		conf.Guard.Kind = storagemodels.GuardKind(raw.Guard.Kind)
	}
	if raw.Guard.MaxChecks != nil {
		conf.Guard.MaxChecks = *raw.Guard.MaxChecks
	}
	if raw.ExternalCodec != "" {
		conf.ExternalCodec = raw.ExternalCodec
	}
	conf.AWS = storagemodels.AWSConfig{
		Region:    raw.AWS.Region,
		AccessKey: raw.AWS.AccessKey,
		SecretKey: raw.AWS.SecretKey,
		Endpoint:  raw.AWS.Endpoint,
	}

	durations := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"retry.maxInterval", raw.Retry.MaxInterval, &conf.Retry.MaxRetryInterval},
		{"retry.initialInterval", raw.Retry.InitialInterval, &conf.Retry.InitialRetryInterval},
		{"guard.initialInterval", raw.Guard.InitialInterval, &conf.Guard.InitialCheckInterval},
		{"guard.maxInterval", raw.Guard.MaxInterval, &conf.Guard.MaxCheckInterval},
		{"guard.maxWait", raw.Guard.MaxWait, &conf.Guard.MaxWait},
		{"guard.optimisticWait", raw.Guard.OptimisticWait, &conf.Guard.OptimisticWait},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := strfmt.ParseDuration(d.value)
		if err != nil {
			return storagemodels.StorageConfig{}, errors.NewValidationError(d.field, err.Error())
		}
		*d.dst = v
	}

	if err := conf.Validate(); err != nil {
		return storagemodels.StorageConfig{}, err
	}
	return conf, nil
}
