/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package lakeio

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/suparena/lakeio/codec"
	"github.com/suparena/lakeio/codec/avro"
	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/registry"
	"github.com/suparena/lakeio/storage"
	"github.com/suparena/lakeio/storagemodels"

	// Raw filesystems and external codecs register themselves.
	_ "github.com/suparena/lakeio/codec/parquet"
	_ "github.com/suparena/lakeio/storage/ddb"
	_ "github.com/suparena/lakeio/storage/local"
	_ "github.com/suparena/lakeio/storage/mock"
	_ "github.com/suparena/lakeio/storage/s3"
)

// IOFactory selects codec factories by record type and hands out storage
// handles for paths. Raw filesystems are opened once per scheme and host
// and shared by every handle built from the same factory.
type IOFactory struct {
	conf   storagemodels.StorageConfig
	logger *slog.Logger

	mu          sync.RWMutex
	fileSystems map[string]storage.FileSystem
}

// Option configures an IOFactory.
type Option func(*IOFactory)

// WithLogger sets the logger passed on to handles and guards.
func WithLogger(l *slog.Logger) Option {
	return func(f *IOFactory) { f.logger = l }
}

// NewIOFactory creates a factory from conf.
func NewIOFactory(conf storagemodels.StorageConfig, opts ...Option) (*IOFactory, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	f := &IOFactory{
		conf:        conf,
		fileSystems: make(map[string]storage.FileSystem),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f, nil
}

// Config returns the configuration the factory was built from.
func (f *IOFactory) Config() storagemodels.StorageConfig { return f.conf }

// ReaderFactory returns the reader factory for rt. RecordTypeExternal is
// served by the codec registered under StorageConfig.ExternalCodec.
func (f *IOFactory) ReaderFactory(rt storagemodels.RecordType) (codec.ReaderFactory, error) {
	switch rt {
	case storagemodels.RecordTypeAvro:
		return avro.NewReaderFactory(f.conf), nil
	case storagemodels.RecordTypeExternal:
		fn, err := registry.GetReaderFactoryFunc(f.conf.ExternalCodec)
		if err != nil {
			return nil, errors.NewFactoryConstructionError(f.conf.ExternalCodec, "reader", err)
		}
		return construct(f.conf.ExternalCodec, "reader", fn, f.conf)
	default:
		return nil, errors.NewUnsupportedRecordTypeError(rt.String())
	}
}

// WriterFactory returns the writer factory for rt.
func (f *IOFactory) WriterFactory(rt storagemodels.RecordType) (codec.WriterFactory, error) {
	switch rt {
	case storagemodels.RecordTypeAvro:
		return avro.NewWriterFactory(f.conf), nil
	case storagemodels.RecordTypeExternal:
		fn, err := registry.GetWriterFactoryFunc(f.conf.ExternalCodec)
		if err != nil {
			return nil, errors.NewFactoryConstructionError(f.conf.ExternalCodec, "writer", err)
		}
		return construct(f.conf.ExternalCodec, "writer", fn, f.conf)
	default:
		return nil, errors.NewUnsupportedRecordTypeError(rt.String())
	}
}

// construct runs a registered constructor, turning errors, panics and nil
// results into a FactoryConstructionError.
func construct[T comparable](name, kind string, fn func(storagemodels.StorageConfig) (T, error), conf storagemodels.StorageConfig) (factory T, err error) {
	var zero T
	defer func() {
		if r := recover(); r != nil {
			factory, err = zero, errors.NewFactoryConstructionError(name, kind, fmt.Errorf("constructor panicked: %v", r))
		}
	}()
	factory, err = fn(conf)
	if err != nil {
		return zero, errors.NewFactoryConstructionError(name, kind, err)
	}
	if factory == zero {
		return zero, errors.NewFactoryConstructionError(name, kind, fmt.Errorf("constructor returned nil"))
	}
	return factory, nil
}

// Storage returns a handle for path that never retries and uses a no-op guard.
func (f *IOFactory) Storage(ctx context.Context, path string) (*storage.Storage, error) {
	fsys, err := f.fileSystem(ctx, path)
	if err != nil {
		return nil, err
	}
	return storage.New(path, fsys, storage.WithLogger(f.logger))
}

// StorageWithRetry returns a handle for path with the given retry
// configuration and guard. A nil guard means no-op.
func (f *IOFactory) StorageWithRetry(ctx context.Context, path string, retry storagemodels.RetryConfig, guard storage.ConsistencyGuard) (*storage.Storage, error) {
	fsys, err := f.fileSystem(ctx, path)
	if err != nil {
		return nil, err
	}
	return storage.New(path, fsys,
		storage.WithRetryConfig(retry),
		storage.WithConsistencyGuard(guard),
		storage.WithLogger(f.logger),
	)
}

// StorageFromConfig returns a handle for path using the factory's retry
// configuration and the guard described by its guard configuration.
func (f *IOFactory) StorageFromConfig(ctx context.Context, path string) (*storage.Storage, error) {
	fsys, err := f.fileSystem(ctx, path)
	if err != nil {
		return nil, err
	}
	guard, err := storage.NewConsistencyGuard(fsys, f.conf.Guard, f.logger)
	if err != nil {
		return nil, err
	}
	return storage.New(path, fsys,
		storage.WithRetryConfig(f.conf.Retry),
		storage.WithConsistencyGuard(guard),
		storage.WithLogger(f.logger),
	)
}

// fileSystem returns the cached raw filesystem serving path, opening it on first use.
func (f *IOFactory) fileSystem(ctx context.Context, path string) (storage.FileSystem, error) {
	u, err := url.Parse(path)
	if err != nil {
		return nil, errors.NewValidationError("path", err.Error())
	}
	key := u.Scheme + "://" + u.Host

	f.mu.RLock()
	fsys, ok := f.fileSystems[key]
	f.mu.RUnlock()
	if ok {
		return fsys, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if fsys, ok := f.fileSystems[key]; ok {
		return fsys, nil
	}
	fsys, err = registry.OpenFileSystem(ctx, path, f.conf)
	if err != nil {
		return nil, err
	}
	f.fileSystems[key] = fsys
	f.logger.Debug("raw filesystem opened", "component", "iofactory", "scheme", u.Scheme, "host", u.Host)
	return fsys, nil
}
