/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/suparena/lakeio/codec"
	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/storagemodels"
)

// ReaderFactoryFunc builds a reader factory from the storage configuration.
type ReaderFactoryFunc func(conf storagemodels.StorageConfig) (codec.ReaderFactory, error)

// WriterFactoryFunc builds a writer factory from the storage configuration.
type WriterFactoryFunc func(conf storagemodels.StorageConfig) (codec.WriterFactory, error)

type codecEntry struct {
	reader ReaderFactoryFunc
	writer WriterFactoryFunc
}

// codecRegistry holds the mapping from a codec name (like "parquet") to its factory constructors.
var (
	codecRegistry = make(map[string]codecEntry)
	codecMu       sync.RWMutex
)

// RegisterCodec registers the factory constructors for a codec name.
// If a codec is already registered under name, it panics to prevent accidental overrides.
func RegisterCodec(name string, reader ReaderFactoryFunc, writer WriterFactoryFunc) {
	codecMu.Lock()
	defer codecMu.Unlock()
	if _, exists := codecRegistry[name]; exists {
		panic(fmt.Sprintf("codec registry: codec %q already registered", name))
	}
	codecRegistry[name] = codecEntry{reader: reader, writer: writer}
}

// GetReaderFactoryFunc returns the reader constructor registered under name.
func GetReaderFactoryFunc(name string) (ReaderFactoryFunc, error) {
	codecMu.RLock()
	defer codecMu.RUnlock()
	e, ok := codecRegistry[name]
	if !ok || e.reader == nil {
		return nil, errors.NewNotFoundError("reader codec", name)
	}
	return e.reader, nil
}

// GetWriterFactoryFunc returns the writer constructor registered under name.
func GetWriterFactoryFunc(name string) (WriterFactoryFunc, error) {
	codecMu.RLock()
	defer codecMu.RUnlock()
	e, ok := codecRegistry[name]
	if !ok || e.writer == nil {
		return nil, errors.NewNotFoundError("writer codec", name)
	}
	return e.writer, nil
}

// Codecs returns the registered codec names, sorted.
func Codecs() []string {
	codecMu.RLock()
	defer codecMu.RUnlock()
	names := make([]string, 0, len(codecRegistry))
	for n := range codecRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
