/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/storage"
	"github.com/suparena/lakeio/storagemodels"
)

// FileSystemFunc opens the raw filesystem serving root.
type FileSystemFunc func(ctx context.Context, root *url.URL, conf storagemodels.StorageConfig) (storage.FileSystem, error)

var (
	fileSystemRegistry = make(map[string]FileSystemFunc)
	fsMu               sync.RWMutex
)

// RegisterFileSystem associates a URI scheme with the constructor of its raw filesystem.
// The empty scheme serves plain paths. Registering a scheme twice panics.
func RegisterFileSystem(scheme string, fn FileSystemFunc) {
	fsMu.Lock()
	defer fsMu.Unlock()
	if _, exists := fileSystemRegistry[scheme]; exists {
		panic(fmt.Sprintf("filesystem registry: scheme %q already registered", scheme))
	}
	fileSystemRegistry[scheme] = fn
}

// GetFileSystemFunc retrieves the constructor for scheme, if any.
func GetFileSystemFunc(scheme string) (FileSystemFunc, bool) {
	fsMu.RLock()
	defer fsMu.RUnlock()
	fn, ok := fileSystemRegistry[scheme]
	return fn, ok
}

// OpenFileSystem parses root and builds the raw filesystem registered for its scheme.
func OpenFileSystem(ctx context.Context, root string, conf storagemodels.StorageConfig) (storage.FileSystem, error) {
	u, err := url.Parse(root)
	if err != nil {
		return nil, errors.NewValidationError("root", err.Error())
	}
	fn, ok := GetFileSystemFunc(u.Scheme)
	if !ok {
		return nil, errors.NewNotFoundError("filesystem scheme", u.Scheme)
	}
	fsys, err := fn(ctx, u, conf)
	if err != nil {
		return nil, fmt.Errorf("open %s filesystem for %s: %w", u.Scheme, root, err)
	}
	return fsys, nil
}
