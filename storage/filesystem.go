/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storage

import (
	"context"
	"io"

	"github.com/suparena/lakeio/storagemodels"
)

// FileSystem is the raw filesystem client a Storage handle layers retries
// and consistency checks on top of.
//
// Paths are passed exactly as the handle resolved them, including any
// scheme prefix (s3://bucket/key, ddb://table/key, /abs/path). A missing
// path surfaces as an error wrapping fs.ErrNotExist; an existing target of
// Create with overwrite=false as an error wrapping fs.ErrExist.
// Implementations must be safe for concurrent use.
type FileSystem interface {
	// Create opens path for writing. The file becomes visible once the
	// returned writer is closed.
	Create(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error)

	// Open opens path for reading. The caller must close the reader.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a file or an empty directory. Deleting a missing path
	// is not an error; deleting a directory that still has entries fails
	// with an error wrapping errors.ErrDirNotEmpty.
	Delete(ctx context.Context, path string) error

	// Rename moves from to to, replacing an existing target.
	Rename(ctx context.Context, from, to string) error

	// List returns the direct entries of dir.
	List(ctx context.Context, dir string) ([]storagemodels.FileStatus, error)

	// Exists reports whether path is observable.
	Exists(ctx context.Context, path string) (bool, error)

	// Stat describes a single path.
	Stat(ctx context.Context, path string) (storagemodels.FileStatus, error)

	// MkdirAll creates dir and any missing parents.
	MkdirAll(ctx context.Context, dir string) error
}

// Committer is implemented by writers that publish their content in one
// call, such as an object upload. The handle calls Commit instead of Close
// so that a failed publish can be retried. Commit must be safe to call again
// after a failure; Close after a successful Commit is a no-op.
type Committer interface {
	Commit(ctx context.Context) error
}
