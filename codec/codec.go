/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package codec

import (
	"context"
	"io"

	"github.com/suparena/lakeio/storagemodels"
)

// Record is the generic in-memory record readers produce and writers consume.
type Record = map[string]any

// FileStorage is the part of a storage handle readers and writers need.
// *storage.Storage satisfies it.
type FileStorage interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Create(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error)
}

// FileReader reads the records of one file. It owns the underlying stream
// and must be closed by its single owner.
type FileReader interface {
	// Schema returns the writer schema stored in the file.
	Schema() string
	// Read returns the next record, or io.EOF after the last one.
	Read() (Record, error)
	Close() error
}

// FileWriter writes records to one file. The file is complete, and visible
// through the storage handle, only after Close returns nil.
type FileWriter interface {
	Write(rec Record) error
	Close() error
}

// ReaderFactory produces readers bound to one path and one storage handle.
type ReaderFactory interface {
	Format() string
	NewReader(ctx context.Context, st FileStorage, path string) (FileReader, error)
}

// WriterFactory produces writers bound to one path and one storage handle.
type WriterFactory interface {
	Format() string
	NewWriter(ctx context.Context, st FileStorage, path string, opts ...storagemodels.WriterOption) (FileWriter, error)
}

// ReadAll drains r into a slice. It does not close r.
func ReadAll(r FileReader) ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
