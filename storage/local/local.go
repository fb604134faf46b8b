/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package local implements storage.FileSystem on the local disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	lakeerrors "github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/registry"
	"github.com/suparena/lakeio/storage"
	"github.com/suparena/lakeio/storagemodels"
)

func init() {
	open := func(_ context.Context, _ *url.URL, _ storagemodels.StorageConfig) (storage.FileSystem, error) {
		return New(), nil
	}
	registry.RegisterFileSystem("", open)
	registry.RegisterFileSystem("file", open)
}

// FileSystem is strongly consistent, so handles over it need no guard.
// Files are written to a temporary sibling and renamed into place on Close.
type FileSystem struct{}

// New creates a local FileSystem.
func New() *FileSystem {
	return &FileSystem{}
}

// resolve turns a storage path into a filesystem path.
func resolve(p string) string {
	return filepath.FromSlash(strings.TrimPrefix(p, "file://"))
}

func (l *FileSystem) Create(_ context.Context, p string, overwrite bool) (io.WriteCloser, error) {
	full := resolve(p)
	if !overwrite {
		if _, err := os.Stat(full); err == nil {
			return nil, fmt.Errorf("create %s: %w", p, fs.ErrExist)
		}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(full), err)
	}
	tmp := filepath.Join(filepath.Dir(full), "."+filepath.Base(full)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &atomicWriter{f: f, tmp: tmp, target: full, overwrite: overwrite}, nil
}

func (l *FileSystem) Open(_ context.Context, p string) (io.ReadCloser, error) {
	return os.Open(resolve(p))
}

// Delete removes a file or an empty directory. Missing paths are ignored.
func (l *FileSystem) Delete(_ context.Context, p string) error {
	full := resolve(p)
	if entries, err := os.ReadDir(full); err == nil && len(entries) > 0 {
		return fmt.Errorf("delete %s: %w", p, lakeerrors.ErrDirNotEmpty)
	}
	err := os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *FileSystem) Rename(_ context.Context, from, to string) error {
	dst := resolve(to)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dst), err)
	}
	return os.Rename(resolve(from), dst)
}

func (l *FileSystem) List(_ context.Context, dir string) ([]storagemodels.FileStatus, error) {
	full := resolve(dir)
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}
	out := make([]storagemodels.FileStatus, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue // removed between ReadDir and Info
		}
		if err != nil {
			return nil, err
		}
		out = append(out, status(strings.TrimSuffix(dir, "/")+"/"+e.Name(), info))
	}
	return out, nil
}

func (l *FileSystem) Exists(_ context.Context, p string) (bool, error) {
	_, err := os.Stat(resolve(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l *FileSystem) Stat(_ context.Context, p string) (storagemodels.FileStatus, error) {
	info, err := os.Stat(resolve(p))
	if err != nil {
		return storagemodels.FileStatus{}, err
	}
	return status(p, info), nil
}

func (l *FileSystem) MkdirAll(_ context.Context, dir string) error {
	return os.MkdirAll(resolve(dir), 0o755)
}

func status(p string, info fs.FileInfo) storagemodels.FileStatus {
	st := storagemodels.FileStatus{Path: p, IsDir: info.IsDir(), ModifiedAt: info.ModTime()}
	if !st.IsDir {
		st.Size = info.Size()
	}
	return st
}

// atomicWriter writes to a temporary file and renames it over the target on Close.
type atomicWriter struct {
	f         *os.File
	tmp       string
	target    string
	overwrite bool
	closed    bool
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *atomicWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.f.Close(); err != nil {
		os.Remove(w.tmp)
		return err
	}
	if !w.overwrite {
		// Link fails if the target appeared since Create.
		if err := os.Link(w.tmp, w.target); err != nil {
			os.Remove(w.tmp)
			return err
		}
		return os.Remove(w.tmp)
	}
	if err := os.Rename(w.tmp, w.target); err != nil {
		os.Remove(w.tmp)
		return err
	}
	return nil
}

var _ storage.FileSystem = (*FileSystem)(nil)
