/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/storagemodels"
)

const (
	opCreate = "create"
	opOpen   = "open"
	opDelete = "delete"
	opRename = "rename"
	opList   = "list"
	opExists = "exists"
	opStat   = "stat"
	opMkdir  = "mkdir"
)

// Storage is the handle every physical file operation under one root passes
// through. It retries failed raw calls according to its RetryPolicy and,
// for operations with an observable postcondition, waits on its
// ConsistencyGuard before reporting success.
//
// A Storage is immutable after New and safe for concurrent use.
type Storage struct {
	root   string
	fs     FileSystem
	policy *RetryPolicy
	guard  ConsistencyGuard
	logger *slog.Logger
}

// Option configures a Storage handle.
type Option func(*handleOptions)

type handleOptions struct {
	retry  *storagemodels.RetryConfig
	guard  ConsistencyGuard
	logger *slog.Logger
}

// WithRetryConfig enables retries with the given configuration.
func WithRetryConfig(cfg storagemodels.RetryConfig) Option {
	return func(o *handleOptions) { o.retry = &cfg }
}

// WithConsistencyGuard sets the guard consulted after visibility-sensitive
// operations. A nil guard means no-op.
func WithConsistencyGuard(g ConsistencyGuard) Option {
	return func(o *handleOptions) { o.guard = g }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *handleOptions) { o.logger = l }
}

// New creates a handle for root on top of fs. Without options the handle
// never retries and uses a NoOpGuard.
func New(root string, fsys FileSystem, opts ...Option) (*Storage, error) {
	if fsys == nil {
		return nil, errors.NewValidationError("fs", "raw filesystem is required")
	}
	var o handleOptions
	for _, opt := range opts {
		opt(&o)
	}

	policy := DisabledRetryPolicy()
	if o.retry != nil {
		p, err := NewRetryPolicy(*o.retry)
		if err != nil {
			return nil, fmt.Errorf("retry policy: %w", err)
		}
		policy = p
	}
	if o.guard == nil {
		o.guard = NoOpGuard{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Storage{
		root:   strings.TrimSuffix(root, "/"),
		fs:     fsys,
		policy: policy,
		guard:  o.guard,
		logger: o.logger.With("component", "storage", "root", root),
	}, nil
}

// Root returns the logical root path of the handle.
func (s *Storage) Root() string { return s.root }

// RetryConfig returns the retry configuration in effect.
func (s *Storage) RetryConfig() storagemodels.RetryConfig { return s.policy.Config() }

// Guard returns the consistency guard in effect.
func (s *Storage) Guard() ConsistencyGuard { return s.guard }

// FileSystem returns the raw client, bypassing retries and guards.
func (s *Storage) FileSystem() FileSystem { return s.fs }

// Resolve maps a path relative to the root to the path handed to the raw
// filesystem. Absolute paths and URIs are returned unchanged.
func (s *Storage) Resolve(p string) string {
	if p == "" || p == "." {
		return s.root
	}
	if strings.Contains(p, "://") || strings.HasPrefix(p, "/") {
		return p
	}
	return s.root + "/" + strings.TrimPrefix(p, "./")
}

// Create opens path for writing. Closing the returned writer waits for the
// file to appear before reporting success.
func (s *Storage) Create(ctx context.Context, p string, overwrite bool) (io.WriteCloser, error) {
	w, err := s.create(ctx, s.Resolve(p), overwrite, true)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// create opens the resolved path full. With await the writer waits for the
// file to appear when closed.
func (s *Storage) create(ctx context.Context, full string, overwrite, await bool) (*guardedWriter, error) {
	w, err := do(ctx, s, opCreate, full, func(ctx context.Context) (io.WriteCloser, error) {
		return s.fs.Create(ctx, full, overwrite)
	})
	if err != nil {
		return nil, err
	}
	return &guardedWriter{WriteCloser: w, ctx: ctx, storage: s, path: full, await: await}, nil
}

// Open opens path for reading.
func (s *Storage) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	full := s.Resolve(p)
	return do(ctx, s, opOpen, full, func(ctx context.Context) (io.ReadCloser, error) {
		return s.fs.Open(ctx, full)
	})
}

// ReadAll reads the whole content of path.
func (s *Storage) ReadAll(ctx context.Context, p string) ([]byte, error) {
	full := s.Resolve(p)
	return do(ctx, s, opOpen, full, func(ctx context.Context) ([]byte, error) {
		r, err := s.fs.Open(ctx, full)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	})
}

// Delete removes path and waits for it to disappear.
func (s *Storage) Delete(ctx context.Context, p string) error {
	full := s.Resolve(p)
	_, err := do(ctx, s, opDelete, full, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.fs.Delete(ctx, full)
	})
	if err != nil {
		return err
	}
	return s.converge(ctx, opDelete, func(ctx context.Context) error {
		return s.guard.WaitTillFileDisappears(ctx, full)
	})
}

// Rename moves from to to and waits for the source to disappear and the
// target to appear.
func (s *Storage) Rename(ctx context.Context, from, to string) error {
	return s.rename(ctx, s.Resolve(from), s.Resolve(to))
}

func (s *Storage) rename(ctx context.Context, src, dst string) error {
	_, err := do(ctx, s, opRename, src, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.fs.Rename(ctx, src, dst)
	})
	if err != nil {
		return err
	}
	return s.converge(ctx, opRename, func(ctx context.Context) error {
		if err := s.guard.WaitTillFileDisappears(ctx, src); err != nil {
			return err
		}
		return s.guard.WaitTillFileAppears(ctx, dst)
	})
}

// List returns the direct entries of dir.
func (s *Storage) List(ctx context.Context, dir string) ([]storagemodels.FileStatus, error) {
	return s.list(ctx, s.Resolve(dir))
}

func (s *Storage) list(ctx context.Context, full string) ([]storagemodels.FileStatus, error) {
	return do(ctx, s, opList, full, func(ctx context.Context) ([]storagemodels.FileStatus, error) {
		return s.fs.List(ctx, full)
	})
}

// ListFiles returns every file below dir, depth first.
func (s *Storage) ListFiles(ctx context.Context, dir string) ([]storagemodels.FileStatus, error) {
	return s.listFiles(ctx, s.Resolve(dir))
}

// listFiles walks full using the entry paths the raw filesystem returns,
// which are already resolved.
func (s *Storage) listFiles(ctx context.Context, full string) ([]storagemodels.FileStatus, error) {
	entries, err := s.list(ctx, full)
	if err != nil {
		return nil, err
	}
	var files []storagemodels.FileStatus
	for _, e := range entries {
		if !e.IsDir {
			files = append(files, e)
			continue
		}
		nested, err := s.listFiles(ctx, e.Path)
		if err != nil {
			return nil, err
		}
		files = append(files, nested...)
	}
	return files, nil
}

// Exists reports whether path is observable.
func (s *Storage) Exists(ctx context.Context, p string) (bool, error) {
	return s.exists(ctx, s.Resolve(p))
}

func (s *Storage) exists(ctx context.Context, full string) (bool, error) {
	return do(ctx, s, opExists, full, func(ctx context.Context) (bool, error) {
		return s.fs.Exists(ctx, full)
	})
}

// Stat describes path.
func (s *Storage) Stat(ctx context.Context, p string) (storagemodels.FileStatus, error) {
	full := s.Resolve(p)
	return do(ctx, s, opStat, full, func(ctx context.Context) (storagemodels.FileStatus, error) {
		return s.fs.Stat(ctx, full)
	})
}

// MkdirAll creates dir and waits for it to appear.
func (s *Storage) MkdirAll(ctx context.Context, dir string) error {
	full := s.Resolve(dir)
	_, err := do(ctx, s, opMkdir, full, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.fs.MkdirAll(ctx, full)
	})
	if err != nil {
		return err
	}
	return s.converge(ctx, opMkdir, func(ctx context.Context) error {
		return s.guard.WaitTillFileAppears(ctx, full)
	})
}

// CreateImmutable writes data to a temporary sibling and renames it into
// place. It fails with an AlreadyExistsError if path is already present.
func (s *Storage) CreateImmutable(ctx context.Context, p string, data []byte) error {
	full := s.Resolve(p)
	exists, err := s.exists(ctx, full)
	if err != nil {
		return err
	}
	if exists {
		return errors.NewAlreadyExistsError("file", full)
	}

	dir, name := path.Split(full)
	tmp := dir + "." + name + "." + uuid.NewString() + ".tmp"
	// The rename below waits for the target, so the temporary file is not
	// awaited on its own.
	w, err := s.create(ctx, tmp, false, false)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		s.discard(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := w.Close(); err != nil {
		s.discard(tmp)
		return err
	}
	if err := s.rename(ctx, tmp, full); err != nil {
		s.discard(tmp)
		return err
	}
	return nil
}

// discard best-effort removes a temporary file.
func (s *Storage) discard(p string) {
	if err := s.fs.Delete(context.Background(), p); err != nil {
		s.logger.Warn("failed to remove temporary file", "path", p, "error", err)
	}
}

// converge runs a guard wait and records its outcome.
func (s *Storage) converge(ctx context.Context, op string, wait func(context.Context) error) error {
	if err := wait(ctx); err != nil {
		switch {
		case errors.IsCancelled(err):
			operationsTotal.WithLabelValues(op, outcomeCancelled).Inc()
		case errors.IsConsistencyTimeout(err):
			operationsTotal.WithLabelValues(op, outcomeTimeout).Inc()
		default:
			operationsTotal.WithLabelValues(op, outcomeError).Inc()
		}
		return err
	}
	operationsTotal.WithLabelValues(op, outcomeOK).Inc()
	return nil
}

// do runs fn until it succeeds, the policy refuses another attempt, or ctx
// is done. Errors the policy does not consider retryable are returned
// unchanged; retryable errors that outlive the attempt ceiling are wrapped
// in a StorageOperationError.
func do[T any](ctx context.Context, s *Storage, op, p string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			operationsTotal.WithLabelValues(op, outcomeCancelled).Inc()
			return zero, errors.NewCancelledError(op, p, err)
		}

		v, err := fn(ctx)
		if err == nil {
			if !guardedOp(op) {
				operationsTotal.WithLabelValues(op, outcomeOK).Inc()
			}
			return v, nil
		}

		if s.policy.cfg.Enabled && ctx.Err() != nil {
			operationsTotal.WithLabelValues(op, outcomeCancelled).Inc()
			return zero, errors.NewCancelledError(op, p, err)
		}

		if !s.policy.ShouldRetry(err, attempt) {
			if s.policy.eligible(err) {
				operationsTotal.WithLabelValues(op, outcomeExhausted).Inc()
				s.logger.Error("storage operation failed after retries",
					"op", op, "path", p, "attempts", attempt+1, "error", err)
				return zero, errors.NewStorageOperationError(op, p, attempt+1, err)
			}
			operationsTotal.WithLabelValues(op, outcomeError).Inc()
			return zero, err
		}

		backoff := s.policy.NextBackoff(attempt)
		retriesTotal.WithLabelValues(op).Inc()
		s.logger.Warn("retrying storage operation",
			"op", op, "path", p, "attempt", attempt+1, "backoff", backoff, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			operationsTotal.WithLabelValues(op, outcomeCancelled).Inc()
			return zero, errors.NewCancelledError(op, p, stderrors.Join(ctx.Err(), err))
		case <-timer.C:
		}
	}
}

// guardedOp reports whether op records its outcome after the guard wait.
func guardedOp(op string) bool {
	switch op {
	case opCreate, opDelete, opRename, opMkdir:
		return true
	}
	return false
}

// guardedWriter publishes its file when closed, retrying the publish of a
// Committer, and then waits for the file to appear if await is set.
type guardedWriter struct {
	io.WriteCloser
	ctx     context.Context
	storage *Storage
	path    string
	await   bool

	once sync.Once
	err  error
}

func (w *guardedWriter) Close() error {
	w.once.Do(func() {
		if w.err = w.commit(); w.err != nil {
			return
		}
		if !w.await {
			operationsTotal.WithLabelValues(opCreate, outcomeOK).Inc()
			return
		}
		w.err = w.storage.converge(w.ctx, opCreate, func(ctx context.Context) error {
			return w.storage.guard.WaitTillFileAppears(ctx, w.path)
		})
	})
	return w.err
}

func (w *guardedWriter) commit() error {
	c, ok := w.WriteCloser.(Committer)
	if !ok {
		if err := w.WriteCloser.Close(); err != nil {
			operationsTotal.WithLabelValues(opCreate, outcomeError).Inc()
			return fmt.Errorf("close %s: %w", w.path, err)
		}
		return nil
	}
	_, err := do(w.ctx, w.storage, opCreate, w.path, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Commit(ctx)
	})
	return err
}

// IsNotExist reports whether err means the path does not exist.
func IsNotExist(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist) || errors.IsNotFound(err)
}
