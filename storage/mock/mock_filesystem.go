/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory, eventually consistent implementation
// of storage.FileSystem for testing
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	lakeerrors "github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/storagemodels"
)

// Scheme is the URI scheme served by shared mock filesystems.
const Scheme = "mem"

// Operation names accepted by FailNext and Calls.
const (
	OpCreate = "create"
	OpOpen   = "open"
	OpDelete = "delete"
	OpRename = "rename"
	OpList   = "list"
	OpExists = "exists"
	OpStat   = "stat"
	OpMkdir  = "mkdir"
	OpCommit = "commit"
)

type file struct {
	data     []byte
	modTime  time.Time
	appearAt time.Time // reads see the file from here on
	goneAt   time.Time // reads stop seeing the file from here on; zero while live
}

func (f *file) visible(now time.Time) bool {
	return !now.Before(f.appearAt) && (f.goneAt.IsZero() || now.Before(f.goneAt))
}

func (f *file) live() bool { return f.goneAt.IsZero() }

// FileSystem is an in-memory filesystem whose mutations become visible to
// readers only after a configurable lag, like an eventually consistent
// object store.
type FileSystem struct {
	mu           sync.Mutex
	files        map[string]*file
	dirs         map[string]struct{}
	appearLag    time.Duration
	disappearLag time.Duration
	failures     map[string][]error
	calls        map[string]int
	now          func() time.Time
}

// New creates a strongly consistent mock FileSystem.
func New() *FileSystem {
	return &FileSystem{
		files:    make(map[string]*file),
		dirs:     make(map[string]struct{}),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
		now:      time.Now,
	}
}

// WithAppearLag delays the visibility of created and renamed files
func (m *FileSystem) WithAppearLag(d time.Duration) *FileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appearLag = d
	return m
}

// WithDisappearLag keeps deleted and renamed-away files visible for d
func (m *FileSystem) WithDisappearLag(d time.Duration) *FileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disappearLag = d
	return m
}

// FailNext makes the next len(errs) calls of op return errs in order
func (m *FileSystem) FailNext(op string, errs ...error) *FileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], errs...)
	return m
}

// Calls returns how many times op was invoked, failed calls included
func (m *FileSystem) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// SetFile commits data at p, visible immediately (for test setup)
func (m *FileSystem) SetFile(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.files[clean(p)] = &file{data: append([]byte(nil), data...), modTime: now, appearAt: now}
}

// Files returns the paths of all live files, regardless of visibility
func (m *FileSystem) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for p, f := range m.files {
		if f.live() {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Clear removes all data, injected failures and call counts
func (m *FileSystem) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[string]*file)
	m.dirs = make(map[string]struct{})
	m.failures = make(map[string][]error)
	m.calls = make(map[string]int)
}

// enter counts a call of op and pops an injected failure, if any.
// Callers must hold m.mu.
func (m *FileSystem) enter(op string) error {
	m.calls[op]++
	if q := m.failures[op]; len(q) > 0 {
		m.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

// Create returns a writer that commits its content on Close
func (m *FileSystem) Create(ctx context.Context, p string, overwrite bool) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCreate); err != nil {
		return nil, err
	}
	key := clean(p)
	if f, ok := m.files[key]; ok && f.live() && !overwrite {
		return nil, fmt.Errorf("create %s: %w", p, fs.ErrExist)
	}
	return &writer{fs: m, key: key}, nil
}

// Open returns the content of a visible file
func (m *FileSystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpOpen); err != nil {
		return nil, err
	}
	f, ok := m.files[clean(p)]
	if !ok || !f.visible(m.now()) {
		return nil, fmt.Errorf("open %s: %w", p, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// Delete tombstones a file or removes an empty directory; a file stays
// visible for the disappear lag
func (m *FileSystem) Delete(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpDelete); err != nil {
		return err
	}
	key := clean(p)
	if m.hasChildren(key) {
		return fmt.Errorf("delete %s: %w", p, lakeerrors.ErrDirNotEmpty)
	}
	delete(m.dirs, key)
	if f, ok := m.files[key]; ok && f.live() {
		f.goneAt = m.now().Add(m.disappearLag)
	}
	return nil
}

// Rename moves a live file, applying both lags
func (m *FileSystem) Rename(ctx context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpRename); err != nil {
		return err
	}
	src, dst := clean(from), clean(to)
	f, ok := m.files[src]
	if !ok || !f.live() {
		return fmt.Errorf("rename %s: %w", from, fs.ErrNotExist)
	}
	now := m.now()
	f.goneAt = now.Add(m.disappearLag)
	m.files[dst] = &file{data: f.data, modTime: now, appearAt: now.Add(m.appearLag)}
	return nil
}

// List returns the visible direct children of dir
func (m *FileSystem) List(ctx context.Context, dir string) ([]storagemodels.FileStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpList); err != nil {
		return nil, err
	}
	key := clean(dir)
	prefix := key + "/"
	if key == "/" {
		prefix = "/"
	}
	now := m.now()

	children := make(map[string]storagemodels.FileStatus)
	for p, f := range m.files {
		if !f.visible(now) || !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			child := prefix + rest[:i]
			children[child] = storagemodels.FileStatus{Path: child, IsDir: true}
			continue
		}
		children[p] = storagemodels.FileStatus{Path: p, Size: int64(len(f.data)), ModifiedAt: f.modTime}
	}
	for d := range m.dirs {
		if strings.HasPrefix(d, prefix) && !strings.Contains(strings.TrimPrefix(d, prefix), "/") {
			children[d] = storagemodels.FileStatus{Path: d, IsDir: true}
		}
	}

	if len(children) == 0 {
		if _, ok := m.dirs[key]; !ok {
			return nil, fmt.Errorf("list %s: %w", dir, fs.ErrNotExist)
		}
	}

	out := make([]storagemodels.FileStatus, 0, len(children))
	for _, st := range children {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Exists reports whether p is a visible file or a directory
func (m *FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpExists); err != nil {
		return false, err
	}
	_, ok := m.stat(clean(p))
	return ok, nil
}

// Stat describes a visible file or directory
func (m *FileSystem) Stat(ctx context.Context, p string) (storagemodels.FileStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpStat); err != nil {
		return storagemodels.FileStatus{}, err
	}
	st, ok := m.stat(clean(p))
	if !ok {
		return storagemodels.FileStatus{}, fmt.Errorf("stat %s: %w", p, fs.ErrNotExist)
	}
	return st, nil
}

// MkdirAll records dir and its parents, visible immediately
func (m *FileSystem) MkdirAll(ctx context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpMkdir); err != nil {
		return err
	}
	for d := clean(dir); d != "/" && d != "."; d = path.Dir(d) {
		m.dirs[d] = struct{}{}
	}
	return nil
}

// hasChildren must be called with m.mu held.
func (m *FileSystem) hasChildren(key string) bool {
	prefix := key + "/"
	if key == "/" {
		prefix = "/"
	}
	for p, f := range m.files {
		if f.live() && strings.HasPrefix(p, prefix) {
			return true
		}
	}
	for d := range m.dirs {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}

// stat must be called with m.mu held.
func (m *FileSystem) stat(key string) (storagemodels.FileStatus, bool) {
	now := m.now()
	if f, ok := m.files[key]; ok && f.visible(now) {
		return storagemodels.FileStatus{Path: key, Size: int64(len(f.data)), ModifiedAt: f.modTime}, true
	}
	if _, ok := m.dirs[key]; ok {
		return storagemodels.FileStatus{Path: key, IsDir: true}, true
	}
	prefix := key + "/"
	for p, f := range m.files {
		if strings.HasPrefix(p, prefix) && f.visible(now) {
			return storagemodels.FileStatus{Path: key, IsDir: true}, true
		}
	}
	return storagemodels.FileStatus{}, false
}

type writer struct {
	fs        *FileSystem
	key       string
	buf       bytes.Buffer
	closed    bool
	committed bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	return w.Commit(context.Background())
}

// Commit publishes the buffered content. Failures injected for OpCommit
// leave the buffer in place so Commit can be called again.
func (w *writer) Commit(ctx context.Context) error {
	if w.committed {
		return nil
	}
	w.closed = true
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	if err := w.fs.enter(OpCommit); err != nil {
		return err
	}
	now := w.fs.now()
	w.fs.files[w.key] = &file{data: w.buf.Bytes(), modTime: now, appearAt: now.Add(w.fs.appearLag)}
	w.committed = true
	return nil
}

// clean strips the mem:// scheme and normalises p to an absolute slash path.
func clean(p string) string {
	p = strings.TrimPrefix(p, Scheme+"://")
	return path.Clean("/" + p)
}

var (
	sharedMu sync.Mutex
	shared   = make(map[string]*FileSystem)
)

// Shared returns the process-wide mock filesystem for a mem:// host
func Shared(host string) *FileSystem {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if m, ok := shared[host]; ok {
		return m
	}
	m := New()
	shared[host] = m
	return m
}
