/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storage_test

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/storage"
	"github.com/suparena/lakeio/storage/local"
	"github.com/suparena/lakeio/storage/mock"
	"github.com/suparena/lakeio/storagemodels"
)

var errTransient = stderrors.New("503 slow down")

func retryConfig(count int, initial time.Duration) storagemodels.RetryConfig {
	return storagemodels.RetryConfig{
		Enabled:              true,
		MaxRetryInterval:     2 * time.Second,
		MaxRetryCount:        count,
		InitialRetryInterval: initial,
	}
}

func newStorage(t *testing.T, fsys storage.FileSystem, opts ...storage.Option) *storage.Storage {
	t.Helper()
	s, err := storage.New("/lake", fsys, opts...)
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	return s
}

func TestNew(t *testing.T) {
	t.Run("nil filesystem", func(t *testing.T) {
		if _, err := storage.New("/lake", nil); !errors.IsValidationError(err) {
			t.Errorf("error = %v, want validation error", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		s := newStorage(t, mock.New())
		if s.RetryConfig().Enabled {
			t.Error("retries enabled by default")
		}
		if _, ok := s.Guard().(storage.NoOpGuard); !ok {
			t.Errorf("guard = %T, want NoOpGuard", s.Guard())
		}
		if s.Root() != "/lake" {
			t.Errorf("Root() = %q", s.Root())
		}
	})

	t.Run("invalid retry config", func(t *testing.T) {
		cfg := retryConfig(-1, time.Millisecond)
		if _, err := storage.New("/lake", mock.New(), storage.WithRetryConfig(cfg)); !errors.IsValidationError(err) {
			t.Errorf("error = %v, want validation error", err)
		}
	})
}

func TestStorage_Resolve(t *testing.T) {
	s, err := storage.New("s3://bucket/tables/", mock.New())
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		in, want string
	}{
		{"", "s3://bucket/tables"},
		{".", "s3://bucket/tables"},
		{"trips/.meta", "s3://bucket/tables/trips/.meta"},
		{"./trips", "s3://bucket/tables/trips"},
		{"/abs/path", "/abs/path"},
		{"s3://other/key", "s3://other/key"},
	}
	for _, tt := range tests {
		if got := s.Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStorage_RetryThenSucceed(t *testing.T) {
	fsys := mock.New().FailNext(mock.OpOpen, errTransient, errTransient)
	fsys.SetFile("/lake/a", []byte("hello"))
	s := newStorage(t, fsys, storage.WithRetryConfig(retryConfig(3, 10*time.Millisecond)))

	data, err := s.ReadAll(context.Background(), "a")
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("ReadAll() = %q", data)
	}
	if got := fsys.Calls(mock.OpOpen); got != 3 {
		t.Errorf("open calls = %d, want 3", got)
	}
}

func TestStorage_RetryExhausted(t *testing.T) {
	fsys := mock.New().FailNext(mock.OpDelete, errTransient, errTransient, errTransient, errTransient, errTransient)
	s := newStorage(t, fsys, storage.WithRetryConfig(retryConfig(3, 100*time.Millisecond)))

	start := time.Now()
	err := s.Delete(context.Background(), "a")
	elapsed := time.Since(start)

	if !errors.IsStorageOperation(err) {
		t.Fatalf("Delete() error = %v, want storage operation error", err)
	}
	if !stderrors.Is(err, errTransient) {
		t.Errorf("error does not wrap the last raw error: %v", err)
	}
	var opErr *errors.StorageOperationError
	if !stderrors.As(err, &opErr) || opErr.Attempts != 4 || opErr.Op != "delete" || opErr.Path != "/lake/a" {
		t.Errorf("operation error = %+v", opErr)
	}
	if got := fsys.Calls(mock.OpDelete); got != 4 {
		t.Errorf("delete calls = %d, want 4", got)
	}
	// Backoffs of 100ms, 200ms and 400ms.
	if elapsed < 700*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("elapsed = %v, want about 700ms", elapsed)
	}
}

func TestStorage_ZeroRetries(t *testing.T) {
	fsys := mock.New().FailNext(mock.OpStat, errTransient)
	s := newStorage(t, fsys, storage.WithRetryConfig(retryConfig(0, time.Millisecond)))

	_, err := s.Stat(context.Background(), "a")
	var opErr *errors.StorageOperationError
	if !stderrors.As(err, &opErr) || opErr.Attempts != 1 {
		t.Errorf("Stat() error = %v, want one-attempt storage operation error", err)
	}
}

func TestStorage_ErrorsPassThrough(t *testing.T) {
	denied := stderrors.New("access denied")

	tests := []struct {
		name string
		opts []storage.Option
	}{
		{"disabled policy", nil},
		{"pattern does not match", []storage.Option{storage.WithRetryConfig(storagemodels.RetryConfig{
			Enabled:               true,
			MaxRetryInterval:      time.Second,
			MaxRetryCount:         5,
			InitialRetryInterval:  time.Millisecond,
			RetryableErrorPattern: "slow down|timeout",
		})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := mock.New().FailNext(mock.OpList, denied)
			s := newStorage(t, fsys, tt.opts...)

			_, err := s.List(context.Background(), "")
			if err != denied {
				t.Errorf("List() error = %v, want the raw error", err)
			}
			if got := fsys.Calls(mock.OpList); got != 1 {
				t.Errorf("list calls = %d, want 1", got)
			}
		})
	}
}

func TestStorage_NotExist(t *testing.T) {
	s := newStorage(t, mock.New(), storage.WithRetryConfig(storagemodels.RetryConfig{
		Enabled:               true,
		MaxRetryInterval:      time.Second,
		MaxRetryCount:         3,
		InitialRetryInterval:  time.Millisecond,
		RetryableErrorPattern: "slow down",
	}))
	_, err := s.Open(context.Background(), "missing")
	if !storage.IsNotExist(err) {
		t.Errorf("Open() error = %v, want not exist", err)
	}
}

func TestStorage_Cancelled(t *testing.T) {
	t.Run("before first attempt", func(t *testing.T) {
		fsys := mock.New()
		s := newStorage(t, fsys)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Exists(ctx, "a")
		if !errors.IsCancelled(err) || !stderrors.Is(err, context.Canceled) {
			t.Errorf("Exists() error = %v, want cancelled", err)
		}
		if got := fsys.Calls(mock.OpExists); got != 0 {
			t.Errorf("exists calls = %d, want 0", got)
		}
	})

	t.Run("during backoff", func(t *testing.T) {
		fsys := mock.New().FailNext(mock.OpOpen, errTransient, errTransient)
		s := newStorage(t, fsys, storage.WithRetryConfig(retryConfig(3, time.Second)))
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := s.Open(ctx, "a")
		if !errors.IsCancelled(err) {
			t.Fatalf("Open() error = %v, want cancelled", err)
		}
		if !stderrors.Is(err, errTransient) {
			t.Errorf("cancelled error lost the raw failure: %v", err)
		}
		if time.Since(start) > 500*time.Millisecond {
			t.Errorf("cancellation took %v", time.Since(start))
		}
		if got := fsys.Calls(mock.OpOpen); got != 1 {
			t.Errorf("open calls = %d, want 1", got)
		}
	})
}

func TestStorage_DeleteWaitsForDisappearance(t *testing.T) {
	lag := 300 * time.Millisecond

	t.Run("polling guard", func(t *testing.T) {
		fsys := mock.New().WithDisappearLag(lag)
		fsys.SetFile("/lake/a", []byte("x"))
		g, err := storage.NewPollingGuard(fsys, pollingConfig(100, 2*time.Second), nil)
		if err != nil {
			t.Fatal(err)
		}
		s := newStorage(t, fsys, storage.WithConsistencyGuard(g))

		start := time.Now()
		if err := s.Delete(context.Background(), "a"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < lag {
			t.Errorf("Delete() returned after %v, before the %v lag", elapsed, lag)
		}
		if ok, _ := fsys.Exists(context.Background(), "/lake/a"); ok {
			t.Error("file still visible after Delete()")
		}
	})

	t.Run("no-op guard", func(t *testing.T) {
		fsys := mock.New().WithDisappearLag(lag)
		fsys.SetFile("/lake/a", []byte("x"))
		s := newStorage(t, fsys)

		if err := s.Delete(context.Background(), "a"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if ok, _ := fsys.Exists(context.Background(), "/lake/a"); !ok {
			t.Error("no-op guard should not wait for the lag")
		}
	})

	t.Run("guard timeout", func(t *testing.T) {
		fsys := mock.New().WithDisappearLag(time.Hour)
		fsys.SetFile("/lake/a", []byte("x"))
		g, err := storage.NewPollingGuard(fsys, pollingConfig(3, time.Second), nil)
		if err != nil {
			t.Fatal(err)
		}
		s := newStorage(t, fsys, storage.WithConsistencyGuard(g))

		if err := s.Delete(context.Background(), "a"); !errors.IsConsistencyTimeout(err) {
			t.Errorf("Delete() error = %v, want consistency timeout", err)
		}
	})
}

func TestStorage_CreateWaitsOnClose(t *testing.T) {
	fsys := mock.New().WithAppearLag(200 * time.Millisecond)
	g, err := storage.NewPollingGuard(fsys, pollingConfig(100, 2*time.Second), nil)
	if err != nil {
		t.Fatal(err)
	}
	s := newStorage(t, fsys, storage.WithConsistencyGuard(g))
	ctx := context.Background()

	w, err := s.Create(ctx, "a", false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := io.WriteString(w, "payload"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	data, err := s.ReadAll(ctx, "a")
	if err != nil || string(data) != "payload" {
		t.Errorf("ReadAll() = %q, %v", data, err)
	}

	if _, err := s.Create(ctx, "a", false); !stderrors.Is(err, fs.ErrExist) {
		t.Errorf("Create() over existing file error = %v, want fs.ErrExist", err)
	}
}

func TestStorage_Rename(t *testing.T) {
	fsys := mock.New().WithAppearLag(100 * time.Millisecond).WithDisappearLag(100 * time.Millisecond)
	fsys.SetFile("/lake/a", []byte("x"))
	g, err := storage.NewPollingGuard(fsys, pollingConfig(100, 2*time.Second), nil)
	if err != nil {
		t.Fatal(err)
	}
	s := newStorage(t, fsys, storage.WithConsistencyGuard(g))
	ctx := context.Background()

	if err := s.Rename(ctx, "a", "b"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if ok, _ := s.Exists(ctx, "a"); ok {
		t.Error("source still visible")
	}
	if ok, _ := s.Exists(ctx, "b"); !ok {
		t.Error("target not visible")
	}
	if err := s.Rename(ctx, "missing", "c"); !storage.IsNotExist(err) {
		t.Errorf("Rename() of missing source error = %v", err)
	}
}

func TestStorage_CreateImmutable(t *testing.T) {
	fsys := mock.New()
	s := newStorage(t, fsys)
	ctx := context.Background()

	if err := s.CreateImmutable(ctx, "t/.meta/00001.commit", []byte("v1")); err != nil {
		t.Fatalf("CreateImmutable() error = %v", err)
	}
	err := s.CreateImmutable(ctx, "t/.meta/00001.commit", []byte("v2"))
	if !errors.IsAlreadyExists(err) {
		t.Errorf("second CreateImmutable() error = %v, want already exists", err)
	}

	data, err := s.ReadAll(ctx, "t/.meta/00001.commit")
	if err != nil || string(data) != "v1" {
		t.Errorf("ReadAll() = %q, %v", data, err)
	}
	for _, f := range fsys.Files() {
		if strings.HasSuffix(f, ".tmp") {
			t.Errorf("temporary file left behind: %s", f)
		}
	}
}

func TestStorage_CreateImmutableRelativeRoot(t *testing.T) {
	fsys := mock.New()
	s, err := storage.New("warehouse", fsys)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.CreateImmutable(ctx, "commit.json", []byte("v1")); err != nil {
		t.Fatalf("CreateImmutable() error = %v", err)
	}
	if got := fsys.Files(); len(got) != 1 || got[0] != "/warehouse/commit.json" {
		t.Errorf("Files() = %v, want [/warehouse/commit.json]", got)
	}
	if err := s.CreateImmutable(ctx, "commit.json", []byte("v2")); !errors.IsAlreadyExists(err) {
		t.Errorf("second CreateImmutable() error = %v, want already exists", err)
	}
}

func TestStorage_CreateImmutableCountsTemporaryCreate(t *testing.T) {
	s := newStorage(t, mock.New())
	before := storage.OperationCount("create", "ok")
	if err := s.CreateImmutable(context.Background(), "t/00002.commit", []byte("x")); err != nil {
		t.Fatalf("CreateImmutable() error = %v", err)
	}
	if got := storage.OperationCount("create", "ok") - before; got != 1 {
		t.Errorf("create ok count grew by %v, want 1", got)
	}
}

func TestStorage_CommitRetried(t *testing.T) {
	tests := []struct {
		name      string
		retry     *storagemodels.RetryConfig
		failures  []error
		wantCalls int
		check     func(t *testing.T, err error)
	}{
		{
			name:      "transient failure retried",
			retry:     ptr(retryConfig(3, 10*time.Millisecond)),
			failures:  []error{errTransient, errTransient},
			wantCalls: 3,
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Errorf("Close() error = %v", err)
				}
			},
		},
		{
			name:      "exhausted",
			retry:     ptr(retryConfig(1, 10*time.Millisecond)),
			failures:  []error{errTransient, errTransient},
			wantCalls: 2,
			check: func(t *testing.T, err error) {
				var opErr *errors.StorageOperationError
				if !stderrors.As(err, &opErr) || opErr.Op != "create" || opErr.Attempts != 2 {
					t.Errorf("Close() error = %v, want storage operation error after 2 attempts", err)
				}
			},
		},
		{
			name:      "retries disabled",
			failures:  []error{errTransient},
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				if err != errTransient {
					t.Errorf("Close() error = %v, want the raw error", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := mock.New().FailNext(mock.OpCommit, tt.failures...)
			var opts []storage.Option
			if tt.retry != nil {
				opts = append(opts, storage.WithRetryConfig(*tt.retry))
			}
			s := newStorage(t, fsys, opts...)

			w, err := s.Create(context.Background(), "a", false)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if _, err := io.WriteString(w, "payload"); err != nil {
				t.Fatal(err)
			}
			tt.check(t, w.Close())
			if got := fsys.Calls(mock.OpCommit); got != tt.wantCalls {
				t.Errorf("commit calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestStorage_ListFilesRelativeRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := storage.New("warehouse", local.New())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, p := range []string{"t/a", "t/p=1/b"} {
		if err := s.CreateImmutable(ctx, p, []byte("x")); err != nil {
			t.Fatalf("CreateImmutable(%s) error = %v", p, err)
		}
	}

	files, err := s.ListFiles(ctx, "t")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(files) != 2 {
		t.Errorf("ListFiles() = %+v, want 2 files", files)
	}
}

func TestStorage_DeleteNonEmptyDir(t *testing.T) {
	fsys := mock.New()
	fsys.SetFile("/lake/t/a", []byte("x"))
	s := newStorage(t, fsys)

	if err := s.Delete(context.Background(), "t"); !errors.IsDirNotEmpty(err) {
		t.Errorf("Delete() error = %v, want directory not empty", err)
	}
}

func ptr[T any](v T) *T { return &v }

func TestStorage_ListAndMkdir(t *testing.T) {
	fsys := mock.New()
	s := newStorage(t, fsys)
	ctx := context.Background()

	if err := s.MkdirAll(ctx, "t/empty"); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	fsys.SetFile("/lake/t/a", []byte("1"))
	fsys.SetFile("/lake/t/p=1/b", []byte("22"))
	fsys.SetFile("/lake/t/p=1/c", []byte("333"))

	entries, err := s.List(ctx, "t")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("List() = %+v, want 3 entries", entries)
	}

	files, err := s.ListFiles(ctx, "t")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	var total int64
	for _, f := range files {
		if f.IsDir {
			t.Errorf("ListFiles() returned directory %s", f.Path)
		}
		total += f.Size
	}
	if len(files) != 3 || total != 6 {
		t.Errorf("ListFiles() = %+v", files)
	}

	st, err := s.Stat(ctx, "t/p=1")
	if err != nil || !st.IsDir {
		t.Errorf("Stat() = %+v, %v", st, err)
	}
	if _, err := s.List(ctx, "nope"); !storage.IsNotExist(err) {
		t.Errorf("List() of missing dir error = %v", err)
	}
}
