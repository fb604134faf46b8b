/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	lakeerrors "github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/storage"
)

// apiError implements smithy.APIError for test assertions.
type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey          = &apiError{code: "NoSuchKey"}
	errNotFound           = &apiError{code: "NotFound"}
	errPreconditionFailed = &apiError{code: "PreconditionFailed"}
)

// mockS3 is a thread-safe in-memory bucket.
type mockS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
	putErr   error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte), pageSize: 1000}
}

func (m *mockS3) GetObject(_ context.Context, in *sdk.GetObjectInput, _ ...func(*sdk.Options)) (*sdk.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &sdk.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *sdk.PutObjectInput, _ ...func(*sdk.Options)) (*sdk.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if aws.ToString(in.IfNoneMatch) == "*" {
		if _, ok := m.objects[*in.Key]; ok {
			return nil, errPreconditionFailed
		}
	}
	m.objects[*in.Key] = data
	return &sdk.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *sdk.DeleteObjectInput, _ ...func(*sdk.Options)) (*sdk.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &sdk.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *sdk.HeadObjectInput, _ ...func(*sdk.Options)) (*sdk.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNotFound
	}
	return &sdk.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (m *mockS3) CopyObject(_ context.Context, in *sdk.CopyObjectInput, _ ...func(*sdk.Options)) (*sdk.CopyObjectOutput, error) {
	source, err := url.PathUnescape(aws.ToString(in.CopySource))
	if err != nil {
		return nil, err
	}
	_, src, _ := strings.Cut(source, "/")
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[src]
	if !ok {
		return nil, errNoSuchKey
	}
	m.objects[*in.Key] = data
	return &sdk.CopyObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, in *sdk.ListObjectsV2Input, _ ...func(*sdk.Options)) (*sdk.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	// Collect matching keys and rolled-up prefixes in lexical order.
	seen := make(map[string]bool)
	var entries []string
	for k := range m.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		entry := k
		if delim != "" {
			if i := strings.Index(k[len(prefix):], delim); i >= 0 {
				entry = k[:len(prefix)+i+1]
			}
		}
		if !seen[entry] {
			seen[entry] = true
			entries = append(entries, entry)
		}
	}
	sort.Strings(entries)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	limit := m.pageSize
	if in.MaxKeys != nil && int(*in.MaxKeys) < limit {
		limit = int(*in.MaxKeys)
	}
	end := min(start+limit, len(entries))

	out := &sdk.ListObjectsV2Output{}
	for _, e := range entries[start:end] {
		if _, isObject := m.objects[e]; isObject && (delim == "" || e == prefix || !strings.HasSuffix(e, delim)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(e), Size: aws.Int64(int64(len(m.objects[e])))})
			continue
		}
		out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(e)})
	}
	if end < len(entries) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func newTestS3(t *testing.T) (*FileSystem, *mockS3) {
	t.Helper()
	m := newMockS3()
	return New(m, "lake"), m
}

func put(t *testing.T, s *FileSystem, p, data string, overwrite bool) error {
	t.Helper()
	w, err := s.Create(context.Background(), p, overwrite)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return w.Close()
}

func TestS3_CreateAndOpen(t *testing.T) {
	s, m := newTestS3(t)
	ctx := context.Background()

	if err := put(t, s, "s3://lake/t/a.parquet", "v1", false); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, ok := m.objects["t/a.parquet"]; !ok {
		t.Fatalf("object key not derived from path: %v", m.objects)
	}
	if err := put(t, s, "s3://lake/t/a.parquet", "v2", false); !errors.Is(err, fs.ErrExist) {
		t.Errorf("Create() over existing object error = %v, want fs.ErrExist", err)
	}
	if err := put(t, s, "s3://lake/t/a.parquet", "v3", true); err != nil {
		t.Fatalf("Create() with overwrite error = %v", err)
	}

	r, err := s.Open(ctx, "s3://lake/t/a.parquet")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "v3" {
		t.Errorf("content = %q, want v3", data)
	}

	if _, err := s.Open(ctx, "s3://lake/t/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open() of missing object error = %v", err)
	}
}

func TestS3_ConditionalPutRace(t *testing.T) {
	s, m := newTestS3(t)
	w, err := s.Create(context.Background(), "s3://lake/t/a", false)
	if err != nil {
		t.Fatal(err)
	}
	// Another writer wins between Create and Close.
	m.objects["t/a"] = []byte("other")
	io.WriteString(w, "mine")
	if err := w.Close(); !errors.Is(err, fs.ErrExist) {
		t.Errorf("Close() error = %v, want fs.ErrExist", err)
	}
	if string(m.objects["t/a"]) != "other" {
		t.Error("conditional put overwrote the object")
	}
}

func TestS3_ListAndStat(t *testing.T) {
	s, m := newTestS3(t)
	m.pageSize = 2
	ctx := context.Background()

	for _, k := range []string{"t/a", "t/b", "t/p=1/c", "t/p=2/d", "other/e"} {
		m.objects[k] = []byte(k)
	}
	if err := s.MkdirAll(ctx, "s3://lake/t/empty"); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	entries, err := s.List(ctx, "s3://lake/t")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := make(map[string]bool)
	for _, e := range entries {
		got[e.Path] = e.IsDir
	}
	want := map[string]bool{
		"s3://lake/t/a":     false,
		"s3://lake/t/b":     false,
		"s3://lake/t/p=1":   true,
		"s3://lake/t/p=2":   true,
		"s3://lake/t/empty": true,
	}
	if len(got) != len(want) {
		t.Fatalf("List() = %+v", entries)
	}
	for p, isDir := range want {
		if d, ok := got[p]; !ok || d != isDir {
			t.Errorf("entry %s: got (%v, %v), want dir=%v", p, d, ok, isDir)
		}
	}

	empty, err := s.List(ctx, "s3://lake/t/empty")
	if err != nil || len(empty) != 0 {
		t.Errorf("List() of marked empty dir = %+v, %v", empty, err)
	}
	if _, err := s.List(ctx, "s3://lake/none"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("List() of missing prefix error = %v", err)
	}

	st, err := s.Stat(ctx, "s3://lake/t/a")
	if err != nil || st.IsDir || st.Size != 3 {
		t.Errorf("Stat() file = %+v, %v", st, err)
	}
	st, err = s.Stat(ctx, "s3://lake/t/p=1")
	if err != nil || !st.IsDir {
		t.Errorf("Stat() dir = %+v, %v", st, err)
	}
	if _, err := s.Stat(ctx, "s3://lake/t/zzz"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat() missing error = %v", err)
	}

	for p, want := range map[string]bool{"s3://lake/t/a": true, "s3://lake/t/p=2": true, "s3://lake/t/q": false} {
		if ok, err := s.Exists(ctx, p); err != nil || ok != want {
			t.Errorf("Exists(%s) = %v, %v; want %v", p, ok, err, want)
		}
	}
}

func TestS3_RenameAndDelete(t *testing.T) {
	s, m := newTestS3(t)
	ctx := context.Background()
	m.objects["t/.a.tmp"] = []byte("x")

	if err := s.Rename(ctx, "s3://lake/t/.a.tmp", "s3://lake/t/a"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if _, ok := m.objects["t/.a.tmp"]; ok {
		t.Error("source not deleted")
	}
	if string(m.objects["t/a"]) != "x" {
		t.Error("target not written")
	}
	if err := s.Rename(ctx, "s3://lake/t/missing", "s3://lake/t/b"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Rename() of missing source error = %v", err)
	}

	if err := s.Delete(ctx, "s3://lake/t/a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "s3://lake/t/a"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
	if len(m.objects) != 0 {
		t.Errorf("objects left: %v", m.objects)
	}
}

func TestS3_PutError(t *testing.T) {
	s, m := newTestS3(t)
	boom := &apiError{code: "SlowDown"}
	m.putErr = boom
	if err := put(t, s, "s3://lake/t/a", "x", true); !errors.Is(err, boom) {
		t.Errorf("Close() error = %v, want %v", err, boom)
	}
}

func TestS3_CommitAfterFailure(t *testing.T) {
	s, m := newTestS3(t)
	ctx := context.Background()
	slowDown := &apiError{code: "SlowDown"}
	m.putErr = slowDown

	w, err := s.Create(ctx, "s3://lake/t/a", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, "payload"); err != nil {
		t.Fatal(err)
	}
	c := w.(storage.Committer)
	if err := c.Commit(ctx); !errors.Is(err, slowDown) {
		t.Fatalf("Commit() error = %v, want %v", err, slowDown)
	}
	if _, err := w.Write([]byte("more")); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Write() after Commit() error = %v, want fs.ErrClosed", err)
	}

	m.putErr = nil
	if err := c.Commit(ctx); err != nil {
		t.Fatalf("second Commit() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() after Commit() error = %v", err)
	}
	if string(m.objects["t/a"]) != "payload" {
		t.Errorf("object = %q, want payload", m.objects["t/a"])
	}
}

func TestS3_DeleteNonEmptyPrefix(t *testing.T) {
	s, m := newTestS3(t)
	ctx := context.Background()
	m.objects["t/p=1/"] = nil
	m.objects["t/p=1/a"] = []byte("x")

	if err := s.Delete(ctx, "s3://lake/t/p=1"); !lakeerrors.IsDirNotEmpty(err) {
		t.Errorf("Delete() of non-empty prefix error = %v, want directory not empty", err)
	}
	if _, ok := m.objects["t/p=1/a"]; !ok {
		t.Error("child removed by a rejected Delete()")
	}

	delete(m.objects, "t/p=1/a")
	if err := s.Delete(ctx, "s3://lake/t/p=1"); err != nil {
		t.Fatalf("Delete() of marker-only prefix error = %v", err)
	}
	if len(m.objects) != 0 {
		t.Errorf("objects left: %v", m.objects)
	}
}
