/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package s3 implements storage.FileSystem on Amazon S3 or any S3-compatible
// object store. Listings on such stores may lag behind writes and deletes,
// so handles over this filesystem are usually built with a polling guard.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	lakeerrors "github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/registry"
	"github.com/suparena/lakeio/storage"
	"github.com/suparena/lakeio/storagemodels"
)

// Scheme is the URI scheme served by this package.
const Scheme = "s3"

func init() {
	registry.RegisterFileSystem(Scheme, func(ctx context.Context, root *url.URL, conf storagemodels.StorageConfig) (storage.FileSystem, error) {
		client, err := NewClient(ctx, conf.AWS)
		if err != nil {
			return nil, err
		}
		return New(client, root.Host), nil
	})
}

// Client abstracts the S3 API operations used by [FileSystem].
// The [sdk.Client] type satisfies this interface.
type Client interface {
	GetObject(ctx context.Context, params *sdk.GetObjectInput, optFns ...func(*sdk.Options)) (*sdk.GetObjectOutput, error)
	PutObject(ctx context.Context, params *sdk.PutObjectInput, optFns ...func(*sdk.Options)) (*sdk.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *sdk.DeleteObjectInput, optFns ...func(*sdk.Options)) (*sdk.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *sdk.HeadObjectInput, optFns ...func(*sdk.Options)) (*sdk.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *sdk.CopyObjectInput, optFns ...func(*sdk.Options)) (*sdk.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *sdk.ListObjectsV2Input, optFns ...func(*sdk.Options)) (*sdk.ListObjectsV2Output, error)
}

// NewClient initializes an S3 client from the AWS settings. Empty keys fall
// back to the default credential chain; a non-empty endpoint switches to
// path-style addressing for S3-compatible stores.
func NewClient(ctx context.Context, cfg storagemodels.AWSConfig) (*sdk.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return sdk.NewFromConfig(awsCfg, func(o *sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// FileSystem maps s3://bucket/key paths onto objects of one bucket.
// Directories are key prefixes; MkdirAll writes a "dir/" marker object.
type FileSystem struct {
	client Client
	bucket string
}

// New creates an S3-backed FileSystem for bucket.
func New(client Client, bucket string) *FileSystem {
	return &FileSystem{client: client, bucket: bucket}
}

// key builds the object key for a storage path.
func (s *FileSystem) key(p string) string {
	p = strings.TrimPrefix(p, Scheme+"://"+s.bucket)
	return strings.Trim(p, "/")
}

// path builds the storage path for an object key.
func (s *FileSystem) path(key string) string {
	return Scheme + "://" + s.bucket + "/" + strings.TrimSuffix(key, "/")
}

// Create returns a writer that uploads its content via PutObject on Close.
// Without overwrite the upload is conditional on the key being absent.
func (s *FileSystem) Create(ctx context.Context, p string, overwrite bool) (io.WriteCloser, error) {
	key := s.key(p)
	if !overwrite {
		exists, err := s.objectExists(ctx, key)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("create %s: %w", p, fs.ErrExist)
		}
	}
	return &writer{ctx: ctx, fs: s, key: key, path: p, overwrite: overwrite}, nil
}

// Open opens the named object for reading via GetObject.
func (s *FileSystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &sdk.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("open %s: %w", p, fs.ErrNotExist)
		}
		return nil, err
	}
	return out.Body, nil
}

// Delete removes the named object and its directory marker. A prefix that
// still holds objects is not deleted. S3 DeleteObject is already idempotent.
func (s *FileSystem) Delete(ctx context.Context, p string) error {
	key := s.key(p)
	nonEmpty, err := s.hasChildren(ctx, key)
	if err != nil {
		return err
	}
	if nonEmpty {
		return fmt.Errorf("delete %s: %w", p, lakeerrors.ErrDirNotEmpty)
	}
	for _, k := range []string{key, key + "/"} {
		if _, err := s.client.DeleteObject(ctx, &sdk.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(k),
		}); err != nil {
			return err
		}
	}
	return nil
}

// hasChildren reports whether any object other than the directory marker
// lives under key.
func (s *FileSystem) hasChildren(ctx context.Context, key string) (bool, error) {
	prefix := key
	if prefix != "" {
		prefix += "/"
	}
	out, err := s.client.ListObjectsV2(ctx, &sdk.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(2),
	})
	if err != nil {
		return false, err
	}
	for _, obj := range out.Contents {
		if aws.ToString(obj.Key) != prefix {
			return true, nil
		}
	}
	return false, nil
}

// Rename copies the object to its new key and deletes the source.
func (s *FileSystem) Rename(ctx context.Context, from, to string) error {
	src, dst := s.key(from), s.key(to)
	_, err := s.client.CopyObject(ctx, &sdk.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(url.PathEscape(s.bucket + "/" + src)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("rename %s: %w", from, fs.ErrNotExist)
		}
		return err
	}
	_, err = s.client.DeleteObject(ctx, &sdk.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(src),
	})
	return err
}

// List returns the objects and common prefixes directly under dir.
func (s *FileSystem) List(ctx context.Context, dir string) ([]storagemodels.FileStatus, error) {
	prefix := s.key(dir)
	if prefix != "" {
		prefix += "/"
	}
	input := &sdk.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}

	var out []storagemodels.FileStatus
	marker := false
	for {
		page, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, cp := range page.CommonPrefixes {
			out = append(out, storagemodels.FileStatus{Path: s.path(aws.ToString(cp.Prefix)), IsDir: true})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				marker = true
				continue
			}
			st := storagemodels.FileStatus{Path: s.path(key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				st.ModifiedAt = *obj.LastModified
			}
			out = append(out, st)
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}

	if len(out) == 0 && !marker && prefix != "" {
		return nil, fmt.Errorf("list %s: %w", dir, fs.ErrNotExist)
	}
	return out, nil
}

// Exists reports whether an object or a non-empty prefix exists at p.
func (s *FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	key := s.key(p)
	exists, err := s.objectExists(ctx, key)
	if err != nil || exists {
		return exists, err
	}
	return s.prefixExists(ctx, key)
}

// Stat describes an object or a prefix.
func (s *FileSystem) Stat(ctx context.Context, p string) (storagemodels.FileStatus, error) {
	key := s.key(p)
	out, err := s.client.HeadObject(ctx, &sdk.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		st := storagemodels.FileStatus{Path: s.path(key), Size: aws.ToInt64(out.ContentLength)}
		if out.LastModified != nil {
			st.ModifiedAt = *out.LastModified
		}
		return st, nil
	}
	if !isNotFound(err) {
		return storagemodels.FileStatus{}, err
	}
	isDir, err := s.prefixExists(ctx, key)
	if err != nil {
		return storagemodels.FileStatus{}, err
	}
	if !isDir {
		return storagemodels.FileStatus{}, fmt.Errorf("stat %s: %w", p, fs.ErrNotExist)
	}
	return storagemodels.FileStatus{Path: s.path(key), IsDir: true}, nil
}

// MkdirAll writes a zero-byte directory marker.
func (s *FileSystem) MkdirAll(ctx context.Context, dir string) error {
	_, err := s.client.PutObject(ctx, &sdk.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(dir) + "/"),
		Body:   bytes.NewReader(nil),
	})
	return err
}

func (s *FileSystem) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &sdk.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *FileSystem) prefixExists(ctx context.Context, key string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &sdk.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

// writer buffers the object and uploads it on Commit or Close.
type writer struct {
	ctx       context.Context
	fs        *FileSystem
	key       string
	path      string
	overwrite bool
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
	if w.committed {
		return nil
	}
	return w.Commit(w.ctx)
}

// Commit uploads the buffered object. The buffer is kept until an upload
// succeeds, so a failed Commit can be retried.
func (w *writer) Commit(ctx context.Context) error {
	if w.committed {
		return nil
	}
	w.closed = true
	input := &sdk.PutObjectInput{
		Bucket: aws.String(w.fs.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	}
	if !w.overwrite {
		input.IfNoneMatch = aws.String("*")
	}
	if _, err := w.fs.client.PutObject(ctx, input); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("create %s: %w", w.path, fs.ErrExist)
		}
		return err
	}
	w.committed = true
	return nil
}

// isNotFound reports whether err indicates the S3 object does not exist.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}

// Compile-time interface check.
var (
	_ storage.FileSystem = (*FileSystem)(nil)
	_ storage.Committer  = (*writer)(nil)
)
