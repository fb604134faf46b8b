/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	lakeerrors "github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/registry"
	"github.com/suparena/lakeio/storage"
	"github.com/suparena/lakeio/storagemodels"
)

// Scheme is the URI scheme served by this package.
const Scheme = "ddb"

const (
	entityFile      = "File"
	entityDirectory = "Directory"
)

func init() {
	registry.RegisterFileSystem(Scheme, func(ctx context.Context, root *url.URL, conf storagemodels.StorageConfig) (storage.FileSystem, error) {
		client, err := NewDynamoDBClient(ctx, conf.AWS, root.Host)
		if err != nil {
			return nil, err
		}
		return New(client, root.Host), nil
	})
}

// Client abstracts the DynamoDB API operations used by [FileSystem].
// The [sdk.Client] type satisfies this interface.
type Client interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	Query(ctx context.Context, params *sdk.QueryInput, optFns ...func(*sdk.Options)) (*sdk.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *sdk.TransactWriteItemsInput, optFns ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error)
}

// fileItem is one file or directory. PK is the parent directory, SK the base name.
type fileItem struct {
	PK         string    `dynamodbav:"PK"`
	SK         string    `dynamodbav:"SK"`
	EntityType string    `dynamodbav:"EntityType"`
	Data       []byte    `dynamodbav:"Data,omitempty"`
	Size       int64     `dynamodbav:"Size"`
	ModifiedAt time.Time `dynamodbav:"ModifiedAt"`
}

// NewDynamoDBClient initializes a DynamoDB client using AWS credentials.
func NewDynamoDBClient(ctx context.Context, cfg storagemodels.AWSConfig, tableName string) (*sdk.Client, error) {
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

	client := sdk.NewFromConfig(awsCfg)

	slog.Default().Info("DynamoDB client initialized", "component", "ddb_filesystem", "table", tableName, "region", awsCfg.Region)
	return client, nil
}

// FileSystem stores small files (table metadata, markers) as items of one
// DynamoDB table. Reads are strongly consistent, so no guard is needed.
// Files are limited by the DynamoDB item size.
type FileSystem struct {
	client    Client
	tableName string
}

// New creates a DynamoDB-backed FileSystem over tableName.
func New(client Client, tableName string) *FileSystem {
	return &FileSystem{client: client, tableName: tableName}
}

// clean strips the ddb://table prefix and normalises p to an absolute slash path.
func (d *FileSystem) clean(p string) string {
	p = strings.TrimPrefix(p, Scheme+"://"+d.tableName)
	return path.Clean("/" + p)
}

// path builds the storage path for a cleaned key.
func (d *FileSystem) path(key string) string {
	return Scheme + "://" + d.tableName + key
}

// itemKey builds the DynamoDB key of a cleaned path.
func itemKey(key string) map[string]types.AttributeValue {
	dir, name := path.Split(key)
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: path.Clean(dir)},
		"SK": &types.AttributeValueMemberS{Value: name},
	}
}

func (d *FileSystem) getItem(ctx context.Context, key string) (*fileItem, error) {
	out, err := d.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      &d.tableName,
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem error: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	item := new(fileItem)
	if err := attributevalue.UnmarshalMap(out.Item, item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return item, nil
}

func (d *FileSystem) putItem(ctx context.Context, item fileItem, onlyIfAbsent bool) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	input := &sdk.PutItemInput{
		TableName: &d.tableName,
		Item:      av,
	}
	if onlyIfAbsent {
		input.ConditionExpression = aws.String("attribute_not_exists(PK)")
	}
	if _, err := d.client.PutItem(ctx, input); err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return fmt.Errorf("put %s: %w", item.SK, fs.ErrExist)
		}
		return fmt.Errorf("PutItem failed: %w", err)
	}
	return nil
}

func (d *FileSystem) Create(ctx context.Context, p string, overwrite bool) (io.WriteCloser, error) {
	key := d.clean(p)
	if !overwrite {
		item, err := d.getItem(ctx, key)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return nil, fmt.Errorf("create %s: %w", p, fs.ErrExist)
		}
	}
	return &writer{ctx: ctx, fs: d, key: key, overwrite: overwrite}, nil
}

func (d *FileSystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	item, err := d.getItem(ctx, d.clean(p))
	if err != nil {
		return nil, err
	}
	if item == nil || item.EntityType != entityFile {
		return nil, fmt.Errorf("open %s: %w", p, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(item.Data)), nil
}

// Delete removes a file or an empty directory item.
func (d *FileSystem) Delete(ctx context.Context, p string) error {
	key := d.clean(p)
	nonEmpty, err := d.hasChildren(ctx, key)
	if err != nil {
		return err
	}
	if nonEmpty {
		return fmt.Errorf("delete %s: %w", p, lakeerrors.ErrDirNotEmpty)
	}
	_, err = d.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName: &d.tableName,
		Key:       itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item in DynamoDB: %w", err)
	}
	return nil
}

// Rename moves a file in one transaction.
func (d *FileSystem) Rename(ctx context.Context, from, to string) error {
	src, dst := d.clean(from), d.clean(to)
	item, err := d.getItem(ctx, src)
	if err != nil {
		return err
	}
	if item == nil || item.EntityType != entityFile {
		return fmt.Errorf("rename %s: %w", from, fs.ErrNotExist)
	}

	dir, name := path.Split(dst)
	item.PK, item.SK = path.Clean(dir), name
	item.ModifiedAt = time.Now().UTC()
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = d.client.TransactWriteItems(ctx, &sdk.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: &d.tableName, Item: av}},
			{Delete: &types.Delete{
				TableName:           &d.tableName,
				Key:                 itemKey(src),
				ConditionExpression: aws.String("attribute_exists(PK)"),
			}},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return fmt.Errorf("rename %s: %w", from, fs.ErrNotExist)
		}
		return fmt.Errorf("TransactWriteItems failed: %w", err)
	}
	return nil
}

// List queries the partition of dir.
func (d *FileSystem) List(ctx context.Context, dir string) ([]storagemodels.FileStatus, error) {
	key := d.clean(dir)
	input := &sdk.QueryInput{
		TableName:              &d.tableName,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	}

	var out []storagemodels.FileStatus
	for {
		page, err := d.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query error: %w", err)
		}
		for _, raw := range page.Items {
			var item fileItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal item: %w", err)
			}
			out = append(out, d.status(item))
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}

	if len(out) == 0 {
		item, err := d.getItem(ctx, key)
		if err != nil {
			return nil, err
		}
		if item == nil && key != "/" {
			return nil, fmt.Errorf("list %s: %w", dir, fs.ErrNotExist)
		}
	}
	return out, nil
}

func (d *FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	_, err := d.Stat(ctx, p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Stat returns the item at p, or a directory status when p has children.
func (d *FileSystem) Stat(ctx context.Context, p string) (storagemodels.FileStatus, error) {
	key := d.clean(p)
	item, err := d.getItem(ctx, key)
	if err != nil {
		return storagemodels.FileStatus{}, err
	}
	if item != nil {
		return d.status(*item), nil
	}

	dir, err := d.hasChildren(ctx, key)
	if err != nil {
		return storagemodels.FileStatus{}, err
	}
	if !dir {
		return storagemodels.FileStatus{}, fmt.Errorf("stat %s: %w", p, fs.ErrNotExist)
	}
	return storagemodels.FileStatus{Path: d.path(key), IsDir: true}, nil
}

// hasChildren reports whether any item lives directly under key.
func (d *FileSystem) hasChildren(ctx context.Context, key string) (bool, error) {
	out, err := d.client.Query(ctx, &sdk.QueryInput{
		TableName:              &d.tableName,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: key},
		},
		Limit:          aws.Int32(1),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("query error: %w", err)
	}
	return len(out.Items) > 0, nil
}

// MkdirAll writes a directory item for dir and every missing parent.
func (d *FileSystem) MkdirAll(ctx context.Context, dir string) error {
	now := time.Now().UTC()
	for key := d.clean(dir); key != "/"; key = path.Dir(key) {
		parent, name := path.Split(key)
		err := d.putItem(ctx, fileItem{
			PK:         path.Clean(parent),
			SK:         name,
			EntityType: entityDirectory,
			ModifiedAt: now,
		}, true)
		if errors.Is(err, fs.ErrExist) {
			return nil // parents exist too
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *FileSystem) status(item fileItem) storagemodels.FileStatus {
	return storagemodels.FileStatus{
		Path:       d.path(path.Join(item.PK, item.SK)),
		Size:       item.Size,
		IsDir:      item.EntityType == entityDirectory,
		ModifiedAt: item.ModifiedAt,
	}
}

// writer buffers the file and stores it as one item on Commit or Close.
type writer struct {
	ctx       context.Context
	fs        *FileSystem
	key       string
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

// Commit stores the buffered file. It may be called again after a failure.
func (w *writer) Commit(ctx context.Context) error {
	if w.committed {
		return nil
	}
	w.closed = true
	dir, name := path.Split(w.key)
	err := w.fs.putItem(ctx, fileItem{
		PK:         path.Clean(dir),
		SK:         name,
		EntityType: entityFile,
		Data:       w.buf.Bytes(),
		Size:       int64(w.buf.Len()),
		ModifiedAt: time.Now().UTC(),
	}, !w.overwrite)
	if err != nil {
		return err
	}
	w.committed = true
	return nil
}

var (
	_ storage.FileSystem = (*FileSystem)(nil)
	_ storage.Committer  = (*writer)(nil)
)
