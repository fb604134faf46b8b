/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package parquet is the external columnar codec. It stores each record as a
// Parquet row holding the record key, the partition path and the remaining
// fields as a msgpack payload.
package parquet

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/suparena/lakeio/codec"
	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/registry"
	"github.com/suparena/lakeio/storagemodels"
	"github.com/vmihailenco/msgpack/v5"
)

// Format is the registry name of this codec.
const Format = "parquet"

// Meta fields lifted out of the payload into their own columns.
const (
	RecordKeyField     = "_record_key"
	PartitionPathField = "_partition_path"
)

// schemaKey is the key-value metadata entry holding the writer schema.
const schemaKey = "lakeio.schema"

func init() {
	registry.RegisterCodec(Format,
		func(conf storagemodels.StorageConfig) (codec.ReaderFactory, error) {
			return NewReaderFactory(conf), nil
		},
		func(conf storagemodels.StorageConfig) (codec.WriterFactory, error) {
			return NewWriterFactory(conf), nil
		},
	)
}

// row is the Parquet layout of one record.
type row struct {
	RecordKey     string `parquet:"record_key"`
	PartitionPath string `parquet:"partition_path"`
	Payload       []byte `parquet:"payload"`
}

// ReaderFactory opens Parquet files written by this codec.
type ReaderFactory struct{}

// NewReaderFactory creates a Parquet reader factory.
func NewReaderFactory(storagemodels.StorageConfig) *ReaderFactory {
	return &ReaderFactory{}
}

func (f *ReaderFactory) Format() string { return Format }

// NewReader loads path into memory; Parquet needs random access to the footer.
func (f *ReaderFactory) NewReader(ctx context.Context, st codec.FileStorage, path string) (codec.FileReader, error) {
	rc, err := st.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	src := bytes.NewReader(data)
	file, err := parquet.OpenFile(src, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open parquet file %s: %w", path, err)
	}
	schema, _ := file.Lookup(schemaKey)

	rows, err := parquet.Read[row](src, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet rows of %s: %w", path, err)
	}
	return &reader{rows: rows, schema: schema}, nil
}

type reader struct {
	rows   []row
	next   int
	schema string
}

func (r *reader) Schema() string { return r.schema }

func (r *reader) Read() (codec.Record, error) {
	if r.next >= len(r.rows) {
		return nil, io.EOF
	}
	rw := r.rows[r.next]
	r.next++

	rec := make(codec.Record)
	if len(rw.Payload) > 0 {
		dec := msgpack.NewDecoder(bytes.NewReader(rw.Payload))
		dec.UseLooseInterfaceDecoding(true)
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode payload of row %d: %w", r.next-1, err)
		}
	}
	if rw.RecordKey != "" {
		rec[RecordKeyField] = rw.RecordKey
	}
	if rw.PartitionPath != "" {
		rec[PartitionPathField] = rw.PartitionPath
	}
	return rec, nil
}

func (r *reader) Close() error {
	r.rows = nil
	return nil
}

// WriterFactory creates Parquet files.
type WriterFactory struct{}

// NewWriterFactory creates a Parquet writer factory.
func NewWriterFactory(storagemodels.StorageConfig) *WriterFactory {
	return &WriterFactory{}
}

func (f *WriterFactory) Format() string { return Format }

// NewWriter creates path. The schema, if given, is kept in the file metadata.
func (f *WriterFactory) NewWriter(ctx context.Context, st codec.FileStorage, path string, opts ...storagemodels.WriterOption) (codec.FileWriter, error) {
	o := storagemodels.DefaultWriterOptions()
	for _, opt := range opts {
		opt(&o)
	}
	compress, err := compression(o.Compression)
	if err != nil {
		return nil, err
	}

	wc, err := st.Create(ctx, path, o.Overwrite)
	if err != nil {
		return nil, err
	}
	wopts := []parquet.WriterOption{parquet.Compression(compress)}
	if o.Schema != "" {
		wopts = append(wopts, parquet.KeyValueMetadata(schemaKey, o.Schema))
	}
	return &writer{wc: wc, pw: parquet.NewGenericWriter[row](wc, wopts...)}, nil
}

func compression(name string) (compress.Codec, error) {
	switch name {
	case "", "null", "none", "uncompressed":
		return &parquet.Uncompressed, nil
	case "snappy":
		return &parquet.Snappy, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "zstd":
		return &parquet.Zstd, nil
	default:
		return nil, errors.NewValidationError("Compression", "unsupported parquet codec "+name)
	}
}

type writer struct {
	wc     io.WriteCloser
	pw     *parquet.GenericWriter[row]
	closed bool
}

func (w *writer) Write(rec codec.Record) error {
	rw := row{}
	payload := make(codec.Record, len(rec))
	for k, v := range rec {
		switch k {
		case RecordKeyField:
			rw.RecordKey = fmt.Sprint(v)
		case PartitionPathField:
			rw.PartitionPath = fmt.Sprint(v)
		default:
			payload[k] = v
		}
	}
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	rw.Payload = b
	if _, err := w.pw.Write([]row{rw}); err != nil {
		return fmt.Errorf("write parquet row: %w", err)
	}
	return nil
}

// Close writes the footer and closes the file.
func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.pw.Close(); err != nil {
		w.wc.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return w.wc.Close()
}
