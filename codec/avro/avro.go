/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package avro reads and writes records as Avro object container files.
// It is the built-in codec for storagemodels.RecordTypeAvro.
package avro

import (
	"context"
	"fmt"
	"io"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
	"github.com/suparena/lakeio/codec"
	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/registry"
	"github.com/suparena/lakeio/storagemodels"
)

// Format is the codec name.
const Format = "avro"

// schemaKey is the OCF header entry holding the writer schema.
const schemaKey = "avro.schema"

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

// ReaderFactory opens Avro container files.
type ReaderFactory struct{}

// NewReaderFactory creates an Avro reader factory. The configuration is unused.
func NewReaderFactory(storagemodels.StorageConfig) *ReaderFactory {
	return &ReaderFactory{}
}

func (f *ReaderFactory) Format() string { return Format }

// NewReader opens path and reads the container header.
func (f *ReaderFactory) NewReader(ctx context.Context, st codec.FileStorage, path string) (codec.FileReader, error) {
	rc, err := st.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	dec, err := ocf.NewDecoder(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("read avro header of %s: %w", path, err)
	}
	return &reader{rc: rc, dec: dec, schema: string(dec.Metadata()[schemaKey])}, nil
}

type reader struct {
	rc     io.ReadCloser
	dec    *ocf.Decoder
	schema string
}

func (r *reader) Schema() string { return r.schema }

func (r *reader) Read() (codec.Record, error) {
	if !r.dec.HasNext() {
		if err := r.dec.Error(); err != nil {
			return nil, fmt.Errorf("decode avro block: %w", err)
		}
		return nil, io.EOF
	}
	var rec codec.Record
	if err := r.dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode avro record: %w", err)
	}
	return rec, nil
}

func (r *reader) Close() error {
	return r.rc.Close()
}

// WriterFactory creates Avro container files.
type WriterFactory struct{}

// NewWriterFactory creates an Avro writer factory. The configuration is unused.
func NewWriterFactory(storagemodels.StorageConfig) *WriterFactory {
	return &WriterFactory{}
}

func (f *WriterFactory) Format() string { return Format }

// NewWriter creates path and writes the container header. WithSchema is required.
func (f *WriterFactory) NewWriter(ctx context.Context, st codec.FileStorage, path string, opts ...storagemodels.WriterOption) (codec.FileWriter, error) {
	o := storagemodels.DefaultWriterOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Schema == "" {
		return nil, errors.NewValidationError("Schema", "avro writer requires a schema")
	}
	schema, err := avro.Parse(o.Schema)
	if err != nil {
		return nil, errors.NewValidationError("Schema", err.Error())
	}
	codecName, err := compression(o.Compression)
	if err != nil {
		return nil, err
	}

	wc, err := st.Create(ctx, path, o.Overwrite)
	if err != nil {
		return nil, err
	}
	enc, err := ocf.NewEncoderWithSchema(schema, wc, ocf.WithCodec(codecName))
	if err != nil {
		wc.Close()
		return nil, fmt.Errorf("create avro encoder: %w", err)
	}
	return &writer{wc: wc, enc: enc}, nil
}

func compression(name string) (ocf.CodecName, error) {
	switch name {
	case "", "null", "none", "uncompressed":
		return ocf.Null, nil
	case "deflate":
		return ocf.Deflate, nil
	case "snappy":
		return ocf.Snappy, nil
	case "zstd", "zstandard":
		return ocf.ZStandard, nil
	default:
		return "", errors.NewValidationError("Compression", "unsupported avro codec "+name)
	}
}

type writer struct {
	wc     io.WriteCloser
	enc    *ocf.Encoder
	closed bool
}

func (w *writer) Write(rec codec.Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode avro record: %w", err)
	}
	return nil
}

// Close flushes the last block and closes the file.
func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.enc.Close(); err != nil {
		w.wc.Close()
		return fmt.Errorf("close avro encoder: %w", err)
	}
	return w.wc.Close()
}
