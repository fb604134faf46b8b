/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package parquet

import (
	"context"
	"testing"

	"github.com/suparena/lakeio/codec"
	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/registry"
	"github.com/suparena/lakeio/storage"
	"github.com/suparena/lakeio/storage/mock"
	"github.com/suparena/lakeio/storagemodels"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New("/lake", mock.New())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestParquetRoundTrip(t *testing.T) {
	for _, compression := range []string{"snappy", "zstd", "gzip", "none"} {
		t.Run(compression, func(t *testing.T) {
			st := newTestStorage(t)
			ctx := context.Background()

			w, err := NewWriterFactory(storagemodels.DefaultStorageConfig()).NewWriter(ctx, st, "trips/p=1/f1.parquet",
				storagemodels.WithSchema(`{"fields":["rider"]}`), storagemodels.WithCompression(compression))
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			in := []codec.Record{
				{RecordKeyField: "t1", PartitionPathField: "p=1", "rider": "alice", "fare": 12.5},
				{RecordKeyField: "t2", PartitionPathField: "p=1", "rider": "bob", "fare": 7.25},
				{"rider": "carol"},
			}
			for _, rec := range in {
				if err := w.Write(rec); err != nil {
					t.Fatalf("Write() error = %v", err)
				}
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			r, err := NewReaderFactory(storagemodels.DefaultStorageConfig()).NewReader(ctx, st, "trips/p=1/f1.parquet")
			if err != nil {
				t.Fatalf("NewReader() error = %v", err)
			}
			defer r.Close()
			if r.Schema() != `{"fields":["rider"]}` {
				t.Errorf("Schema() = %q", r.Schema())
			}

			out, err := codec.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if len(out) != len(in) {
				t.Fatalf("read %d records, want %d", len(out), len(in))
			}
			for i := range in {
				if len(out[i]) != len(in[i]) {
					t.Errorf("record %d = %v, want %v", i, out[i], in[i])
					continue
				}
				for k, v := range in[i] {
					if out[i][k] != v {
						t.Errorf("record %d field %s = %v (%T), want %v", i, k, out[i][k], out[i][k], v)
					}
				}
			}
		})
	}
}

func TestParquetErrors(t *testing.T) {
	ctx := context.Background()
	st := newTestStorage(t)

	_, err := NewWriterFactory(storagemodels.DefaultStorageConfig()).NewWriter(ctx, st, "a.parquet", storagemodels.WithCompression("lzo"))
	if !errors.IsValidationError(err) {
		t.Errorf("NewWriter() error = %v, want validation error", err)
	}

	if _, err := NewReaderFactory(storagemodels.DefaultStorageConfig()).NewReader(ctx, st, "missing.parquet"); !storage.IsNotExist(err) {
		t.Errorf("NewReader() of missing file error = %v", err)
	}
}

func TestRegistered(t *testing.T) {
	rf, err := registry.GetReaderFactoryFunc(Format)
	if err != nil {
		t.Fatalf("GetReaderFactoryFunc() error = %v", err)
	}
	f, err := rf(storagemodels.DefaultStorageConfig())
	if err != nil || f.Format() != Format {
		t.Errorf("reader factory = %v, %v", f, err)
	}
	if _, err := registry.GetWriterFactoryFunc(Format); err != nil {
		t.Errorf("GetWriterFactoryFunc() error = %v", err)
	}
}
