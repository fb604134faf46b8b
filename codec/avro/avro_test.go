/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package avro

import (
	"context"
	"io"
	"testing"

	"github.com/suparena/lakeio/codec"
	"github.com/suparena/lakeio/errors"
	"github.com/suparena/lakeio/storage"
	"github.com/suparena/lakeio/storage/mock"
	"github.com/suparena/lakeio/storagemodels"
)

const tripSchema = `{
	"type": "record",
	"name": "Trip",
	"fields": [
		{"name": "id", "type": "string"},
		{"name": "rider", "type": "string"},
		{"name": "fare", "type": "double"},
		{"name": "ts", "type": "long"}
	]
}`

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New("/lake", mock.New())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAvroRoundTrip(t *testing.T) {
	for _, compression := range []string{"null", "deflate", "snappy", "zstd"} {
		t.Run(compression, func(t *testing.T) {
			st := newTestStorage(t)
			ctx := context.Background()

			w, err := NewWriterFactory(storagemodels.DefaultStorageConfig()).NewWriter(ctx, st, "trips/f1.avro",
				storagemodels.WithSchema(tripSchema), storagemodels.WithCompression(compression))
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			in := []codec.Record{
				{"id": "t1", "rider": "alice", "fare": 12.5, "ts": int64(1700000000)},
				{"id": "t2", "rider": "bob", "fare": 7.25, "ts": int64(1700000060)},
			}
			for _, rec := range in {
				if err := w.Write(rec); err != nil {
					t.Fatalf("Write() error = %v", err)
				}
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			r, err := NewReaderFactory(storagemodels.DefaultStorageConfig()).NewReader(ctx, st, "trips/f1.avro")
			if err != nil {
				t.Fatalf("NewReader() error = %v", err)
			}
			defer r.Close()
			if r.Schema() == "" {
				t.Error("Schema() is empty")
			}

			out, err := codec.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if len(out) != len(in) {
				t.Fatalf("read %d records, want %d", len(out), len(in))
			}
			for i := range in {
				if out[i]["id"] != in[i]["id"] || out[i]["fare"] != in[i]["fare"] || out[i]["ts"] != in[i]["ts"] {
					t.Errorf("record %d = %v, want %v", i, out[i], in[i])
				}
			}
			if _, err := r.Read(); err != io.EOF {
				t.Errorf("Read() after end error = %v, want io.EOF", err)
			}
		})
	}
}

func TestAvroWriterOptions(t *testing.T) {
	ctx := context.Background()
	f := NewWriterFactory(storagemodels.DefaultStorageConfig())

	tests := []struct {
		name string
		opts []storagemodels.WriterOption
	}{
		{"missing schema", nil},
		{"invalid schema", []storagemodels.WriterOption{storagemodels.WithSchema(`{"type": "nope"}`)}},
		{"unknown compression", []storagemodels.WriterOption{storagemodels.WithSchema(tripSchema), storagemodels.WithCompression("lzo")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStorage(t)
			if _, err := f.NewWriter(ctx, st, "a.avro", tt.opts...); !errors.IsValidationError(err) {
				t.Errorf("NewWriter() error = %v, want validation error", err)
			}
		})
	}

	t.Run("existing file", func(t *testing.T) {
		st := newTestStorage(t)
		w, err := f.NewWriter(ctx, st, "a.avro", storagemodels.WithSchema(tripSchema))
		if err != nil {
			t.Fatal(err)
		}
		w.Close()
		if _, err := f.NewWriter(ctx, st, "a.avro", storagemodels.WithSchema(tripSchema)); err == nil {
			t.Error("NewWriter() over existing file succeeded without WithOverwrite")
		}
		w, err = f.NewWriter(ctx, st, "a.avro", storagemodels.WithSchema(tripSchema), storagemodels.WithOverwrite(true))
		if err != nil {
			t.Fatalf("NewWriter() with overwrite error = %v", err)
		}
		w.Close()
	})
}

func TestAvroReaderErrors(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()
	f := NewReaderFactory(storagemodels.DefaultStorageConfig())

	if _, err := f.NewReader(ctx, st, "missing.avro"); !storage.IsNotExist(err) {
		t.Errorf("NewReader() of missing file error = %v", err)
	}

	w, _ := st.Create(ctx, "garbage.avro", false)
	io.WriteString(w, "not an avro file")
	w.Close()
	if _, err := f.NewReader(ctx, st, "garbage.avro"); err == nil {
		t.Error("NewReader() accepted a file without an OCF header")
	}
}
