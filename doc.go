/*
Package lakeio is the storage-access boundary of a table-format data lake.
It picks the file reader and writer implementation for a record payload
encoding and wraps every physical filesystem operation behind a retrying,
consistency-aware storage handle.

Key Features:
  - Codec dispatch by record type (built-in Avro, pluggable external codec, Parquet by default)
  - Raw filesystems selected by URI scheme (local, s3, ddb, mem)
  - Retry with capped exponential backoff and a retryable error pattern
  - Consistency guards for eventually consistent object stores
  - Semantic error types for better error handling
  - Prometheus metrics and structured logging

Basic Usage:

	conf := storagemodels.DefaultStorageConfig()
	conf.Retry = storagemodels.DefaultRetryConfig()
	conf.Guard.Kind = storagemodels.GuardPolling

	factory, _ := lakeio.NewIOFactory(conf)
	st, _ := factory.StorageFromConfig(ctx, "s3://lake/tables/trips")

	wf, _ := factory.WriterFactory(storagemodels.RecordTypeAvro)
	w, _ := wf.NewWriter(ctx, st, "p=2025-01-01/f1.avro", storagemodels.WithSchema(schema))
	_ = w.Write(codec.Record{"id": "t1", "fare": 12.5})
	err := w.Close() // returns once the file is visible

Errors from the handle are either the raw filesystem error (not retryable),
a *errors.StorageOperationError (retries exhausted), a
*errors.ConsistencyTimeoutError or a *errors.CancelledError.
*/
package lakeio
