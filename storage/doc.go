/*
Package storage provides the handle every physical file operation of lakeio
passes through.

A Storage handle wraps a raw FileSystem (local disk, S3, DynamoDB or the
in-memory mock) with two policies fixed at construction:

  - RetryPolicy: capped exponential backoff for errors matching a pattern
  - ConsistencyGuard: waits until writes, deletes and renames are observable

Basic Usage:

	guard, _ := storage.NewPollingGuard(fsys, storagemodels.GuardConfig{
	    InitialCheckInterval: 400 * time.Millisecond,
	    MaxCheckInterval:     5 * time.Second,
	    MaxChecks:            7,
	    MaxWait:              30 * time.Second,
	}, logger)

	st, _ := storage.New("s3://lake/tables/trips", fsys,
	    storage.WithRetryConfig(storagemodels.DefaultRetryConfig()),
	    storage.WithConsistencyGuard(guard),
	)
	if err := st.Delete(ctx, "p=1/f1.parquet"); err != nil {
	    return err
	}

Handles without options never retry and never wait.
*/
package storage
