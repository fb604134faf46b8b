/*
Package storagemodels defines the value objects shared across lakeio.

Key Types:

RecordType:
Closed set of record payload tags used to pick a codec:

	rt, _ := storagemodels.ParseRecordType("avro") // RecordTypeAvro

RetryConfig:
Immutable retry parameters handed to a storage handle at construction:

	cfg := storagemodels.RetryConfig{
	    Enabled:               true,
	    MaxRetryCount:         3,
	    InitialRetryInterval:  100 * time.Millisecond,
	    MaxRetryInterval:      800 * time.Millisecond,
	    RetryableErrorPattern: `SlowDown|InternalError|timeout`,
	}

GuardConfig:
Which consistency guard to build and how long it may wait:

	guard := storagemodels.DefaultGuardConfig()
	guard.Kind = storagemodels.GuardPolling
	guard.MaxWait = 2 * time.Second

WriterOptions:
Functional options for codec writers:

	opts := []storagemodels.WriterOption{
	    storagemodels.WithSchema(schemaJSON),
	    storagemodels.WithCompression("snappy"),
	    storagemodels.WithOverwrite(true),
	}

These types carry no behaviour beyond validation; every component receives
them explicitly so handles with different policies coexist.
*/
package storagemodels
