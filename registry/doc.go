/*
Package registry maps names to the pluggable parts of lakeio.

The registry system enables:
  - External codecs served for RecordTypeExternal without reflection
  - Raw filesystem backends selected by URI scheme

Codec Registry:
Maps codec names to factory constructors taking the storage configuration:

	registry.RegisterCodec("parquet",
	    func(conf storagemodels.StorageConfig) (codec.ReaderFactory, error) {
	        return parquet.NewReaderFactory(conf), nil
	    },
	    func(conf storagemodels.StorageConfig) (codec.WriterFactory, error) {
	        return parquet.NewWriterFactory(conf), nil
	    },
	)

Filesystem Registry:
Associates URI schemes with raw filesystem constructors:

	registry.RegisterFileSystem("s3", func(ctx context.Context, root *url.URL, conf storagemodels.StorageConfig) (storage.FileSystem, error) {
	    ...
	})

The registry is thread-safe and should be populated during initialization,
typically in init() functions of the packages providing the implementation.
*/
package registry
