/*
Package codec defines the reader and writer factories lakeio dispatches to
for each record payload type.

Implementations:
  - avro: Avro object container files (built in, RecordTypeAvro)
  - parquet: columnar files registered by name for RecordTypeExternal

Readers and writers are short-lived and single-owner:

	r, err := factory.NewReader(ctx, handle, "2025/01/part-0001.avro")
	if err != nil {
	    return err
	}
	defer r.Close()
	records, err := codec.ReadAll(r)
*/
package codec
