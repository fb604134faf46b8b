/*
Package ddb provides a DynamoDB implementation of the storage.FileSystem interface.

The FileSystem stores each file as one item of a single table:

	PK          parent directory, e.g. "/tables/trips/.meta"
	SK          base name, e.g. "00001.commit"
	EntityType  "File" or "Directory"
	Data        file content (binary)
	Size        content length
	ModifiedAt  RFC3339 timestamp

Key Features:
  - Strongly consistent reads, so handles over it need no consistency guard
  - Conditional puts for create-if-absent
  - Transactional rename (put target, delete source)

Paths use the ddb scheme with the table name as host:

	ddb://lake-metadata/tables/trips/.meta/00001.commit

Files are bounded by the DynamoDB item size limit, which makes this backend
a fit for table metadata and markers rather than data files.
*/
package ddb
