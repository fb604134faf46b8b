/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"fmt"
	"strings"
	"time"
)

// RecordType identifies the in-memory record representation a reader must
// produce or a writer must consume.
type RecordType int

const (
	// RecordTypeAvro is served by the built-in Avro object container codec.
	RecordTypeAvro RecordType = iota
	// RecordTypeExternal is served by a codec registered by name at process start.
	RecordTypeExternal
)

func (r RecordType) String() string {
	switch r {
	case RecordTypeAvro:
		return "AVRO"
	case RecordTypeExternal:
		return "EXTERNAL"
	default:
		return fmt.Sprintf("RecordType(%d)", int(r))
	}
}

// ParseRecordType maps a tag such as "avro" or "EXTERNAL" to its RecordType.
func ParseRecordType(s string) (RecordType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AVRO":
		return RecordTypeAvro, nil
	case "EXTERNAL":
		return RecordTypeExternal, nil
	}
	return 0, fmt.Errorf("unknown record type %q", s)
}

// FileStatus describes one entry of a listing.
type FileStatus struct {
	// Path is the full path of the entry, including the scheme-specific root.
	Path string
	// Size in bytes; zero for directories.
	Size int64
	// IsDir is true for directories and common prefixes.
	IsDir bool
	// ModifiedAt is zero when the backend does not report it.
	ModifiedAt time.Time
}

// Visibility is the state a consistency guard waits for.
type Visibility string

const (
	// VisibilityAppear means the path must be observable.
	VisibilityAppear Visibility = "appear"
	// VisibilityDisappear means the path must no longer be observable.
	VisibilityDisappear Visibility = "disappear"
)
