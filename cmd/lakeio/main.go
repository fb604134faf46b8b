/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command lakeio inspects and manipulates files of a data lake through the
// same retrying, consistency-aware storage handles the library uses.
//
// Usage:
//
//	lakeio [flags] <command> [args]
//
// Commands:
//
//	version  - Show version information
//	ls       - List a directory
//	stat     - Describe a file or directory
//	rm       - Delete a file or directory
//	mv       - Rename a file
//	cat      - Print the records of an Avro or external-codec file as YAML
//	put      - Copy a local file in as an immutable file
//
// Configuration is read from LAKEIO_* and AWS_* environment variables (and a
// .env file), or from the YAML file given with --config.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
