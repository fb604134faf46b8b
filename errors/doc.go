/*
Package errors provides semantic error types for the lakeio storage layer.

The package defines sentinel errors that can be checked using the standard
errors.Is() function or the provided helper functions:

	var (
	    ErrNotFound              = errors.New("not found")
	    ErrAlreadyExists         = errors.New("already exists")
	    ErrInvalidInput          = errors.New("invalid input")
	    ErrUnsupportedRecordType = errors.New("unsupported record type")
	    ErrFactoryConstruction   = errors.New("factory construction failed")
	    ErrStorageOperation      = errors.New("storage operation failed")
	    ErrConsistencyTimeout    = errors.New("consistency check timed out")
	    ErrCancelled             = errors.New("operation cancelled")
	)

Usage:

	w, err := handle.Create(ctx, "2025/01/part-0001.avro", false)
	if err != nil {
	    switch {
	    case errors.IsStorageOperation(err):
	        // transient failure that outlived its retries
	    case errors.IsConsistencyTimeout(err):
	        // the backend never showed the expected state
	    case errors.IsCancelled(err):
	        // the caller gave up
	    }
	    return err
	}

Typed errors carrying a cause implement Unwrap, so errors.As and errors.Is
reach the underlying filesystem error as well.
*/
package errors
