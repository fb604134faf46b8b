/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when a file or registration is not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when attempting to create a file that already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedRecordType is returned when no codec exists for a record type
	ErrUnsupportedRecordType = errors.New("unsupported record type")

	// ErrFactoryConstruction is returned when an external codec factory cannot be built
	ErrFactoryConstruction = errors.New("factory construction failed")

	// ErrStorageOperation is returned when a storage operation exhausted its retries
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrConsistencyTimeout is returned when a consistency guard gave up waiting
	ErrConsistencyTimeout = errors.New("consistency check timed out")

	// ErrCancelled is returned when the caller's context tripped mid-retry or mid-wait
	ErrCancelled = errors.New("operation cancelled")

	// ErrDirNotEmpty is returned when deleting a directory that has entries
	ErrDirNotEmpty = errors.New("directory not empty")
)

// NotFoundError represents an error when a path or name is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyExistsError represents an error when a path already exists
type AlreadyExistsError struct {
	Type string
	Key  string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Type, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// UnsupportedRecordTypeError names a record type no codec is known for.
type UnsupportedRecordTypeError struct {
	RecordType string
}

func (e *UnsupportedRecordTypeError) Error() string {
	return fmt.Sprintf("%s record type not supported", e.RecordType)
}

func (e *UnsupportedRecordTypeError) Is(target error) bool {
	return target == ErrUnsupportedRecordType
}

// FactoryConstructionError wraps the cause of a failed external codec lookup.
type FactoryConstructionError struct {
	Name string
	Kind string // "reader" or "writer"
	Err  error
}

func (e *FactoryConstructionError) Error() string {
	return fmt.Sprintf("unable to create %s %s factory: %v", e.Name, e.Kind, e.Err)
}

func (e *FactoryConstructionError) Is(target error) bool {
	return target == ErrFactoryConstruction
}

func (e *FactoryConstructionError) Unwrap() error {
	return e.Err
}

// StorageOperationError reports a raw operation that kept failing after all retries.
type StorageOperationError struct {
	Op       string
	Path     string
	Attempts int
	Err      error
}

func (e *StorageOperationError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Op, e.Path, e.Attempts, e.Err)
}

func (e *StorageOperationError) Is(target error) bool {
	return target == ErrStorageOperation
}

func (e *StorageOperationError) Unwrap() error {
	return e.Err
}

// ConsistencyTimeoutError reports a visibility condition that never converged.
type ConsistencyTimeoutError struct {
	Path      string
	Condition string
	Checks    int
	Waited    time.Duration
}

func (e *ConsistencyTimeoutError) Error() string {
	return fmt.Sprintf("consistency check timed out: %s never reached %q after %d checks (%s)",
		e.Path, e.Condition, e.Checks, e.Waited.Round(time.Millisecond))
}

func (e *ConsistencyTimeoutError) Is(target error) bool {
	return target == ErrConsistencyTimeout
}

// CancelledError reports that the context was done between attempts or checks.
type CancelledError struct {
	Op   string
	Path string
	Err  error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s %s cancelled: %v", e.Op, e.Path, e.Err)
}

func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

func (e *CancelledError) Unwrap() error {
	return e.Err
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(kind, key string) error {
	return &NotFoundError{Type: kind, Key: key}
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(kind, key string) error {
	return &AlreadyExistsError{Type: kind, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewUnsupportedRecordTypeError creates a new UnsupportedRecordTypeError
func NewUnsupportedRecordTypeError(recordType string) error {
	return &UnsupportedRecordTypeError{RecordType: recordType}
}

// NewFactoryConstructionError creates a new FactoryConstructionError
func NewFactoryConstructionError(name, kind string, cause error) error {
	return &FactoryConstructionError{Name: name, Kind: kind, Err: cause}
}

// NewStorageOperationError creates a new StorageOperationError
func NewStorageOperationError(op, path string, attempts int, cause error) error {
	return &StorageOperationError{Op: op, Path: path, Attempts: attempts, Err: cause}
}

// NewConsistencyTimeoutError creates a new ConsistencyTimeoutError
func NewConsistencyTimeoutError(path, condition string, checks int, waited time.Duration) error {
	return &ConsistencyTimeoutError{Path: path, Condition: condition, Checks: checks, Waited: waited}
}

// NewCancelledError creates a new CancelledError
func NewCancelledError(op, path string, cause error) error {
	return &CancelledError{Op: op, Path: path, Err: cause}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsUnsupportedRecordType checks if an error is an unsupported record type error
func IsUnsupportedRecordType(err error) bool {
	return errors.Is(err, ErrUnsupportedRecordType)
}

// IsFactoryConstruction checks if an error is a factory construction error
func IsFactoryConstruction(err error) bool {
	return errors.Is(err, ErrFactoryConstruction)
}

// IsStorageOperation checks if an error is a storage operation error
func IsStorageOperation(err error) bool {
	return errors.Is(err, ErrStorageOperation)
}

// IsConsistencyTimeout checks if an error is a consistency timeout error
func IsConsistencyTimeout(err error) bool {
	return errors.Is(err, ErrConsistencyTimeout)
}

// IsCancelled checks if an error is a cancellation error
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsDirNotEmpty checks if an error reports a non-empty directory
func IsDirNotEmpty(err error) bool {
	return errors.Is(err, ErrDirNotEmpty)
}
