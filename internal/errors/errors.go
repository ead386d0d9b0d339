package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Error types for the photo sync worker
type ErrorType string

const (
	// File errors: transient, scoped to one path, never abort a batch
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"
	ErrorTypeFileIO       ErrorType = "file_io"

	// Catalog errors: database layer, roll back and retry
	ErrorTypeCatalog ErrorType = "catalog"

	// Configuration and startup precondition errors: fatal
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypePrecondition ErrorType = "precondition"
)

// FileError represents a transient fault on a single file. Handlers log
// it and skip the file; the next full sync heals any resulting drift.
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error with context
func NewFileError(op, path string, err error) *FileError {
	errorType := ErrorTypeFileIO
	if errors.Is(err, fs.ErrNotExist) {
		errorType = ErrorTypeFileNotFound
	} else if errors.Is(err, fs.ErrPermission) {
		errorType = ErrorTypePermission
	}

	return &FileError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// CatalogError represents a database-layer fault. The enclosing
// transaction must be rolled back; the batch retry loop owns recovery.
type CatalogError struct {
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewCatalogError creates a new catalog error
func NewCatalogError(op string, err error) *CatalogError {
	return &CatalogError{
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog %s failed: %v", e.Operation, e.Underlying)
}

// Unwrap returns the underlying error
func (e *CatalogError) Unwrap() error {
	return e.Underlying
}

// PreconditionError reports a broken startup invariant, such as a photo
// root that does not exist. Fatal at startup; a periodic sync logs it
// and skips the cycle.
type PreconditionError struct {
	Field  string
	Reason string
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(field, reason string) *PreconditionError {
	return &PreconditionError{Field: field, Reason: reason}
}

// Error implements the error interface
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed for %s: %s", e.Field, e.Reason)
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Key        string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(key, value string, err error) *ConfigError {
	return &ConfigError{
		Key:        key,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config error for %s: %v", e.Key, e.Underlying)
	}
	return fmt.Sprintf("config error for %s (value %q): %v", e.Key, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// IsCatalog reports whether err is (or wraps) a catalog error.
func IsCatalog(err error) bool {
	var ce *CatalogError
	return errors.As(err, &ce)
}

// IsPrecondition reports whether err is (or wraps) a precondition error.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsFile reports whether err is (or wraps) a per-file error.
func IsFile(err error) bool {
	var fe *FileError
	return errors.As(err, &fe)
}
