// Package ferrors is the typed error taxonomy used across the VFS,
// expression lowering, and project compiler: callers classify rather than
// wrap, and every classified error carries enough context to be surfaced
// per-read without losing its origin.
package ferrors

import (
	"fmt"
	"time"
)

// Kind classifies a FileError.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindAccessDenied  Kind = "access_denied"
	KindInvalidUtf8   Kind = "invalid_utf8"
	KindOther         Kind = "other"
	KindInternalInvar Kind = "internal_invariant"
)

// FileError is a classified failure reading or resolving a file. It is the
// error half of a FileSnapshot.
type FileError struct {
	Kind       Kind
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError classifies err under op/path, defaulting to KindOther.
func NewFileError(op, path string, err error) *FileError {
	return &FileError{
		Kind:       classify(err),
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewFileErrorKind builds a FileError with an explicit Kind, bypassing
// classification (used when the caller already knows the disposition, e.g.
// an invalid-utf8 source read).
func NewFileErrorKind(kind Kind, op, path string, err error) *FileError {
	return &FileError{
		Kind:       kind,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *FileError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Kind, e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Operation, e.Underlying)
}

func (e *FileError) Unwrap() error {
	return e.Underlying
}

// Equal reports whether two FileErrors represent the same classified
// failure for invalidation purposes (same kind, same path) — it
// deliberately ignores Timestamp and the exact Underlying message so that
// two reads of an unreadable file in the same revision compare equal.
func (e *FileError) Equal(other *FileError) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Kind == other.Kind && e.Path == other.Path
}

func classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	switch {
	case isNotExist(err):
		return KindNotFound
	case isPermission(err):
		return KindAccessDenied
	default:
		return KindOther
	}
}

// ConfigError represents a malformed KDL/TOML configuration value.
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Underlying: err, Timestamp: time.Now()}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// InternalInvariant records a violated invariant that is logged and
// tolerated rather than propagated (e.g. invalidating a FileId never seen).
type InternalInvariant struct {
	Operation string
	Detail    string
	Timestamp time.Time
}

func NewInternalInvariant(op, detail string) *InternalInvariant {
	return &InternalInvariant{Operation: op, Detail: detail, Timestamp: time.Now()}
}

func (e *InternalInvariant) Error() string {
	return fmt.Sprintf("internal invariant violated in %s: %s", e.Operation, e.Detail)
}

// MultiError aggregates multiple independent errors, e.g. diagnostics
// merged from a compile pass.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
	}
}

func (e *MultiError) Unwrap() []error {
	return e.Errors
}
