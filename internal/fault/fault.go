// Package fault defines the machine-readable error taxonomy shared by the
// ingest pipeline. Every failure crossing a component boundary carries a Kind
// (stable code surfaced to callers) plus free-text detail, and optionally
// wraps the underlying cause.
package fault

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error code.
type Kind string

const (
	// Input errors: surfaced to the caller, never retried.
	KindMissingFile         Kind = "MissingFile"
	KindProfileNotFound     Kind = "ProfileNotFound"
	KindObjectNotFound      Kind = "ObjectNotFound"
	KindFileNotSupported    Kind = "FileNotSupported"
	KindInvalidWidth        Kind = "InvalidWidth"
	KindInvalidHeight       Kind = "InvalidHeight"
	KindInvalidRatio        Kind = "InvalidRatio"
	KindInvalidOutputFormat Kind = "InvalidOutputFormat"

	// Processing and delivery errors.
	KindTransform         Kind = "TransformFailed"
	KindStorage           Kind = "StorageFailed"
	KindMultipartProtocol Kind = "MultipartProtocol"

	// KindInternal covers failures with no more specific classification.
	KindInternal Kind = "Internal"
)

// Error pairs a Kind with human-readable detail and an optional cause.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error without a wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain, defaulting to KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether the error chain carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsInput reports whether the error is caller-correctable (no retry).
func IsInput(err error) bool {
	switch KindOf(err) {
	case KindMissingFile, KindProfileNotFound, KindObjectNotFound,
		KindFileNotSupported, KindInvalidWidth, KindInvalidHeight,
		KindInvalidRatio, KindInvalidOutputFormat:
		return true
	}
	return false
}
