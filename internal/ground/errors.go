// Package ground defines the error taxonomy shared by every GroundDB
// component.
package ground

import (
	"errors"
	"strings"
)

// Kind is a stable error classification surfaced to library callers and the
// CLI (as ERROR:<KIND>:<message>).
type Kind string

const (
	KindSchema            Kind = "SchemaError"
	KindValidation        Kind = "ValidationError"
	KindPathConflict      Kind = "PathConflict"
	KindNotFound          Kind = "NotFound"
	KindReference         Kind = "ReferenceError"
	KindMigrationRequired Kind = "MigrationRequired"
	KindQuery             Kind = "QueryError"
	KindIO                Kind = "IoError"
	KindIndex             Kind = "IndexError"
	KindCancelled         Kind = "Cancelled"
	KindBusy              Kind = "Busy"
)

// Error is the uniform error type returned by all public GroundDB APIs.
//
// Provides structured context (Kind, Collection, ID, Path) appended to the
// underlying message:
//
//	ValidationError: required field "title" missing (collection=posts doc_id=hello)
//
// Use [errors.As] to recover the structured fields.
type Error struct {
	Kind       Kind
	Collection string
	ID         string
	Path       string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	cause := e.cause()
	suffix := e.suffix()

	var b strings.Builder

	if e.Kind != "" {
		b.WriteString(string(e.Kind))
		b.WriteString(": ")
	}

	b.WriteString(cause)

	if suffix != "" {
		if cause != "" {
			b.WriteString(" ")
		}

		b.WriteString(suffix)
	}

	return b.String()
}

func (e *Error) String() string { return e.Error() }

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func (e *Error) cause() string {
	if e.Err == nil {
		return ""
	}

	return e.Err.Error()
}

func (e *Error) suffix() string {
	var parts []string

	if e.Collection != "" {
		parts = append(parts, "collection="+e.Collection)
	}

	if e.ID != "" {
		parts = append(parts, "doc_id="+e.ID)
	}

	if e.Path != "" {
		parts = append(parts, "doc_path="+e.Path)
	}

	if len(parts) == 0 {
		return ""
	}

	return "(" + strings.Join(parts, " ") + ")"
}

// New wraps err with a Kind and returns *Error. Returns nil if err is nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Kind: kind, Err: err}
}

// WithContext attaches document context at API boundaries. If err is
// already *Error, missing fields are filled in place; existing values are
// preserved. Returns nil if err is nil.
func WithContext(err error, collection, id, path string) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		if existing.Collection == "" && collection != "" {
			existing.Collection = collection
		}

		if existing.ID == "" && id != "" {
			existing.ID = id
		}

		if existing.Path == "" && path != "" {
			existing.Path = path
		}

		return existing
	}

	return &Error{Collection: collection, ID: id, Path: path, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Kind == kind
}

// KindOf extracts the Kind from err, or "" if err is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}

	return e.Kind
}
