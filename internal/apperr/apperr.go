// Package apperr defines the error taxonomy shared by the pipeline,
// the proximity engine and the HTTP surface.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how callers should react to it.
type Kind string

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = "unknown"

	// KindConfigurationMissing means a required external dependency is
	// not configured; the feature degrades to a no-op.
	KindConfigurationMissing Kind = "configuration_missing"

	// KindTransientIO means a network or database call failed and the
	// work is retried on the next cycle.
	KindTransientIO Kind = "transient_io"

	// KindValidation means input or collaborator output was malformed.
	KindValidation Kind = "validation_failure"

	// KindNotFound means the referenced entity does not exist or is deleted.
	KindNotFound Kind = "not_found"
)

// Error is a classified error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and the operation that failed.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func ConfigurationMissing(op string, format string, args ...any) error {
	return Errorf(KindConfigurationMissing, op, format, args...)
}

func Transient(op string, err error) error { return New(KindTransientIO, op, err) }

func Validation(op string, format string, args ...any) error {
	return Errorf(KindValidation, op, format, args...)
}

func NotFound(op string, format string, args ...any) error {
	return Errorf(KindNotFound, op, format, args...)
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
