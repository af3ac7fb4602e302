// Package apperr defines the error kinds shared across Sowilo packages.
//
// Kinds are sentinels; an *Error wraps both its kind and the underlying cause
// so callers can test with errors.Is(err, apperr.ErrStorage) while the driver
// error stays reachable.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrStorage     = errors.New("storage error")
	ErrSchema      = errors.New("schema error")
	ErrInvalidData = errors.New("invalid data")
	ErrNotFound    = errors.New("not found")
	ErrWalk        = errors.New("walk error")
	ErrRead        = errors.New("read error")
)

// Error is a classified failure of operation Op.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Storage classifies an I/O, constraint or query failure. Returns nil for nil err.
func Storage(op string, err error) error { return wrap(ErrStorage, op, err) }

// Schema classifies a failure to create or validate the schema.
func Schema(op string, err error) error { return wrap(ErrSchema, op, err) }

// Walk classifies a failure to enumerate the document collection.
func Walk(op string, err error) error { return wrap(ErrWalk, op, err) }

// Read classifies a failure to read or hash a single document.
func Read(op string, err error) error { return wrap(ErrRead, op, err) }

// Invalid reports caller misuse.
func Invalid(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidData, Op: op, Err: fmt.Errorf(format, args...)}
}

// NotFound reports a missing row for an operation that requires one.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}
