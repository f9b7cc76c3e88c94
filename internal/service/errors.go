package service

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable failure class reported to callers.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindStore        ErrorKind = "store"
	KindIO           ErrorKind = "io"
	KindPipelineStep ErrorKind = "pipeline_step"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInternal     ErrorKind = "internal"
)

// Error carries a kind plus, for pipeline failures, the step and its diagnostics.
type Error struct {
	Kind    ErrorKind
	Message string
	Step    string
	Output  string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return e.Message + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func validationError(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

// KindOf classifies any error returned by this package.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
