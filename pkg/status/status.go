// Package status defines the error taxonomy shared by every fallible
// operation in the cgroup runtime: kernel file access, controller
// operations, and resource-handler updates all return a *Status (or plain
// nil) rather than an ad-hoc error.
package status

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Code is a closed set of outcomes an operation can report, matching the
// taxonomy in spec.md section 6.
type Code int

const (
	// OK indicates success. Operations that succeed return a nil *Status,
	// never a Status with Code OK; the constant exists for completeness.
	OK Code = iota
	NotFound
	AlreadyExists
	FailedPrecondition
	InvalidArgument
	OutOfRange
	Internal
	Cancelled
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case FailedPrecondition:
		return "FailedPrecondition"
	case InvalidArgument:
		return "InvalidArgument"
	case OutOfRange:
		return "OutOfRange"
	case Internal:
		return "Internal"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Status is the error type returned by every operation in this module.
type Status struct {
	code    Code
	message string
	cause   error
}

// New creates a Status with the given code and formatted message.
func New(code Code, format string, args ...interface{}) *Status {
	return &Status{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap annotates cause with a code and message, preserving it for
// %+v-style stack formatting via github.com/pkg/errors.
func Wrap(code Code, cause error, format string, args ...interface{}) *Status {
	if cause == nil {
		return New(code, format, args...)
	}
	return &Status{
		code:    code,
		message: fmt.Sprintf(format, args...),
		cause:   pkgerrors.WithStack(cause),
	}
}

func (s *Status) Error() string {
	if s == nil {
		return "<nil status>"
	}
	if s.cause != nil {
		return fmt.Sprintf("%s: %s: %v", s.code, s.message, s.cause)
	}
	return fmt.Sprintf("%s: %s", s.code, s.message)
}

// Code returns the status code, or OK for a nil Status.
func (s *Status) Code() Code {
	if s == nil {
		return OK
	}
	return s.code
}

// Is reports whether err is a *Status carrying the given code.
func Is(err error, code Code) bool {
	s, ok := err.(*Status)
	return ok && s.Code() == code
}

// Unwrap lets errors.Is/As and pkg/errors.Cause see through to the cause.
func (s *Status) Unwrap() error {
	if s == nil {
		return nil
	}
	return s.cause
}

// Annotatef wraps err (which may already be a *Status or a plain error)
// with additional context, preserving the original code when err is a
// *Status and defaulting to Internal otherwise.
func Annotatef(err error, format string, args ...interface{}) *Status {
	if err == nil {
		return nil
	}
	code := Internal
	if s, ok := err.(*Status); ok {
		code = s.code
	}
	return Wrap(code, err, format, args...)
}
