// Package domainerr defines the error taxonomy shared by services and handlers.
// Services return *Error values (possibly wrapped); the HTTP layer maps the
// Code to a status with apierror.FromError.
package domainerr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation   Code = "validation"
	CodeConflict     Code = "conflict"
	CodeNotFound     Code = "not_found"
	CodePrecondition Code = "precondition"
	CodeState        Code = "state"
	CodeAmbiguous    Code = "ambiguous"
	CodeCapacity     Code = "capacity"
	CodeUnauthorized Code = "unauthorized"
	CodeExternal     Code = "external"
	CodeInternal     Code = "internal"
)

// Error is a business error with a stable code and a user-facing message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, &Error{Code: CodeConflict})
// works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Message == ""
}

func newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error   { return newf(CodeValidation, format, args...) }
func Conflict(format string, args ...any) *Error     { return newf(CodeConflict, format, args...) }
func NotFound(format string, args ...any) *Error     { return newf(CodeNotFound, format, args...) }
func Precondition(format string, args ...any) *Error { return newf(CodePrecondition, format, args...) }
func State(format string, args ...any) *Error        { return newf(CodeState, format, args...) }
func Ambiguous(format string, args ...any) *Error    { return newf(CodeAmbiguous, format, args...) }
func Capacity(format string, args ...any) *Error     { return newf(CodeCapacity, format, args...) }
func Unauthorized(format string, args ...any) *Error { return newf(CodeUnauthorized, format, args...) }

// External wraps a partner failure (Winred, Siigo). The message is the partner's.
func External(err error, format string, args ...any) *Error {
	e := newf(CodeExternal, format, args...)
	e.Err = err
	return e
}

// Internal wraps an unexpected failure. Its message is never shown to clients.
func Internal(err error, format string, args ...any) *Error {
	e := newf(CodeInternal, format, args...)
	e.Err = err
	return e
}

// Sentinels for errors.Is kind checks.
var (
	ErrValidation   = &Error{Code: CodeValidation}
	ErrConflict     = &Error{Code: CodeConflict}
	ErrNotFound     = &Error{Code: CodeNotFound}
	ErrPrecondition = &Error{Code: CodePrecondition}
	ErrState        = &Error{Code: CodeState}
	ErrAmbiguous    = &Error{Code: CodeAmbiguous}
	ErrCapacity     = &Error{Code: CodeCapacity}
	ErrExternal     = &Error{Code: CodeExternal}
	ErrInternal     = &Error{Code: CodeInternal}
)

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
