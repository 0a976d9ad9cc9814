// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-tcp.

package api

import "fmt"

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeAlreadyListening
	ErrCodeAddressInUse
	ErrCodeConnectionRefused
	ErrCodeHostUnreachable
	ErrCodeTransport
	ErrCodeTransportClosed
	ErrCodeDisposed
	ErrCodeSharedHandle
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid argument"
	case ErrCodeAlreadyListening:
		return "already listening"
	case ErrCodeAddressInUse:
		return "address in use"
	case ErrCodeConnectionRefused:
		return "connection refused"
	case ErrCodeHostUnreachable:
		return "host unreachable"
	case ErrCodeTransport:
		return "transport error"
	case ErrCodeTransportClosed:
		return "transport is closed"
	case ErrCodeDisposed:
		return "context disposed"
	case ErrCodeSharedHandle:
		return "shared transport handle"
	case ErrCodeAlreadyExists:
		return "resource already exists"
	case ErrCodeNotFound:
		return "resource not found"
	default:
		return "internal error"
	}
}

// Common errors used across the library. Match them with errors.Is; any
// *Error carrying the same code matches.
var (
	ErrInvalidArgument   = NewError(ErrCodeInvalidArgument, "invalid argument")
	ErrAlreadyListening  = NewError(ErrCodeAlreadyListening, "already listening")
	ErrAddressInUse      = NewError(ErrCodeAddressInUse, "address in use")
	ErrConnectionRefused = NewError(ErrCodeConnectionRefused, "connection refused")
	ErrHostUnreachable   = NewError(ErrCodeHostUnreachable, "host unreachable")
	ErrTransport         = NewError(ErrCodeTransport, "transport error")
	ErrTransportClosed   = NewError(ErrCodeTransportClosed, "transport is closed")
	ErrDisposed          = NewError(ErrCodeDisposed, "context disposed")
	ErrSharedHandle      = NewError(ErrCodeSharedHandle, "transport handle is shared and cannot be destroyed here")
	ErrAlreadyExists     = NewError(ErrCodeAlreadyExists, "resource already exists")
	ErrNotFound          = NewError(ErrCodeNotFound, "resource not found")
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Err     error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap returns a copy of the error scoped to op and caused by err.
func (e *Error) Wrap(op string, err error) *Error {
	return &Error{
		Code:    e.Code,
		Op:      op,
		Message: e.Message,
		Err:     err,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
