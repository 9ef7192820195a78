// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types and error handling utilities for hioload-net.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrTransportClosed  = fmt.Errorf("transport is closed")
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrOperationTimeout = fmt.Errorf("operation timeout")
	ErrNotSupported     = fmt.Errorf("operation not supported")

	// ErrBufferOverflow is returned when appending would exceed the accumulator limit.
	ErrBufferOverflow = fmt.Errorf("buffer overflow")
	// ErrInvalidFrame marks a byte sequence the session splitter cannot parse.
	ErrInvalidFrame = fmt.Errorf("invalid frame")
	// ErrSessionClosed is returned by operations on a session that is no longer open.
	ErrSessionClosed = fmt.Errorf("session is closed")
	// ErrSendTimeout is returned when a blocking send could not flush in time.
	ErrSendTimeout = fmt.Errorf("send timeout: %w", ErrOperationTimeout)
	// ErrNotSynchronous is returned by ReceiveBlocking on a session without sync receive.
	ErrNotSynchronous = fmt.Errorf("session is not in synchronous receive mode")
	// ErrSessionLimit is reported when an endpoint refuses a connection over MaxSessions.
	ErrSessionLimit = fmt.Errorf("session limit reached")
)

// ErrTimeout is returned by ReceiveBlocking when no message arrived in time.
var ErrTimeout = ErrOperationTimeout

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeTimeout
	ErrCodeNotSupported
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap maps error codes onto the sentinel errors so errors.Is works.
func (e *Error) Unwrap() error {
	switch e.Code {
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeTimeout:
		return ErrOperationTimeout
	case ErrCodeNotSupported:
		return ErrNotSupported
	default:
		return nil
	}
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
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
