// Package modelcontainer implements the model container runtime: a
// long-lived process that loads one model, listens on a local socket, and
// answers inference requests against frames the video kernel has already
// decoded into shared memory.
package modelcontainer

import (
	"errors"
	"fmt"
)

// Error is a structured container error carrying the failing operation, its
// category, and an optional wrapped cause.
type Error struct {
	Op    string    // operation that failed, e.g. "decode_request", "read_frame"
	Code  ErrorCode // error category
	Msg   string    // human-readable message
	Inner error     // wrapped error, if any
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("modelcontainer: %s: %s (%s)", e.Op, e.Msg, e.Code)
	}
	return fmt.Sprintf("modelcontainer: %s (%s)", e.Msg, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is the error taxonomy: protocol, validation, frame, inference,
// descriptor, and resource errors, each with distinct propagation rules.
type ErrorCode string

const (
	// ErrCodeProtocol covers framing violations, oversize messages, and bad
	// UTF-8/JSON. These close the connection with no response.
	ErrCodeProtocol ErrorCode = "protocol_error"

	// ErrCodeValidation covers missing/mistyped request fields and model_id
	// mismatch. These produce an in-band error response.
	ErrCodeValidation ErrorCode = "validation_error"

	// ErrCodeFrame covers missing region, permission denied, size mismatch,
	// and unsupported format. In-band error response.
	ErrCodeFrame ErrorCode = "frame_error"

	// ErrCodeInference covers a runtime exception or device fault during the
	// forward pass. In-band error response.
	ErrCodeInference ErrorCode = "inference_error"

	// ErrCodeDescriptor covers startup-time descriptor validation failures.
	// Never observed at request time; marks a model UNAVAILABLE.
	ErrCodeDescriptor ErrorCode = "descriptor_error"

	// ErrCodeResource covers a required accelerator being absent at startup.
	// Startup-fatal: the process exits non-zero.
	ErrCodeResource ErrorCode = "resource_error"
)

// NewError creates a structured error with no wrapped cause.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps an existing error under the given operation and code.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error of the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// InBandResponse reports whether errors of this code produce a framed error
// response (true) or a bare connection close (false, protocol errors only).
// It returns true for every code other than ErrCodeProtocol, including the
// startup-only descriptor and resource codes, which never reach a connection.
func (c ErrorCode) InBandResponse() bool {
	return c != ErrCodeProtocol
}
