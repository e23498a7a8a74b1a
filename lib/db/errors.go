package db

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess   RetCode = iota // 0: Operation executed successfully.
	RetCOpenError                // 1: Engine unusable at startup (corruption, version mismatch, permission).
	RetCNotFound                 // 2: Key or keyspace not found.
	RetCIoError                  // 3: Underlying storage failure on a point or batch operation.
	RetCPoolPanic                // 4: A blocking dispatch panicked and was caught at the pool boundary.
	RetCWrite                    // 5: A write or commit was rejected by the engine.
	RetCUnknown                  // 6: Error of foreign origin.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCOpenError:
		return "OpenError"
	case RetCNotFound:
		return "NotFound"
	case RetCIoError:
		return "IoError"
	case RetCPoolPanic:
		return "PoolPanic"
	case RetCWrite:
		return "WriteError"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the underlying cause.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message
	Cause error   // The underlying error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("StorageError (code %s): %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("StorageError (code %s): %s", e.Code, e.Msg)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error wrapping an underlying cause.
func WrapError(code RetCode, msg string, cause error) *Error {
	return &Error{
		Code:  code,
		Msg:   msg,
		Cause: cause,
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// CodeOf extracts the RetCode from an error chain. A nil error maps to
// RetCSuccess, an error not produced by this package to RetCUnknown.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCUnknown
}

// IsNotFound reports whether err is a NotFound error of this package.
func IsNotFound(err error) bool {
	return CodeOf(err) == RetCNotFound
}
