package ir

import (
	"errors"
	"fmt"
)

// Code categorizes domain errors.
type Code string

const (
	// CodeInvalidParty indicates a zero, duplicate or self-referential address.
	CodeInvalidParty Code = "INVALID_PARTY"

	// CodeInvalidWindow indicates a non-future start, non-increasing stop,
	// or a deposit below one unit per second.
	CodeInvalidWindow Code = "INVALID_WINDOW"

	// CodeInvalidDelegate indicates a grant to the null identifier.
	CodeInvalidDelegate Code = "INVALID_DELEGATE"

	// CodeInvalidAction indicates an action outside the closed enumeration.
	CodeInvalidAction Code = "INVALID_ACTION"

	// CodeUnauthorized indicates a missing grant or the wrong caller role.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeNotFound indicates an unknown stream id.
	CodeNotFound Code = "NOT_FOUND"

	// CodeNotActive indicates the stream is paused or terminated.
	CodeNotActive Code = "NOT_ACTIVE"

	// CodeAlreadyActive indicates resume on a running stream.
	CodeAlreadyActive Code = "ALREADY_ACTIVE"

	// CodeNothingToWithdraw indicates zero withdrawable balance.
	CodeNothingToWithdraw Code = "NOTHING_TO_WITHDRAW"

	// CodeAmountExceedsWithdrawable indicates a request above the withdrawable balance.
	CodeAmountExceedsWithdrawable Code = "AMOUNT_EXCEEDS_WITHDRAWABLE"

	// CodeTransferFailed indicates the asset transfer port declined a pull or push.
	CodeTransferFailed Code = "TRANSFER_FAILED"

	// CodeStorageFailed indicates the journal could not persist the change.
	CodeStorageFailed Code = "STORAGE_FAILED"

	// CodeInvariantViolation indicates corrupted ledger bookkeeping.
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
)

// Sentinels for errors.Is. Matching is by Code only.
var (
	ErrInvalidParty              = &Error{Code: CodeInvalidParty}
	ErrInvalidWindow             = &Error{Code: CodeInvalidWindow}
	ErrInvalidDelegate           = &Error{Code: CodeInvalidDelegate}
	ErrInvalidAction             = &Error{Code: CodeInvalidAction}
	ErrUnauthorized              = &Error{Code: CodeUnauthorized}
	ErrNotFound                  = &Error{Code: CodeNotFound}
	ErrNotActive                 = &Error{Code: CodeNotActive}
	ErrAlreadyActive             = &Error{Code: CodeAlreadyActive}
	ErrNothingToWithdraw         = &Error{Code: CodeNothingToWithdraw}
	ErrAmountExceedsWithdrawable = &Error{Code: CodeAmountExceedsWithdrawable}
	ErrTransferFailed            = &Error{Code: CodeTransferFailed}
	ErrStorageFailed             = &Error{Code: CodeStorageFailed}
	ErrInvariantViolation        = &Error{Code: CodeInvariantViolation}
)

// Error is a domain error with a machine-readable code.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// StreamID identifies the affected stream, if any.
	StreamID StreamID

	// Cause is the wrapped underlying error (transfer or storage failures).
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.StreamID != 0 {
		msg = fmt.Sprintf("%s (stream=%d)", msg, e.StreamID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a domain error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// StreamError creates a domain error bound to a stream.
func StreamError(code Code, id StreamID, message string) *Error {
	return &Error{Code: code, Message: message, StreamID: id}
}

// WrapError creates a domain error that wraps an underlying cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from err. Returns "" for nil or foreign errors.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err is a domain error with the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
