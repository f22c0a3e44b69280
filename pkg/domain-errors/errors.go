// Package domainerrors defines the typed error values services return to callers.
//
// Every failure that crosses a service boundary carries a Code. Transport layers
// translate codes into status codes; tests assert on codes rather than messages.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// Authorization: caller is not the owner, or not a registered account.
	CodeUnauthorized  Code = "unauthorized"
	CodeNotRegistered Code = "not_registered"

	// Validation: bad ids, amounts out of bounds, usernames, self-transfer.
	CodeValidation        Code = "validation_error"
	CodeInvalidInput      Code = "invalid_input"
	CodeBadRequest        Code = "bad_request"
	CodeInvalidUsername   Code = "invalid_username"
	CodeUsernameTaken     Code = "username_taken"
	CodeAlreadyRegistered Code = "already_registered"

	// State: the system is paused or an entity is in the wrong state.
	CodeSystemPaused       Code = "system_paused"
	CodeInvalidState       Code = "invalid_state"
	CodeInvariantViolation Code = "invariant_violation"

	// Ledger controls.
	CodeRateLimited         Code = "rate_limited"
	CodeQuotaExceeded       Code = "quota_exceeded"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeInvalidRate         Code = "invalid_rate"

	// Infrastructure.
	CodeNotFound Code = "not_found"
	CodeConflict Code = "conflict"
	CodeTimeout  Code = "timeout"
	CodeInternal Code = "internal_error"
)

// Error is the concrete domain error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
// Returns nil when err is nil so callers can wrap unconditionally.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost domain code in the chain, or CodeInternal when
// err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// ToHTTPStatus maps a code to the status returned by the HTTP layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotRegistered:
		return http.StatusForbidden
	case CodeValidation, CodeInvalidInput, CodeBadRequest, CodeInvalidUsername:
		return http.StatusBadRequest
	case CodeUsernameTaken, CodeAlreadyRegistered, CodeConflict:
		return http.StatusConflict
	case CodeSystemPaused:
		return http.StatusServiceUnavailable
	case CodeInvalidState, CodeInvariantViolation, CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case CodeRateLimited, CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case CodeInvalidRate:
		return http.StatusBadGateway
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
