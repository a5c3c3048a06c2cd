// Package domainerrors defines the coded error vocabulary shared by services
// and transport. Stores speak pkg/sentinel; services translate those facts
// into coded errors that carry enough context to pick a failure policy
// (redirect target, HTTP status, log severity) without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure for routing and logging decisions.
type Code string

const (
	// CodeInvalidTenant marks a tenant id outside the configured closed set.
	// Always a client error, never retried.
	CodeInvalidTenant Code = "invalid_tenant"

	// CodeMissingAuthState marks a callback with no usable pre-auth record:
	// never created, already consumed, or the pointer cookie is gone.
	CodeMissingAuthState Code = "missing_auth_state"

	// CodeExpiredAuthState marks a pre-auth record found but past its TTL.
	CodeExpiredAuthState Code = "expired_auth_state"

	// CodeCSRFMismatch marks a state value that does not match the stored one.
	// Treated as an attack; the login must restart.
	CodeCSRFMismatch Code = "csrf_mismatch"

	// CodeProviderError covers discovery, token exchange, and user-info
	// failures from the upstream issuer. Not retried inline.
	CodeProviderError Code = "provider_error"

	// CodeIncompleteProviderResponse marks a provider response missing the
	// access token, expiry, or email claim. Fatal for the login attempt.
	CodeIncompleteProviderResponse Code = "incomplete_provider_response"

	// CodeConfigMissing marks a deployment misconfiguration. Fails fast,
	// never silently defaulted.
	CodeConfigMissing Code = "config_missing"

	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "internal"
)

// Error is a coded error with an operator-facing message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
