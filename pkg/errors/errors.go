// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the typed errors surfaced by the authorization core.
// Domain errors carry a stable machine-readable code so HTTP layers can map
// them to wire-level OAuth2/UMA error responses without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Stable error codes.
const (
	// CodeInvalidArgument is returned when a required input is nil or blank.
	CodeInvalidArgument = "invalid_argument"

	// CodeInvalidRequest is returned when a request parameter is missing or malformed.
	CodeInvalidRequest = "invalid_request"

	// CodeInvalidTicket is returned when a UMA ticket does not exist or was
	// issued to a different client.
	CodeInvalidTicket = "invalid_ticket"

	// CodeExpiredTicket is returned when a UMA ticket is past its expiration.
	CodeExpiredTicket = "expired_ticket"

	// CodeInternal is returned for server-side invariant violations, such as a
	// referenced resource set that no longer exists.
	CodeInternal = "internal"
)

// Error is a domain error with a stable code.
type Error struct {
	// Code is the machine-readable error code.
	Code string

	// Message is the human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a domain error with the given code.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error wrapping a cause.
func Wrap(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NewInvalidArgument reports a nil or blank required input. These are
// programming errors at the call site and are never retried.
func NewInvalidArgument(name string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("%s must not be empty", name)}
}

// IsCode reports whether err is (or wraps) a domain error with the given code.
func IsCode(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
