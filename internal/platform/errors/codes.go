// Package errors provides structured error handling for the portal.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authentication errors
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeNoPasswordSet      Code = "NO_PASSWORD_SET"
	CodeSessionInvalid     Code = "SESSION_INVALID"

	// Authorization errors
	CodeForbidden Code = "FORBIDDEN"

	// Request errors
	CodeValidation Code = "VALIDATION"
	CodeNotFound   Code = "NOT_FOUND"

	// Dependency errors
	CodeDirectoryUnavailable Code = "DIRECTORY_UNAVAILABLE"
	CodeMailNotConfigured    Code = "MAIL_NOT_CONFIGURED"

	// Internal errors
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps an error code to its HTTP response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidCredentials, CodeSessionInvalid:
		return http.StatusUnauthorized
	case CodeNoPasswordSet, CodeForbidden:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDirectoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
