package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers use these instead of hardcoded strings; the
// prefix of each code determines its HTTP status (see HTTPStatus).
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"
	ErrCodeValidationInvalidInput ErrorCode = "validation_invalid_input"
	ErrCodeValidationFileTooLarge ErrorCode = "validation_file_too_large"
	ErrCodeValidationCodeMismatch ErrorCode = "validation_code_mismatch"
	ErrCodeValidationUserExists   ErrorCode = "validation_user_exists"

	// Auth (401)
	ErrCodeAuthTokenMissing     ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid     ErrorCode = "auth_token_invalid"
	ErrCodeAuthIdentityMissing  ErrorCode = "auth_identity_missing"
	ErrCodeAuthInvalidCreds     ErrorCode = "auth_invalid_credentials"
	ErrCodeAuthUserNotConfirmed ErrorCode = "auth_user_not_confirmed"

	// Not Found (404)
	ErrCodeNotFoundRoute ErrorCode = "not_found_route"
	ErrCodeNotFoundNote  ErrorCode = "not_found_note"
	ErrCodeNotFoundFile  ErrorCode = "not_found_file"
	ErrCodeNotFoundUser  ErrorCode = "not_found_user"

	// Method (405)
	ErrCodeMethodDeprecated ErrorCode = "method_deprecated"

	// Conflict (409)
	ErrCodeConflictDuplicateRoute ErrorCode = "conflict_duplicate_route"

	// Internal/Upstream (500/502/503)
	ErrCodeInternalDB                  ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected          ErrorCode = "internal_unexpected_error"
	ErrCodeInternalIdentityMissingSub  ErrorCode = "internal_identity_missing_subject"
	ErrCodeInternalVerifierUnavailable ErrorCode = "internal_verifier_unavailable"
	ErrCodeInternalObjectStore         ErrorCode = "internal_object_store_error"
	ErrCodeInternalDocumentStore       ErrorCode = "internal_document_store_error"
	ErrCodeUpstreamUnavailable         ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamCircuitOpen         ErrorCode = "upstream_circuit_open"
	ErrCodeUpstreamIdentityProvider    ErrorCode = "upstream_identity_provider_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case c == ErrCodeAuthUserNotConfirmed:
		return http.StatusForbidden
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "method_"):
		return http.StatusMethodNotAllowed
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case c == ErrCodeUpstreamCircuitOpen:
		return http.StatusServiceUnavailable
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type used throughout the
// services. Domain and handler errors are expressed as AppError so that the
// HTTP layer can map them to a status and a client-safe message.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details
// that are returned to the client alongside the message.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// ErrorCodeOf returns the code of the first AppError in err's chain, or
// ErrCodeInternalUnexpected when there is none.
func ErrorCodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}
