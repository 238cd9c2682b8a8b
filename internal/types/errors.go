package types

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// Command handlers and the API layer MUST use these constants instead of
// hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationTimeFormat   ErrorCode = "validation_invalid_time_format"
	ErrCodeValidationInvalidBool  ErrorCode = "validation_invalid_boolean"
	ErrCodeValidationCommand      ErrorCode = "validation_invalid_command"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Permission (403)
	ErrCodePermissionOperator ErrorCode = "permission_operator_required"

	// Unavailable (503)
	ErrCodeUnavailableLoopStopped ErrorCode = "unavailable_loop_stopped"

	// Internal/Upstream (500/502)
	ErrCodeInternalPersistenceRead  ErrorCode = "internal_persistence_read"
	ErrCodeInternalPersistenceWrite ErrorCode = "internal_persistence_write"
	ErrCodeInternalUnexpected       ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamUnavailable      ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited      ErrorCode = "upstream_rate_limited"
)

// statusByPrefix maps the code family to its HTTP status. Unknown families
// are 500.
var statusByPrefix = []struct {
	prefix string
	status int
}{
	{"validation_", http.StatusBadRequest},
	{"auth_", http.StatusUnauthorized},
	{"permission_", http.StatusForbidden},
	{"unavailable_", http.StatusServiceUnavailable},
	{"upstream_", http.StatusBadGateway},
}

// HTTPStatus returns the status the admin API answers with for c.
func (c ErrorCode) HTTPStatus() int {
	for _, p := range statusByPrefix {
		if strings.HasPrefix(string(c), p.prefix) {
			return p.status
		}
	}
	return http.StatusInternalServerError
}

// AppError is the error type returned by commands, the scheduler and the
// stores. Message is safe to show an operator; Err is not.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithDetails returns a copy of e with details merged over the existing ones.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	out := *e
	out.Details = merged
	return &out
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, Err: err, Details: details}
}

// IsPersistenceError reports whether err means "applied but not durable".
func IsPersistenceError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeInternalPersistenceRead, ErrCodeInternalPersistenceWrite:
		return true
	}
	return false
}

// CodeOf returns the code carried by err, or "" when err is not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
