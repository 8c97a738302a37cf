// Package errors defines the service error taxonomy shared by the data layer
// and the HTTP surface.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, machine readable error identifier.
type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION_ERROR"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	CodeInvalidToken  ErrorCode = "INVALID_TOKEN"
	CodeForbidden     ErrorCode = "FORBIDDEN"
	CodeCategoryInUse ErrorCode = "CATEGORY_IN_USE"
	CodeRateLimited   ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeUpstream      ErrorCode = "UPSTREAM_ERROR"
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is an error with an HTTP mapping and optional details.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches service errors by code so callers can use errors.Is against the
// sentinel values below.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails returns a copy of the error with an extra detail entry.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound      = &ServiceError{Code: CodeNotFound}
	ErrValidation    = &ServiceError{Code: CodeValidation}
	ErrCategoryInUse = &ServiceError{Code: CodeCategoryInUse}
	ErrUnauthorized  = &ServiceError{Code: CodeUnauthorized}
	ErrUpstream      = &ServiceError{Code: CodeUpstream}
)

func newError(code ErrorCode, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Validation reports invalid caller input.
func Validation(message string) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, message, nil)
}

// ValidationFields reports invalid input with per-field messages.
func ValidationFields(fields map[string]string) *ServiceError {
	e := Validation("invalid input")
	e.Details = make(map[string]interface{}, len(fields))
	for k, v := range fields {
		e.Details[k] = v
	}
	return e
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource), nil).
		WithDetails("id", id)
}

// Unauthorized reports a missing or unusable credential.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// InvalidToken reports a bearer token that failed verification.
func InvalidToken(err error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "invalid or expired token", err)
}

// Forbidden reports an authenticated caller acting outside their scope.
func Forbidden(message string) *ServiceError {
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// CategoryInUse is the integrity error for deleting a category that still
// holds menu items.
func CategoryInUse(categoryID string, items int) *ServiceError {
	return newError(CodeCategoryInUse, http.StatusConflict,
		"Cannot delete category with menu items. Remove menu items first.", nil).
		WithDetails("category_id", categoryID).
		WithDetails("menu_items", items)
}

// RateLimitExceeded reports a throttled caller.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Upstream wraps a failure of the hosted backend.
func Upstream(message string, err error) *ServiceError {
	return newError(CodeUpstream, http.StatusBadGateway, message, err)
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// New returns a plain error with the given text.
func New(text string) error {
	return stderrors.New(text)
}
