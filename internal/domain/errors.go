package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for business logic errors.
const (
	CodeNotFound      = 1
	CodeAlreadyExists = 2
	CodeValidation    = 3
	CodeInternal      = 4
	CodeInvalidValue  = 5
	CodeInvalidState  = 6
	CodeAccessDenied  = 7
	CodeUnauthorized  = 8
	CodeTypeMismatch  = 9
)

// AppError represents a business logic error with a code, message, and optional wrapped error.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error for use with errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined business errors.
//
// Use the IsXxx helpers rather than errors.Is to classify an error: they
// compare codes, so freshly constructed errors from NewAppError match too.
var (
	ErrNotFound      = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists = &AppError{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation    = &AppError{Code: CodeValidation, Message: "validation error"}
	ErrInternal      = &AppError{Code: CodeInternal, Message: "internal error"}
	ErrInvalidValue  = &AppError{Code: CodeInvalidValue, Message: "invalid value"}
	ErrInvalidState  = &AppError{Code: CodeInvalidState, Message: "invalid state"}
	ErrAccessDenied  = &AppError{Code: CodeAccessDenied, Message: "access denied"}
	ErrUnauthorized  = &AppError{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrTypeMismatch  = &AppError{Code: CodeTypeMismatch, Message: "type mismatch"}
)

// NewAppError creates a new AppError with the given code, message, and wrapped error.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// InvalidValuef builds a CodeInvalidValue error with a formatted message.
func InvalidValuef(format string, args ...any) *AppError {
	return NewAppError(CodeInvalidValue, fmt.Sprintf(format, args...), nil)
}

// TypeMismatchf builds a CodeTypeMismatch error with a formatted message.
func TypeMismatchf(format string, args ...any) *AppError {
	return NewAppError(CodeTypeMismatch, fmt.Sprintf(format, args...), nil)
}

// IsNotFound reports whether err is or wraps an AppError with CodeNotFound.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsAlreadyExists reports whether err is or wraps an AppError with CodeAlreadyExists.
func IsAlreadyExists(err error) bool {
	return hasCode(err, CodeAlreadyExists)
}

// IsValidation reports whether err is or wraps an AppError with CodeValidation.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsInternal reports whether err is or wraps an AppError with CodeInternal.
func IsInternal(err error) bool {
	return hasCode(err, CodeInternal)
}

// IsInvalidValue reports whether err is or wraps an AppError with CodeInvalidValue.
func IsInvalidValue(err error) bool {
	return hasCode(err, CodeInvalidValue)
}

// IsInvalidState reports whether err is or wraps an AppError with CodeInvalidState.
func IsInvalidState(err error) bool {
	return hasCode(err, CodeInvalidState)
}

// IsAccessDenied reports whether err is or wraps an AppError with CodeAccessDenied.
func IsAccessDenied(err error) bool {
	return hasCode(err, CodeAccessDenied)
}

// IsUnauthorized reports whether err is or wraps an AppError with CodeUnauthorized.
func IsUnauthorized(err error) bool {
	return hasCode(err, CodeUnauthorized)
}

// IsTypeMismatch reports whether err is or wraps an AppError with CodeTypeMismatch.
func IsTypeMismatch(err error) bool {
	return hasCode(err, CodeTypeMismatch)
}

// hasCode checks whether err is or wraps an *AppError with the given code.
func hasCode(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// statusByCode is the dispatch table from error code to HTTP status.
// Codes missing from the table map to 500.
var statusByCode = map[int]int{
	CodeNotFound:      http.StatusNotFound,
	CodeValidation:    http.StatusBadRequest,
	CodeInvalidValue:  http.StatusBadRequest,
	CodeInvalidState:  http.StatusBadRequest,
	CodeAlreadyExists: http.StatusConflict,
	CodeAccessDenied:  http.StatusForbidden,
	CodeUnauthorized:  http.StatusUnauthorized,
}

// HTTPStatusCode maps an error to an HTTP status code.
// If the error is an *AppError, the code is looked up in the status table;
// otherwise http.StatusInternalServerError is returned.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if err != nil && errors.As(err, &appErr) {
		if status, ok := statusByCode[appErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}
