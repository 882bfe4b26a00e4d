package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// Pipeline failures
	ErrorTypeSourceUnreadable ErrorType = "source_unreadable"
	ErrorTypePageRender       ErrorType = "page_render"
	ErrorTypeRecognition      ErrorType = "recognition"
	ErrorTypeOverlayInsertion ErrorType = "overlay_insertion"
	ErrorTypeSave             ErrorType = "save"

	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeNetwork      ErrorType = "network"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	Page       int       `json:"page,omitempty"` // 1-based, zero when not page scoped
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Page > 0 {
		msg = fmt.Sprintf("%s: page %d: %s", e.Type, e.Page, e.Message)
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Fatal reports whether the error aborts a whole run.
func (e *AppError) Fatal() bool {
	return e.Type == ErrorTypeSourceUnreadable || e.Type == ErrorTypeSave
}

// NewSourceUnreadableError is returned when the input document cannot be opened.
func NewSourceUnreadableError(path string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeSourceUnreadable,
		Message:    "input document cannot be opened",
		Details:    path,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewPageRenderError is recorded when one page cannot be rasterized.
func NewPageRenderError(page int, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypePageRender,
		Message:    "page cannot be rasterized",
		Page:       page,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewRecognitionError is recorded when a recognizer errors or times out.
func NewRecognitionError(page int, backend string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeRecognition,
		Message:    "text recognition failed",
		Details:    backend,
		Page:       page,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewOverlayInsertionError is recorded when a single text run is skipped.
func NewOverlayInsertionError(page int, details string) *AppError {
	return &AppError{
		Type:       ErrorTypeOverlayInsertion,
		Message:    "overlay text run skipped",
		Details:    details,
		Page:       page,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// NewSaveError is returned when the output document cannot be persisted.
func NewSaveError(path string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeSave,
		Message:    "output document cannot be saved",
		Details:    path,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		Details:    detail,
		StatusCode: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNetwork,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// IsType checks if the error, or any error it wraps, is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsFatal reports whether err should abort a pipeline run.
func IsFatal(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Fatal()
	}
	return false
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
