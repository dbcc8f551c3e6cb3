package services

import (
	"errors"
	"fmt"
	"net/http"

	"expertene/internal/repositories"
	"expertene/internal/validation"
)

// ===============================
// ERROR TYPES
// ===============================

// Error type names.
const (
	ErrTypeValidation   = "VALIDATION_ERROR"
	ErrTypeNotFound     = "NOT_FOUND"
	ErrTypeUnauthorized = "UNAUTHORIZED"
	ErrTypeForbidden    = "FORBIDDEN"
	ErrTypeConflict     = "CONFLICT"
	ErrTypeInternal     = "INTERNAL_ERROR"
	ErrTypeUnavailable  = "SERVICE_UNAVAILABLE"
	ErrTypeUpstream     = "UPSTREAM_ERROR"
)

// ServiceError represents a structured service error
type ServiceError struct {
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	Code       string         `json:"code,omitempty"`
	Fields     []FieldError   `json:"fields,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	StatusCode int            `json:"-"`
	Cause      error          `json:"-"`
}

// FieldError represents a single field validation error
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// GetStatusCode returns the HTTP status code for this error
func (e *ServiceError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// ===============================
// ERROR CONSTRUCTORS
// ===============================

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewFieldValidationError creates a validation error with field details
func NewFieldValidationError(message string, fields ...FieldError) *ServiceError {
	e := NewValidationError(message, nil)
	e.Fields = fields
	return e
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeForbidden,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message, code string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeConflict,
		Message:    message,
		Code:       code,
		StatusCode: http.StatusConflict,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewServiceUnavailableError creates a service unavailable error
func NewServiceUnavailableError(message string) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

// NewUpstreamError wraps a failure of a hosted platform call. The upstream
// message is surfaced to the caller.
func NewUpstreamError(cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeUpstream,
		Message:    cause.Error(),
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// ===============================
// ERROR UTILITIES
// ===============================

// GetServiceError extracts a ServiceError from err, or wraps it as internal.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return NewInternalError("internal server error", err)
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType string) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Type == errorType
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return IsErrorType(err, ErrTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return IsErrorType(err, ErrTypeValidation)
}

// fromRepository maps repository sentinels onto service errors.
func fromRepository(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return NewNotFoundError(entity + " not found")
	case errors.Is(err, repositories.ErrConflict):
		return NewConflictError(entity+" already exists", "ENTITY_ALREADY_EXISTS")
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return NewInternalError("failed to access "+entity, err)
}

// validateRequest runs struct validation and converts rule failures into a
// field-level validation error.
func validateRequest(message string, req any) error {
	err := validation.ValidateStruct(req)
	if err == nil {
		return nil
	}
	var verr *validation.Error
	if !errors.As(err, &verr) {
		return NewValidationError(message, err)
	}
	fields := make([]FieldError, 0, len(verr.Issues))
	for _, i := range verr.Issues {
		fields = append(fields, FieldError{Field: i.Field, Message: i.Message(), Code: i.Tag})
	}
	e := NewFieldValidationError(message, fields...)
	e.Cause = err
	return e
}
