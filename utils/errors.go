package utils

import (
	"errors"
	"fmt"
	"net/http"
	"saathi/models"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode,omitempty"`
	Details    interface{} `json:"details,omitempty"`
	Cause      error       `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// GetServiceError extracts a ServiceError anywhere in the chain
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

// HasCode reports whether err is a ServiceError with the given code
func HasCode(err error, code string) bool {
	serviceErr, ok := GetServiceError(err)
	return ok && serviceErr.Code == code
}

func NewValidationError(message string, details interface{}) error {
	return ServiceError{
		Code:       models.ErrCodeValidation,
		Message:    message,
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

func NewBadRequestError(message string) error {
	return NewValidationError(message, nil)
}

func NewUnauthorizedError(message string) error {
	return ServiceError{
		Code:       models.ErrCodeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) error {
	return ServiceError{
		Code:       models.ErrCodeAuthorization,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewNotFoundError(resource string) error {
	return ServiceError{
		Code:       models.ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func NewConflictError(message string) error {
	return ServiceError{
		Code:       models.ErrCodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewDatabaseError(operation string, cause error) error {
	return ServiceError{
		Code:       models.ErrCodeInternal,
		Message:    fmt.Sprintf("Database operation failed: %s", operation),
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

func NewExternalServiceError(service string, cause error) error {
	return ServiceError{
		Code:       models.ErrCodeExternal,
		Message:    fmt.Sprintf("%s service is currently unavailable", service),
		Cause:      cause,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func NewRateLimitError(message string) error {
	return ServiceError{
		Code:       models.ErrCodeRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

// Domain errors
func NewSOSNotFoundError() error {
	return NewNotFoundError("SOS event")
}

func NewProfileNotFoundError() error {
	return NewNotFoundError("Profile")
}

func NewSOSInactiveError() error {
	return NewConflictError("SOS event is no longer active")
}

func NewSelfHelpError() error {
	return NewForbiddenError("You cannot respond to your own SOS")
}

func NewNotOwnerError() error {
	return NewForbiddenError("Only the person who raised this SOS can do that")
}

func NewCommitmentRequiredError() error {
	return NewForbiddenError("Offer help on this SOS first")
}

// Sentinel errors used by stores to signal lookups that found nothing
var (
	ErrNotFound = errors.New("not found")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || HasCode(err, models.ErrCodeNotFound)
}
