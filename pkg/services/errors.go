// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidTrigger    = errors.New("invalid trigger type")
	ErrInvalidStepType   = errors.New("invalid step type")
	ErrAutomationNil     = errors.New("automation cannot be nil")
	ErrNameRequired      = errors.New("automation name is required")
	ErrScopeRequired     = errors.New("automation scope is required")
	ErrActivationBlocked = errors.New("automation cannot be activated")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Business Logic Conflicts (409 Conflict).
	ErrCannotModifyActive = errors.New("cannot modify steps of an active automation")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidTrigger) ||
		errors.Is(err, ErrInvalidStepType) ||
		errors.Is(err, ErrAutomationNil) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrScopeRequired) ||
		errors.Is(err, ErrActivationBlocked) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyActive)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
