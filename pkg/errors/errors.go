package errors

import (
	"fmt"
)

// ErrorCategory classifies exchange failures for handling
type ErrorCategory string

const (
	// CategoryNetworkError - the request never produced a processor reply
	CategoryNetworkError ErrorCategory = "network_error"
	// CategorySystemError - the processor replied with something unusable
	CategorySystemError ErrorCategory = "system_error"
)

// PaymentError represents a failed gateway exchange with detailed context.
// Processor declines are not errors; they come back as normal results with
// the success flag unset.
type PaymentError struct {
	Code        string
	Message     string
	IsRetriable bool
	Category    ErrorCategory
	Err         error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new payment error wrapping its cause
func NewPaymentError(code, message string, category ErrorCategory, retriable bool, cause error) *PaymentError {
	return &PaymentError{
		Code:        code,
		Message:     message,
		Category:    category,
		IsRetriable: retriable,
		Err:         cause,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
