// Package errors defines custom error types for certkeeper.
package errors

import "fmt"

// DomainError represents errors in the domain logic
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code, so wrapped
// errors still match the sentinel bases below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Common domain errors
var (
	ErrMissingDescriptorField = &DomainError{
		Code:    "MISSING_DESCRIPTOR_FIELD",
		Message: "certificate descriptor is missing a required field",
	}

	ErrUnknownSourceType = &DomainError{
		Code:    "UNKNOWN_SOURCE_TYPE",
		Message: "certificate source type is not supported",
	}

	ErrSourceUnavailable = &DomainError{
		Code:    "SOURCE_UNAVAILABLE",
		Message: "certificate source could not be reached",
	}

	ErrCertificateNotFound = &DomainError{
		Code:    "CERTIFICATE_NOT_FOUND",
		Message: "certificate was not found in its source",
	}

	ErrEmptySecret = &DomainError{
		Code:    "EMPTY_SECRET",
		Message: "secret value is empty",
	}

	ErrInvalidCertificateData = &DomainError{
		Code:    "INVALID_CERTIFICATE_DATA",
		Message: "certificate data could not be decoded",
	}

	ErrRefreshFatal = &DomainError{
		Code:    "REFRESH_FATAL",
		Message: "refresh work unit failed",
	}

	ErrMissingConfiguration = &DomainError{
		Code:    "MISSING_CONFIGURATION",
		Message: "required configuration is missing",
	}
)

// NewDomainError creates a new domain error with context
func NewDomainError(base *DomainError, err error) error {
	return &DomainError{
		Code:    base.Code,
		Message: base.Message,
		Err:     err,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}
