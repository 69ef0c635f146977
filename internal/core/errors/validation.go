// Package errors provides structured error types for validation and configuration.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for production validation
var (
	ErrVerboseLogging     = errors.New("debug logging enabled")
	ErrInsecureSkipVerify = errors.New("vault TLS verification disabled")
	ErrTokenInConfigFile  = errors.New("vault token set in configuration file")
	ErrPlaintextVault     = errors.New("vault address uses plain http")
	ErrNoCertificates     = errors.New("no certificates configured")
)

// ProductionValidationError wraps multiple validation errors
type ProductionValidationError struct {
	Errors []error
}

func (e *ProductionValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "production validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("production validation failed: %v", e.Errors[0])
	}
	return fmt.Sprintf("production validation failed with %d errors", len(e.Errors))
}

func (e *ProductionValidationError) Unwrap() []error {
	return e.Errors
}

// NewProductionValidationError creates a new production validation error
func NewProductionValidationError(errs ...error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ProductionValidationError{Errors: errs}
}
