package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
)

// Spec configuration errors. These are operator mistakes: they abort a run
// instead of degrading into reason codes.
var (
	ErrPackNotFound       = errors.New("spec pack not found")
	ErrCircularDependency = errors.New("circular pack dependency")
	ErrMissingAncestor    = errors.New("missing ancestor pack")
	ErrUnknownValidator   = errors.New("unknown custom validator")
	ErrInvalidPattern     = errors.New("invalid rule pattern")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsConfigError reports whether err stems from spec or run configuration
// rather than document content.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrPackNotFound) ||
		errors.Is(err, ErrCircularDependency) ||
		errors.Is(err, ErrMissingAncestor) ||
		errors.Is(err, ErrUnknownValidator) ||
		errors.Is(err, ErrInvalidPattern) ||
		errors.Is(err, ErrInvalidInput)
}
