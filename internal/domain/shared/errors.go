package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error so callers can decide how to surface it
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION" // Malformed or out-of-range input
	KindState      ErrorKind = "STATE"      // Operation not allowed in the current status
	KindConflict   ErrorKind = "CONFLICT"   // An invariant would be violated
	KindNotFound   ErrorKind = "NOT_FOUND"  // Unknown identifier
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches another DomainError by code, or by kind when the target carries no code.
// This lets callers write errors.Is(err, shared.ErrConflict).
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	if t.Code == "" {
		return t.Kind == e.Kind
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates an error for malformed or out-of-range input
func NewValidationError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindValidation, code, fmt.Sprintf(format, args...))
}

// NewStateError creates an error for an operation invalid in the current status
func NewStateError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindState, code, fmt.Sprintf(format, args...))
}

// NewConflictError creates an error for an operation that would break an invariant
func NewConflictError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindConflict, code, fmt.Sprintf(format, args...))
}

// NewNotFoundError creates an error for an unknown identifier
func NewNotFoundError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindNotFound, code, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of a domain error anywhere in err's chain, or "" for other errors
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Kind sentinels, usable with errors.Is
var (
	ErrValidation = &DomainError{Kind: KindValidation}
	ErrState      = &DomainError{Kind: KindState}
	ErrConflict   = &DomainError{Kind: KindConflict}
	ErrNotFound   = &DomainError{Kind: KindNotFound}
)

// Common domain errors
var (
	ErrInvalidInput        = NewDomainError(KindValidation, "INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(KindConflict, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrAlreadyProcessed    = NewDomainError(KindConflict, "ALREADY_PROCESSED", "Request has already been processed")
)
