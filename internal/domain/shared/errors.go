package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError for callers and transports
type ErrorKind string

const (
	KindValidation             ErrorKind = "VALIDATION"
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindForbidden              ErrorKind = "FORBIDDEN"
	KindConflict               ErrorKind = "CONFLICT"
	KindConcurrentModification ErrorKind = "CONCURRENT_MODIFICATION"
	KindStorage                ErrorKind = "STORAGE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	// Field names the offending input for validation errors
	Field string `json:"field,omitempty"`
	cause error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches sentinel errors by kind, and by code when the target carries one.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Retryable reports whether repeating the whole operation may succeed
func (e *DomainError) Retryable() bool {
	return e.Kind == KindConcurrentModification || e.Kind == KindStorage
}

// NewDomainError creates a new domain error of the given kind
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Sentinels for errors.Is checks. They carry no code so they match any error of their kind.
var (
	ErrValidation             = &DomainError{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound               = &DomainError{Kind: KindNotFound, Message: "resource not found"}
	ErrForbidden              = &DomainError{Kind: KindForbidden, Message: "access to this resource is forbidden"}
	ErrConflict               = &DomainError{Kind: KindConflict, Message: "operation conflicts with current state"}
	ErrConcurrentModification = &DomainError{Kind: KindConcurrentModification, Message: "resource was modified by another process"}
	ErrStorage                = &DomainError{Kind: KindStorage, Message: "storage failure"}
)

// NewValidationError reports malformed input for a named field
func NewValidationError(field, message string) *DomainError {
	return &DomainError{
		Kind:    KindValidation,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Field:   field,
	}
}

// NewNotFoundError reports an unresolvable id
func NewNotFoundError(entity string, id fmt.Stringer) *DomainError {
	return &DomainError{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

// NewForbiddenError reports a scope violation
func NewForbiddenError(message string) *DomainError {
	return &DomainError{
		Kind:    KindForbidden,
		Code:    "FORBIDDEN",
		Message: message,
	}
}

// NewConflictError reports a business-rule conflict
func NewConflictError(code, message string) *DomainError {
	return &DomainError{
		Kind:    KindConflict,
		Code:    code,
		Message: message,
	}
}

// NewConcurrentModificationError reports a lost compare-and-swap
func NewConcurrentModificationError(entity string, id fmt.Stringer) *DomainError {
	return &DomainError{
		Kind:    KindConcurrentModification,
		Code:    "CONCURRENCY_CONFLICT",
		Message: fmt.Sprintf("%s %s was modified by another transaction", entity, id),
	}
}

// NewStorageError wraps an infrastructure failure. Domain errors pass through untouched.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return &DomainError{
		Kind:    KindStorage,
		Code:    "STORAGE_ERROR",
		Message: "storage error during " + op,
		cause:   err,
	}
}

// IsRetryable reports whether err is a concurrency or storage failure
func IsRetryable(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Retryable()
	}
	return false
}

// KindOf returns the kind of the first DomainError in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}
