package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
// Messages may differ between instances of the same kind.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error that keeps the underlying cause
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error codes shared across bounded contexts
const (
	CodeNotFound               = "NOT_FOUND"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeStoreTimeout           = "STORE_TIMEOUT"
	CodeStoreUnavailable       = "STORE_UNAVAILABLE"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
)

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists          = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput           = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrentModification = NewDomainError(CodeConcurrentModification, "Resource was modified by another process")
	ErrStoreTimeout           = NewDomainError(CodeStoreTimeout, "Store operation timed out")
	ErrStoreUnavailable       = NewDomainError(CodeStoreUnavailable, "Store is unavailable")
	ErrUnauthorized           = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrForbidden              = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
)

// IsRetryable reports whether the caller may retry the failed operation verbatim.
// Only lost optimistic races and store timeouts qualify; every other failure
// needs different input.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrStoreTimeout)
}

// ErrorCode returns the domain error code carried by err, or "" if none
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
