package dto

import (
	"net/http"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
)

// Transport error codes. Domain errors keep their own code in responses.
const (
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeTokenExpired   = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid   = "TOKEN_INVALID"
	ErrCodeMissingScope   = "MISSING_SCOPE"
	ErrCodeBodyTooLarge   = "BODY_TOO_LARGE"
	ErrCodeBulkValidation = "BULK_VALIDATION_FAILED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:       http.StatusInternalServerError,
	ErrCodeValidation:     http.StatusBadRequest,
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeUnauthorized:   http.StatusUnauthorized,
	ErrCodeTokenExpired:   http.StatusUnauthorized,
	ErrCodeTokenInvalid:   http.StatusUnauthorized,
	ErrCodeMissingScope:   http.StatusBadRequest,
	ErrCodeBodyTooLarge:   http.StatusRequestEntityTooLarge,
	ErrCodeBulkValidation: http.StatusUnprocessableEntity,

	// Kernel errors
	shared.CodeInvalidInput: http.StatusBadRequest,
	// shared.CodeUnauthorized ("UNAUTHORIZED") is covered by ErrCodeUnauthorized above.
	shared.CodeForbidden:              http.StatusForbidden,
	shared.CodeNotFound:               http.StatusNotFound,
	shared.CodeAlreadyExists:          http.StatusConflict,
	shared.CodeConcurrentModification: http.StatusConflict,
	shared.CodeStoreUnavailable:       http.StatusServiceUnavailable,
	shared.CodeStoreTimeout:           http.StatusGatewayTimeout,

	// Hierarchy and template rules
	catalog.CodeParentNotFound:    http.StatusNotFound,
	catalog.CodeCategoryNotFound:  http.StatusNotFound,
	catalog.CodeDuplicateName:     http.StatusConflict,
	catalog.CodeDepthExceeded:     http.StatusUnprocessableEntity,
	catalog.CodeCycleDetected:     http.StatusUnprocessableEntity,
	catalog.CodeNotDeletable:      http.StatusUnprocessableEntity,
	catalog.CodeTooManyCategories: http.StatusUnprocessableEntity,
	catalog.CodeNotLeafCategory:   http.StatusUnprocessableEntity,
	catalog.CodeInvalidPath:       http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
