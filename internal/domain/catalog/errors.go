package catalog

import (
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
)

// Error codes raised by the category hierarchy and template association rules
const (
	CodeParentNotFound    = "PARENT_NOT_FOUND"
	CodeDepthExceeded     = "DEPTH_EXCEEDED"
	CodeCycleDetected     = "CYCLE_DETECTED"
	CodeDuplicateName     = "DUPLICATE_NAME"
	CodeNotDeletable      = "NOT_DELETABLE"
	CodeTooManyCategories = "TOO_MANY_CATEGORIES"
	CodeNotLeafCategory   = "NOT_LEAF_CATEGORY"
	CodeInvalidPath       = "INVALID_PATH"
	CodeCategoryNotFound  = "CATEGORY_NOT_FOUND"
)

// Sentinel errors, matched with errors.Is by code
var (
	ErrParentNotFound    = shared.NewDomainError(CodeParentNotFound, "Parent category not found")
	ErrDepthExceeded     = shared.NewDomainError(CodeDepthExceeded, "Category hierarchy depth exceeded")
	ErrCycleDetected     = shared.NewDomainError(CodeCycleDetected, "Category cannot be moved under itself or its descendant")
	ErrDuplicateName     = shared.NewDomainError(CodeDuplicateName, "A sibling category with the same name already exists")
	ErrNotDeletable      = shared.NewDomainError(CodeNotDeletable, "Category cannot be deleted")
	ErrTooManyCategories = shared.NewDomainError(CodeTooManyCategories, "Too many categories for template")
	ErrNotLeafCategory   = shared.NewDomainError(CodeNotLeafCategory, "Only leaf categories can be assigned to templates")
	ErrInvalidPath       = shared.NewDomainError(CodeInvalidPath, "Category path does not match the hierarchy")
	ErrCategoryNotFound  = shared.NewDomainError(CodeCategoryNotFound, "Category not found")
)
