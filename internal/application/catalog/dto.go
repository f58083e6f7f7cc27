package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/google/uuid"
)

// CreateCategoryRequest represents a request to create a category
type CreateCategoryRequest struct {
	ExternalID      string         `json:"external_id" binding:"required,min=1,max=100"`
	Name            string         `json:"name" binding:"required,min=1"`
	ParentID        *uuid.UUID     `json:"parent_id"`
	SequenceNumber  int            `json:"sequence_number" binding:"min=0"`
	MetaInformation map[string]any `json:"meta_information"`
	IsVisible       *bool          `json:"is_visible"`
	CreatedBy       *uuid.UUID     `json:"-"`
}

// UpdateCategoryRequest represents a request to update non-structural category fields.
// The parent cannot be changed here; use Move.
type UpdateCategoryRequest struct {
	Name            *string        `json:"name" binding:"omitempty,min=1"`
	MetaInformation map[string]any `json:"meta_information"`
	IsVisible       *bool          `json:"is_visible"`
	SequenceNumber  *int           `json:"sequence_number" binding:"omitempty,min=0"`
	// Version, when set, must equal the stored version. Besides updates, moves
	// and child changes, newly attaching the category to a template under the
	// leaf-only policy also advances it.
	Version *int `json:"version"`
}

// MoveCategoryRequest represents a request to attach a category to another parent.
// A nil ParentID makes the category a root.
type MoveCategoryRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

// BulkCategoryEntry is one entry of a bulk create. A parent is referenced either
// by ID (existing category) or by ParentExternalID (an earlier entry in the same
// batch, or an existing category).
type BulkCategoryEntry struct {
	ExternalID       string         `json:"external_id" binding:"required,min=1,max=100"`
	Name             string         `json:"name" binding:"required,min=1"`
	ParentID         *uuid.UUID     `json:"parent_id"`
	ParentExternalID string         `json:"parent_external_id" binding:"max=100"`
	SequenceNumber   int            `json:"sequence_number" binding:"min=0"`
	MetaInformation  map[string]any `json:"meta_information"`
	IsVisible        *bool          `json:"is_visible"`
}

// BulkCreateCategoriesRequest wraps the bulk entries
type BulkCreateCategoriesRequest struct {
	Categories []BulkCategoryEntry `json:"categories" binding:"required,min=1,dive"`
}

// ListCategoriesRequest selects categories for List.
// Without ParentID and Level only roots are listed.
type ListCategoriesRequest struct {
	ParentID *uuid.UUID `form:"parent_id"`
	Level    *int       `form:"level" binding:"omitempty,min=0"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1"`
	// SortBy is one of name, external_id, depth, sequence_number, created_at, updated_at
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID                 uuid.UUID      `json:"id"`
	TenantID           uuid.UUID      `json:"tenant_id"`
	OrgID              uuid.UUID      `json:"org_id"`
	ExternalID         string         `json:"external_id"`
	Name               string         `json:"name"`
	ParentID           *uuid.UUID     `json:"parent_id"`
	HasChildCategories bool           `json:"has_child_categories"`
	SequenceNumber     int            `json:"sequence_number"`
	Depth              int            `json:"depth"`
	MetaInformation    map[string]any `json:"meta_information"`
	IsVisible          bool           `json:"is_visible"`
	NoOfProjects       int            `json:"no_of_projects"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Version            int            `json:"version"`
}

// CategoryTreeNode represents one node of a BuildHierarchy result
type CategoryTreeNode struct {
	ID                 uuid.UUID          `json:"id"`
	ExternalID         string             `json:"external_id"`
	Name               string             `json:"name"`
	ParentID           *uuid.UUID         `json:"parent_id"`
	Depth              int                `json:"depth"`
	SequenceNumber     int                `json:"sequence_number"`
	HasChildCategories bool               `json:"has_child_categories"`
	IsVisible          bool               `json:"is_visible"`
	MetaInformation    map[string]any     `json:"meta_information,omitempty"`
	Children           []CategoryTreeNode `json:"children"`
}

// DeletableResult reports whether a category may be deleted
type DeletableResult struct {
	Deletable bool   `json:"deletable"`
	Reason    string `json:"reason,omitempty"`
}

// Reasons reported by CanDelete
const (
	ReasonHasChildCategories   = "has child categories"
	ReasonReferencedByTemplate = "referenced by template"
)

// RepairReport summarizes a RepairHierarchy sweep
type RepairReport struct {
	Scanned     int `json:"scanned"`
	FlagsFixed  int `json:"flags_fixed"`
	DepthsFixed int `json:"depths_fixed"`
	// Unreachable counts live categories whose parent chain does not reach a live root
	Unreachable int `json:"unreachable"`
}

// AttachCategoriesRequest replaces a template's categories
type AttachCategoriesRequest struct {
	CategoryIDs []uuid.UUID `json:"category_ids" binding:"omitempty"`
}

// CreateTemplateRequest represents a request to register a template
type CreateTemplateRequest struct {
	ExternalID  string      `json:"external_id" binding:"required,min=1,max=100"`
	Name        string      `json:"name" binding:"required,min=1,max=200"`
	CategoryIDs []uuid.UUID `json:"category_ids"`
	CreatedBy   *uuid.UUID  `json:"-"`
}

// ResolveTemplatesRequest selects templates by category.
// Empty Mode and nil IncludeInherited fall back to the policy defaults.
type ResolveTemplatesRequest struct {
	CategoryIDs      []uuid.UUID
	Mode             catalog.QueryMode
	IncludeInherited *bool
	Page             int
	PageSize         int
}

// TemplateResponse represents a template in API responses
type TemplateResponse struct {
	ID         uuid.UUID                  `json:"id"`
	TenantID   uuid.UUID                  `json:"tenant_id"`
	OrgID      uuid.UUID                  `json:"org_id"`
	ExternalID string                     `json:"external_id"`
	Name       string                     `json:"name"`
	Categories []catalog.TemplateCategory `json:"categories"`
	CreatedAt  time.Time                  `json:"created_at"`
	UpdatedAt  time.Time                  `json:"updated_at"`
	Version    int                        `json:"version"`
}

// BulkEntryFailure is the validation failure of one bulk entry
type BulkEntryFailure struct {
	Index      int    `json:"index"`
	ExternalID string `json:"external_id"`
	Err        error  `json:"-"`
}

// BulkValidationError reports every entry that failed dry-run validation.
// Nothing from the batch is written when it is returned.
type BulkValidationError struct {
	Failures []BulkEntryFailure
}

// Error implements the error interface
func (e *BulkValidationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("entry %d (%s): %v", f.Index, f.ExternalID, f.Err))
	}
	return fmt.Sprintf("bulk create rejected, %d invalid entries: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the per-entry errors to errors.Is and errors.As
func (e *BulkValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// ToCategoryResponse converts a domain Category to a CategoryResponse
func ToCategoryResponse(c *catalog.Category) CategoryResponse {
	meta := c.MetaInformation
	if meta == nil {
		meta = map[string]any{}
	}
	return CategoryResponse{
		ID:                 c.ID,
		TenantID:           c.TenantID,
		OrgID:              c.OrgID,
		ExternalID:         c.ExternalID,
		Name:               c.Name,
		ParentID:           c.ParentID,
		HasChildCategories: c.HasChildCategories,
		SequenceNumber:     c.SequenceNumber,
		Depth:              c.Depth,
		MetaInformation:    meta,
		IsVisible:          c.IsVisible,
		NoOfProjects:       c.NoOfProjects,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
		Version:            c.Version,
	}
}

// ToCategoryResponses converts a slice of categories
func ToCategoryResponses(categories []*catalog.Category) []CategoryResponse {
	responses := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		responses[i] = ToCategoryResponse(c)
	}
	return responses
}

// ToTemplateResponse converts a domain Template to a TemplateResponse
func ToTemplateResponse(t *catalog.Template) TemplateResponse {
	categories := t.Categories
	if categories == nil {
		categories = []catalog.TemplateCategory{}
	}
	return TemplateResponse{
		ID:         t.ID,
		TenantID:   t.TenantID,
		OrgID:      t.OrgID,
		ExternalID: t.ExternalID,
		Name:       t.Name,
		Categories: categories,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
		Version:    t.Version,
	}
}

func toTreeNode(c *catalog.Category) CategoryTreeNode {
	return CategoryTreeNode{
		ID:                 c.ID,
		ExternalID:         c.ExternalID,
		Name:               c.Name,
		ParentID:           c.ParentID,
		Depth:              c.Depth,
		SequenceNumber:     c.SequenceNumber,
		HasChildCategories: c.HasChildCategories,
		IsVisible:          c.IsVisible,
		MetaInformation:    c.MetaInformation,
		Children:           []CategoryTreeNode{},
	}
}
