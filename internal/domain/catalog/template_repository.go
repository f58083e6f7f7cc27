package catalog

import (
	"context"

	"github.com/google/uuid"
)

// TemplateRepository is the store boundary for templates and their category lists
type TemplateRepository interface {
	// FindByID finds a live template with its ordered categories
	FindByID(ctx context.Context, scope Scope, id uuid.UUID) (*Template, error)

	// FindByCategories returns live templates referencing any of the category IDs
	FindByCategories(ctx context.Context, scope Scope, categoryIDs []uuid.UUID) ([]*Template, error)

	// CountReferencing counts live templates referencing categoryID
	CountReferencing(ctx context.Context, scope Scope, categoryID uuid.UUID) (int64, error)

	// Create inserts a new template and its categories
	Create(ctx context.Context, template *Template) error

	// SaveCategories replaces the stored category list if the template's stored
	// version still equals expectedVersion, then advances Version
	SaveCategories(ctx context.Context, template *Template, expectedVersion int) error

	// RemoveDeletedReferences drops categoryID from the category lists of
	// soft-deleted templates and returns how many entries were removed
	RemoveDeletedReferences(ctx context.Context, scope Scope, categoryID uuid.UUID) (int64, error)
}
