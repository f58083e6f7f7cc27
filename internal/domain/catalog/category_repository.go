package catalog

import (
	"context"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
)

// CategoryFilter narrows FindAll and Count. Deleted categories are always excluded.
// With neither ParentID nor Level set and RootsOnly true, only roots match.
type CategoryFilter struct {
	ParentID  *uuid.UUID
	RootsOnly bool
	Level     *int
	LeafOnly  bool
	// SortBy and SortOrder override the sibling order of FindAll; unknown
	// fields are ignored by the store
	SortBy    string
	SortOrder string
	// Pagination with PageSize 0 returns every match
	shared.Pagination
}

// CategoryRepository is the store boundary for categories.
// Every method is scoped by tenant and organization; a category in another
// scope behaves as if it did not exist.
type CategoryRepository interface {
	// FindByID finds a live category by ID
	FindByID(ctx context.Context, scope Scope, id uuid.UUID) (*Category, error)

	// FindByIDs finds live categories by IDs; missing IDs are skipped
	FindByIDs(ctx context.Context, scope Scope, ids []uuid.UUID) ([]*Category, error)

	// FindByExternalID finds a live category by its source-system reference
	FindByExternalID(ctx context.Context, scope Scope, externalID string) (*Category, error)

	// ExistsByExternalID checks whether any live category uses the external ID
	ExistsByExternalID(ctx context.Context, scope Scope, externalID string) (bool, error)

	// FindChildren returns live direct children of parentID (roots when nil),
	// ordered by sequence number then name
	FindChildren(ctx context.Context, scope Scope, parentID *uuid.UUID) ([]*Category, error)

	// FindChildrenOf returns live direct children of any of the parent IDs
	FindChildrenOf(ctx context.Context, scope Scope, parentIDs []uuid.UUID) ([]*Category, error)

	// FindDescendants returns every live descendant of id, breadth-first
	FindDescendants(ctx context.Context, scope Scope, id uuid.UUID) ([]*Category, error)

	// FindAncestors walks parent links upward from id (excluded), nearest first, for at most maxHops
	FindAncestors(ctx context.Context, scope Scope, id uuid.UUID, maxHops int) ([]*Category, error)

	// FindAll finds live categories matching the filter
	FindAll(ctx context.Context, scope Scope, filter CategoryFilter) ([]*Category, error)

	// Count counts live categories matching the filter
	Count(ctx context.Context, scope Scope, filter CategoryFilter) (int64, error)

	// CountChildren counts live direct children of id
	CountChildren(ctx context.Context, scope Scope, id uuid.UUID) (int64, error)

	// Create inserts a new category
	Create(ctx context.Context, category *Category) error

	// CreateBatch inserts new categories in the given order
	CreateBatch(ctx context.Context, categories []*Category) error

	// SaveWithLock updates a category only if its stored version still equals
	// expectedVersion, then advances Version. Fails with CONCURRENT_MODIFICATION otherwise.
	SaveWithLock(ctx context.Context, category *Category, expectedVersion int) error

	// HardDelete physically removes a category under the same version check
	HardDelete(ctx context.Context, category *Category, expectedVersion int) error

	// DetachDeletedChildren clears parent_id on the soft-deleted children of
	// parentID and returns how many rows changed
	DetachDeletedChildren(ctx context.Context, scope Scope, parentID uuid.UUID) (int64, error)

	// LockRootLevel serializes writers that change the set of root names in
	// scope. It blocks until any other transaction holding the lock finishes.
	LockRootLevel(ctx context.Context, scope Scope) error
}
