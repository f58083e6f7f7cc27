package catalog

import (
	"maps"
	"strings"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
)

// MaxExternalIDLength bounds the source-system reference
const MaxExternalIDLength = 100

// Category is a node in the tenant/org scoped category tree.
// Depth and HasChildCategories are denormalized and kept consistent by the
// tree service; Version is advanced by the store on every successful save.
type Category struct {
	shared.ScopedAggregateRoot
	ExternalID         string
	Name               string
	ParentID           *uuid.UUID
	HasChildCategories bool
	SequenceNumber     int
	Depth              int
	MetaInformation    map[string]any
	IsDeleted          bool
	IsVisible          bool
	NoOfProjects       int
}

// NewCategory creates a category as a root (parent == nil) or under parent.
// Policy dependent checks (depth, name length, sibling names) belong to HierarchyRules.
func NewCategory(scope Scope, externalID, name string, parent *Category) (*Category, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "External ID cannot be empty")
	}
	if len(externalID) > MaxExternalIDLength {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "External ID is too long")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Category name cannot be empty")
	}
	if parent != nil && parent.Scope() != scope {
		return nil, ErrParentNotFound
	}

	c := &Category{
		ScopedAggregateRoot: shared.NewScopedAggregateRoot(scope),
		ExternalID:          externalID,
		Name:                name,
		MetaInformation:     map[string]any{},
		IsVisible:           true,
	}
	if parent != nil {
		parentID := parent.ID
		c.ParentID = &parentID
	}
	c.Depth = ComputeDepth(parent)

	c.AddDomainEvent(NewCategoryCreatedEvent(c))
	return c, nil
}

// IsRoot returns true if the category has no parent
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// IsLeaf returns true if no live category has this one as parent
func (c *Category) IsLeaf() bool {
	return !c.HasChildCategories
}

// HasParent reports whether the category's parent is id
func (c *Category) HasParent(id uuid.UUID) bool {
	return c.ParentID != nil && *c.ParentID == id
}

// CategoryChanges holds optional non-structural field updates
type CategoryChanges struct {
	Name            *string
	MetaInformation map[string]any
	IsVisible       *bool
	SequenceNumber  *int
}

// IsEmpty reports whether no field is set
func (ch CategoryChanges) IsEmpty() bool {
	return ch.Name == nil && ch.MetaInformation == nil && ch.IsVisible == nil && ch.SequenceNumber == nil
}

// ApplyChanges applies non-structural changes. The parent cannot be changed here.
func (c *Category) ApplyChanges(ch CategoryChanges) error {
	if ch.Name != nil {
		name := strings.TrimSpace(*ch.Name)
		if name == "" {
			return shared.NewDomainError(shared.CodeInvalidInput, "Category name cannot be empty")
		}
		c.Name = name
	}
	if ch.MetaInformation != nil {
		c.MetaInformation = maps.Clone(ch.MetaInformation)
	}
	if ch.IsVisible != nil {
		c.IsVisible = *ch.IsVisible
	}
	if ch.SequenceNumber != nil {
		if *ch.SequenceNumber < 0 {
			return shared.NewDomainError(shared.CodeInvalidInput, "Sequence number cannot be negative")
		}
		c.SequenceNumber = *ch.SequenceNumber
	}
	c.Touch()
	c.AddDomainEvent(NewCategoryUpdatedEvent(c))
	return nil
}

// Relocate moves the category under newParent (nil = root) and recomputes its depth.
// Descendant depths are adjusted separately with SetDepth.
func (c *Category) Relocate(newParent *Category) {
	oldParentID := c.ParentID
	oldDepth := c.Depth
	if newParent == nil {
		c.ParentID = nil
	} else {
		id := newParent.ID
		c.ParentID = &id
	}
	c.Depth = ComputeDepth(newParent)
	c.Touch()
	c.AddDomainEvent(NewCategoryMovedEvent(c, oldParentID, oldDepth))
}

// SetDepth sets the denormalized depth, returning true if it changed
func (c *Category) SetDepth(depth int) bool {
	if c.Depth == depth {
		return false
	}
	c.Depth = depth
	c.Touch()
	return true
}

// SetHasChildCategories sets the child-presence flag, returning true if it changed
func (c *Category) SetHasChildCategories(has bool) bool {
	if c.HasChildCategories == has {
		return false
	}
	c.HasChildCategories = has
	c.Touch()
	return true
}

// MarkDeleted soft-deletes the category
func (c *Category) MarkDeleted() {
	c.IsDeleted = true
	c.Touch()
	c.AddDomainEvent(NewCategoryDeletedEvent(c))
}
