package catalog

import (
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeCategory = "Category"

// Event type constants
const (
	EventTypeCategoryCreated = "CategoryCreated"
	EventTypeCategoryUpdated = "CategoryUpdated"
	EventTypeCategoryMoved   = "CategoryMoved"
	EventTypeCategoryDeleted = "CategoryDeleted"
)

// CategoryCreatedEvent is published when a new category is created
type CategoryCreatedEvent struct {
	shared.BaseDomainEvent
	CategoryID uuid.UUID  `json:"category_id"`
	ExternalID string     `json:"external_id"`
	Name       string     `json:"name"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	Depth      int        `json:"depth"`
}

// NewCategoryCreatedEvent creates a new CategoryCreatedEvent
func NewCategoryCreatedEvent(category *Category) *CategoryCreatedEvent {
	return &CategoryCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategoryCreated, AggregateTypeCategory, category.ID, category.Scope()),
		CategoryID:      category.ID,
		ExternalID:      category.ExternalID,
		Name:            category.Name,
		ParentID:        category.ParentID,
		Depth:           category.Depth,
	}
}

// CategoryUpdatedEvent is published when non-structural fields change
type CategoryUpdatedEvent struct {
	shared.BaseDomainEvent
	CategoryID uuid.UUID `json:"category_id"`
	Name       string    `json:"name"`
	IsVisible  bool      `json:"is_visible"`
}

// NewCategoryUpdatedEvent creates a new CategoryUpdatedEvent
func NewCategoryUpdatedEvent(category *Category) *CategoryUpdatedEvent {
	return &CategoryUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategoryUpdated, AggregateTypeCategory, category.ID, category.Scope()),
		CategoryID:      category.ID,
		Name:            category.Name,
		IsVisible:       category.IsVisible,
	}
}

// CategoryMovedEvent is published when a category is attached to a different parent
type CategoryMovedEvent struct {
	shared.BaseDomainEvent
	CategoryID  uuid.UUID  `json:"category_id"`
	OldParentID *uuid.UUID `json:"old_parent_id,omitempty"`
	NewParentID *uuid.UUID `json:"new_parent_id,omitempty"`
	OldDepth    int        `json:"old_depth"`
	NewDepth    int        `json:"new_depth"`
}

// NewCategoryMovedEvent creates a new CategoryMovedEvent
func NewCategoryMovedEvent(category *Category, oldParentID *uuid.UUID, oldDepth int) *CategoryMovedEvent {
	return &CategoryMovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategoryMoved, AggregateTypeCategory, category.ID, category.Scope()),
		CategoryID:      category.ID,
		OldParentID:     oldParentID,
		NewParentID:     category.ParentID,
		OldDepth:        oldDepth,
		NewDepth:        category.Depth,
	}
}

// CategoryDeletedEvent is published when a category is deleted
type CategoryDeletedEvent struct {
	shared.BaseDomainEvent
	CategoryID uuid.UUID  `json:"category_id"`
	ExternalID string     `json:"external_id"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
}

// NewCategoryDeletedEvent creates a new CategoryDeletedEvent
func NewCategoryDeletedEvent(category *Category) *CategoryDeletedEvent {
	return &CategoryDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCategoryDeleted, AggregateTypeCategory, category.ID, category.Scope()),
		CategoryID:      category.ID,
		ExternalID:      category.ExternalID,
		ParentID:        category.ParentID,
	}
}

// StructuralEventTypes lists the category events that change the shape of the tree
// or the content of any cached snapshot
func StructuralEventTypes() []string {
	return []string{
		EventTypeCategoryCreated,
		EventTypeCategoryUpdated,
		EventTypeCategoryMoved,
		EventTypeCategoryDeleted,
	}
}
