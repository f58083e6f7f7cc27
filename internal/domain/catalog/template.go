package catalog

import (
	"strings"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
)

// TemplateCategory is one entry of a template's ordered category list
type TemplateCategory struct {
	CategoryID uuid.UUID `json:"category_id"`
	ExternalID string    `json:"external_id"`
}

// Template is a project template that references leaf categories
type Template struct {
	shared.ScopedAggregateRoot
	ExternalID string
	Name       string
	Categories []TemplateCategory
	IsDeleted  bool
}

// NewTemplate creates a template with no categories
func NewTemplate(scope Scope, externalID, name string) (*Template, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "External ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Template name cannot be empty")
	}
	return &Template{
		ScopedAggregateRoot: shared.NewScopedAggregateRoot(scope),
		ExternalID:          externalID,
		Name:                name,
		Categories:          []TemplateCategory{},
	}, nil
}

// AssignCategories replaces the category list. Limits and leaf checks are
// enforced by the association service before calling this.
func (t *Template) AssignCategories(categories []TemplateCategory) {
	previous := t.CategoryIDs()
	t.Categories = append([]TemplateCategory(nil), categories...)
	t.Touch()
	t.AddDomainEvent(NewTemplateCategoriesAssignedEvent(t, previous))
}

// CategoryIDs returns the referenced category IDs in order
func (t *Template) CategoryIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.Categories))
	for _, c := range t.Categories {
		ids = append(ids, c.CategoryID)
	}
	return ids
}

// ReferencesCategory reports whether the template references categoryID
func (t *Template) ReferencesCategory(categoryID uuid.UUID) bool {
	for _, c := range t.Categories {
		if c.CategoryID == categoryID {
			return true
		}
	}
	return false
}

// ReferencesAny reports whether the template references any ID in the set
func (t *Template) ReferencesAny(ids map[uuid.UUID]struct{}) bool {
	for _, c := range t.Categories {
		if _, ok := ids[c.CategoryID]; ok {
			return true
		}
	}
	return false
}

// Aggregate type constant
const AggregateTypeTemplate = "Template"

// EventTypeTemplateCategoriesAssigned is published when a template's categories are replaced
const EventTypeTemplateCategoriesAssigned = "TemplateCategoriesAssigned"

// TemplateCategoriesAssignedEvent carries the old and new category sets
type TemplateCategoriesAssignedEvent struct {
	shared.BaseDomainEvent
	TemplateID          uuid.UUID   `json:"template_id"`
	PreviousCategoryIDs []uuid.UUID `json:"previous_category_ids"`
	CategoryIDs         []uuid.UUID `json:"category_ids"`
}

// NewTemplateCategoriesAssignedEvent creates a new TemplateCategoriesAssignedEvent
func NewTemplateCategoriesAssignedEvent(t *Template, previous []uuid.UUID) *TemplateCategoriesAssignedEvent {
	return &TemplateCategoriesAssignedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeTemplateCategoriesAssigned, AggregateTypeTemplate, t.ID, t.Scope()),
		TemplateID:          t.ID,
		PreviousCategoryIDs: previous,
		CategoryIDs:         t.CategoryIDs(),
	}
}
