package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/google/uuid"
)

// CategoryModel is the persistence model for the Category domain entity.
type CategoryModel struct {
	ScopedAggregateModel
	ExternalID         string     `gorm:"type:varchar(100);not null;index:idx_categories_external_id"`
	Name               string     `gorm:"type:varchar(255);not null"`
	ParentID           *uuid.UUID `gorm:"type:uuid;index:idx_categories_parent"`
	HasChildCategories bool       `gorm:"not null;default:false"`
	SequenceNumber     int        `gorm:"not null;default:0"`
	Depth              int        `gorm:"not null;default:0;index:idx_categories_depth"`
	MetaInformation    string     `gorm:"type:text;not null;default:'{}'"`
	IsDeleted          bool       `gorm:"not null;default:false;index:idx_categories_deleted"`
	IsVisible          bool       `gorm:"not null"`
	NoOfProjects       int        `gorm:"not null;default:0"`

	Parent *CategoryModel `gorm:"foreignKey:ParentID"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a domain Category entity.
func (m *CategoryModel) ToDomain() (*catalog.Category, error) {
	meta := map[string]any{}
	if m.MetaInformation != "" {
		if err := json.Unmarshal([]byte(m.MetaInformation), &meta); err != nil {
			return nil, fmt.Errorf("decode meta information of category %s: %w", m.ID, err)
		}
	}
	return &catalog.Category{
		ScopedAggregateRoot: m.ToDomainScopedAggregateRoot(),
		ExternalID:          m.ExternalID,
		Name:                m.Name,
		ParentID:            m.ParentID,
		HasChildCategories:  m.HasChildCategories,
		SequenceNumber:      m.SequenceNumber,
		Depth:               m.Depth,
		MetaInformation:     meta,
		IsDeleted:           m.IsDeleted,
		IsVisible:           m.IsVisible,
		NoOfProjects:        m.NoOfProjects,
	}, nil
}

// FromDomain populates the persistence model from a domain Category entity.
func (m *CategoryModel) FromDomain(c *catalog.Category) error {
	meta, err := EncodeMeta(c.MetaInformation)
	if err != nil {
		return err
	}
	m.FromDomainScopedAggregateRoot(c.ScopedAggregateRoot)
	m.ExternalID = c.ExternalID
	m.Name = c.Name
	m.ParentID = c.ParentID
	m.HasChildCategories = c.HasChildCategories
	m.SequenceNumber = c.SequenceNumber
	m.Depth = c.Depth
	m.MetaInformation = meta
	m.IsDeleted = c.IsDeleted
	m.IsVisible = c.IsVisible
	m.NoOfProjects = c.NoOfProjects
	return nil
}

// CategoryModelFromDomain creates a new persistence model from a domain Category entity.
func CategoryModelFromDomain(c *catalog.Category) (*CategoryModel, error) {
	m := &CategoryModel{}
	if err := m.FromDomain(c); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeMeta serializes category metadata; nil becomes an empty object
func EncodeMeta(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode meta information: %w", err)
	}
	return string(raw), nil
}

// TemplateModel is the persistence model for the Template aggregate.
type TemplateModel struct {
	ScopedAggregateModel
	ExternalID string                  `gorm:"type:varchar(100);not null;index:idx_templates_external_id"`
	Name       string                  `gorm:"type:varchar(200);not null"`
	IsDeleted  bool                    `gorm:"not null;default:false"`
	Categories []TemplateCategoryModel `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (TemplateModel) TableName() string {
	return "templates"
}

// TemplateCategoryModel stores one ordered entry of a template's category list
type TemplateCategoryModel struct {
	TemplateID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position   int       `gorm:"primaryKey;autoIncrement:false"`
	CategoryID uuid.UUID `gorm:"type:uuid;not null;index:idx_template_categories_category"`
	ExternalID string    `gorm:"type:varchar(100);not null"`

	Category *CategoryModel `gorm:"foreignKey:CategoryID"`
}

// TableName returns the table name for GORM
func (TemplateCategoryModel) TableName() string {
	return "template_categories"
}

// ToDomain converts the persistence model to a domain Template. Categories must
// be preloaded in position order.
func (m *TemplateModel) ToDomain() *catalog.Template {
	categories := make([]catalog.TemplateCategory, 0, len(m.Categories))
	for _, c := range m.Categories {
		categories = append(categories, catalog.TemplateCategory{CategoryID: c.CategoryID, ExternalID: c.ExternalID})
	}
	return &catalog.Template{
		ScopedAggregateRoot: m.ToDomainScopedAggregateRoot(),
		ExternalID:          m.ExternalID,
		Name:                m.Name,
		Categories:          categories,
		IsDeleted:           m.IsDeleted,
	}
}

// TemplateModelFromDomain creates a new persistence model from a domain Template.
func TemplateModelFromDomain(t *catalog.Template) *TemplateModel {
	m := &TemplateModel{
		ExternalID: t.ExternalID,
		Name:       t.Name,
		IsDeleted:  t.IsDeleted,
		Categories: TemplateCategoryModelsFromDomain(t),
	}
	m.FromDomainScopedAggregateRoot(t.ScopedAggregateRoot)
	return m
}

// TemplateCategoryModelsFromDomain maps a template's ordered category list to rows
func TemplateCategoryModelsFromDomain(t *catalog.Template) []TemplateCategoryModel {
	rows := make([]TemplateCategoryModel, 0, len(t.Categories))
	for i, c := range t.Categories {
		rows = append(rows, TemplateCategoryModel{
			TemplateID: t.ID,
			Position:   i,
			CategoryID: c.CategoryID,
			ExternalID: c.ExternalID,
		})
	}
	return rows
}

// CategoryRootLockModel is the per-scope row writers lock before changing the
// set of root category names
type CategoryRootLockModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrgID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Version   int       `gorm:"not null;default:1"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CategoryRootLockModel) TableName() string {
	return "category_root_locks"
}
