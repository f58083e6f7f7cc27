package persistence

import (
	"context"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/persistence/models"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTemplateRepository implements TemplateRepository using GORM
type GormTemplateRepository struct {
	db *gorm.DB
}

// NewGormTemplateRepository creates a new GormTemplateRepository
func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

func (r *GormTemplateRepository) live(ctx context.Context, scope shared.Scope) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.TemplateModel{}).
		Scopes(tenant.Scope(scope)).
		Where("is_deleted = ?", false)
}

func preloadCategories(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// referencing selects template IDs that list any of the category IDs
func (r *GormTemplateRepository) referencing(categoryIDs []uuid.UUID) *gorm.DB {
	return r.db.Model(&models.TemplateCategoryModel{}).
		Select("template_id").
		Where("category_id IN ?", categoryIDs)
}

// FindByID finds a live template with its ordered categories
func (r *GormTemplateRepository) FindByID(ctx context.Context, scope shared.Scope, id uuid.UUID) (*catalog.Template, error) {
	var row models.TemplateModel
	if err := r.live(ctx, scope).
		Preload("Categories", preloadCategories).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		return nil, translateError(err, errTemplateNotFound)
	}
	return row.ToDomain(), nil
}

// FindByCategories returns live templates referencing any of the category IDs
func (r *GormTemplateRepository) FindByCategories(ctx context.Context, scope shared.Scope, categoryIDs []uuid.UUID) ([]*catalog.Template, error) {
	if len(categoryIDs) == 0 {
		return []*catalog.Template{}, nil
	}
	var rows []models.TemplateModel
	if err := r.live(ctx, scope).
		Preload("Categories", preloadCategories).
		Where("id IN (?)", r.referencing(categoryIDs)).
		Order("name ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err, errTemplateNotFound)
	}
	templates := make([]*catalog.Template, 0, len(rows))
	for i := range rows {
		templates = append(templates, rows[i].ToDomain())
	}
	return templates, nil
}

// CountReferencing counts live templates referencing categoryID
func (r *GormTemplateRepository) CountReferencing(ctx context.Context, scope shared.Scope, categoryID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Table("templates").
		Scopes(tenant.QualifiedScope("templates", scope)).
		Joins("JOIN template_categories ON template_categories.template_id = templates.id").
		Where("templates.is_deleted = ? AND template_categories.category_id = ?", false, categoryID).
		Distinct("templates.id").
		Count(&count).Error; err != nil {
		return 0, translateError(err, errTemplateNotFound)
	}
	return count, nil
}

// Create inserts a new template and its categories
func (r *GormTemplateRepository) Create(ctx context.Context, template *catalog.Template) error {
	model := models.TemplateModelFromDomain(template)
	return translateError(r.db.WithContext(ctx).Create(model).Error, errTemplateNotFound)
}

// SaveCategories advances the template version under the version check and
// rewrites its category rows. Must run inside a transaction.
func (r *GormTemplateRepository) SaveCategories(ctx context.Context, template *catalog.Template, expectedVersion int) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.TemplateModel{}).
		Scopes(tenant.Scope(template.Scope())).
		Where("id = ? AND version = ?", template.ID, expectedVersion).
		Updates(map[string]any{
			"version":    expectedVersion + 1,
			"updated_at": template.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, errTemplateNotFound)
	}
	if result.RowsAffected == 0 {
		return errTemplateConflict
	}

	if err := db.Where("template_id = ?", template.ID).Delete(&models.TemplateCategoryModel{}).Error; err != nil {
		return translateError(err, errTemplateNotFound)
	}
	if rows := models.TemplateCategoryModelsFromDomain(template); len(rows) > 0 {
		if err := db.Create(&rows).Error; err != nil {
			return translateError(err, errTemplateNotFound)
		}
	}
	template.Version = expectedVersion + 1
	return nil
}

// RemoveDeletedReferences drops categoryID from the category lists of
// soft-deleted templates in scope
func (r *GormTemplateRepository) RemoveDeletedReferences(ctx context.Context, scope shared.Scope, categoryID uuid.UUID) (int64, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}
	deleted := r.db.Model(&models.TemplateModel{}).
		Select("id").
		Scopes(tenant.Scope(scope)).
		Where("is_deleted = ?", true)
	result := r.db.WithContext(ctx).
		Where("category_id = ? AND template_id IN (?)", categoryID, deleted).
		Delete(&models.TemplateCategoryModel{})
	if result.Error != nil {
		return 0, translateError(result.Error, errTemplateNotFound)
	}
	return result.RowsAffected, nil
}

// Ensure GormTemplateRepository implements TemplateRepository
var _ catalog.TemplateRepository = (*GormTemplateRepository)(nil)
