package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/persistence/models"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const categoryOrder = "sequence_number ASC, name ASC, id ASC"

// createBatchSize bounds the rows per INSERT statement of CreateBatch
const createBatchSize = 100

// GormCategoryRepository implements CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// live returns a query over the live categories of scope
func (r *GormCategoryRepository) live(ctx context.Context, scope shared.Scope) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.CategoryModel{}).
		Scopes(tenant.Scope(scope)).
		Where("is_deleted = ?", false)
}

func (r *GormCategoryRepository) find(query *gorm.DB) ([]*catalog.Category, error) {
	var rows []models.CategoryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, translateError(err, errCategoryNotFound)
	}
	return toCategories(rows)
}

func toCategories(rows []models.CategoryModel) ([]*catalog.Category, error) {
	categories := make([]*catalog.Category, 0, len(rows))
	for i := range rows {
		c, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, nil
}

func (r *GormCategoryRepository) first(query *gorm.DB) (*catalog.Category, error) {
	var row models.CategoryModel
	if err := query.First(&row).Error; err != nil {
		return nil, translateError(err, errCategoryNotFound)
	}
	return row.ToDomain()
}

// FindByID finds a live category by its ID
func (r *GormCategoryRepository) FindByID(ctx context.Context, scope shared.Scope, id uuid.UUID) (*catalog.Category, error) {
	return r.first(r.live(ctx, scope).Where("id = ?", id))
}

// FindByIDs finds live categories by IDs; missing IDs are skipped
func (r *GormCategoryRepository) FindByIDs(ctx context.Context, scope shared.Scope, ids []uuid.UUID) ([]*catalog.Category, error) {
	if len(ids) == 0 {
		return []*catalog.Category{}, nil
	}
	return r.find(r.live(ctx, scope).Where("id IN ?", ids).Order(categoryOrder))
}

// FindByExternalID finds a live category by its external ID
func (r *GormCategoryRepository) FindByExternalID(ctx context.Context, scope shared.Scope, externalID string) (*catalog.Category, error) {
	return r.first(r.live(ctx, scope).Where("external_id = ?", externalID))
}

// ExistsByExternalID checks whether a live category uses the external ID
func (r *GormCategoryRepository) ExistsByExternalID(ctx context.Context, scope shared.Scope, externalID string) (bool, error) {
	var count int64
	if err := r.live(ctx, scope).Where("external_id = ?", externalID).Count(&count).Error; err != nil {
		return false, translateError(err, errCategoryNotFound)
	}
	return count > 0, nil
}

// FindChildren finds live direct children of parentID, or the roots when nil
func (r *GormCategoryRepository) FindChildren(ctx context.Context, scope shared.Scope, parentID *uuid.UUID) ([]*catalog.Category, error) {
	query := r.live(ctx, scope)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	return r.find(query.Order(categoryOrder))
}

// FindChildrenOf finds live direct children of any of the given parents
func (r *GormCategoryRepository) FindChildrenOf(ctx context.Context, scope shared.Scope, parentIDs []uuid.UUID) ([]*catalog.Category, error) {
	if len(parentIDs) == 0 {
		return []*catalog.Category{}, nil
	}
	return r.find(r.live(ctx, scope).Where("parent_id IN ?", parentIDs).Order(categoryOrder))
}

// FindDescendants walks the tree level by level from id, one query per level.
// Rows already visited are skipped, so corrupted parent links cannot loop.
func (r *GormCategoryRepository) FindDescendants(ctx context.Context, scope shared.Scope, id uuid.UUID) ([]*catalog.Category, error) {
	var descendants []*catalog.Category
	visited := map[uuid.UUID]bool{id: true}
	frontier := []uuid.UUID{id}
	for len(frontier) > 0 {
		children, err := r.FindChildrenOf(ctx, scope, frontier)
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, c := range children {
			if visited[c.ID] {
				continue
			}
			visited[c.ID] = true
			descendants = append(descendants, c)
			frontier = append(frontier, c.ID)
		}
	}
	return descendants, nil
}

// FindAncestors follows parent links upward from id for at most maxHops,
// nearest first. The walk stops at a root or at a missing parent.
func (r *GormCategoryRepository) FindAncestors(ctx context.Context, scope shared.Scope, id uuid.UUID, maxHops int) ([]*catalog.Category, error) {
	current, err := r.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	var ancestors []*catalog.Category
	visited := map[uuid.UUID]bool{id: true}
	for hops := 0; hops < maxHops && current.ParentID != nil; hops++ {
		if visited[*current.ParentID] {
			break
		}
		parent, err := r.FindByID(ctx, scope, *current.ParentID)
		if err != nil {
			if shared.ErrorCode(err) == shared.CodeNotFound {
				break
			}
			return nil, err
		}
		visited[parent.ID] = true
		ancestors = append(ancestors, parent)
		current = parent
	}
	return ancestors, nil
}

func (r *GormCategoryRepository) applyFilter(query *gorm.DB, filter catalog.CategoryFilter) *gorm.DB {
	if filter.ParentID != nil {
		query = query.Where("parent_id = ?", *filter.ParentID)
	} else if filter.RootsOnly {
		query = query.Where("parent_id IS NULL")
	}
	if filter.Level != nil {
		query = query.Where("depth = ?", *filter.Level)
	}
	if filter.LeafOnly {
		query = query.Where("has_child_categories = ?", false)
	}
	return query
}

// FindAll finds live categories matching the filter
func (r *GormCategoryRepository) FindAll(ctx context.Context, scope shared.Scope, filter catalog.CategoryFilter) ([]*catalog.Category, error) {
	query := r.applyFilter(r.live(ctx, scope), filter).Order(categorySortClause(filter.SortBy, filter.SortOrder))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return r.find(query)
}

// Count counts live categories matching the filter
func (r *GormCategoryRepository) Count(ctx context.Context, scope shared.Scope, filter catalog.CategoryFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.live(ctx, scope), filter).Count(&count).Error; err != nil {
		return 0, translateError(err, errCategoryNotFound)
	}
	return count, nil
}

// CountChildren counts live direct children of id
func (r *GormCategoryRepository) CountChildren(ctx context.Context, scope shared.Scope, id uuid.UUID) (int64, error) {
	var count int64
	if err := r.live(ctx, scope).Where("parent_id = ?", id).Count(&count).Error; err != nil {
		return 0, translateError(err, errCategoryNotFound)
	}
	return count, nil
}

// Create inserts a new category
func (r *GormCategoryRepository) Create(ctx context.Context, category *catalog.Category) error {
	model, err := models.CategoryModelFromDomain(category)
	if err != nil {
		return err
	}
	return translateError(r.db.WithContext(ctx).Create(model).Error, errCategoryNotFound)
}

// CreateBatch inserts new categories in order, parents before children
func (r *GormCategoryRepository) CreateBatch(ctx context.Context, categories []*catalog.Category) error {
	if len(categories) == 0 {
		return nil
	}
	rows := make([]*models.CategoryModel, 0, len(categories))
	for _, c := range categories {
		model, err := models.CategoryModelFromDomain(c)
		if err != nil {
			return err
		}
		rows = append(rows, model)
	}
	return translateError(r.db.WithContext(ctx).CreateInBatches(rows, createBatchSize).Error, errCategoryNotFound)
}

// SaveWithLock updates every mutable column if the stored version equals
// expectedVersion, then advances the version by one
func (r *GormCategoryRepository) SaveWithLock(ctx context.Context, category *catalog.Category, expectedVersion int) error {
	meta, err := models.EncodeMeta(category.MetaInformation)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&models.CategoryModel{}).
		Scopes(tenant.Scope(category.Scope())).
		Where("id = ? AND version = ?", category.ID, expectedVersion).
		Updates(map[string]any{
			"name":                 category.Name,
			"parent_id":            category.ParentID,
			"has_child_categories": category.HasChildCategories,
			"sequence_number":      category.SequenceNumber,
			"depth":                category.Depth,
			"meta_information":     meta,
			"is_deleted":           category.IsDeleted,
			"is_visible":           category.IsVisible,
			"no_of_projects":       category.NoOfProjects,
			"updated_at":           category.UpdatedAt,
			"version":              expectedVersion + 1,
		})
	if result.Error != nil {
		return translateError(result.Error, errCategoryNotFound)
	}
	if result.RowsAffected == 0 {
		return errCategoryConflict
	}
	category.Version = expectedVersion + 1
	return nil
}

// HardDelete physically removes a category under the same version check
func (r *GormCategoryRepository) HardDelete(ctx context.Context, category *catalog.Category, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Scopes(tenant.Scope(category.Scope())).
		Where("id = ? AND version = ?", category.ID, expectedVersion).
		Delete(&models.CategoryModel{})
	if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
		return shared.WrapDomainError(catalog.CodeNotDeletable, "Category is still referenced", result.Error)
	}
	if result.Error != nil {
		return translateError(result.Error, errCategoryNotFound)
	}
	if result.RowsAffected == 0 {
		return errCategoryConflict
	}
	return nil
}

// DetachDeletedChildren clears parent_id on the soft-deleted children of parentID
func (r *GormCategoryRepository) DetachDeletedChildren(ctx context.Context, scope shared.Scope, parentID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CategoryModel{}).
		Scopes(tenant.Scope(scope)).
		Where("parent_id = ? AND is_deleted = ?", parentID, true).
		Updates(map[string]any{
			"parent_id":  nil,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, translateError(result.Error, errCategoryNotFound)
	}
	return result.RowsAffected, nil
}

// LockRootLevel upserts the scope's root lock row. The row lock is held until
// the surrounding transaction ends, so it must run inside one.
func (r *GormCategoryRepository) LockRootLevel(ctx context.Context, scope shared.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	now := time.Now()
	lock := models.CategoryRootLockModel{
		TenantID:  scope.TenantID,
		OrgID:     scope.OrgID,
		Version:   1,
		UpdatedAt: now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "org_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"version":    gorm.Expr("category_root_locks.version + 1"),
			"updated_at": now,
		}),
	}).Create(&lock).Error
	return translateError(err, errCategoryNotFound)
}

// Ensure GormCategoryRepository implements CategoryRepository
var _ catalog.CategoryRepository = (*GormCategoryRepository)(nil)
