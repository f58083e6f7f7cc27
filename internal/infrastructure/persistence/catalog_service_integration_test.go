package persistence

import (
	"context"
	"errors"
	"testing"

	appcatalog "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// catalogStack wires both services to a real sqlite store
type catalogStack struct {
	db         *gorm.DB
	categories *appcatalog.CategoryService
	templates  *appcatalog.TemplateCategoryService
	scope      catalog.Scope
	ctx        context.Context
}

func newCatalogStack(t *testing.T, policy catalog.Policy) *catalogStack {
	return newCatalogStackOn(setupCatalogDB(t), policy)
}

func newCatalogStackOn(db *gorm.DB, policy catalog.Policy) *catalogStack {
	txScope := NewBreakerTransactionScope(NewGormTransactionScope(db), DefaultBreakerConfig(), nil)
	return &catalogStack{
		db:         db,
		categories: appcatalog.NewCategoryService(txScope, policy),
		templates:  appcatalog.NewTemplateCategoryService(txScope, policy),
		scope:      testScope(),
		ctx:        context.Background(),
	}
}

func (s *catalogStack) create(t *testing.T, externalID, name string, parent *appcatalog.CategoryResponse) *appcatalog.CategoryResponse {
	t.Helper()
	req := appcatalog.CreateCategoryRequest{ExternalID: externalID, Name: name}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	resp, err := s.categories.Create(s.ctx, s.scope, req)
	require.NoError(t, err)
	return resp
}

// row reads the stored category bypassing every filter
func (s *catalogStack) row(t *testing.T, id uuid.UUID) models.CategoryModel {
	t.Helper()
	var m models.CategoryModel
	require.NoError(t, s.db.Where("id = ?", id).First(&m).Error)
	return m
}

func (s *catalogStack) countCategories(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&models.CategoryModel{}).Count(&n).Error)
	return n
}

func TestCatalogScenario_MoveLeafToAnotherRoot(t *testing.T) {
	s := newCatalogStack(t, catalog.DefaultPolicy())
	a := s.create(t, "a", "A", nil)
	b := s.create(t, "b", "B", a)
	c := s.create(t, "c", "C", b)
	d := s.create(t, "d", "D", nil)

	moved, err := s.categories.Move(s.ctx, s.scope, c.ID, appcatalog.MoveCategoryRequest{ParentID: &d.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, moved.Depth)

	assert.Equal(t, d.ID, *s.row(t, c.ID).ParentID)
	assert.Equal(t, 1, s.row(t, c.ID).Depth)
	assert.False(t, s.row(t, b.ID).HasChildCategories)
	assert.True(t, s.row(t, a.ID).HasChildCategories)
	assert.True(t, s.row(t, d.ID).HasChildCategories)

	leaves, err := s.categories.ListLeaves(s.ctx, s.scope)
	require.NoError(t, err)
	leafNames := make([]string, 0, len(leaves))
	for _, l := range leaves {
		leafNames = append(leafNames, l.Name)
	}
	assert.ElementsMatch(t, []string{"B", "C"}, leafNames)
}

func TestCatalogScenario_MoveSubtreeUpdatesEveryDepth(t *testing.T) {
	s := newCatalogStack(t, catalog.DefaultPolicy())
	a := s.create(t, "a", "A", nil)
	b := s.create(t, "b", "B", a)
	c := s.create(t, "c", "C", b)
	d := s.create(t, "d", "D", nil)
	e := s.create(t, "e", "E", d)

	_, err := s.categories.Move(s.ctx, s.scope, b.ID, appcatalog.MoveCategoryRequest{ParentID: &e.ID})
	require.NoError(t, err)

	assert.Equal(t, 2, s.row(t, b.ID).Depth)
	assert.Equal(t, 3, s.row(t, c.ID).Depth)
	assert.False(t, s.row(t, a.ID).HasChildCategories)
	assert.True(t, s.row(t, e.ID).HasChildCategories)
	// the new parent's ancestors were version-touched
	assert.Greater(t, s.row(t, d.ID).Version, d.Version)
}

func TestCatalogScenario_CycleLeavesTreeUnchanged(t *testing.T) {
	s := newCatalogStack(t, catalog.DefaultPolicy())
	a := s.create(t, "a", "A", nil)
	b := s.create(t, "b", "B", a)
	c := s.create(t, "c", "C", b)

	before := []models.CategoryModel{s.row(t, a.ID), s.row(t, b.ID), s.row(t, c.ID)}

	_, err := s.categories.Move(s.ctx, s.scope, a.ID, appcatalog.MoveCategoryRequest{ParentID: &c.ID})
	assert.ErrorIs(t, err, catalog.ErrCycleDetected)

	_, err = s.categories.Move(s.ctx, s.scope, a.ID, appcatalog.MoveCategoryRequest{ParentID: &a.ID})
	assert.ErrorIs(t, err, catalog.ErrCycleDetected)

	after := []models.CategoryModel{s.row(t, a.ID), s.row(t, b.ID), s.row(t, c.ID)}
	for i := range before {
		assert.Equal(t, before[i].ParentID, after[i].ParentID)
		assert.Equal(t, before[i].Depth, after[i].Depth)
		assert.Equal(t, before[i].Version, after[i].Version)
		assert.Equal(t, before[i].HasChildCategories, after[i].HasChildCategories)
	}
}

func TestCatalogScenario_DepthLimit(t *testing.T) {
	policy := catalog.DefaultPolicy()
	policy.MaxHierarchyDepth = 2
	s := newCatalogStack(t, policy)

	l0 := s.create(t, "l0", "Level 0", nil)
	l1 := s.create(t, "l1", "Level 1", l0)
	l2 := s.create(t, "l2", "Level 2", l1)

	_, err := s.categories.Create(s.ctx, s.scope, appcatalog.CreateCategoryRequest{
		ExternalID: "l3", Name: "Level 3", ParentID: &l2.ID,
	})
	assert.ErrorIs(t, err, catalog.ErrDepthExceeded)
	assert.Equal(t, int64(3), s.countCategories(t))
	assert.False(t, s.row(t, l2.ID).HasChildCategories)

	other := s.create(t, "x0", "Other", nil)
	s.create(t, "x1", "Other child", other)
	// moving a two level subtree below Level 1 would put its leaf at depth 3
	_, err = s.categories.Move(s.ctx, s.scope, other.ID, appcatalog.MoveCategoryRequest{ParentID: &l1.ID})
	assert.ErrorIs(t, err, catalog.ErrDepthExceeded)
}

func TestCatalogScenario_BulkCreateIsAllOrNothing(t *testing.T) {
	s := newCatalogStack(t, catalog.DefaultPolicy())
	existing := s.create(t, "existing", "Existing", nil)

	entries := []appcatalog.BulkCategoryEntry{
		{ExternalID: "r", Name: "Root"},
		{ExternalID: "r1", Name: "First", ParentExternalID: "r"},
		{ExternalID: "r2", Name: "first", ParentExternalID: "r"},
		{ExternalID: "e1", Name: "Under existing", ParentID: &existing.ID},
		{ExternalID: "orphan", Name: "Orphan", ParentExternalID: "nowhere"},
	}
	_, err := s.categories.BulkCreate(s.ctx, s.scope, entries)
	var bulkErr *appcatalog.BulkValidationError
	require.True(t, errors.As(err, &bulkErr))
	require.Len(t, bulkErr.Failures, 2)
	assert.Equal(t, 2, bulkErr.Failures[0].Index)
	assert.ErrorIs(t, bulkErr.Failures[0].Err, catalog.ErrDuplicateName)
	assert.Equal(t, 4, bulkErr.Failures[1].Index)
	assert.Equal(t, int64(1), s.countCategories(t))
	assert.False(t, s.row(t, existing.ID).HasChildCategories)

	entries[2].Name = "Second"
	entries = entries[:4]
	created, err := s.categories.BulkCreate(s.ctx, s.scope, entries)
	require.NoError(t, err)
	require.Len(t, created, 4)
	assert.Equal(t, int64(5), s.countCategories(t))
	assert.True(t, s.row(t, existing.ID).HasChildCategories)
	assert.Equal(t, 1, s.row(t, created[1].ID).Depth)
}

func TestCatalogScenario_StaleUpdateIsRejected(t *testing.T) {
	s := newCatalogStack(t, catalog.DefaultPolicy())
	c := s.create(t, "c", "Original", nil)

	first := "First writer"
	updated, err := s.categories.Update(s.ctx, s.scope, c.ID, appcatalog.UpdateCategoryRequest{Name: &first, Version: &c.Version})
	require.NoError(t, err)
	assert.Equal(t, c.Version+1, updated.Version)

	second := "Second writer"
	_, err = s.categories.Update(s.ctx, s.scope, c.ID, appcatalog.UpdateCategoryRequest{Name: &second, Version: &c.Version})
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.True(t, shared.IsRetryable(err))
	assert.Equal(t, "First writer", s.row(t, c.ID).Name)
}

func TestCatalogScenario_DeleteRules(t *testing.T) {
	s := newCatalogStack(t, catalog.DefaultPolicy())
	root := s.create(t, "root", "Root", nil)
	used := s.create(t, "used", "Used", root)
	free := s.create(t, "free", "Free", root)

	tpl, err := s.templates.CreateTemplate(s.ctx, s.scope, appcatalog.CreateTemplateRequest{
		ExternalID: "tpl", Name: "Template", CategoryIDs: []uuid.UUID{used.ID},
	})
	require.NoError(t, err)
	require.Len(t, tpl.Categories, 1)

	res, err := s.categories.CanDelete(s.ctx, s.scope, root.ID)
	require.NoError(t, err)
	assert.False(t, res.Deletable)
	assert.Equal(t, appcatalog.ReasonHasChildCategories, res.Reason)

	res, err = s.categories.CanDelete(s.ctx, s.scope, used.ID)
	require.NoError(t, err)
	assert.False(t, res.Deletable)
	assert.Equal(t, appcatalog.ReasonReferencedByTemplate, res.Reason)
	assert.ErrorIs(t, s.categories.Delete(s.ctx, s.scope, used.ID), catalog.ErrNotDeletable)

	require.NoError(t, s.categories.Delete(s.ctx, s.scope, free.ID))
	assert.True(t, s.row(t, free.ID).IsDeleted)
	assert.True(t, s.row(t, root.ID).HasChildCategories)

	_, err = s.templates.Attach(s.ctx, s.scope, tpl.ID, nil)
	require.NoError(t, err)
	require.NoError(t, s.categories.Delete(s.ctx, s.scope, used.ID))
	assert.False(t, s.row(t, root.ID).HasChildCategories)

	_, err = s.categories.GetByID(s.ctx, s.scope, used.ID)
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
}

func TestCatalogScenario_HardDeleteWithDeletedReferences(t *testing.T) {
	db := setupCatalogDBWithForeignKeys(t)
	soft := newCatalogStackOn(db, catalog.DefaultPolicy())
	hardPolicy := catalog.DefaultPolicy()
	hardPolicy.SoftDelete = false
	hard := newCatalogStackOn(db, hardPolicy)
	hard.scope = soft.scope

	root := soft.create(t, "root", "Root", nil)
	child := soft.create(t, "child", "Child", root)
	leaf := soft.create(t, "leaf", "Leaf", nil)

	tpl, err := soft.templates.CreateTemplate(soft.ctx, soft.scope, appcatalog.CreateTemplateRequest{
		ExternalID: "tpl", Name: "Template", CategoryIDs: []uuid.UUID{leaf.ID},
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.TemplateModel{}).Where("id = ?", tpl.ID).Update("is_deleted", true).Error)
	require.NoError(t, soft.categories.Delete(soft.ctx, soft.scope, child.ID))

	t.Run("leaf referenced only by a deleted template", func(t *testing.T) {
		require.NoError(t, hard.categories.Delete(hard.ctx, hard.scope, leaf.ID))

		var n int64
		require.NoError(t, db.Model(&models.CategoryModel{}).Where("id = ?", leaf.ID).Count(&n).Error)
		assert.Zero(t, n)
		require.NoError(t, db.Model(&models.TemplateCategoryModel{}).Where("category_id = ?", leaf.ID).Count(&n).Error)
		assert.Zero(t, n)
	})

	t.Run("parent of a deleted child", func(t *testing.T) {
		require.NoError(t, hard.categories.Delete(hard.ctx, hard.scope, root.ID))

		var n int64
		require.NoError(t, db.Model(&models.CategoryModel{}).Where("id = ?", root.ID).Count(&n).Error)
		assert.Zero(t, n)
		orphan := hard.row(t, child.ID)
		assert.True(t, orphan.IsDeleted)
		assert.Nil(t, orphan.ParentID)
	})
}

func TestCatalogScenario_ResolveTemplates(t *testing.T) {
	s := newCatalogStack(t, catalog.DefaultPolicy())
	science := s.create(t, "science", "Science", nil)
	physics := s.create(t, "physics", "Physics", science)
	optics := s.create(t, "optics", "Optics", physics)
	chemistry := s.create(t, "chemistry", "Chemistry", science)

	newTemplate := func(ext, name string, ids ...uuid.UUID) *appcatalog.TemplateResponse {
		tpl, err := s.templates.CreateTemplate(s.ctx, s.scope, appcatalog.CreateTemplateRequest{ExternalID: ext, Name: name})
		require.NoError(t, err)
		tpl, err = s.templates.Attach(s.ctx, s.scope, tpl.ID, ids)
		require.NoError(t, err)
		return tpl
	}
	lab := newTemplate("t1", "Lab", optics.ID, chemistry.ID)
	lenses := newTemplate("t2", "Lenses", optics.ID)
	newTemplate("t3", "Reactions", chemistry.ID)
	assert.Len(t, lab.Categories, 2)

	resolve := func(req appcatalog.ResolveTemplatesRequest) []string {
		page, err := s.templates.ResolveTemplatesByCategory(s.ctx, s.scope, req)
		require.NoError(t, err)
		out := make([]string, 0, len(page.Items))
		for _, item := range page.Items {
			out = append(out, item.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Lab", "Lenses", "Reactions"},
		resolve(appcatalog.ResolveTemplatesRequest{CategoryIDs: []uuid.UUID{optics.ID, chemistry.ID}}))
	assert.Equal(t, []string{"Lab"},
		resolve(appcatalog.ResolveTemplatesRequest{CategoryIDs: []uuid.UUID{optics.ID, chemistry.ID}, Mode: catalog.QueryModeAND}))
	assert.Equal(t, []string{"Lab", "Lenses"},
		resolve(appcatalog.ResolveTemplatesRequest{CategoryIDs: []uuid.UUID{science.ID, physics.ID, optics.ID}, Mode: catalog.QueryModePATH}))

	inherit := true
	assert.Empty(t, resolve(appcatalog.ResolveTemplatesRequest{CategoryIDs: []uuid.UUID{physics.ID}}))
	assert.Equal(t, []string{"Lab", "Lenses"},
		resolve(appcatalog.ResolveTemplatesRequest{CategoryIDs: []uuid.UUID{physics.ID}, IncludeInherited: &inherit}))

	_, err := s.templates.ResolveTemplatesByCategory(s.ctx, s.scope, appcatalog.ResolveTemplatesRequest{
		CategoryIDs: []uuid.UUID{physics.ID, optics.ID}, Mode: catalog.QueryModePATH,
	})
	assert.ErrorIs(t, err, catalog.ErrInvalidPath)

	_, err = s.templates.Attach(s.ctx, s.scope, lenses.ID, []uuid.UUID{physics.ID})
	assert.ErrorIs(t, err, catalog.ErrNotLeafCategory)

	stored, err := NewGormTemplateRepository(s.db).FindByID(s.ctx, s.scope, lenses.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{optics.ID}, stored.CategoryIDs())
}

func TestCatalogScenario_BuildAndRepairHierarchy(t *testing.T) {
	s := newCatalogStack(t, catalog.DefaultPolicy())
	a := s.create(t, "a", "A", nil)
	b := s.create(t, "b", "B", a)
	s.create(t, "c", "C", b)
	d := s.create(t, "d", "D", nil)

	forest, err := s.categories.BuildHierarchy(s.ctx, s.scope, nil, nil)
	require.NoError(t, err)
	require.Len(t, forest, 2)
	assert.Equal(t, "A", forest[0].Name)
	require.Len(t, forest[0].Children, 1)
	require.Len(t, forest[0].Children[0].Children, 1)
	assert.Equal(t, "C", forest[0].Children[0].Children[0].Name)

	one := 1
	shallow, err := s.categories.BuildHierarchy(s.ctx, s.scope, &a.ID, &one)
	require.NoError(t, err)
	require.Len(t, shallow, 1)
	require.Len(t, shallow[0].Children, 1)
	assert.Empty(t, shallow[0].Children[0].Children)

	// simulate drift left by a crashed writer
	require.NoError(t, s.db.Exec("UPDATE categories SET has_child_categories = ? WHERE id = ?", true, d.ID).Error)
	require.NoError(t, s.db.Exec("UPDATE categories SET depth = ? WHERE id = ?", 7, b.ID).Error)

	report, err := s.categories.RepairHierarchy(s.ctx, s.scope)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 1, report.FlagsFixed)
	assert.Equal(t, 1, report.DepthsFixed)
	assert.False(t, s.row(t, d.ID).HasChildCategories)
	assert.Equal(t, 1, s.row(t, b.ID).Depth)

	again, err := s.categories.RepairHierarchy(s.ctx, s.scope)
	require.NoError(t, err)
	assert.Zero(t, again.FlagsFixed)
	assert.Zero(t, again.DepthsFixed)
}
