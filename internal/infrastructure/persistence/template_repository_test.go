package persistence

import (
	"testing"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assignment(categories ...*catalog.Category) []catalog.TemplateCategory {
	out := make([]catalog.TemplateCategory, 0, len(categories))
	for _, c := range categories {
		out = append(out, catalog.TemplateCategory{CategoryID: c.ID, ExternalID: c.ExternalID})
	}
	return out
}

func TestGormTemplateRepository(t *testing.T) {
	f := newCategoryRepoFixture(t)
	repo := NewGormTemplateRepository(f.db)
	root := f.create(t, "root", "Root", nil)
	math := f.create(t, "math", "Math", root)
	art := f.create(t, "art", "Art", root)
	music := f.create(t, "music", "Music", root)

	newTemplate := func(t *testing.T, externalID, name string, categories ...*catalog.Category) *catalog.Template {
		tpl, err := catalog.NewTemplate(f.scope, externalID, name)
		require.NoError(t, err)
		tpl.Categories = assignment(categories...)
		require.NoError(t, repo.Create(f.ctx, tpl))
		return tpl
	}

	algebra := newTemplate(t, "tpl-1", "Algebra", art, math)
	sketching := newTemplate(t, "tpl-2", "Sketching", art)
	removed := newTemplate(t, "tpl-3", "Archived", art)
	removed.IsDeleted = true
	require.NoError(t, f.db.Exec("UPDATE templates SET is_deleted = ? WHERE id = ?", true, removed.ID).Error)

	t.Run("find by id keeps category order", func(t *testing.T) {
		found, err := repo.FindByID(f.ctx, f.scope, algebra.ID)
		require.NoError(t, err)
		assert.Equal(t, "Algebra", found.Name)
		assert.Equal(t, []uuid.UUID{art.ID, math.ID}, found.CategoryIDs())
		assert.Equal(t, "art", found.Categories[0].ExternalID)
		assert.Equal(t, 1, found.Version)
	})

	t.Run("deleted and foreign templates are hidden", func(t *testing.T) {
		_, err := repo.FindByID(f.ctx, f.scope, removed.ID)
		assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))

		_, err = repo.FindByID(f.ctx, testScope(), algebra.ID)
		assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
	})

	t.Run("find by categories ordered by name", func(t *testing.T) {
		found, err := repo.FindByCategories(f.ctx, f.scope, []uuid.UUID{art.ID, math.ID})
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "Algebra", found[0].Name)
		assert.Equal(t, "Sketching", found[1].Name)
		assert.Len(t, found[0].Categories, 2)

		none, err := repo.FindByCategories(f.ctx, f.scope, []uuid.UUID{music.ID})
		require.NoError(t, err)
		assert.Empty(t, none)

		empty, err := repo.FindByCategories(f.ctx, f.scope, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("count referencing skips deleted templates", func(t *testing.T) {
		count, err := repo.CountReferencing(f.ctx, f.scope, art.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		count, err = repo.CountReferencing(f.ctx, f.scope, music.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = repo.CountReferencing(f.ctx, testScope(), art.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("save categories replaces the list", func(t *testing.T) {
		sketching.AssignCategories(assignment(music, math))
		require.NoError(t, repo.SaveCategories(f.ctx, sketching, 1))
		assert.Equal(t, 2, sketching.Version)

		found, err := repo.FindByID(f.ctx, f.scope, sketching.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{music.ID, math.ID}, found.CategoryIDs())
		assert.Equal(t, 2, found.Version)
	})

	t.Run("save categories with stale version changes nothing", func(t *testing.T) {
		sketching.AssignCategories(nil)
		err := repo.SaveCategories(f.ctx, sketching, 1)
		assert.ErrorIs(t, err, shared.ErrConcurrentModification)

		found, err := repo.FindByID(f.ctx, f.scope, sketching.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{music.ID, math.ID}, found.CategoryIDs())
	})

	t.Run("clearing removes every row", func(t *testing.T) {
		current, err := repo.FindByID(f.ctx, f.scope, algebra.ID)
		require.NoError(t, err)
		current.AssignCategories(nil)
		require.NoError(t, repo.SaveCategories(f.ctx, current, current.Version))

		found, err := repo.FindByID(f.ctx, f.scope, algebra.ID)
		require.NoError(t, err)
		assert.Empty(t, found.Categories)
	})
	t.Run("remove deleted references leaves live templates alone", func(t *testing.T) {
		n, err := repo.RemoveDeletedReferences(f.ctx, testScope(), art.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = repo.RemoveDeletedReferences(f.ctx, f.scope, music.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = repo.RemoveDeletedReferences(f.ctx, f.scope, art.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		var rows int64
		require.NoError(t, f.db.Table("template_categories").Where("category_id = ?", art.ID).Count(&rows).Error)
		assert.Zero(t, rows)

		found, err := repo.FindByID(f.ctx, f.scope, sketching.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{music.ID, math.ID}, found.CategoryIDs())
	})
}
