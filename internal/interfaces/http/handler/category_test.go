package handler

import (
	"fmt"
	"net/http"
	"testing"

	catalogapp "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryHandler_Create(t *testing.T) {
	s := newTestServer(t, catalog.DefaultPolicy())

	t.Run("root and child", func(t *testing.T) {
		rootID := s.createCategory(t, "sci", "Science", nil)

		w := s.do(t, http.MethodPost, "/catalog/categories", map[string]any{
			"external_id": "phy",
			"name":        "Physics",
			"parent_id":   rootID.String(),
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var child catalogapp.CategoryResponse
		decodeData(t, w, &child)
		assert.Equal(t, &rootID, child.ParentID)
		assert.Equal(t, 1, child.Depth)
		assert.Equal(t, s.scope.TenantID, child.TenantID)

		w = s.do(t, http.MethodGet, "/catalog/categories/"+rootID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		var root catalogapp.CategoryResponse
		decodeData(t, w, &root)
		assert.True(t, root.HasChildCategories)
	})

	t.Run("missing fields are listed", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/catalog/categories", map[string]any{"sequence_number": -1})
		require.Equal(t, http.StatusBadRequest, w.Code)

		info := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeValidation, info.Code)
		fields := make([]string, 0, len(info.Details))
		for _, d := range info.Details {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"external_id", "name", "sequence_number"}, fields)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/catalog/categories", "not an object")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decodeError(t, w).Code)
	})

	t.Run("unknown parent", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/catalog/categories", map[string]any{
			"external_id": "orphan",
			"name":        "Orphan",
			"parent_id":   uuid.NewString(),
		})
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, catalog.CodeParentNotFound, decodeError(t, w).Code)
	})

	t.Run("duplicate sibling name", func(t *testing.T) {
		s.createCategory(t, "arts", "Arts", nil)
		w := s.do(t, http.MethodPost, "/catalog/categories", map[string]any{
			"external_id": "arts-2",
			"name":        "ARTS",
		})
		require.Equal(t, http.StatusConflict, w.Code)
		info := decodeError(t, w)
		assert.Equal(t, catalog.CodeDuplicateName, info.Code)
		assert.False(t, info.Retryable)
		assert.NotEmpty(t, info.RequestID)
	})
}

func TestCategoryHandler_MissingScope(t *testing.T) {
	s := newTestServer(t, catalog.DefaultPolicy())

	req, w := newUnscopedRequest(http.MethodGet, "/catalog/categories")
	s.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeMissingScope, decodeError(t, w).Code)
}

func TestCategoryHandler_Isolation(t *testing.T) {
	s := newTestServer(t, catalog.DefaultPolicy())
	id := s.createCategory(t, "sci", "Science", nil)

	s.scope = shared.NewScope(s.scope.TenantID, uuid.New())
	w := s.do(t, http.MethodGet, "/catalog/categories/"+id.String(), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoryHandler_Get_InvalidID(t *testing.T) {
	s := newTestServer(t, catalog.DefaultPolicy())

	w := s.do(t, http.MethodGet, "/catalog/categories/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decodeError(t, w).Code)
}

func TestCategoryHandler_List(t *testing.T) {
	s := newTestServer(t, catalog.DefaultPolicy())
	rootID := s.createCategory(t, "sci", "Science", nil)
	s.createCategory(t, "arts", "Arts", nil)
	for i := range 3 {
		s.createCategory(t, fmt.Sprintf("child-%d", i), fmt.Sprintf("Child %d", i), &rootID)
	}

	t.Run("roots by default", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/catalog/categories", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var items []catalogapp.CategoryResponse
		meta := decodeData(t, w, &items)
		require.NotNil(t, meta)
		assert.Equal(t, int64(2), meta.Total)
		assert.Len(t, items, 2)
	})

	t.Run("children paged", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/catalog/categories?parent_id="+rootID.String()+"&page=2&page_size=2", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var items []catalogapp.CategoryResponse
		meta := decodeData(t, w, &items)
		assert.Equal(t, int64(3), meta.Total)
		assert.Equal(t, 2, meta.Page)
		assert.Equal(t, 2, meta.TotalPages)
		require.Len(t, items, 1)
		assert.Equal(t, "child-2", items[0].ExternalID)
	})

	t.Run("page beyond int range is empty", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/catalog/categories?parent_id="+rootID.String()+"&page=9223372036854775807&page_size=20", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var items []catalogapp.CategoryResponse
		meta := decodeData(t, w, &items)
		assert.Equal(t, int64(3), meta.Total)
		assert.Empty(t, items)
	})

	t.Run("by level", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/catalog/categories?level=1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var items []catalogapp.CategoryResponse
		decodeData(t, w, &items)
		assert.Len(t, items, 3)
	})

	t.Run("sorted by name descending", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/catalog/categories?sort_by=name&sort_order=desc", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var items []catalogapp.CategoryResponse
		decodeData(t, w, &items)
		require.Len(t, items, 2)
		assert.Equal(t, "Science", items[0].Name)
		assert.Equal(t, "Arts", items[1].Name)
	})

	t.Run("unknown sort field", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/catalog/categories?sort_by=product_count", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "sort_by", decodeError(t, w).Details[0].Field)
	})

	t.Run("invalid parent id", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/catalog/categories?parent_id=abc", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "parent_id", decodeError(t, w).Details[0].Field)
	})
}

func TestCategoryHandler_TreeAndLeaves(t *testing.T) {
	s := newTestServer(t, catalog.DefaultPolicy())
	sci := s.createCategory(t, "sci", "Science", nil)
	phy := s.createCategory(t, "phy", "Physics", &sci)
	s.createCategory(t, "optics", "Optics", &phy)
	s.createCategory(t, "arts", "Arts", nil)

	t.Run("whole forest", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/catalog/categories/tree", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var tree []catalogapp.CategoryTreeNode
		decodeData(t, w, &tree)
		require.Len(t, tree, 2)
	})

	t.Run("subtree cut at depth", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/catalog/categories/tree?root_id="+sci.String()+"&max_depth=1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var tree []catalogapp.CategoryTreeNode
		decodeData(t, w, &tree)
		require.Len(t, tree, 1)
		assert.Equal(t, sci, tree[0].ID)
		require.Len(t, tree[0].Children, 1)
		assert.Empty(t, tree[0].Children[0].Children)
	})

	t.Run("leaves", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/catalog/categories/leaves", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var leaves []catalogapp.CategoryResponse
		decodeData(t, w, &leaves)
		ids := make([]string, 0, len(leaves))
		for _, l := range leaves {
			ids = append(ids, l.ExternalID)
		}
		assert.ElementsMatch(t, []string{"optics", "arts"}, ids)
	})
}

func TestCategoryHandler_Update(t *testing.T) {
	s := newTestServer(t, catalog.DefaultPolicy())
	id := s.createCategory(t, "sci", "Science", nil)

	w := s.do(t, http.MethodGet, "/catalog/categories/"+id.String(), nil)
	var current catalogapp.CategoryResponse
	decodeData(t, w, &current)

	w = s.do(t, http.MethodPut, "/catalog/categories/"+id.String(), map[string]any{
		"name":    "Natural Science",
		"version": current.Version,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated catalogapp.CategoryResponse
	decodeData(t, w, &updated)
	assert.Equal(t, "Natural Science", updated.Name)
	assert.Greater(t, updated.Version, current.Version)

	t.Run("stale version", func(t *testing.T) {
		w := s.do(t, http.MethodPut, "/catalog/categories/"+id.String(), map[string]any{
			"name":    "Again",
			"version": current.Version,
		})
		require.Equal(t, http.StatusConflict, w.Code)
		info := decodeError(t, w)
		assert.Equal(t, shared.CodeConcurrentModification, info.Code)
		assert.True(t, info.Retryable)
	})
}

func TestCategoryHandler_Move(t *testing.T) {
	s := newTestServer(t, catalog.DefaultPolicy())
	sci := s.createCategory(t, "sci", "Science", nil)
	phy := s.createCategory(t, "phy", "Physics", &sci)
	arts := s.createCategory(t, "arts", "Arts", nil)

	t.Run("under descendant", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/catalog/categories/"+sci.String()+"/move", map[string]any{"parent_id": phy.String()})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, catalog.CodeCycleDetected, decodeError(t, w).Code)
	})

	t.Run("to another parent", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/catalog/categories/"+phy.String()+"/move", map[string]any{"parent_id": arts.String()})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var moved catalogapp.CategoryResponse
		decodeData(t, w, &moved)
		assert.Equal(t, &arts, moved.ParentID)
	})

	t.Run("to root", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/catalog/categories/"+phy.String()+"/move", map[string]any{"parent_id": nil})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var moved catalogapp.CategoryResponse
		decodeData(t, w, &moved)
		assert.Nil(t, moved.ParentID)
		assert.Equal(t, 0, moved.Depth)
	})
}

func TestCategoryHandler_Delete(t *testing.T) {
	s := newTestServer(t, catalog.DefaultPolicy())
	sci := s.createCategory(t, "sci", "Science", nil)
	phy := s.createCategory(t, "phy", "Physics", &sci)

	w := s.do(t, http.MethodGet, "/catalog/categories/"+sci.String()+"/deletable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result catalogapp.DeletableResult
	decodeData(t, w, &result)
	assert.False(t, result.Deletable)
	assert.Equal(t, catalogapp.ReasonHasChildCategories, result.Reason)

	w = s.do(t, http.MethodDelete, "/catalog/categories/"+sci.String(), nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, catalog.CodeNotDeletable, decodeError(t, w).Code)

	w = s.do(t, http.MethodDelete, "/catalog/categories/"+phy.String(), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/catalog/categories/"+phy.String(), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/catalog/categories/"+sci.String()+"/deletable", nil)
	decodeData(t, w, &result)
	assert.True(t, result.Deletable)
}

func TestCategoryHandler_BulkCreate(t *testing.T) {
	s := newTestServer(t, catalog.DefaultPolicy())

	t.Run("parents by external id", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/catalog/categories/bulk", map[string]any{
			"categories": []map[string]any{
				{"external_id": "sci", "name": "Science"},
				{"external_id": "phy", "name": "Physics", "parent_external_id": "sci"},
				{"external_id": "chem", "name": "Chemistry", "parent_external_id": "sci"},
			},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var created []catalogapp.CategoryResponse
		decodeData(t, w, &created)
		require.Len(t, created, 3)
		assert.Equal(t, &created[0].ID, created[1].ParentID)
		assert.True(t, created[0].HasChildCategories)
	})

	t.Run("every invalid entry is reported", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/catalog/categories/bulk", map[string]any{
			"categories": []map[string]any{
				{"external_id": "bio", "name": "Biology"},
				{"external_id": "sci", "name": "Science again"},
				{"external_id": "astro", "name": "Astronomy", "parent_external_id": "missing"},
			},
		})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		info := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeBulkValidation, info.Code)
		require.Len(t, info.Entries, 2)
		assert.Equal(t, dto.EntryError{Index: 1, ExternalID: "sci", Code: shared.CodeAlreadyExists,
			Message: "Category with this external ID already exists"}, info.Entries[0])
		assert.Equal(t, 2, info.Entries[1].Index)
		assert.Equal(t, catalog.CodeParentNotFound, info.Entries[1].Code)

		w = s.do(t, http.MethodGet, "/catalog/categories", nil)
		var roots []catalogapp.CategoryResponse
		decodeData(t, w, &roots)
		assert.Len(t, roots, 1, "nothing from a rejected batch is written")
	})

	t.Run("entry field validation", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/catalog/categories/bulk", map[string]any{
			"categories": []map[string]any{
				{"external_id": "ok", "name": "Fine"},
				{"name": "No id"},
			},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		info := decodeError(t, w)
		require.Len(t, info.Details, 1)
		assert.Equal(t, "categories[1].external_id", info.Details[0].Field)
	})
}

func TestCategoryHandler_Repair(t *testing.T) {
	s := newTestServer(t, catalog.DefaultPolicy())
	sci := s.createCategory(t, "sci", "Science", nil)
	s.createCategory(t, "phy", "Physics", &sci)

	w := s.do(t, http.MethodPost, "/catalog/categories/repair", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report catalogapp.RepairReport
	decodeData(t, w, &report)
	assert.Equal(t, 2, report.Scanned)
	assert.Zero(t, report.FlagsFixed)
	assert.Zero(t, report.DepthsFixed)
}
