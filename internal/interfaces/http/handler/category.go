package handler

import (
	catalogapp "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CategoryHandler handles category-related API endpoints
type CategoryHandler struct {
	BaseHandler
	categoryService *catalogapp.CategoryService
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService *catalogapp.CategoryService) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
	}
}

// listCategoriesQuery is the query string of GET /categories
type listCategoriesQuery struct {
	ParentID  string `form:"parent_id" binding:"omitempty,uuid"`
	Level     *int   `form:"level" binding:"omitempty,min=0"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1"`
	SortBy    string `form:"sort_by" binding:"omitempty,oneof=name external_id depth sequence_number created_at updated_at"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// treeQuery is the query string of GET /categories/tree
type treeQuery struct {
	RootID   string `form:"root_id" binding:"omitempty,uuid"`
	MaxDepth *int   `form:"max_depth" binding:"omitempty,min=0"`
}

// Create handles POST /categories
func (h *CategoryHandler) Create(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	var req catalogapp.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.CreatedBy = actor(c)

	category, err := h.categoryService.Create(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, category)
}

// BulkCreate handles POST /categories/bulk. The batch is written entirely or
// not at all.
func (h *CategoryHandler) BulkCreate(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	var req catalogapp.BulkCreateCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	categories, err := h.categoryService.BulkCreate(c.Request.Context(), scope, req.Categories)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, categories)
}

// List handles GET /categories
func (h *CategoryHandler) List(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	var query listCategoriesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	req := catalogapp.ListCategoriesRequest{
		ParentID:  parseOptionalID(query.ParentID),
		Level:     query.Level,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	page, err := h.categoryService.List(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessWithMeta(c, page)
}

// Tree handles GET /categories/tree
func (h *CategoryHandler) Tree(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	var query treeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	tree, err := h.categoryService.BuildHierarchy(c.Request.Context(), scope, parseOptionalID(query.RootID), query.MaxDepth)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tree)
}

// Leaves handles GET /categories/leaves
func (h *CategoryHandler) Leaves(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	leaves, err := h.categoryService.ListLeaves(c.Request.Context(), scope)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, leaves)
}

// Get handles GET /categories/:id
func (h *CategoryHandler) Get(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	category, err := h.categoryService.GetByID(c.Request.Context(), scope, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, category)
}

// Update handles PUT /categories/:id
func (h *CategoryHandler) Update(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req catalogapp.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	category, err := h.categoryService.Update(c.Request.Context(), scope, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, category)
}

// Move handles POST /categories/:id/move
func (h *CategoryHandler) Move(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req catalogapp.MoveCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	category, err := h.categoryService.Move(c.Request.Context(), scope, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, category)
}

// CanDelete handles GET /categories/:id/deletable
func (h *CategoryHandler) CanDelete(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	result, err := h.categoryService.CanDelete(c.Request.Context(), scope, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Delete handles DELETE /categories/:id
func (h *CategoryHandler) Delete(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.categoryService.Delete(c.Request.Context(), scope, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Repair handles POST /categories/repair
func (h *CategoryHandler) Repair(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	report, err := h.categoryService.RepairHierarchy(c.Request.Context(), scope)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// parseOptionalID parses a query id already checked by the uuid binding
func parseOptionalID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id := uuid.MustParse(s)
	return &id
}
