package handler

import (
	"strings"

	catalogapp "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TemplateHandler handles template-category association endpoints
type TemplateHandler struct {
	BaseHandler
	templateService *catalogapp.TemplateCategoryService
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(templateService *catalogapp.TemplateCategoryService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
	}
}

// resolveTemplatesQuery is the query string of GET /templates/by-category.
// category_ids may be repeated or comma separated.
type resolveTemplatesQuery struct {
	CategoryIDs      []string `form:"category_ids" binding:"required,min=1"`
	Mode             string   `form:"mode" binding:"omitempty,oneof=OR AND PATH or and path"`
	IncludeInherited *bool    `form:"include_inherited"`
	Page             int      `form:"page" binding:"omitempty,min=1"`
	PageSize         int      `form:"page_size" binding:"omitempty,min=1"`
}

// Create handles POST /templates
func (h *TemplateHandler) Create(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	var req catalogapp.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.CreatedBy = actor(c)

	template, err := h.templateService.CreateTemplate(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, template)
}

// AttachCategories handles PUT /templates/:id/categories. The given list
// replaces the template's categories.
func (h *TemplateHandler) AttachCategories(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req catalogapp.AttachCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	template, err := h.templateService.Attach(c.Request.Context(), scope, id, req.CategoryIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, template)
}

// ResolveByCategory handles GET /templates/by-category
func (h *TemplateHandler) ResolveByCategory(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	var query resolveTemplatesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}
	categoryIDs, err := parseIDList(query.CategoryIDs)
	if err != nil {
		h.BadRequest(c, "category_ids must be UUIDs")
		return
	}
	mode, err := catalog.ParseQueryMode(query.Mode)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, err := h.templateService.ResolveTemplatesByCategory(c.Request.Context(), scope, catalogapp.ResolveTemplatesRequest{
		CategoryIDs:      categoryIDs,
		Mode:             mode,
		IncludeInherited: query.IncludeInherited,
		Page:             query.Page,
		PageSize:         query.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	SuccessWithMeta(c, page)
}

// parseIDList flattens repeated and comma separated ids, keeping their order
func parseIDList(values []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
