package router

import (
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/handler"
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// BulkCreatePath is the bulk import route relative to the API base path.
// It accepts a larger body than the other routes.
const BulkCreatePath = "/catalog/categories/bulk"

// CatalogRoutes builds the /catalog group. Every route runs behind
// RequireScope.
func CatalogRoutes(categories *handler.CategoryHandler, templates *handler.TemplateHandler) *DomainGroup {
	catalog := NewDomainGroup("/catalog").Use(middleware.RequireScope())

	categoryRoutes := catalog.Group("/categories")
	categoryRoutes.POST("", categories.Create)
	categoryRoutes.GET("", categories.List)
	categoryRoutes.POST("/bulk", categories.BulkCreate)
	categoryRoutes.GET("/tree", categories.Tree)
	categoryRoutes.GET("/leaves", categories.Leaves)
	categoryRoutes.POST("/repair", categories.Repair)
	categoryRoutes.GET("/:id", categories.Get)
	categoryRoutes.PUT("/:id", categories.Update)
	categoryRoutes.DELETE("/:id", categories.Delete)
	categoryRoutes.POST("/:id/move", categories.Move)
	categoryRoutes.GET("/:id/deletable", categories.CanDelete)

	templateRoutes := catalog.Group("/templates")
	templateRoutes.POST("", templates.Create)
	templateRoutes.PUT("/:id/categories", templates.AttachCategories)
	templateRoutes.GET("/by-category", templates.ResolveByCategory)

	return catalog
}

// HealthRoutes mounts the health checks on the engine root, outside authentication
func HealthRoutes(engine *gin.Engine, health *handler.HealthHandler) {
	group := engine.Group("/health")
	group.GET("/live", health.Live)
	group.GET("/ready", health.Ready)
	group.GET("/info", health.Info)
}
