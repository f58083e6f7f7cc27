// Package router mounts the catalog API on a gin engine.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts its routes below the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars under /api/<version>. Middleware added with Use
// runs only on those routes, so health checks mounted on the engine stay public.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

type RouterOption func(*Router)

// WithAPIVersion overrides the "v1" path segment
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, middleware...)
	return r
}

func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// BasePath is the prefix every registrar is mounted under
func (r *Router) BasePath() string {
	return "/api/" + r.apiVersion
}

// Setup mounts every registrar. Call it once, after all Register calls.
func (r *Router) Setup() {
	api := r.engine.Group(r.BasePath(), r.middleware...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup is a route tree built up front and mounted by Setup
type DomainGroup struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	children   []*DomainGroup
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

func NewDomainGroup(prefix string) *DomainGroup {
	return &DomainGroup{prefix: prefix}
}

// Use adds middleware to the group and every nested group
func (g *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// Group nests a child group under prefix
func (g *DomainGroup) Group(prefix string) *DomainGroup {
	child := NewDomainGroup(prefix)
	g.children = append(g.children, child)
	return child
}

func (g *DomainGroup) Handle(method, path string, handlers ...gin.HandlerFunc) *DomainGroup {
	g.routes = append(g.routes, route{method: method, path: path, handlers: handlers})
	return g
}

func (g *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodGet, path, handlers...)
}

func (g *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPost, path, handlers...)
}

func (g *DomainGroup) PUT(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodPut, path, handlers...)
}

func (g *DomainGroup) DELETE(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return g.Handle(http.MethodDelete, path, handlers...)
}

func (g *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix, g.middleware...)
	for _, r := range g.routes {
		group.Handle(r.method, r.path, r.handlers...)
	}
	for _, child := range g.children {
		child.RegisterRoutes(group)
	}
}
