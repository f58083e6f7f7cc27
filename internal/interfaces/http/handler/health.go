package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

// HealthCheck reports whether a dependency can serve requests
type HealthCheck func(ctx context.Context) error

// HealthHandler serves liveness, readiness and build information
type HealthHandler struct {
	BaseHandler
	name      string
	env       string
	startTime time.Time
	checks    map[string]HealthCheck
}

// NewHealthHandler creates a HealthHandler. Readiness fails while any check
// fails.
func NewHealthHandler(name, env string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		name:      name,
		env:       env,
		startTime: time.Now(),
		checks:    checks,
	}
}

// InfoResponse describes the running service
type InfoResponse struct {
	Name      string `json:"name"`
	Env       string `json:"env"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// ReadinessResponse lists the state of every dependency
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Live handles GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	h.Success(c, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := ReadinessResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Status = "unavailable"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	if resp.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	h.Success(c, resp)
}

// Info handles GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	h.Success(c, InfoResponse{
		Name:      h.name,
		Env:       h.env,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}
