package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	catalogapp "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/persistence"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/persistence/models"
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/dto"
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// testServer mounts the catalog handlers on a sqlite backed stack
type testServer struct {
	engine *gin.Engine
	scope  shared.Scope
}

func newTestServer(t *testing.T, policy catalog.Policy) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	database, err := persistence.Open(sqlite.Open(dsn), persistence.WithZapLogger(zap.NewNop(), "silent"))
	require.NoError(t, err)
	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.DB.AutoMigrate(
		&models.CategoryModel{},
		&models.TemplateModel{},
		&models.TemplateCategoryModel{},
		&models.CategoryRootLockModel{},
	))

	txScope := persistence.NewGormTransactionScope(database.DB)
	categories := NewCategoryHandler(catalogapp.NewCategoryService(txScope, policy))
	templates := NewTemplateHandler(catalogapp.NewTemplateCategoryService(txScope, policy))

	engine := gin.New()
	engine.Use(middleware.RequestID())
	api := engine.Group("/catalog", middleware.RequireScope())
	api.POST("/categories", categories.Create)
	api.POST("/categories/bulk", categories.BulkCreate)
	api.POST("/categories/repair", categories.Repair)
	api.GET("/categories", categories.List)
	api.GET("/categories/tree", categories.Tree)
	api.GET("/categories/leaves", categories.Leaves)
	api.GET("/categories/:id", categories.Get)
	api.PUT("/categories/:id", categories.Update)
	api.POST("/categories/:id/move", categories.Move)
	api.GET("/categories/:id/deletable", categories.CanDelete)
	api.DELETE("/categories/:id", categories.Delete)
	api.POST("/templates", templates.Create)
	api.PUT("/templates/:id/categories", templates.AttachCategories)
	api.GET("/templates/by-category", templates.ResolveByCategory)

	return &testServer{
		engine: engine,
		scope:  shared.NewScope(uuid.New(), uuid.New()),
	}
}

// do sends a scoped request; body is JSON encoded unless nil
func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantIDHeader, s.scope.TenantID.String())
	req.Header.Set(middleware.OrgIDHeader, s.scope.OrgID.String())
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// createCategory creates a category and returns its id
func (s *testServer) createCategory(t *testing.T, externalID, name string, parentID *uuid.UUID) uuid.UUID {
	t.Helper()
	body := map[string]any{"external_id": externalID, "name": name}
	if parentID != nil {
		body["parent_id"] = parentID.String()
	}
	w := s.do(t, http.MethodPost, "/catalog/categories", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created catalogapp.CategoryResponse
	decodeData(t, w, &created)
	return created.ID
}

// decodeData unmarshals the data member of a success envelope into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) *dto.Meta {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Meta    *dto.Meta       `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
	return env.Meta
}

// decodeError returns the error member of a failure envelope
func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error, w.Body.String())
	return *resp.Error
}

func newUnscopedRequest(method, path string) (*http.Request, *httptest.ResponseRecorder) {
	return httptest.NewRequest(method, path, nil), httptest.NewRecorder()
}
