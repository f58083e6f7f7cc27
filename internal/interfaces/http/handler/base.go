package handler

import (
	"errors"
	"net/http"

	catalogapp "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/logger"
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/dto"
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a page of items with pagination meta
func SuccessWithMeta[T any](c *gin.Context, page *shared.Paginated[T]) {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(items, page.Total, page.Page, page.PageSize, page.TotalPages))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// BindError reports a request that failed binding or validation. Field level
// failures are listed in details.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	details := middleware.ValidationDetails(err)
	if len(details) == 0 {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "Malformed request: "+err.Error())
		return
	}
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", middleware.GetRequestID(c), details))
}

// HandleError converts an error returned by a service into a response
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetRequestID(c)

	var bulkErr *catalogapp.BulkValidationError
	if errors.As(err, &bulkErr) {
		resp := dto.NewErrorResponse(dto.ErrCodeBulkValidation, "Bulk create rejected", requestID)
		resp.Error.Entries = make([]dto.EntryError, 0, len(bulkErr.Failures))
		for _, f := range bulkErr.Failures {
			resp.Error.Entries = append(resp.Error.Entries, dto.EntryError{
				Index:      f.Index,
				ExternalID: f.ExternalID,
				Code:       entryCode(f.Err),
				Message:    entryMessage(f.Err),
			})
		}
		c.JSON(dto.GetHTTPStatus(dto.ErrCodeBulkValidation), resp)
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		status := dto.GetHTTPStatus(domainErr.Code)
		if status >= http.StatusInternalServerError {
			logger.L(c.Request.Context()).Warn("catalog store failure", zap.Error(err))
		}
		resp := dto.NewErrorResponse(domainErr.Code, domainErr.Message, requestID)
		resp.Error.Retryable = shared.IsRetryable(err)
		c.JSON(status, resp)
		return
	}

	logger.L(c.Request.Context()).Error("unhandled error", zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}

func entryCode(err error) string {
	if code := shared.ErrorCode(err); code != "" {
		return code
	}
	return dto.ErrCodeInternal
}

func entryMessage(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// scope returns the request scope installed by RequireScope. It writes the
// error response and returns false when the route was mounted without it.
func (h *BaseHandler) scope(c *gin.Context) (shared.Scope, bool) {
	scope, ok := middleware.GetScope(c)
	if !ok {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeMissingScope, "Tenant and organization are required")
		return shared.Scope{}, false
	}
	return scope, true
}

// pathID parses the :id path parameter
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid ID")
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

// actor returns the token subject when it is a user id
func actor(c *gin.Context) *uuid.UUID {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		return nil
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil
	}
	return &id
}
