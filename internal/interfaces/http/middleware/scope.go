package middleware

import (
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/logger"
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Scope headers used when a request carries no token
const (
	TenantIDHeader = "X-Tenant-ID"
	OrgIDHeader    = "X-Org-ID"
	ScopeKey       = "catalog_scope"
)

// RequireScope resolves the tenant and organization of the request. Token
// claims take precedence; a header that disagrees with them is rejected.
// Without a token both headers are required.
func RequireScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		headerScope, headerErr := scopeFromHeaders(c)

		var scope shared.Scope
		if claims := GetJWTClaims(c); claims != nil {
			claimScope, err := claims.Scope()
			if err != nil {
				abort(c, dto.ErrCodeTokenInvalid, "Token carries no valid scope")
				return
			}
			if headerErr == nil && headerScope != claimScope {
				abort(c, shared.CodeForbidden, "Scope headers do not match the token")
				return
			}
			scope = claimScope
		} else {
			if headerErr != nil {
				abort(c, dto.ErrCodeMissingScope, headerErr.Error())
				return
			}
			scope = headerScope
		}

		c.Set(ScopeKey, scope)
		ctx := c.Request.Context()
		ctx, _ = logger.WithScope(ctx, logger.FromContext(ctx), scope)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// scopeFromHeaders parses the scope headers. It fails when either is missing
// or malformed.
func scopeFromHeaders(c *gin.Context) (shared.Scope, error) {
	tenant, org := c.GetHeader(TenantIDHeader), c.GetHeader(OrgIDHeader)
	if tenant == "" || org == "" {
		return shared.Scope{}, shared.NewDomainError(shared.CodeInvalidInput, "X-Tenant-ID and X-Org-ID headers are required")
	}
	tenantID, err := uuid.Parse(tenant)
	if err != nil {
		return shared.Scope{}, shared.NewDomainError(shared.CodeInvalidInput, "X-Tenant-ID must be a UUID")
	}
	orgID, err := uuid.Parse(org)
	if err != nil {
		return shared.Scope{}, shared.NewDomainError(shared.CodeInvalidInput, "X-Org-ID must be a UUID")
	}
	scope := shared.NewScope(tenantID, orgID)
	if err := scope.Validate(); err != nil {
		return shared.Scope{}, err
	}
	return scope, nil
}

// GetScope returns the scope resolved by RequireScope
func GetScope(c *gin.Context) (shared.Scope, bool) {
	v, ok := c.Get(ScopeKey)
	if !ok {
		return shared.Scope{}, false
	}
	scope, ok := v.(shared.Scope)
	return scope, ok
}
