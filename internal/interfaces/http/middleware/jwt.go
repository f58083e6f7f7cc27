package middleware

import (
	"errors"
	"strings"

	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/auth"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/logger"
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	// JWTService is required for token validation
	JWTService *auth.JWTService
	// Revocations is optional; revoked token ids are rejected
	Revocations auth.RevocationList
	// Required rejects requests without a bearer token. When false, requests
	// without one pass through and must carry the scope headers.
	Required bool
	// SkipPaths are paths that never require authentication
	SkipPaths []string
	Logger    *zap.Logger
}

// JWTAuth validates the bearer token and stores its claims. The subject is
// attached to the request logger.
func JWTAuth(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			if cfg.Required {
				abort(c, dto.ErrCodeUnauthorized, "Missing authorization header")
				return
			}
			c.Next()
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, BearerPrefix)
		if !ok || tokenString == "" {
			abort(c, dto.ErrCodeTokenInvalid, "Invalid authorization header format")
			return
		}

		claims, err := cfg.JWTService.Validate(tokenString)
		if err != nil {
			rejectToken(c, cfg.Logger, err)
			return
		}

		ctx := c.Request.Context()
		if cfg.Revocations != nil && claims.ID != "" {
			revoked, err := cfg.Revocations.IsRevoked(ctx, claims.ID)
			switch {
			case err != nil:
				// fail open
				logger.L(ctx).Error("token revocation check failed", zap.String("jti", claims.ID), zap.Error(err))
			case revoked:
				rejectToken(c, cfg.Logger, auth.ErrTokenRevoked)
				return
			}
		}

		c.Set(JWTClaimsKey, claims)
		ctx, _ = logger.WithSubject(ctx, logger.FromContext(ctx), claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func rejectToken(c *gin.Context, log *zap.Logger, err error) {
	logger.WithLogger(c.Request.Context(), log).Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
	)
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		abort(c, dto.ErrCodeTokenExpired, "Token has expired")
	case errors.Is(err, auth.ErrTokenRevoked):
		abort(c, dto.ErrCodeTokenInvalid, "Token has been revoked")
	default:
		abort(c, dto.ErrCodeTokenInvalid, "Invalid token")
	}
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}
