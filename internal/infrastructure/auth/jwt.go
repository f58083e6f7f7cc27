package auth

import (
	"errors"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingTenantID  = errors.New("missing tenant_id in claims")
	ErrMissingOrgID     = errors.New("missing org_id in claims")
	ErrTokenRevoked     = errors.New("token has been revoked")
)

// Claims are the bearer token claims. The subject identifies the caller and
// the tenant and organization ids fix the scope of every request.
type Claims struct {
	jwt.RegisteredClaims
	TenantID    string   `json:"tenant_id"`
	OrgID       string   `json:"org_id"`
	Permissions []string `json:"permissions,omitempty"`
}

// Scope parses the tenant and organization ids
func (c *Claims) Scope() (shared.Scope, error) {
	tenantID, err := uuid.Parse(c.TenantID)
	if err != nil {
		return shared.Scope{}, ErrInvalidClaims
	}
	orgID, err := uuid.Parse(c.OrgID)
	if err != nil {
		return shared.Scope{}, ErrInvalidClaims
	}
	scope := shared.NewScope(tenantID, orgID)
	if scope.Validate() != nil {
		return shared.Scope{}, ErrInvalidClaims
	}
	return scope, nil
}

// HasPermission checks if the claims contain a specific permission
func (c *Claims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// RemainingTTL returns the time until the token expires
func (c *Claims) RemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(time.Until(c.ExpiresAt.Time), 0)
}

// IssueInput describes a token to sign
type IssueInput struct {
	Subject     string
	Scope       shared.Scope
	Permissions []string
	TTL         time.Duration
}

// JWTService signs and verifies HS256 bearer tokens
type JWTService struct {
	secret []byte
	issuer string
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}
}

// Issue signs a token for input. Tokens are normally minted by the identity
// service; this is used by tooling and tests.
func (s *JWTService) Issue(input IssueInput) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   input.Subject,
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(input.TTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID:    input.Scope.TenantID.String(),
		OrgID:       input.Scope.OrgID.String(),
		Permissions: input.Permissions,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate verifies the signature, issuer and time claims of tokenString and
// requires tenant and organization ids
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TenantID == "" {
		return nil, ErrMissingTenantID
	}
	if claims.OrgID == "" {
		return nil, ErrMissingOrgID
	}
	if _, err := claims.Scope(); err != nil {
		return nil, err
	}
	return claims, nil
}
