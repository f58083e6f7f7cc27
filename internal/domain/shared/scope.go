package shared

import (
	"github.com/google/uuid"
)

// Scope is the (tenant, organization) pair that partitions all data.
// No reference may cross scopes.
type Scope struct {
	TenantID uuid.UUID `json:"tenant_id"`
	OrgID    uuid.UUID `json:"org_id"`
}

// NewScope creates a scope from tenant and organization IDs
func NewScope(tenantID, orgID uuid.UUID) Scope {
	return Scope{TenantID: tenantID, OrgID: orgID}
}

// Validate checks that both keys are present
func (s Scope) Validate() error {
	if s.TenantID == uuid.Nil {
		return NewDomainError(CodeInvalidInput, "Tenant ID is required")
	}
	if s.OrgID == uuid.Nil {
		return NewDomainError(CodeInvalidInput, "Organization ID is required")
	}
	return nil
}

// String returns "tenant/org", used for cache keys and log fields
func (s Scope) String() string {
	return s.TenantID.String() + "/" + s.OrgID.String()
}
