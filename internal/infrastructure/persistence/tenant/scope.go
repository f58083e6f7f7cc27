// Package tenant provides (tenant, organization) scoping for GORM queries.
//
// Every catalog table carries tenant_id and org_id. Repositories apply Scope
// to each statement so a row of another scope behaves as if it did not exist.
//
// Usage:
//
//	db.Scopes(tenant.Scope(scope)).Find(&categories)
package tenant

import (
	"errors"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrScopeRequired is added to the statement when either scope key is missing
var ErrScopeRequired = errors.New("tenant_id and org_id are required")

// Scope restricts a statement to one (tenant, organization) pair.
// A scope with a missing key fails the statement instead of widening it.
func Scope(scope shared.Scope) func(db *gorm.DB) *gorm.DB {
	return scoped("tenant_id", "org_id", scope)
}

// QualifiedScope is Scope for joined statements, qualifying the columns with table
func QualifiedScope(table string, scope shared.Scope) func(db *gorm.DB) *gorm.DB {
	return scoped(table+".tenant_id", table+".org_id", scope)
}

func scoped(tenantCol, orgCol string, scope shared.Scope) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if scope.TenantID == uuid.Nil || scope.OrgID == uuid.Nil {
			_ = db.AddError(ErrScopeRequired)
			return db
		}
		return db.Where(tenantCol+" = ? AND "+orgCol+" = ?", scope.TenantID, scope.OrgID)
	}
}
