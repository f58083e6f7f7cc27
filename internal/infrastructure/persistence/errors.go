package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/persistence/tenant"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"
)

// translateError maps store failures onto domain errors. Domain errors pass
// through unchanged; notFound is used for gorm.ErrRecordNotFound.
func translateError(err error, notFound *shared.DomainError) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, tenant.ErrScopeRequired):
		return shared.WrapDomainError(shared.CodeInvalidInput, "Tenant and organization are required", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return shared.WrapDomainError(shared.CodeStoreTimeout, "Store operation timed out", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.WrapDomainError(shared.CodeAlreadyExists, "Record already exists", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return shared.WrapDomainError(shared.CodeInvalidInput, "Record references a missing row or is still referenced", err)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return shared.WrapDomainError(shared.CodeInvalidInput, "Record violates a check constraint", err)
	case isConnectionFailure(err):
		return shared.WrapDomainError(shared.CodeStoreUnavailable, "Store is unavailable", err)
	}
	return shared.WrapDomainError(shared.CodeStoreUnavailable, "Store operation failed", err)
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

var (
	errCategoryNotFound = shared.NewDomainError(shared.CodeNotFound, "Category not found")
	errTemplateNotFound = shared.NewDomainError(shared.CodeNotFound, "Template not found")
	errCategoryConflict = shared.NewDomainError(shared.CodeConcurrentModification, "Category was modified by another process")
	errTemplateConflict = shared.NewDomainError(shared.CodeConcurrentModification, "Template was modified by another process")
)
