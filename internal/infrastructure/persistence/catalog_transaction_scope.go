package persistence

import (
	"context"

	appcatalog "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository handed to fn shares the transaction.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back; otherwise it is committed.
// Begin and commit failures are reported as store errors.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appcatalog.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
	err = translateError(err, errCategoryNotFound)
	if ctx.Err() != nil && shared.ErrorCode(err) == shared.CodeStoreUnavailable {
		// drivers report an expired deadline in their own words
		return shared.WrapDomainError(shared.CodeStoreTimeout, "Store operation timed out", err)
	}
	return err
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// CategoryRepo returns the category repository scoped to the current transaction.
func (r *gormTransactionalRepositories) CategoryRepo() catalog.CategoryRepository {
	return NewGormCategoryRepository(r.tx)
}

// TemplateRepo returns the template repository scoped to the current transaction.
func (r *gormTransactionalRepositories) TemplateRepo() catalog.TemplateRepository {
	return NewGormTemplateRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appcatalog.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appcatalog.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
