package catalog

import (
	"context"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
)

// TransactionScope provides transactional access to catalog repositories.
// Every repository obtained inside fn shares one store transaction, which is
// committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the catalog repositories within a transaction
type TransactionalRepositories interface {
	// CategoryRepo returns the category repository scoped to the current transaction
	CategoryRepo() catalog.CategoryRepository
	// TemplateRepo returns the template repository scoped to the current transaction
	TemplateRepo() catalog.TemplateRepository
}

// NoOpTransactionScope runs fn directly against the given repositories.
// Used in unit tests with mocked repositories.
type NoOpTransactionScope struct {
	categoryRepo catalog.CategoryRepository
	templateRepo catalog.TemplateRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories
func NewNoOpTransactionScope(categoryRepo catalog.CategoryRepository, templateRepo catalog.TemplateRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		categoryRepo: categoryRepo,
		templateRepo: templateRepo,
	}
}

// Execute runs the function with the wrapped repositories
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// CategoryRepo returns the category repository
func (s *NoOpTransactionScope) CategoryRepo() catalog.CategoryRepository {
	return s.categoryRepo
}

// TemplateRepo returns the template repository
func (s *NoOpTransactionScope) TemplateRepo() catalog.TemplateRepository {
	return s.templateRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
