package catalog

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memoryStore is an in-memory category and template store with the same
// version-check semantics as the GORM repositories. It does not roll back.
type memoryStore struct {
	mu         sync.Mutex
	categories map[uuid.UUID]*catalog.Category
	templates  map[uuid.UUID]*catalog.Template

	// onFindDescendants runs before FindDescendants returns, to simulate a concurrent writer
	onFindDescendants func()

	// onFindChildren runs once after the next FindChildren read, to simulate a
	// writer that commits between the sibling read and the write
	onFindChildren func()

	// rootLocks counts LockRootLevel calls per scope
	rootLocks map[catalog.Scope]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		categories: make(map[uuid.UUID]*catalog.Category),
		templates:  make(map[uuid.UUID]*catalog.Template),
		rootLocks:  make(map[catalog.Scope]int),
	}
}

func (s *memoryStore) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(&memoryCategoryRepo{s: s}, &memoryTemplateRepo{s: s})
}

// get returns a copy of the stored category regardless of deletion state
func (s *memoryStore) get(id uuid.UUID) *catalog.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil
	}
	return cloneCategory(c)
}

// bumpVersion simulates a concurrent committed write
func (s *memoryStore) bumpVersion(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[id].Version++
}

// deleteTemplate soft-deletes a stored template the way its owning service would
func (s *memoryStore) deleteTemplate(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[id].IsDeleted = true
}

func (s *memoryStore) rootLockCount(scope catalog.Scope) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootLocks[scope]
}

func cloneCategory(c *catalog.Category) *catalog.Category {
	out := *c
	out.ClearDomainEvents()
	out.MetaInformation = maps.Clone(c.MetaInformation)
	if c.ParentID != nil {
		id := *c.ParentID
		out.ParentID = &id
	}
	return &out
}

func cloneTemplate(t *catalog.Template) *catalog.Template {
	out := *t
	out.ClearDomainEvents()
	out.Categories = append([]catalog.TemplateCategory(nil), t.Categories...)
	return &out
}

func notFound() error {
	return shared.NewDomainError(shared.CodeNotFound, "Category not found")
}

func conflict() error {
	return shared.NewDomainError(shared.CodeConcurrentModification, "Category was modified by another process")
}

type memoryCategoryRepo struct {
	s *memoryStore
}

func (r *memoryCategoryRepo) live(scope catalog.Scope) []*catalog.Category {
	var out []*catalog.Category
	for _, c := range r.s.categories {
		if !c.IsDeleted && c.Scope() == scope {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SequenceNumber != out[j].SequenceNumber {
			return out[i].SequenceNumber < out[j].SequenceNumber
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func cloneAll(in []*catalog.Category) []*catalog.Category {
	out := make([]*catalog.Category, 0, len(in))
	for _, c := range in {
		out = append(out, cloneCategory(c))
	}
	return out
}

func (r *memoryCategoryRepo) FindByID(_ context.Context, scope catalog.Scope, id uuid.UUID) (*catalog.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok || c.IsDeleted || c.Scope() != scope {
		return nil, notFound()
	}
	return cloneCategory(c), nil
}

func (r *memoryCategoryRepo) FindByIDs(_ context.Context, scope catalog.Scope, ids []uuid.UUID) ([]*catalog.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*catalog.Category
	for _, id := range ids {
		if c, ok := r.s.categories[id]; ok && !c.IsDeleted && c.Scope() == scope {
			out = append(out, cloneCategory(c))
		}
	}
	return out, nil
}

func (r *memoryCategoryRepo) FindByExternalID(_ context.Context, scope catalog.Scope, externalID string) (*catalog.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.live(scope) {
		if c.ExternalID == externalID {
			return cloneCategory(c), nil
		}
	}
	return nil, notFound()
}

func (r *memoryCategoryRepo) ExistsByExternalID(ctx context.Context, scope catalog.Scope, externalID string) (bool, error) {
	_, err := r.FindByExternalID(ctx, scope, externalID)
	return err == nil, nil
}

func (r *memoryCategoryRepo) FindChildren(_ context.Context, scope catalog.Scope, parentID *uuid.UUID) ([]*catalog.Category, error) {
	r.s.mu.Lock()
	var out []*catalog.Category
	for _, c := range r.live(scope) {
		if sameParentID(c.ParentID, parentID) {
			out = append(out, c)
		}
	}
	out = cloneAll(out)
	hook := r.s.onFindChildren
	r.s.onFindChildren = nil
	r.s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (r *memoryCategoryRepo) FindChildrenOf(_ context.Context, scope catalog.Scope, parentIDs []uuid.UUID) ([]*catalog.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(parentIDs))
	for _, id := range parentIDs {
		want[id] = true
	}
	var out []*catalog.Category
	for _, c := range r.live(scope) {
		if c.ParentID != nil && want[*c.ParentID] {
			out = append(out, c)
		}
	}
	return cloneAll(out), nil
}

func (r *memoryCategoryRepo) FindDescendants(ctx context.Context, scope catalog.Scope, id uuid.UUID) ([]*catalog.Category, error) {
	var out []*catalog.Category
	frontier := []uuid.UUID{id}
	seen := map[uuid.UUID]bool{id: true}
	for len(frontier) > 0 {
		children, _ := r.FindChildrenOf(ctx, scope, frontier)
		frontier = nil
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
			frontier = append(frontier, c.ID)
		}
	}
	if r.s.onFindDescendants != nil {
		r.s.onFindDescendants()
	}
	return out, nil
}

func (r *memoryCategoryRepo) FindAncestors(_ context.Context, scope catalog.Scope, id uuid.UUID, maxHops int) ([]*catalog.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*catalog.Category
	current, ok := r.s.categories[id]
	for hops := 0; ok && current.ParentID != nil && hops < maxHops; hops++ {
		parent, found := r.s.categories[*current.ParentID]
		if !found || parent.IsDeleted || parent.Scope() != scope {
			break
		}
		out = append(out, cloneCategory(parent))
		current = parent
	}
	return out, nil
}

func (r *memoryCategoryRepo) filter(scope catalog.Scope, f catalog.CategoryFilter) []*catalog.Category {
	var out []*catalog.Category
	for _, c := range r.live(scope) {
		if f.RootsOnly && c.ParentID != nil {
			continue
		}
		if f.ParentID != nil && !c.HasParent(*f.ParentID) {
			continue
		}
		if f.Level != nil && c.Depth != *f.Level {
			continue
		}
		if f.LeafOnly && c.HasChildCategories {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *memoryCategoryRepo) FindAll(_ context.Context, scope catalog.Scope, f catalog.CategoryFilter) ([]*catalog.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.filter(scope, f)
	if f.PageSize > 0 {
		start := min(f.Offset(), len(out))
		end := min(start+f.PageSize, len(out))
		out = out[start:end]
	}
	return cloneAll(out), nil
}

func (r *memoryCategoryRepo) Count(_ context.Context, scope catalog.Scope, f catalog.CategoryFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filter(scope, f))), nil
}

func (r *memoryCategoryRepo) CountChildren(ctx context.Context, scope catalog.Scope, id uuid.UUID) (int64, error) {
	children, _ := r.FindChildren(ctx, scope, &id)
	return int64(len(children)), nil
}

func (r *memoryCategoryRepo) Create(_ context.Context, c *catalog.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[c.ID]; ok {
		return shared.NewDomainError(shared.CodeAlreadyExists, "Category already exists")
	}
	r.s.categories[c.ID] = cloneCategory(c)
	return nil
}

func (r *memoryCategoryRepo) CreateBatch(ctx context.Context, cs []*catalog.Category) error {
	for _, c := range cs {
		if err := r.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryCategoryRepo) SaveWithLock(_ context.Context, c *catalog.Category, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.categories[c.ID]
	if !ok || stored.Version != expectedVersion || stored.Scope() != c.Scope() {
		return conflict()
	}
	c.Version = expectedVersion + 1
	c.UpdatedAt = time.Now()
	r.s.categories[c.ID] = cloneCategory(c)
	return nil
}

// HardDelete fails like a foreign key would while any row still points at c
func (r *memoryCategoryRepo) HardDelete(_ context.Context, c *catalog.Category, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.categories[c.ID]
	if !ok || stored.Version != expectedVersion {
		return conflict()
	}
	for _, other := range r.s.categories {
		if other.HasParent(c.ID) {
			return shared.NewDomainError(catalog.CodeNotDeletable, "Category is still referenced")
		}
	}
	for _, t := range r.s.templates {
		if t.ReferencesCategory(c.ID) {
			return shared.NewDomainError(catalog.CodeNotDeletable, "Category is still referenced")
		}
	}
	delete(r.s.categories, c.ID)
	return nil
}

func (r *memoryCategoryRepo) DetachDeletedChildren(_ context.Context, scope catalog.Scope, parentID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, c := range r.s.categories {
		if c.IsDeleted && c.Scope() == scope && c.HasParent(parentID) {
			c.ParentID = nil
			c.Version++
			n++
		}
	}
	return n, nil
}

func (r *memoryCategoryRepo) LockRootLevel(_ context.Context, scope catalog.Scope) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.rootLocks[scope]++
	return nil
}

type memoryTemplateRepo struct {
	s *memoryStore
}

func (r *memoryTemplateRepo) FindByID(_ context.Context, scope catalog.Scope, id uuid.UUID) (*catalog.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok || t.IsDeleted || t.Scope() != scope {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Template not found")
	}
	return cloneTemplate(t), nil
}

func (r *memoryTemplateRepo) FindByCategories(_ context.Context, scope catalog.Scope, categoryIDs []uuid.UUID) ([]*catalog.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set := make(map[uuid.UUID]struct{}, len(categoryIDs))
	for _, id := range categoryIDs {
		set[id] = struct{}{}
	}
	var out []*catalog.Template
	for _, t := range r.s.templates {
		if !t.IsDeleted && t.Scope() == scope && t.ReferencesAny(set) {
			out = append(out, cloneTemplate(t))
		}
	}
	return out, nil
}

func (r *memoryTemplateRepo) CountReferencing(_ context.Context, scope catalog.Scope, categoryID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.templates {
		if !t.IsDeleted && t.Scope() == scope && t.ReferencesCategory(categoryID) {
			n++
		}
	}
	return n, nil
}

func (r *memoryTemplateRepo) Create(_ context.Context, t *catalog.Template) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.templates[t.ID] = cloneTemplate(t)
	return nil
}

func (r *memoryTemplateRepo) RemoveDeletedReferences(_ context.Context, scope catalog.Scope, categoryID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.templates {
		if !t.IsDeleted || t.Scope() != scope {
			continue
		}
		kept := t.Categories[:0]
		for _, c := range t.Categories {
			if c.CategoryID == categoryID {
				n++
				continue
			}
			kept = append(kept, c)
		}
		t.Categories = kept
	}
	return n, nil
}

func (r *memoryTemplateRepo) SaveCategories(_ context.Context, t *catalog.Template, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.templates[t.ID]
	if !ok || stored.Version != expectedVersion {
		return shared.NewDomainError(shared.CodeConcurrentModification, "Template was modified by another process")
	}
	t.Version = expectedVersion + 1
	r.s.templates[t.ID] = cloneTemplate(t)
	return nil
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// MockCategoryRepository is a mock implementation of CategoryRepository
type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) FindByID(ctx context.Context, scope catalog.Scope, id uuid.UUID) (*catalog.Category, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindByIDs(ctx context.Context, scope catalog.Scope, ids []uuid.UUID) ([]*catalog.Category, error) {
	args := m.Called(ctx, scope, ids)
	return args.Get(0).([]*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindByExternalID(ctx context.Context, scope catalog.Scope, externalID string) (*catalog.Category, error) {
	args := m.Called(ctx, scope, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) ExistsByExternalID(ctx context.Context, scope catalog.Scope, externalID string) (bool, error) {
	args := m.Called(ctx, scope, externalID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCategoryRepository) FindChildren(ctx context.Context, scope catalog.Scope, parentID *uuid.UUID) ([]*catalog.Category, error) {
	args := m.Called(ctx, scope, parentID)
	return args.Get(0).([]*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindChildrenOf(ctx context.Context, scope catalog.Scope, parentIDs []uuid.UUID) ([]*catalog.Category, error) {
	args := m.Called(ctx, scope, parentIDs)
	return args.Get(0).([]*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindDescendants(ctx context.Context, scope catalog.Scope, id uuid.UUID) ([]*catalog.Category, error) {
	args := m.Called(ctx, scope, id)
	return args.Get(0).([]*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindAncestors(ctx context.Context, scope catalog.Scope, id uuid.UUID, maxHops int) ([]*catalog.Category, error) {
	args := m.Called(ctx, scope, id, maxHops)
	return args.Get(0).([]*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) FindAll(ctx context.Context, scope catalog.Scope, filter catalog.CategoryFilter) ([]*catalog.Category, error) {
	args := m.Called(ctx, scope, filter)
	return args.Get(0).([]*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) Count(ctx context.Context, scope catalog.Scope, filter catalog.CategoryFilter) (int64, error) {
	args := m.Called(ctx, scope, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCategoryRepository) CountChildren(ctx context.Context, scope catalog.Scope, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, scope, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCategoryRepository) Create(ctx context.Context, category *catalog.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCategoryRepository) CreateBatch(ctx context.Context, categories []*catalog.Category) error {
	args := m.Called(ctx, categories)
	return args.Error(0)
}

func (m *MockCategoryRepository) SaveWithLock(ctx context.Context, category *catalog.Category, expectedVersion int) error {
	args := m.Called(ctx, category, expectedVersion)
	return args.Error(0)
}

func (m *MockCategoryRepository) HardDelete(ctx context.Context, category *catalog.Category, expectedVersion int) error {
	args := m.Called(ctx, category, expectedVersion)
	return args.Error(0)
}

func (m *MockCategoryRepository) DetachDeletedChildren(ctx context.Context, scope catalog.Scope, parentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, scope, parentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCategoryRepository) LockRootLevel(ctx context.Context, scope catalog.Scope) error {
	args := m.Called(ctx, scope)
	return args.Error(0)
}

var _ catalog.CategoryRepository = (*MockCategoryRepository)(nil)
var _ catalog.CategoryRepository = (*memoryCategoryRepo)(nil)
var _ catalog.TemplateRepository = (*memoryTemplateRepo)(nil)
