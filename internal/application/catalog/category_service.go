package catalog

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CategoryService is the public operation surface of the category tree.
// Every operation runs in one store transaction under Policy.StoreTimeout and
// publishes domain events only after the transaction commits.
type CategoryService struct {
	serviceDeps
	txScope TransactionScope
	policy  catalog.Policy
	rules   catalog.HierarchyRules
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(txScope TransactionScope, policy catalog.Policy, opts ...ServiceOption) *CategoryService {
	return &CategoryService{
		serviceDeps: newServiceDeps(opts),
		txScope:     txScope,
		policy:      policy,
		rules:       catalog.NewHierarchyRules(policy),
	}
}

// Create creates a root category or a child of an existing category
func (s *CategoryService) Create(ctx context.Context, scope catalog.Scope, req CreateCategoryRequest) (*CategoryResponse, error) {
	if err := s.rules.ValidateName(req.Name); err != nil {
		return nil, err
	}
	if req.SequenceNumber < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Sequence number cannot be negative")
	}

	var created *catalog.Category
	var events []shared.DomainEvent
	err := s.run(ctx, "create", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			repo := repos.CategoryRepo()

			exists, err := repo.ExistsByExternalID(ctx, scope, strings.TrimSpace(req.ExternalID))
			if err != nil {
				return err
			}
			if exists {
				return shared.NewDomainError(shared.CodeAlreadyExists, "Category with this external ID already exists")
			}

			var parent *catalog.Category
			if req.ParentID != nil {
				parent, err = s.loadParent(ctx, repo, scope, *req.ParentID)
				if err != nil {
					return err
				}
				if err := s.rules.ValidateDepth(parent); err != nil {
					return err
				}
			}

			if parent == nil {
				if err := s.lockRootNames(ctx, repo, scope); err != nil {
					return err
				}
			}
			siblings, err := repo.FindChildren(ctx, scope, req.ParentID)
			if err != nil {
				return err
			}
			if err := s.rules.CheckNameUniqueness(req.ParentID, req.Name, siblings, uuid.Nil); err != nil {
				return err
			}

			category, err := catalog.NewCategory(scope, req.ExternalID, req.Name, parent)
			if err != nil {
				return err
			}
			category.SequenceNumber = req.SequenceNumber
			if req.MetaInformation != nil {
				category.MetaInformation = maps.Clone(req.MetaInformation)
			}
			if req.IsVisible != nil {
				category.IsVisible = *req.IsVisible
			}
			if req.CreatedBy != nil {
				category.SetCreatedBy(*req.CreatedBy)
			}

			if err := repo.Create(ctx, category); err != nil {
				return err
			}

			cs := newChangeSet()
			if parent != nil {
				// always written so a concurrent sibling write, move or delete of the parent conflicts
				parent = cs.markDirty(parent)
				parent.SetHasChildCategories(true)
				if err := cs.flush(ctx, repo); err != nil {
					return err
				}
			}

			events = append(events, category.PullDomainEvents()...)
			events = append(events, cs.events()...)
			created = category
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("category created",
		zap.String("scope", scope.String()),
		zap.String("category_id", created.ID.String()),
		zap.Int("depth", created.Depth))
	s.publish(ctx, events)

	resp := ToCategoryResponse(created)
	return &resp, nil
}

// GetByID retrieves a live category by ID
func (s *CategoryService) GetByID(ctx context.Context, scope catalog.Scope, id uuid.UUID) (*CategoryResponse, error) {
	var category *catalog.Category
	err := s.run(ctx, "get", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			category, err = repos.CategoryRepo().FindByID(ctx, scope, id)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	resp := ToCategoryResponse(category)
	return &resp, nil
}

// Update applies non-structural changes. Renaming re-runs the sibling name check.
func (s *CategoryService) Update(ctx context.Context, scope catalog.Scope, id uuid.UUID, req UpdateCategoryRequest) (*CategoryResponse, error) {
	if req.Name != nil {
		if err := s.rules.ValidateName(*req.Name); err != nil {
			return nil, err
		}
	}

	var updated *catalog.Category
	var events []shared.DomainEvent
	err := s.run(ctx, "update", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			repo := repos.CategoryRepo()

			category, err := repo.FindByID(ctx, scope, id)
			if err != nil {
				return err
			}
			if req.Version != nil && *req.Version != category.Version {
				return shared.NewDomainError(shared.CodeConcurrentModification,
					"Category was modified since it was read")
			}

			cs := newChangeSet()
			category = cs.track(category)
			if req.Name != nil && catalog.NormalizeName(*req.Name) != catalog.NormalizeName(category.Name) {
				if err := s.guardSiblingNames(ctx, repo, scope, cs, category.ParentID); err != nil {
					return err
				}
				siblings, err := repo.FindChildren(ctx, scope, category.ParentID)
				if err != nil {
					return err
				}
				if err := s.rules.CheckNameUniqueness(category.ParentID, *req.Name, siblings, category.ID); err != nil {
					return err
				}
			}

			if err := category.ApplyChanges(catalog.CategoryChanges{
				Name:            req.Name,
				MetaInformation: req.MetaInformation,
				IsVisible:       req.IsVisible,
				SequenceNumber:  req.SequenceNumber,
			}); err != nil {
				return err
			}
			cs.markDirty(category)
			if err := cs.flush(ctx, repo); err != nil {
				return err
			}

			events = cs.events()
			updated = category
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	resp := ToCategoryResponse(updated)
	return &resp, nil
}

// Move attaches a category to a new parent (nil = root), recomputing the depth
// of the whole subtree and the child flags of both parents in one transaction.
// Every touched row is written under its version check, so a concurrent
// structural change to any of them fails this move with CONCURRENT_MODIFICATION.
func (s *CategoryService) Move(ctx context.Context, scope catalog.Scope, id uuid.UUID, req MoveCategoryRequest) (*CategoryResponse, error) {
	if err := s.rules.DetectCycle(id, req.ParentID, nil); err != nil {
		return nil, err
	}

	var moved *catalog.Category
	var events []shared.DomainEvent
	var written int
	err := s.run(ctx, "move", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			repo := repos.CategoryRepo()
			cs := newChangeSet()

			node, err := repo.FindByID(ctx, scope, id)
			if err != nil {
				return err
			}
			node = cs.track(node)

			if sameParentID(node.ParentID, req.ParentID) {
				moved = node
				return nil
			}

			var newParent *catalog.Category
			var ancestors []*catalog.Category
			if req.ParentID != nil {
				newParent, err = s.loadParent(ctx, repo, scope, *req.ParentID)
				if err != nil {
					return err
				}
				ancestors, err = repo.FindAncestors(ctx, scope, newParent.ID, s.policy.MaxHierarchyDepth+1)
				if err != nil {
					return err
				}
				ancestorIDs := make([]uuid.UUID, 0, len(ancestors))
				for _, a := range ancestors {
					ancestorIDs = append(ancestorIDs, a.ID)
				}
				if err := s.rules.DetectCycle(node.ID, req.ParentID, ancestorIDs); err != nil {
					return err
				}
			}

			descendants, err := repo.FindDescendants(ctx, scope, node.ID)
			if err != nil {
				return err
			}
			newDepth := catalog.ComputeDepth(newParent)
			if err := s.rules.ValidateSubtreeDepth(newDepth, catalog.SubtreeHeight(node, descendants)); err != nil {
				return err
			}

			if newParent == nil {
				if err := s.lockRootNames(ctx, repo, scope); err != nil {
					return err
				}
			}
			siblings, err := repo.FindChildren(ctx, scope, req.ParentID)
			if err != nil {
				return err
			}
			if err := s.rules.CheckNameUniqueness(req.ParentID, node.Name, siblings, node.ID); err != nil {
				return err
			}

			oldParentID := node.ParentID
			node.Relocate(newParent)
			cs.markDirty(node)

			depths := map[uuid.UUID]int{node.ID: node.Depth}
			for _, d := range descendants {
				d = cs.track(d)
				parentDepth, ok := depths[*d.ParentID]
				if !ok {
					continue
				}
				depths[d.ID] = parentDepth + 1
				if d.SetDepth(parentDepth + 1) {
					cs.markDirty(d)
				}
			}

			if newParent != nil {
				for _, a := range ancestors {
					cs.markDirty(a)
				}
				np := cs.markDirty(newParent)
				np.SetHasChildCategories(true)
			}

			if oldParentID != nil {
				oldParent, err := repo.FindByID(ctx, scope, *oldParentID)
				if err != nil && !errors.Is(err, shared.ErrNotFound) {
					return err
				}
				if oldParent != nil {
					remaining, err := repo.FindChildren(ctx, scope, oldParentID)
					if err != nil {
						return err
					}
					remaining = excludeCategory(remaining, node.ID)
					op := cs.markDirty(oldParent)
					op.SetHasChildCategories(s.rules.RecomputeChildFlag(op.ID, remaining))
				}
			}

			if err := cs.flush(ctx, repo); err != nil {
				return err
			}
			written = cs.dirtyCount()
			events = cs.events()
			moved = node
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, shared.ErrConcurrentModification) {
			s.logger.Warn("category move lost a concurrent update",
				zap.String("scope", scope.String()),
				zap.String("category_id", id.String()))
		}
		return nil, err
	}

	if len(events) > 0 {
		s.logger.Info("category moved",
			zap.String("scope", scope.String()),
			zap.String("category_id", moved.ID.String()),
			zap.Int("depth", moved.Depth),
			zap.Int("rows_written", written))
	}
	s.publish(ctx, events)

	resp := ToCategoryResponse(moved)
	return &resp, nil
}

// CanDelete reports whether a category has no children and no referencing templates
func (s *CategoryService) CanDelete(ctx context.Context, scope catalog.Scope, id uuid.UUID) (*DeletableResult, error) {
	var result *DeletableResult
	err := s.run(ctx, "can_delete", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			category, err := repos.CategoryRepo().FindByID(ctx, scope, id)
			if err != nil {
				return err
			}
			result, err = s.checkDeletable(ctx, repos, scope, category)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a deletable category (soft delete unless disabled by policy)
// and recomputes the former parent's child flag in the same transaction
func (s *CategoryService) Delete(ctx context.Context, scope catalog.Scope, id uuid.UUID) error {
	var events []shared.DomainEvent
	err := s.run(ctx, "delete", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			repo := repos.CategoryRepo()
			cs := newChangeSet()

			category, err := repo.FindByID(ctx, scope, id)
			if err != nil {
				return err
			}
			result, err := s.checkDeletable(ctx, repos, scope, category)
			if err != nil {
				return err
			}
			if !result.Deletable {
				return shared.NewDomainError(catalog.CodeNotDeletable, "Category cannot be deleted: "+result.Reason)
			}

			category = cs.track(category)
			category.MarkDeleted()
			if s.policy.SoftDelete {
				cs.markDirty(category)
			} else if err := s.hardDelete(ctx, repos, scope, category, cs.originalVersion(category.ID)); err != nil {
				return err
			}

			if category.ParentID != nil {
				parent, err := repo.FindByID(ctx, scope, *category.ParentID)
				if err != nil && !errors.Is(err, shared.ErrNotFound) {
					return err
				}
				if parent != nil {
					siblings, err := repo.FindChildren(ctx, scope, category.ParentID)
					if err != nil {
						return err
					}
					siblings = excludeCategory(siblings, category.ID)
					p := cs.markDirty(parent)
					p.SetHasChildCategories(s.rules.RecomputeChildFlag(p.ID, siblings))
				}
			}

			if err := cs.flush(ctx, repo); err != nil {
				return err
			}
			events = cs.events()
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("category deleted",
		zap.String("scope", scope.String()),
		zap.String("category_id", id.String()),
		zap.Bool("soft", s.policy.SoftDelete))
	s.publish(ctx, events)
	return nil
}

// bulkPlan is the validated outcome of a bulk create dry run
type bulkPlan struct {
	created []*catalog.Category
	parents *changeSet
}

// BulkCreate validates every entry against the store and the rest of the batch,
// then inserts all of them in one transaction. Nothing is written if any entry fails.
func (s *CategoryService) BulkCreate(ctx context.Context, scope catalog.Scope, entries []BulkCategoryEntry) ([]CategoryResponse, error) {
	if len(entries) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "At least one category is required")
	}
	if len(entries) > s.policy.MaxBulkEntries {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Too many categories in one batch")
	}

	var created []*catalog.Category
	var events []shared.DomainEvent
	err := s.run(ctx, "bulk_create", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			repo := repos.CategoryRepo()

			plan, err := s.planBulk(ctx, repo, scope, entries)
			if err != nil {
				return err
			}
			if err := repo.CreateBatch(ctx, plan.created); err != nil {
				return err
			}
			if err := plan.parents.flush(ctx, repo); err != nil {
				return err
			}

			for _, c := range plan.created {
				events = append(events, c.PullDomainEvents()...)
			}
			events = append(events, plan.parents.events()...)
			created = plan.created
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("categories bulk created",
		zap.String("scope", scope.String()),
		zap.Int("count", len(created)))
	s.publish(ctx, events)
	return ToCategoryResponses(created), nil
}

func (s *CategoryService) planBulk(ctx context.Context, repo catalog.CategoryRepository, scope catalog.Scope, entries []BulkCategoryEntry) (*bulkPlan, error) {
	plan := &bulkPlan{parents: newChangeSet()}
	pendingByExt := make(map[string]*catalog.Category)
	pendingIDs := make(map[uuid.UUID]bool)
	seenExt := make(map[string]bool)
	storedChildren := make(map[string][]*catalog.Category)
	pendingChildren := make(map[string][]*catalog.Category)
	var failures []BulkEntryFailure

	for i, entry := range entries {
		ext := strings.TrimSpace(entry.ExternalID)
		fail := func(err error) {
			failures = append(failures, BulkEntryFailure{Index: i, ExternalID: ext, Err: err})
		}

		if ext == "" {
			fail(shared.NewDomainError(shared.CodeInvalidInput, "External ID cannot be empty"))
			continue
		}
		if seenExt[ext] {
			fail(shared.NewDomainError(shared.CodeAlreadyExists, "External ID is repeated in the batch"))
			continue
		}
		seenExt[ext] = true

		if err := s.rules.ValidateName(entry.Name); err != nil {
			fail(err)
			continue
		}
		if entry.SequenceNumber < 0 {
			fail(shared.NewDomainError(shared.CodeInvalidInput, "Sequence number cannot be negative"))
			continue
		}

		exists, err := repo.ExistsByExternalID(ctx, scope, ext)
		if err != nil {
			return nil, err
		}
		if exists {
			fail(shared.NewDomainError(shared.CodeAlreadyExists, "Category with this external ID already exists"))
			continue
		}

		parent, err := s.resolveBulkParent(ctx, repo, scope, entry, pendingByExt)
		if err != nil {
			if isStoreFailure(err) {
				return nil, err
			}
			fail(err)
			continue
		}
		if err := s.rules.ValidateDepth(parent); err != nil {
			fail(err)
			continue
		}

		var parentID *uuid.UUID
		key := "root"
		if parent != nil {
			parentID = &parent.ID
			key = parent.ID.String()
		}
		stored, ok := storedChildren[key]
		if !ok && (parent == nil || !pendingIDs[parent.ID]) {
			if parent == nil {
				if err := s.lockRootNames(ctx, repo, scope); err != nil {
					return nil, err
				}
			}
			stored, err = repo.FindChildren(ctx, scope, parentID)
			if err != nil {
				return nil, err
			}
			storedChildren[key] = stored
		}
		siblings := append(append([]*catalog.Category{}, stored...), pendingChildren[key]...)
		if err := s.rules.CheckNameUniqueness(parentID, entry.Name, siblings, uuid.Nil); err != nil {
			fail(err)
			continue
		}

		category, err := catalog.NewCategory(scope, ext, entry.Name, parent)
		if err != nil {
			fail(err)
			continue
		}
		category.SequenceNumber = entry.SequenceNumber
		if entry.MetaInformation != nil {
			category.MetaInformation = maps.Clone(entry.MetaInformation)
		}
		if entry.IsVisible != nil {
			category.IsVisible = *entry.IsVisible
		}

		if parent != nil {
			if pendingIDs[parent.ID] {
				parent.SetHasChildCategories(true)
			} else {
				p := plan.parents.markDirty(parent)
				p.SetHasChildCategories(true)
			}
		}

		pendingByExt[ext] = category
		pendingIDs[category.ID] = true
		pendingChildren[key] = append(pendingChildren[key], category)
		plan.created = append(plan.created, category)
	}

	if len(failures) > 0 {
		return nil, &BulkValidationError{Failures: failures}
	}
	return plan, nil
}

func (s *CategoryService) resolveBulkParent(ctx context.Context, repo catalog.CategoryRepository, scope catalog.Scope, entry BulkCategoryEntry, pending map[string]*catalog.Category) (*catalog.Category, error) {
	parentExt := strings.TrimSpace(entry.ParentExternalID)
	if entry.ParentID != nil && parentExt != "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Only one of parent_id and parent_external_id may be set")
	}
	switch {
	case entry.ParentID != nil:
		return s.loadParent(ctx, repo, scope, *entry.ParentID)
	case parentExt != "":
		if p, ok := pending[parentExt]; ok {
			return p, nil
		}
		p, err := repo.FindByExternalID(ctx, scope, parentExt)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, catalog.ErrParentNotFound
			}
			return nil, err
		}
		return p, nil
	}
	return nil, nil
}

// List returns live categories under a parent, at a depth, or the roots,
// ordered by sequence number then name
func (s *CategoryService) List(ctx context.Context, scope catalog.Scope, req ListCategoriesRequest) (*shared.Paginated[CategoryResponse], error) {
	page := shared.Pagination{Page: req.Page, PageSize: req.PageSize}.Normalize(s.policy.DefaultPageSize, s.policy.MaxPageSize)
	filter := catalog.CategoryFilter{
		ParentID:   req.ParentID,
		Level:      req.Level,
		RootsOnly:  req.ParentID == nil && req.Level == nil,
		SortBy:     req.SortBy,
		SortOrder:  req.SortOrder,
		Pagination: page,
	}

	var categories []*catalog.Category
	var total int64
	err := s.run(ctx, "list", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			repo := repos.CategoryRepo()
			var err error
			if categories, err = repo.FindAll(ctx, scope, filter); err != nil {
				return err
			}
			total, err = repo.Count(ctx, scope, filter)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	result := shared.NewPaginated(ToCategoryResponses(categories), total, page.Page, page.PageSize)
	return &result, nil
}

// ListLeaves returns every live category without live children
func (s *CategoryService) ListLeaves(ctx context.Context, scope catalog.Scope) ([]CategoryResponse, error) {
	var leaves []*catalog.Category
	err := s.run(ctx, "list_leaves", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			leaves, err = repos.CategoryRepo().FindAll(ctx, scope, catalog.CategoryFilter{LeafOnly: true})
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return ToCategoryResponses(leaves), nil
}

// BuildHierarchy returns the subtree under rootID (or the whole forest) as nested
// nodes, at most maxDepth levels below the start. Levels are loaded breadth-first
// inside one transaction, so the result is a snapshot, not a live view.
func (s *CategoryService) BuildHierarchy(ctx context.Context, scope catalog.Scope, rootID *uuid.UUID, maxDepth *int) ([]CategoryTreeNode, error) {
	limit := s.policy.MaxHierarchyDepth
	if maxDepth != nil {
		if *maxDepth < 0 {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "Max depth cannot be negative")
		}
		limit = *maxDepth
	}
	key := HierarchyCacheKey{Scope: scope, RootID: rootID, MaxDepth: limit}

	if nodes, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("hierarchy cache read failed", zap.String("scope", scope.String()), zap.Error(err))
	} else if ok {
		return nodes, nil
	}

	var nodes []CategoryTreeNode
	err := s.run(ctx, "build_hierarchy", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			nodes, err = s.loadHierarchy(ctx, repos.CategoryRepo(), scope, rootID, limit)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, nodes); err != nil {
		s.logger.Warn("hierarchy cache write failed", zap.String("scope", scope.String()), zap.Error(err))
	}
	return nodes, nil
}

func (s *CategoryService) loadHierarchy(ctx context.Context, repo catalog.CategoryRepository, scope catalog.Scope, rootID *uuid.UUID, limit int) ([]CategoryTreeNode, error) {
	var level []*catalog.Category
	if rootID != nil {
		root, err := repo.FindByID(ctx, scope, *rootID)
		if err != nil {
			return nil, err
		}
		level = []*catalog.Category{root}
	} else {
		roots, err := repo.FindChildren(ctx, scope, nil)
		if err != nil {
			return nil, err
		}
		level = roots
	}

	top := make([]uuid.UUID, 0, len(level))
	childrenOf := make(map[uuid.UUID][]uuid.UUID)
	byID := make(map[uuid.UUID]*catalog.Category)
	for _, c := range level {
		top = append(top, c.ID)
		byID[c.ID] = c
	}

	for depth := 1; depth <= limit && len(level) > 0; depth++ {
		ids := make([]uuid.UUID, 0, len(level))
		for _, c := range level {
			ids = append(ids, c.ID)
		}
		children, err := repo.FindChildrenOf(ctx, scope, ids)
		if err != nil {
			return nil, err
		}
		next := make([]*catalog.Category, 0, len(children))
		for _, child := range children {
			if _, seen := byID[child.ID]; seen || child.ParentID == nil {
				continue
			}
			byID[child.ID] = child
			childrenOf[*child.ParentID] = append(childrenOf[*child.ParentID], child.ID)
			next = append(next, child)
		}
		level = next
	}

	var assemble func(id uuid.UUID) CategoryTreeNode
	assemble = func(id uuid.UUID) CategoryTreeNode {
		node := toTreeNode(byID[id])
		for _, childID := range childrenOf[id] {
			node.Children = append(node.Children, assemble(childID))
		}
		return node
	}

	forest := make([]CategoryTreeNode, 0, len(top))
	for _, id := range top {
		forest = append(forest, assemble(id))
	}
	return forest, nil
}

// RepairHierarchy recomputes every child flag and depth of the scope from the
// parent links and writes back only the rows that drifted
func (s *CategoryService) RepairHierarchy(ctx context.Context, scope catalog.Scope) (*RepairReport, error) {
	report := &RepairReport{}
	err := s.run(ctx, "repair", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			repo := repos.CategoryRepo()
			*report = RepairReport{}

			all, err := repo.FindAll(ctx, scope, catalog.CategoryFilter{})
			if err != nil {
				return err
			}
			report.Scanned = len(all)

			cs := newChangeSet()
			live := make(map[uuid.UUID]*catalog.Category, len(all))
			for _, c := range all {
				live[c.ID] = cs.track(c)
			}
			children := make(map[uuid.UUID][]*catalog.Category)
			var roots []*catalog.Category
			for _, c := range all {
				if c.ParentID == nil {
					roots = append(roots, c)
					continue
				}
				if _, ok := live[*c.ParentID]; ok {
					children[*c.ParentID] = append(children[*c.ParentID], c)
				}
			}

			for _, c := range all {
				if c.SetHasChildCategories(len(children[c.ID]) > 0) {
					cs.markDirty(c)
					report.FlagsFixed++
				}
			}

			reached := make(map[uuid.UUID]bool, len(all))
			queue := make([]*catalog.Category, 0, len(roots))
			for _, r := range roots {
				reached[r.ID] = true
				if r.SetDepth(0) {
					cs.markDirty(r)
					report.DepthsFixed++
				}
				queue = append(queue, r)
			}
			for len(queue) > 0 {
				parent := queue[0]
				queue = queue[1:]
				for _, child := range children[parent.ID] {
					if reached[child.ID] {
						continue
					}
					reached[child.ID] = true
					if child.SetDepth(parent.Depth + 1) {
						cs.markDirty(child)
						report.DepthsFixed++
					}
					queue = append(queue, child)
				}
			}
			report.Unreachable = len(all) - len(reached)

			return cs.flush(ctx, repo)
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.InvalidateScope(ctx, scope); err != nil {
		s.logger.Warn("hierarchy cache invalidation failed", zap.String("scope", scope.String()), zap.Error(err))
	}
	s.logger.Info("category hierarchy repaired",
		zap.String("scope", scope.String()),
		zap.Int("scanned", report.Scanned),
		zap.Int("flags_fixed", report.FlagsFixed),
		zap.Int("depths_fixed", report.DepthsFixed),
		zap.Int("unreachable", report.Unreachable))
	return report, nil
}

func (s *CategoryService) checkDeletable(ctx context.Context, repos TransactionalRepositories, scope catalog.Scope, category *catalog.Category) (*DeletableResult, error) {
	if category.HasChildCategories {
		return &DeletableResult{Deletable: false, Reason: ReasonHasChildCategories}, nil
	}
	children, err := repos.CategoryRepo().CountChildren(ctx, scope, category.ID)
	if err != nil {
		return nil, err
	}
	if children > 0 {
		return &DeletableResult{Deletable: false, Reason: ReasonHasChildCategories}, nil
	}
	refs, err := repos.TemplateRepo().CountReferencing(ctx, scope, category.ID)
	if err != nil {
		return nil, err
	}
	if refs > 0 {
		return &DeletableResult{Deletable: false, Reason: ReasonReferencedByTemplate}, nil
	}
	return &DeletableResult{Deletable: true}, nil
}

// lockRootNames serializes writers that can change the set of root names in
// scope. Writers under a parent conflict through the parent's version instead.
func (s *CategoryService) lockRootNames(ctx context.Context, repo catalog.CategoryRepository, scope catalog.Scope) error {
	if s.policy.AllowDuplicateNames {
		return nil
	}
	return repo.LockRootLevel(ctx, scope)
}

// guardSiblingNames makes a rename conflict with any concurrent write to the
// same sibling set: the parent joins cs for a version-checked write, and the
// root level is locked for roots
func (s *CategoryService) guardSiblingNames(ctx context.Context, repo catalog.CategoryRepository, scope catalog.Scope, cs *changeSet, parentID *uuid.UUID) error {
	if s.policy.AllowDuplicateNames {
		return nil
	}
	if parentID == nil {
		return repo.LockRootLevel(ctx, scope)
	}
	parent, err := repo.FindByID(ctx, scope, *parentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	cs.markDirty(parent)
	return nil
}

// hardDelete removes the row after dropping the references soft-deleted
// children and templates still hold to it
func (s *CategoryService) hardDelete(ctx context.Context, repos TransactionalRepositories, scope catalog.Scope, category *catalog.Category, expectedVersion int) error {
	refs, err := repos.TemplateRepo().RemoveDeletedReferences(ctx, scope, category.ID)
	if err != nil {
		return err
	}
	detached, err := repos.CategoryRepo().DetachDeletedChildren(ctx, scope, category.ID)
	if err != nil {
		return err
	}
	if refs > 0 || detached > 0 {
		s.logger.Debug("dropped references from deleted rows",
			zap.String("category_id", category.ID.String()),
			zap.Int64("template_entries", refs),
			zap.Int64("children", detached))
	}
	return repos.CategoryRepo().HardDelete(ctx, category, expectedVersion)
}

func (s *CategoryService) loadParent(ctx context.Context, repo catalog.CategoryRepository, scope catalog.Scope, id uuid.UUID) (*catalog.Category, error) {
	parent, err := repo.FindByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, catalog.ErrParentNotFound
		}
		return nil, err
	}
	return parent, nil
}

// run validates the scope, applies the store timeout, and records tracing and metrics
func (s *CategoryService) run(ctx context.Context, operation string, scope catalog.Scope, fn func(ctx context.Context) error) error {
	return runOperation(ctx, "category", operation, scope, s.policy.StoreTimeout, s.metrics, fn)
}

func (s *CategoryService) publish(ctx context.Context, events []shared.DomainEvent) {
	publishEvents(ctx, s.publisher, s.logger, events)
}

func runOperation(ctx context.Context, service, operation string, scope catalog.Scope, timeout time.Duration, metrics MetricsRecorder, fn func(ctx context.Context) error) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, service, operation, telemetry.WithScope(scope))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var err error
	telemetry.TagOperation(ctx, service+"."+operation, func(ctx context.Context) {
		err = fn(ctx)
	})
	metrics.RecordOperation(ctx, service+"."+operation, time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, events []shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		// the mutation is committed; subscribers reconcile on the next event
		logger.Warn("Failed to publish domain events",
			zap.Int("count", len(events)),
			zap.Error(err))
	}
}

// isStoreFailure reports whether err came from the store rather than from validation
func isStoreFailure(err error) bool {
	switch shared.ErrorCode(err) {
	case "", shared.CodeStoreTimeout, shared.CodeStoreUnavailable, shared.CodeConcurrentModification:
		return true
	}
	return false
}

func excludeCategory(categories []*catalog.Category, id uuid.UUID) []*catalog.Category {
	out := make([]*catalog.Category, 0, len(categories))
	for _, c := range categories {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func sameParentID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
