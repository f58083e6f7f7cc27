package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateCategoryService assigns categories to templates and resolves
// templates by category under the OR, AND and PATH composition modes
type TemplateCategoryService struct {
	serviceDeps
	txScope TransactionScope
	policy  catalog.Policy
}

// NewTemplateCategoryService creates a new TemplateCategoryService
func NewTemplateCategoryService(txScope TransactionScope, policy catalog.Policy, opts ...ServiceOption) *TemplateCategoryService {
	return &TemplateCategoryService{
		serviceDeps: newServiceDeps(opts),
		txScope:     txScope,
		policy:      policy,
	}
}

// CreateTemplate registers a template, optionally with an initial category list
// validated the same way as Attach
func (s *TemplateCategoryService) CreateTemplate(ctx context.Context, scope catalog.Scope, req CreateTemplateRequest) (*TemplateResponse, error) {
	ids, err := s.checkLimit(req.CategoryIDs)
	if err != nil {
		return nil, err
	}

	var created *catalog.Template
	var events []shared.DomainEvent
	err = s.run(ctx, "create", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			template, err := catalog.NewTemplate(scope, req.ExternalID, req.Name)
			if err != nil {
				return err
			}
			if req.CreatedBy != nil {
				template.SetCreatedBy(*req.CreatedBy)
			}
			if len(ids) > 0 {
				pairs, err := s.resolveAssignable(ctx, repos.CategoryRepo(), scope, ids, nil)
				if err != nil {
					return err
				}
				template.AssignCategories(pairs)
			}
			if err := repos.TemplateRepo().Create(ctx, template); err != nil {
				return err
			}
			events = template.PullDomainEvents()
			created = template
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.publisher, s.logger, events)
	resp := ToTemplateResponse(created)
	return &resp, nil
}

// Attach replaces a template's categories with the given IDs. Repeated IDs are
// collapsed keeping the first occurrence. On failure the existing associations
// are left untouched.
func (s *TemplateCategoryService) Attach(ctx context.Context, scope catalog.Scope, templateID uuid.UUID, categoryIDs []uuid.UUID) (*TemplateResponse, error) {
	ids, err := s.checkLimit(categoryIDs)
	if err != nil {
		return nil, err
	}

	var updated *catalog.Template
	var events []shared.DomainEvent
	err = s.run(ctx, "attach", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			template, err := repos.TemplateRepo().FindByID(ctx, scope, templateID)
			if err != nil {
				return err
			}

			pairs, err := s.resolveAssignable(ctx, repos.CategoryRepo(), scope, ids, template.CategoryIDs())
			if err != nil {
				return err
			}

			expected := template.Version
			template.AssignCategories(pairs)
			if err := repos.TemplateRepo().SaveCategories(ctx, template, expected); err != nil {
				return err
			}
			events = template.PullDomainEvents()
			updated = template
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("template categories assigned",
		zap.String("scope", scope.String()),
		zap.String("template_id", templateID.String()),
		zap.Int("categories", len(ids)))
	publishEvents(ctx, s.publisher, s.logger, events)

	resp := ToTemplateResponse(updated)
	return &resp, nil
}

// ResolveTemplatesByCategory returns live templates matching the categories under
// the requested mode, ordered by name then ID and paginated
func (s *TemplateCategoryService) ResolveTemplatesByCategory(ctx context.Context, scope catalog.Scope, req ResolveTemplatesRequest) (*shared.Paginated[TemplateResponse], error) {
	if len(req.CategoryIDs) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "At least one category is required")
	}
	mode := req.Mode
	if mode == "" {
		mode = s.policy.DefaultMode
	}
	includeInherited := s.policy.IncludeInherited
	if req.IncludeInherited != nil {
		includeInherited = *req.IncludeInherited
	}
	page := shared.Pagination{Page: req.Page, PageSize: req.PageSize}.Normalize(s.policy.DefaultPageSize, s.policy.MaxPageSize)

	var matched []*catalog.Template
	err := s.run(ctx, "resolve", scope, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			categoryRepo := repos.CategoryRepo()

			var groups [][]uuid.UUID
			switch mode {
			case catalog.QueryModePATH:
				terminal, err := s.validatePath(ctx, categoryRepo, scope, req.CategoryIDs)
				if err != nil {
					return err
				}
				groups = [][]uuid.UUID{{terminal}}
			case catalog.QueryModeOR, catalog.QueryModeAND:
				ids := dedupeIDs(req.CategoryIDs)
				found, err := categoryRepo.FindByIDs(ctx, scope, ids)
				if err != nil {
					return err
				}
				if missing := missingIDs(ids, found); len(missing) > 0 {
					return shared.NewDomainError(catalog.CodeCategoryNotFound,
						fmt.Sprintf("Category %s not found", missing[0]))
				}
				for _, id := range ids {
					groups = append(groups, []uuid.UUID{id})
				}
			default:
				return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown query mode %q", mode))
			}

			if includeInherited {
				for i, group := range groups {
					descendants, err := categoryRepo.FindDescendants(ctx, scope, group[0])
					if err != nil {
						return err
					}
					for _, d := range descendants {
						groups[i] = append(groups[i], d.ID)
					}
				}
			}

			var union []uuid.UUID
			for _, group := range groups {
				union = append(union, group...)
			}
			candidates, err := repos.TemplateRepo().FindByCategories(ctx, scope, dedupeIDs(union))
			if err != nil {
				return err
			}

			matched = matchTemplates(candidates, groups, mode)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := int64(len(matched))
	start := min(max(page.Offset(), 0), len(matched))
	end := min(start+page.PageSize, len(matched))
	items := make([]TemplateResponse, 0, end-start)
	for _, t := range matched[start:end] {
		items = append(items, ToTemplateResponse(t))
	}

	result := shared.NewPaginated(items, total, page.Page, page.PageSize)
	return &result, nil
}

// checkLimit collapses repeated IDs and then enforces the per-template category
// limit, so a repeated ID counts once
func (s *TemplateCategoryService) checkLimit(categoryIDs []uuid.UUID) ([]uuid.UUID, error) {
	ids := dedupeIDs(categoryIDs)
	if limit := s.policy.CategoryLimit(); len(ids) > limit {
		return nil, shared.NewDomainError(catalog.CodeTooManyCategories,
			fmt.Sprintf("A template can reference at most %d categories, got %d", limit, len(ids)))
	}
	return ids, nil
}

// resolveAssignable loads the categories and checks existence and the leaf rule.
// Under the leaf rule, categories not already in current are version-touched so a
// concurrent child create under any of them conflicts.
func (s *TemplateCategoryService) resolveAssignable(ctx context.Context, repo catalog.CategoryRepository, scope catalog.Scope, ids, current []uuid.UUID) ([]catalog.TemplateCategory, error) {
	if len(ids) == 0 {
		return []catalog.TemplateCategory{}, nil
	}
	found, err := repo.FindByIDs(ctx, scope, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*catalog.Category, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	attached := make(map[uuid.UUID]bool, len(current))
	for _, id := range current {
		attached[id] = true
	}

	cs := newChangeSet()
	pairs := make([]catalog.TemplateCategory, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, shared.NewDomainError(catalog.CodeCategoryNotFound, fmt.Sprintf("Category %s not found", id))
		}
		if s.policy.LeafCategoriesOnly && c.HasChildCategories {
			return nil, shared.NewDomainError(catalog.CodeNotLeafCategory,
				fmt.Sprintf("Category %s has child categories", c.ExternalID))
		}
		if s.policy.LeafCategoriesOnly && !attached[c.ID] {
			cs.markDirty(c)
		}
		pairs = append(pairs, catalog.TemplateCategory{CategoryID: c.ID, ExternalID: c.ExternalID})
	}
	if err := cs.flush(ctx, repo); err != nil {
		return nil, err
	}
	return pairs, nil
}

// validatePath checks that path is an exact root-to-terminal chain in the live
// tree and returns the terminal category ID
func (s *TemplateCategoryService) validatePath(ctx context.Context, repo catalog.CategoryRepository, scope catalog.Scope, path []uuid.UUID) (uuid.UUID, error) {
	found, err := repo.FindByIDs(ctx, scope, dedupeIDs(path))
	if err != nil {
		return uuid.Nil, err
	}
	byID := make(map[uuid.UUID]*catalog.Category, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	for i, id := range path {
		c, ok := byID[id]
		if !ok {
			return uuid.Nil, shared.NewDomainError(catalog.CodeInvalidPath,
				fmt.Sprintf("Path hop %d (%s) does not exist", i, id))
		}
		if i == 0 {
			if !c.IsRoot() {
				return uuid.Nil, shared.NewDomainError(catalog.CodeInvalidPath, "Path must start at a root category")
			}
			continue
		}
		if !c.HasParent(path[i-1]) {
			return uuid.Nil, shared.NewDomainError(catalog.CodeInvalidPath,
				fmt.Sprintf("Path hop %d (%s) is not a child of %s", i, id, path[i-1]))
		}
	}
	return path[len(path)-1], nil
}

func (s *TemplateCategoryService) run(ctx context.Context, operation string, scope catalog.Scope, fn func(ctx context.Context) error) error {
	return runOperation(ctx, "template_category", operation, scope, s.policy.StoreTimeout, s.metrics, fn)
}

// matchTemplates keeps templates matching any group (OR, PATH) or every group (AND)
func matchTemplates(candidates []*catalog.Template, groups [][]uuid.UUID, mode catalog.QueryMode) []*catalog.Template {
	sets := make([]map[uuid.UUID]struct{}, len(groups))
	for i, group := range groups {
		sets[i] = make(map[uuid.UUID]struct{}, len(group))
		for _, id := range group {
			sets[i][id] = struct{}{}
		}
	}

	matched := make([]*catalog.Template, 0, len(candidates))
	seen := make(map[uuid.UUID]bool, len(candidates))
	for _, t := range candidates {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		ok := mode == catalog.QueryModeAND
		for _, set := range sets {
			hit := t.ReferencesAny(set)
			if mode == catalog.QueryModeAND {
				ok = ok && hit
			} else {
				ok = ok || hit
			}
		}
		if ok {
			matched = append(matched, t)
		}
	}
	return matched
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func missingIDs(ids []uuid.UUID, found []*catalog.Category) []uuid.UUID {
	present := make(map[uuid.UUID]bool, len(found))
	for _, c := range found {
		present[c.ID] = true
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
