package catalog

import (
	"context"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"go.uber.org/zap"
)

// HierarchyCacheInvalidator drops the cached hierarchy snapshots of a scope
// whenever a category event changes that scope's tree
type HierarchyCacheInvalidator struct {
	cache  HierarchyCache
	logger *zap.Logger
}

// NewHierarchyCacheInvalidator creates a new handler for category events
func NewHierarchyCacheInvalidator(cache HierarchyCache, logger *zap.Logger) *HierarchyCacheInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HierarchyCacheInvalidator{
		cache:  cache,
		logger: logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *HierarchyCacheInvalidator) EventTypes() []string {
	return catalog.StructuralEventTypes()
}

// Handle invalidates the event's scope
func (h *HierarchyCacheInvalidator) Handle(ctx context.Context, event shared.DomainEvent) error {
	scope := event.Scope()
	if err := h.cache.InvalidateScope(ctx, scope); err != nil {
		h.logger.Error("failed to invalidate hierarchy cache",
			zap.String("scope", scope.String()),
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
		return err
	}
	h.logger.Debug("hierarchy cache invalidated",
		zap.String("scope", scope.String()),
		zap.String("event_type", event.EventType()),
	)
	return nil
}

// Ensure HierarchyCacheInvalidator implements shared.EventHandler
var _ shared.EventHandler = (*HierarchyCacheInvalidator)(nil)
