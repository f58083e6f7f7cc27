package event

import (
	"context"

	appcatalog "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// CatalogEventTypes lists every event the catalog services publish
func CatalogEventTypes() []string {
	return append(catalog.StructuralEventTypes(), catalog.EventTypeTemplateCategoriesAssigned)
}

// AuditLogHandler writes one structured log line per catalog event
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates the handler
func NewAuditLogHandler(l *zap.Logger) *AuditLogHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuditLogHandler{logger: l.Named("catalog_audit")}
}

// EventTypes returns the catalog event types
func (h *AuditLogHandler) EventTypes() []string {
	return CatalogEventTypes()
}

// Handle logs the event with its aggregate and scope
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	scope := event.Scope()
	logger.WithLogger(ctx, h.logger).Info("catalog event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", scope.TenantID.String()),
		zap.String("org_id", scope.OrgID.String()),
		zap.Time("occurred_at", event.OccurredAt()))
	return nil
}

// RegisterCatalogHandlers subscribes the handlers that keep derived catalog
// state in step with committed changes
func RegisterCatalogHandlers(bus shared.EventSubscriber, cache appcatalog.HierarchyCache, l *zap.Logger) {
	bus.Subscribe(appcatalog.NewHierarchyCacheInvalidator(cache, l))
	bus.Subscribe(NewAuditLogHandler(l))
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
