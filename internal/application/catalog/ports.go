package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HierarchyCacheKey identifies one BuildHierarchy snapshot
type HierarchyCacheKey struct {
	Scope    catalog.Scope
	RootID   *uuid.UUID
	MaxDepth int
}

// String returns the key without the scope prefix
func (k HierarchyCacheKey) String() string {
	root := "forest"
	if k.RootID != nil {
		root = k.RootID.String()
	}
	return fmt.Sprintf("%s:%d", root, k.MaxDepth)
}

// HierarchyCache stores BuildHierarchy snapshots per scope.
// Implementations must treat every error as a cache miss on the caller side.
type HierarchyCache interface {
	Get(ctx context.Context, key HierarchyCacheKey) ([]CategoryTreeNode, bool, error)
	Set(ctx context.Context, key HierarchyCacheKey, nodes []CategoryTreeNode) error
	// InvalidateScope drops every snapshot of the scope
	InvalidateScope(ctx context.Context, scope catalog.Scope) error
}

// MetricsRecorder receives the outcome of every service operation
type MetricsRecorder interface {
	RecordOperation(ctx context.Context, operation string, duration time.Duration, err error)
}

type noopHierarchyCache struct{}

func (noopHierarchyCache) Get(context.Context, HierarchyCacheKey) ([]CategoryTreeNode, bool, error) {
	return nil, false, nil
}

func (noopHierarchyCache) Set(context.Context, HierarchyCacheKey, []CategoryTreeNode) error {
	return nil
}

func (noopHierarchyCache) InvalidateScope(context.Context, catalog.Scope) error {
	return nil
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(context.Context, string, time.Duration, error) {}

// serviceDeps holds the optional collaborators shared by the catalog services
type serviceDeps struct {
	publisher shared.EventPublisher
	cache     HierarchyCache
	metrics   MetricsRecorder
	logger    *zap.Logger
}

// ServiceOption is a functional option for configuring the catalog services
type ServiceOption func(*serviceDeps)

// WithEventPublisher sets the publisher that receives committed domain events
func WithEventPublisher(publisher shared.EventPublisher) ServiceOption {
	return func(d *serviceDeps) {
		d.publisher = publisher
	}
}

// WithHierarchyCache sets the snapshot cache used by BuildHierarchy
func WithHierarchyCache(cache HierarchyCache) ServiceOption {
	return func(d *serviceDeps) {
		if cache != nil {
			d.cache = cache
		}
	}
}

// WithMetrics sets the operation metrics recorder
func WithMetrics(metrics MetricsRecorder) ServiceOption {
	return func(d *serviceDeps) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(d *serviceDeps) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func newServiceDeps(opts []ServiceOption) serviceDeps {
	d := serviceDeps{
		cache:   noopHierarchyCache{},
		metrics: noopMetrics{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}
