package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	AttrOperation = attribute.Key("operation")
	AttrOutcome   = attribute.Key("outcome")
	AttrErrorCode = attribute.Key("error_code")
	AttrResult    = attribute.Key("result")
)

// Operation outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected" // a rule refused the request
	OutcomeFailed   = "failed"   // the store or an unexpected error
)

// CatalogMetrics records the outcome and latency of every category and
// template operation
type CatalogMetrics struct {
	operations *Counter
	duration   *Histogram
}

// NewCatalogMetrics creates the catalog instruments on meter
func NewCatalogMetrics(meter metric.Meter) (*CatalogMetrics, error) {
	operations, err := NewCounter(meter, "catalog_operations_total", "Catalog operations by outcome", "{operation}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "catalog_operation_duration_seconds",
		Description: "Catalog operation latency",
		Unit:        "s",
		Buckets:     OperationDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &CatalogMetrics{operations: operations, duration: duration}, nil
}

// RecordOperation records one finished operation
func (m *CatalogMetrics) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	outcome, code := classify(err)
	attrs := []attribute.KeyValue{AttrOperation.String(operation), AttrOutcome.String(outcome)}
	if code != "" {
		attrs = append(attrs, AttrErrorCode.String(code))
	}
	m.operations.Inc(ctx, attrs...)
	m.duration.RecordDuration(ctx, duration, AttrOperation.String(operation), AttrOutcome.String(outcome))
}

func classify(err error) (outcome, code string) {
	if err == nil {
		return OutcomeSuccess, ""
	}
	code = shared.ErrorCode(err)
	switch code {
	case "", shared.CodeStoreTimeout, shared.CodeStoreUnavailable:
		return OutcomeFailed, code
	default:
		return OutcomeRejected, code
	}
}

// ObserveHierarchyCache exports the cumulative hit and miss counts returned by
// stats on every collection
func ObserveHierarchyCache(meter metric.Meter, stats func() (hits, misses int64)) error {
	lookups, err := meter.Int64ObservableCounter("catalog_hierarchy_cache_lookups_total",
		metric.WithDescription("Hierarchy cache lookups by result"),
		metric.WithUnit("{lookup}"))
	if err != nil {
		return fmt.Errorf("failed to create hierarchy cache counter: %w", err)
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		hits, misses := stats()
		o.ObserveInt64(lookups, hits, metric.WithAttributes(AttrResult.String("hit")))
		o.ObserveInt64(lookups, misses, metric.WithAttributes(AttrResult.String("miss")))
		return nil
	}, lookups)
	if err != nil {
		return fmt.Errorf("failed to register hierarchy cache callback: %w", err)
	}
	return nil
}
