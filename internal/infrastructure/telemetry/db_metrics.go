package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

// DBMetrics counts statements per operation and table, measures their latency
// and observes the connection pool on every collection
type DBMetrics struct {
	queries       *Counter
	duration      *Histogram
	slowQueries   *Counter
	slowThreshold time.Duration
	logger        *zap.Logger
}

// NewDBMetrics creates the statement instruments on meter
func NewDBMetrics(meter metric.Meter, slowThreshold time.Duration, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if slowThreshold <= 0 {
		slowThreshold = defaultSlowQueryThreshold
	}

	queries, err := NewCounter(meter, "db_query_total", "Database statements by operation", "{query}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database statement latency",
		Unit:        "s",
		Buckets:     DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	slowQueries, err := NewCounter(meter, "db_slow_query_total", "Database statements slower than the threshold", "{query}")
	if err != nil {
		return nil, err
	}

	return &DBMetrics{
		queries:       queries,
		duration:      duration,
		slowQueries:   slowQueries,
		slowThreshold: slowThreshold,
		logger:        logger,
	}, nil
}

// RecordQuery records one statement
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration, err error) {
	status := "ok"
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		status = "error"
	}
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.sql.table", table),
		attribute.String("status", status),
	}
	m.queries.Inc(ctx, attrs...)
	m.duration.RecordDuration(ctx, duration, attrs[:2]...)
	if duration > m.slowThreshold {
		m.slowQueries.Inc(ctx, attrs[:2]...)
	}
}

// ObservePool reports the pool's open, in-use and idle connections and its
// limit whenever the meter collects
func ObservePool(meter metric.Meter, sqlDB *sql.DB) error {
	connections, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return fmt.Errorf("failed to create pool gauge: %w", err)
	}
	maxOpen, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum open connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return fmt.Errorf("failed to create pool limit gauge: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connections waited for"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return fmt.Errorf("failed to create pool wait counter: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(connections, int64(stats.InUse), metric.WithAttributes(attribute.String("state", "in_use")))
		o.ObserveInt64(connections, int64(stats.Idle), metric.WithAttributes(attribute.String("state", "idle")))
		o.ObserveInt64(maxOpen, int64(stats.MaxOpenConnections))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, connections, maxOpen, waits)
	if err != nil {
		return fmt.Errorf("failed to register pool callback: %w", err)
	}
	return nil
}

// DBMetricsPlugin is a GORM plugin feeding DBMetrics
type DBMetricsPlugin struct {
	metrics *DBMetrics
}

// NewDBMetricsPlugin creates the plugin
func NewDBMetricsPlugin(metrics *DBMetrics) *DBMetricsPlugin {
	return &DBMetricsPlugin{metrics: metrics}
}

// Name implements gorm.Plugin
func (p *DBMetricsPlugin) Name() string {
	return "catalog:db_metrics"
}

const metricsStartKey = "catalog:metrics_start"

// Initialize implements gorm.Plugin
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	start := func(db *gorm.DB) { db.InstanceSet(metricsStartKey, time.Now()) }
	record := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) { p.record(db, operation) }
	}

	cb := db.Callback()
	hooks := []struct {
		name   string
		before error
		after  error
	}{
		{"create", cb.Create().Before("gorm:create").Register("catalog_metrics:before_create", start),
			cb.Create().After("gorm:create").Register("catalog_metrics:after_create", record("INSERT"))},
		{"query", cb.Query().Before("gorm:query").Register("catalog_metrics:before_query", start),
			cb.Query().After("gorm:query").Register("catalog_metrics:after_query", record("SELECT"))},
		{"update", cb.Update().Before("gorm:update").Register("catalog_metrics:before_update", start),
			cb.Update().After("gorm:update").Register("catalog_metrics:after_update", record("UPDATE"))},
		{"delete", cb.Delete().Before("gorm:delete").Register("catalog_metrics:before_delete", start),
			cb.Delete().After("gorm:delete").Register("catalog_metrics:after_delete", record("DELETE"))},
		{"row", cb.Row().Before("gorm:row").Register("catalog_metrics:before_row", start),
			cb.Row().After("gorm:row").Register("catalog_metrics:after_row", record(""))},
		{"raw", cb.Raw().Before("gorm:raw").Register("catalog_metrics:before_raw", start),
			cb.Raw().After("gorm:raw").Register("catalog_metrics:after_raw", record(""))},
	}
	for _, h := range hooks {
		if err := errors.Join(h.before, h.after); err != nil {
			return fmt.Errorf("register %s metrics callbacks: %w", h.name, err)
		}
	}
	return nil
}

func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if operation == "" {
		operation = detectOperationType(db.Statement.SQL.String())
	}
	var elapsed time.Duration
	if v, ok := db.InstanceGet(metricsStartKey); ok {
		if start, ok := v.(time.Time); ok {
			elapsed = time.Since(start)
		}
	}
	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, elapsed, db.Error)
}

// detectOperationType classifies Row and Raw statements
func detectOperationType(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	switch {
	case strings.HasPrefix(sql, "SELECT"), strings.HasPrefix(sql, "WITH"):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	default:
		return "OTHER"
	}
}

// RegisterDBMetrics installs the statement plugin and pool observer on db
func RegisterDBMetrics(db *gorm.DB, meter metric.Meter, slowThreshold time.Duration, logger *zap.Logger) (*DBMetrics, error) {
	metrics, err := NewDBMetrics(meter, slowThreshold, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Use(NewDBMetricsPlugin(metrics)); err != nil {
		return nil, fmt.Errorf("failed to register db metrics plugin: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := ObservePool(meter, sqlDB); err != nil {
		return nil, err
	}
	metrics.logger.Info("database metrics registered", zap.Duration("slow_query_threshold", metrics.slowThreshold))
	return metrics, nil
}
