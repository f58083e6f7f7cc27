package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool          // Enable database tracing
	LogFullSQL      bool          // Include query variables in spans (dev only)
	SlowQueryThresh time.Duration // Threshold for marking queries as slow
	DBSystem        string        // Database system name
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		LogFullSQL:      false,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin wraps the otelgorm plugin and annotates spans with
// row counts, slow query markers and store errors.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin with the given configuration.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

// Register installs otelgorm and the span annotation callbacks on db.
// It is a no-op when tracing is disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("catalog_timing:before_create", markQueryStart); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("catalog_timing:before_query", markQueryStart); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("catalog_timing:before_update", markQueryStart); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("catalog_timing:before_delete", markQueryStart); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("catalog_timing:before_raw", markQueryStart); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("catalog_timing:after_create", p.annotate); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("catalog_timing:after_query", p.annotate); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("catalog_timing:after_update", p.annotate); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("catalog_timing:after_delete", p.annotate); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("catalog_timing:after_raw", p.annotate); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

const queryStartKey = "catalog:query_start"

func markQueryStart(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

// annotate runs after each statement and enriches the current span
func (p *DBTracingPlugin) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if v, ok := db.InstanceGet(queryStartKey); ok {
		if start, ok := v.(time.Time); ok {
			elapsed := time.Since(start)
			if elapsed > p.config.SlowQueryThresh {
				span.SetAttributes(
					attribute.Bool("db.slow_query", true),
					attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
				)
			}
		}
	}
}
