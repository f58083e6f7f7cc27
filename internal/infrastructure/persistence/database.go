package persistence

import (
	"fmt"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/config"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/logger"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// DatabaseOption configures how the connection is opened
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	logger   *zap.Logger
	logLevel gormlogger.LogLevel
	tracing  telemetry.DBTracingConfig
}

// WithZapLogger routes SQL logs through zap at the given level (silent, error, warn, info)
func WithZapLogger(l *zap.Logger, level string) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = l
		o.logLevel = logger.MapGormLogLevel(level)
	}
}

// WithTracing enables otelgorm spans for every statement
func WithTracing(cfg telemetry.DBTracingConfig) DatabaseOption {
	return func(o *databaseOptions) {
		o.tracing = cfg
	}
}

// NewDatabase creates a new postgres connection with the given configuration
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	db, err := Open(postgres.Open(cfg.DSN()), opts...)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Open opens a GORM connection on any dialector with the catalog settings:
// driver errors translated to gorm errors, no implicit transactions around
// single writes, zap SQL logging and optional tracing.
func Open(dialector gorm.Dialector, opts ...DatabaseOption) (*Database, error) {
	o := databaseOptions{
		logger:   zap.NewNop(),
		logLevel: gormlogger.Silent,
		tracing:  telemetry.DefaultDBTracingConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(o.logger, o.logLevel),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := telemetry.NewDBTracingPlugin(o.tracing, o.logger).Register(db); err != nil {
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics and an error if unable to retrieve
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// Repositories builds the catalog store adapters on the shared connection
func (d *Database) Repositories() (*GormCategoryRepository, *GormTemplateRepository) {
	return NewGormCategoryRepository(d.DB), NewGormTemplateRepository(d.DB)
}
