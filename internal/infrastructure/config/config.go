package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Hierarchy HierarchyConfig
	Template  TemplateConfig
	Migration MigrationConfig
	Breaker   BreakerConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings.
// An empty Host disables Redis and the hierarchy cache falls back to memory.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	HierarchyTTL time.Duration
}

// JWTConfig holds the settings of the bearer token verifier
type JWTConfig struct {
	Secret   string
	Issuer   string
	Required bool // reject requests without a bearer token
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	MaxBulkBody    int64 // limit for the bulk create route
	TrustedProxies []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool          // Whether to enable OpenTelemetry
	CollectorEndpoint string        // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64       // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string        // Service name for traces
	Insecure          bool          // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool          // Export hierarchy metrics over OTLP
	MetricsInterval   time.Duration // Metric export interval
	LogsEnabled       bool          // Mirror zap logs to the collector
	// Continuous profiling (Pyroscope)
	ProfilingEnabled bool
	ProfilingServer  string
	SpanProfiles     bool // Link CPU profiles to trace spans
	// Database tracing options
	DBTraceEnabled bool // Enable database query tracing (otelgorm)
	DBLogFullSQL   bool // Log full SQL statements (dev only)
}

// HierarchyConfig holds the category tree rules
type HierarchyConfig struct {
	MaxDepth            int
	MaxNameLength       int
	AllowDuplicateNames bool
	SoftDelete          bool
	DefaultPageSize     int
	MaxPageSize         int
	StoreTimeout        time.Duration
	BulkMaxEntries      int
}

// TemplateConfig holds the template association rules
type TemplateConfig struct {
	AllowMultipleCategories  bool
	LeafCategoriesOnly       bool
	MaxCategoriesPerTemplate int
	DefaultMode              string
	IncludeInherited         bool
}

// MigrationConfig holds schema migration settings
type MigrationConfig struct {
	Path              string
	BackfillBatchSize int
}

// BreakerConfig holds the store circuit breaker settings
type BreakerConfig struct {
	Enabled          bool
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// setDefaults registers defaults for keys whose zero value is meaningful
func setDefaults(v *viper.Viper) {
	policy := catalog.DefaultPolicy()
	v.SetDefault("hierarchy.max_depth", policy.MaxHierarchyDepth)
	v.SetDefault("hierarchy.allow_duplicate_names", policy.AllowDuplicateNames)
	v.SetDefault("hierarchy.soft_delete", policy.SoftDelete)
	v.SetDefault("template.allow_multiple_categories", policy.AllowMultipleCategories)
	v.SetDefault("template.leaf_categories_only", policy.LeafCategoriesOnly)
	v.SetDefault("template.include_inherited", policy.IncludeInherited)
	v.SetDefault("breaker.enabled", true)
	v.SetDefault("jwt.required", false)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CATALOG_ prefix (e.g., CATALOG_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:         v.GetString("redis.host"),
			Port:         v.GetInt("redis.port"),
			Password:     v.GetString("redis.password"),
			DB:           v.GetInt("redis.db"),
			HierarchyTTL: v.GetDuration("redis.hierarchy_ttl"),
		},
		JWT: JWTConfig{
			Secret:   v.GetString("jwt.secret"),
			Issuer:   v.GetString("jwt.issuer"),
			Required: v.GetBool("jwt.required"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			MaxBulkBody:    v.GetInt64("http.max_bulk_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
			SpanProfiles:      v.GetBool("telemetry.span_profiles"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
		},
		Hierarchy: HierarchyConfig{
			MaxDepth:            v.GetInt("hierarchy.max_depth"),
			MaxNameLength:       v.GetInt("hierarchy.max_name_length"),
			AllowDuplicateNames: v.GetBool("hierarchy.allow_duplicate_names"),
			SoftDelete:          v.GetBool("hierarchy.soft_delete"),
			DefaultPageSize:     v.GetInt("hierarchy.default_page_size"),
			MaxPageSize:         v.GetInt("hierarchy.max_page_size"),
			StoreTimeout:        v.GetDuration("hierarchy.store_timeout"),
			BulkMaxEntries:      v.GetInt("hierarchy.bulk_max_entries"),
		},
		Template: TemplateConfig{
			AllowMultipleCategories:  v.GetBool("template.allow_multiple_categories"),
			LeafCategoriesOnly:       v.GetBool("template.leaf_categories_only"),
			MaxCategoriesPerTemplate: v.GetInt("template.max_categories_per_template"),
			DefaultMode:              v.GetString("template.default_mode"),
			IncludeInherited:         v.GetBool("template.include_inherited"),
		},
		Migration: MigrationConfig{
			Path:              v.GetString("migration.path"),
			BackfillBatchSize: v.GetInt("migration.backfill_batch_size"),
		},
		Breaker: BreakerConfig{
			Enabled:          v.GetBool("breaker.enabled"),
			MaxRequests:      v.GetUint32("breaker.max_requests"),
			Interval:         v.GetDuration("breaker.interval"),
			Timeout:          v.GetDuration("breaker.timeout"),
			FailureThreshold: v.GetFloat64("breaker.failure_threshold"),
			MinRequests:      v.GetUint32("breaker.min_requests"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "catalog-service"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "catalog"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.HierarchyTTL == 0 {
		cfg.Redis.HierarchyTTL = 10 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "catalog-service"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 256 << 10
	}
	if cfg.HTTP.MaxBulkBody == 0 {
		cfg.HTTP.MaxBulkBody = 4 << 20
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "catalog-service"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.ProfilingServer == "" {
		cfg.Telemetry.ProfilingServer = "http://localhost:4040"
	}

	policy := catalog.DefaultPolicy()
	if cfg.Hierarchy.MaxNameLength == 0 {
		cfg.Hierarchy.MaxNameLength = policy.MaxNameLength
	}
	if cfg.Hierarchy.DefaultPageSize == 0 {
		cfg.Hierarchy.DefaultPageSize = policy.DefaultPageSize
	}
	if cfg.Hierarchy.MaxPageSize == 0 {
		cfg.Hierarchy.MaxPageSize = policy.MaxPageSize
	}
	if cfg.Hierarchy.StoreTimeout == 0 {
		cfg.Hierarchy.StoreTimeout = policy.StoreTimeout
	}
	if cfg.Hierarchy.BulkMaxEntries == 0 {
		cfg.Hierarchy.BulkMaxEntries = policy.MaxBulkEntries
	}
	if cfg.Template.MaxCategoriesPerTemplate == 0 {
		cfg.Template.MaxCategoriesPerTemplate = policy.MaxCategoriesPerTemplate
	}
	if cfg.Template.DefaultMode == "" {
		cfg.Template.DefaultMode = string(policy.DefaultMode)
	}

	if cfg.Migration.Path == "" {
		cfg.Migration.Path = "migrations"
	}
	if cfg.Migration.BackfillBatchSize == 0 {
		cfg.Migration.BackfillBatchSize = 500
	}
	if cfg.Breaker.MaxRequests == 0 {
		cfg.Breaker.MaxRequests = 5
	}
	if cfg.Breaker.Interval == 0 {
		cfg.Breaker.Interval = 30 * time.Second
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker.Timeout = 30 * time.Second
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 0.6
	}
	if cfg.Breaker.MinRequests == 0 {
		cfg.Breaker.MinRequests = 10
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if !c.JWT.Required {
			return fmt.Errorf("jwt.required must be true in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.JWT.Required && c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required when jwt.required is set")
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Breaker.FailureThreshold <= 0 || c.Breaker.FailureThreshold > 1 {
		return fmt.Errorf("breaker.failure_threshold must be in (0, 1], got %f", c.Breaker.FailureThreshold)
	}

	if _, err := c.CatalogPolicy(); err != nil {
		return err
	}
	return nil
}

// CatalogPolicy builds the immutable hierarchy policy from the hierarchy and
// template sections
func (c *Config) CatalogPolicy() (catalog.Policy, error) {
	mode, err := catalog.ParseQueryMode(c.Template.DefaultMode)
	if err != nil {
		return catalog.Policy{}, fmt.Errorf("template.default_mode: %w", err)
	}
	policy := catalog.Policy{
		MaxHierarchyDepth:        c.Hierarchy.MaxDepth,
		MaxNameLength:            c.Hierarchy.MaxNameLength,
		AllowDuplicateNames:      c.Hierarchy.AllowDuplicateNames,
		SoftDelete:               c.Hierarchy.SoftDelete,
		DefaultPageSize:          c.Hierarchy.DefaultPageSize,
		MaxPageSize:              c.Hierarchy.MaxPageSize,
		StoreTimeout:             c.Hierarchy.StoreTimeout,
		MaxBulkEntries:           c.Hierarchy.BulkMaxEntries,
		AllowMultipleCategories:  c.Template.AllowMultipleCategories,
		LeafCategoriesOnly:       c.Template.LeafCategoriesOnly,
		MaxCategoriesPerTemplate: c.Template.MaxCategoriesPerTemplate,
		DefaultMode:              mode,
		IncludeInherited:         c.Template.IncludeInherited,
	}
	if err := policy.Validate(); err != nil {
		return catalog.Policy{}, fmt.Errorf("invalid catalog policy: %w", err)
	}
	return policy, nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address, empty when Redis is not configured
func (r *RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
