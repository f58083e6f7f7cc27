package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	catalogapp "github.com/ELEVATE-Project/project-service-sub002/internal/application/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/auth"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/cache"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/config"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/event"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/logger"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/persistence"
	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/telemetry"
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/handler"
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/middleware"
	"github.com/ELEVATE-Project/project-service-sub002/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const meterName = "catalog"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	policy, err := cfg.CatalogPolicy()
	if err != nil {
		panic("Invalid catalog policy: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting catalog service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	obs, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = obs.logs.Bridge(log, zapcore.InfoLevel)
	meter := obs.meters.Meter(meterName)

	catalogMetrics, err := telemetry.NewCatalogMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create catalog metrics", zap.Error(err))
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithZapLogger(log, cfg.Log.Level),
		persistence.WithTracing(telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: 200 * time.Millisecond,
			DBSystem:        "postgresql",
		}),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if _, err := telemetry.RegisterDBMetrics(db.DB, meter, 0, log); err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	log.Info("Database connected successfully")

	var txScope catalogapp.TransactionScope = persistence.NewGormTransactionScope(db.DB)
	if cfg.Breaker.Enabled {
		txScope = persistence.NewBreakerTransactionScope(txScope, persistence.BreakerConfig{
			Name:             "catalog-store",
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			MinRequests:      cfg.Breaker.MinRequests,
		}, log)
	}

	// Hierarchy cache, shared through Redis when configured
	cacheHandle, err := cache.NewHierarchyCacheFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create(ctx)
	if err != nil {
		log.Fatal("Failed to create hierarchy cache", zap.Error(err))
	}
	defer func() {
		if err := cacheHandle.Close(); err != nil {
			log.Error("Error closing hierarchy cache", zap.Error(err))
		}
	}()
	if cacheHandle.Listen != nil {
		go func() {
			if err := cacheHandle.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Hierarchy cache invalidation listener stopped", zap.Error(err))
			}
		}()
	}
	if stats, ok := cacheHandle.Cache.(interface{ Stats() cache.Stats }); ok {
		if err := telemetry.ObserveHierarchyCache(meter, func() (int64, int64) {
			s := stats.Stats()
			return s.Hits, s.Misses
		}); err != nil {
			log.Fatal("Failed to observe hierarchy cache", zap.Error(err))
		}
	}

	// Events
	bus := event.NewInMemoryEventBus(log)
	event.RegisterCatalogHandlers(bus, cacheHandle.Cache, log)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Services
	serviceOpts := []catalogapp.ServiceOption{
		catalogapp.WithEventPublisher(bus),
		catalogapp.WithHierarchyCache(cacheHandle.Cache),
		catalogapp.WithMetrics(catalogMetrics),
		catalogapp.WithLogger(log),
	}
	categoryService := catalogapp.NewCategoryService(txScope, policy, serviceOpts...)
	templateService := catalogapp.NewTemplateCategoryService(txScope, policy, serviceOpts...)

	// Token verification
	var revocations auth.RevocationList = auth.NewInMemoryRevocationList()
	if cacheHandle.Client != nil {
		revocations = auth.NewRedisRevocationList(cacheHandle.Client)
	}
	jwtService := auth.NewJWTService(cfg.JWT)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Tracing - Server span, then request attributes once the handler ran
	// 4. Logger - Log requests
	// 5. Metrics - Request counts and latency
	// 6. Security - Add security headers
	// 7. BodyLimit - Limit request body size
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	if obs.traces.IsEnabled() {
		engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName), middleware.SpanEnricher())
	}
	engine.Use(logger.GinMiddleware(log))
	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}
	engine.Use(httpMetrics)
	engine.Use(middleware.Secure())
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize, map[string]int64{
		r.BasePath() + router.BulkCreatePath: cfg.HTTP.MaxBulkBody,
	}))

	// Health checks live outside the versioned API
	checks := map[string]handler.HealthCheck{
		"database": func(context.Context) error { return db.Ping() },
	}
	if cacheHandle.Client != nil {
		checks["redis"] = func(ctx context.Context) error { return cacheHandle.Client.Ping(ctx).Err() }
	}
	router.HealthRoutes(engine, handler.NewHealthHandler(cfg.App.Name, cfg.App.Env, checks))

	r.Use(middleware.JWTAuth(middleware.JWTMiddlewareConfig{
		JWTService:  jwtService,
		Revocations: revocations,
		Required:    cfg.JWT.Required,
		Logger:      log,
	}))
	r.Register(router.CatalogRoutes(
		handler.NewCategoryHandler(categoryService),
		handler.NewTemplateHandler(templateService),
	))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	obs.shutdown(shutdownCtx, log)

	log.Info("Server exited gracefully")
}

// observability holds the telemetry providers for shutdown
type observability struct {
	traces   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*observability, error) {
	t := cfg.Telemetry
	traces, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		SamplingRatio:     t.SamplingRatio,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.Enabled && t.MetricsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.MetricsInterval,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           t.Enabled && t.LogsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:            t.ProfilingEnabled,
		ServerAddress:      t.ProfilingServer,
		ApplicationName:    t.ServiceName,
		ProfileAllocations: true,
	}, log)
	if err != nil {
		return nil, err
	}
	if t.SpanProfiles && profiler.IsEnabled() {
		traces.EnableSpanProfiles()
	}
	return &observability{traces: traces, meters: meters, logs: logs, profiler: profiler}, nil
}

// shutdown flushes every provider, logging failures
func (o *observability) shutdown(ctx context.Context, log *zap.Logger) {
	if err := o.traces.Shutdown(ctx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := o.meters.Shutdown(ctx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := o.profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := o.logs.Shutdown(ctx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}
}
