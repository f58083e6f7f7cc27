package logger

import (
	"context"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	scopeKey     contextKey = "scope"
	subjectKey   contextKey = "subject"
)

// WithContext returns a new context carrying logger
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger carried by ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request id and returns the enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithScope stores the tenant and organization a request acts for
func WithScope(ctx context.Context, logger *zap.Logger, scope shared.Scope) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, scopeKey, scope)
	enriched := logger.With(scopeFields(scope)...)
	return WithContext(ctx, enriched), enriched
}

// WithSubject stores the authenticated caller's identifier
func WithSubject(ctx context.Context, logger *zap.Logger, subject string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, subjectKey, subject)
	enriched := logger.With(zap.String("subject", subject))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID returns the request id stored in ctx
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetScope returns the scope stored in ctx
func GetScope(ctx context.Context) (shared.Scope, bool) {
	scope, ok := ctx.Value(scopeKey).(shared.Scope)
	return scope, ok
}

// GetSubject returns the caller identifier stored in ctx
func GetSubject(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey).(string)
	return subject
}

// GetTraceID returns the active span's trace id, or ""
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// GetSpanID returns the active span's id, or ""
func GetSpanID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.SpanID().String()
}

// Fields returns the correlation fields found in ctx: trace and span ids,
// request id, tenant and organization, subject
func Fields(ctx context.Context) []zap.Field {
	return append(traceFields(ctx), requestFields(ctx)...)
}

func traceFields(ctx context.Context) []zap.Field {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	}
}

// requestFields are the fields the With* helpers already attach to the
// logger they store
func requestFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if scope, ok := GetScope(ctx); ok {
		fields = append(fields, scopeFields(scope)...)
	}
	if subject := GetSubject(ctx); subject != "" {
		fields = append(fields, zap.String("subject", subject))
	}
	return fields
}

func scopeFields(scope shared.Scope) []zap.Field {
	return []zap.Field{
		zap.String("tenant_id", scope.TenantID.String()),
		zap.String("org_id", scope.OrgID.String()),
	}
}

// ContextLogger logs with the correlation fields of its context attached
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
	fields func(context.Context) []zap.Field
}

// L returns a ContextLogger over the logger carried by ctx. That logger already
// has the request fields, so only the trace ids are added.
//
//	logger.L(ctx).Info("category moved", zap.String("category_id", id))
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx), fields: traceFields}
}

// WithLogger returns a ContextLogger over logger instead of the one in ctx,
// adding every correlation field of ctx
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: logger, fields: Fields}
}

func (cl *ContextLogger) enriched() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}
	return l.With(cl.fields(cl.ctx)...)
}

// With returns a child ContextLogger with additional fields
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	base := cl.logger
	if base == nil {
		base = zap.NewNop()
	}
	return &ContextLogger{ctx: cl.ctx, logger: base.With(fields...), fields: cl.fields}
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) { cl.enriched().Debug(msg, fields...) }
func (cl *ContextLogger) Info(msg string, fields ...zap.Field)  { cl.enriched().Info(msg, fields...) }
func (cl *ContextLogger) Warn(msg string, fields ...zap.Field)  { cl.enriched().Warn(msg, fields...) }
func (cl *ContextLogger) Error(msg string, fields ...zap.Field) { cl.enriched().Error(msg, fields...) }

// Zap returns the enriched *zap.Logger
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enriched()
}
