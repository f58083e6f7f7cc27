package middleware

import (
	"net/http"

	"github.com/ELEVATE-Project/project-service-sub002/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request through otelgin. Place it before
// RequestID so the request logger can pick up the trace id.
func Tracing(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// SpanEnricher adds the request id, scope and subject to the request span
// once authentication has run, and marks server errors on it
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			c.Next()
			return
		}

		if id := logger.GetRequestID(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		if scope, ok := logger.GetScope(ctx); ok {
			span.SetAttributes(
				attribute.String("tenant_id", scope.TenantID.String()),
				attribute.String("org_id", scope.OrgID.String()),
			)
		}
		if subject := logger.GetSubject(ctx); subject != "" {
			span.SetAttributes(attribute.String("subject", subject))
		}

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
