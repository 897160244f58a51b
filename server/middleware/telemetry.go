package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/observability"
)

// Telemetry starts a server span per request, continuing any incoming trace
// context, and records request metrics. The trace id is exposed to
// logger.WithContext.
func Telemetry(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := observability.StartSpan(ctx, observability.SpanHTTPRequest,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		if id := observability.TraceID(ctx); id != "" {
			ctx = logger.WithValue(ctx, logger.FieldTraceID, id)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		var err error
		if status >= 500 {
			err = fmt.Errorf("http status %d", status)
		}
		observability.EndSpan(span, err)
		metrics.RecordRequest(c.Request.Context(), c.Request.Method, route, status, time.Since(start))
	}
}

