package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kolopay/kolopay/internal/authcontext"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
)

// IdentityMiddleware copies the upstream-injected identity headers into the
// request context. The edge gateway authenticates; this service trusts it.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader(headerUserID))
		if rawID == "" {
			c.Next()
			return
		}
		parsed, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			c.Next()
			return
		}
		ctx := authcontext.WithIdentity(c.Request.Context(), authcontext.Identity{
			UserID: snowflake.ParseInt64(parsed),
			Role:   strings.ToLower(strings.TrimSpace(c.GetHeader(headerUserRole))),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuthRequired rejects requests that carry no identity.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authcontext.IdentityFromContext(c.Request.Context()); !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// RequireRole rejects identities outside the listed roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := authcontext.IdentityFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if strings.EqualFold(id.Role, role) {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

// RequestLogMiddleware logs one line per request with correlation fields.
func RequestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		requestID := ensureRequestID(c)

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		if route == "/metrics" || route == "/health" {
			return
		}

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			fields = append(fields, zap.Error(lastErr.Err))
		}

		if status >= http.StatusInternalServerError {
			log.Error("http_request", fields...)
			return
		}
		log.Info("http_request", fields...)
	}
}

func ensureRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader("X-Request-Id"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header("X-Request-Id", requestID)
	return requestID
}

// TracingMiddleware instruments inbound requests.
func TracingMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("kolopay/http")
	propagator := propagation.TraceContext{}
	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + c.Request.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
		)
		if c.Writer.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}
