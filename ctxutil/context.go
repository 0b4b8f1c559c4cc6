package ctxutil

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/jobpanel/utils"
)

type ctxKey string

const (
	ginContextKey ctxKey = "gin_context"

	// TraceIDKey is the key trace ids are stored under, and the log field name.
	TraceIDKey = "trace_id"

	// TraceHeader is the HTTP header used to propagate trace ids.
	TraceHeader = "X-Trace-Id"
)

// WithGinContext returns a context.Context that embeds the *gin.Context.
func WithGinContext(ctx context.Context, c *gin.Context) context.Context {
	return context.WithValue(ctx, ginContextKey, c)
}

// GetGinContext extracts *gin.Context from context.Context if it exists.
func GetGinContext(ctx context.Context) (*gin.Context, bool) {
	if c, ok := ctx.Value(ginContextKey).(*gin.Context); ok {
		return c, ok
	}
	return nil, false
}

// GetValue retrieves a value from the context.
func GetValue(ctx context.Context, key string) any {
	if ctx == nil {
		return nil
	}
	if c, ok := GetGinContext(ctx); ok {
		if val, exists := c.Get(key); exists {
			return val
		}
	}
	return ctx.Value(ctxKey(key))
}

// SetValue sets a value to the context.
func SetValue(ctx context.Context, key string, val any) context.Context {
	if c, ok := GetGinContext(ctx); ok {
		c.Set(key, val)
	}
	return context.WithValue(ctx, ctxKey(key), val)
}

// GetTraceID gets trace id from context.Context or gin.Context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := GetValue(ctx, TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// SetTraceID sets trace id to context.Context and gin.Context if available.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	return SetValue(ctx, TraceIDKey, traceID)
}

// EnsureTraceID ensures that a trace ID exists in the context.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		return ctx, traceID
	}
	traceID := utils.TraceID()
	return SetTraceID(ctx, traceID), traceID
}

// TraceMiddleware reads the trace id header or generates one, and exposes it
// to handlers through the request context and the response header.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithGinContext(c.Request.Context(), c)
		if traceID := c.GetHeader(TraceHeader); traceID != "" {
			ctx = SetTraceID(ctx, traceID)
		}
		ctx, traceID := EnsureTraceID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, traceID)
		c.Next()
	}
}
