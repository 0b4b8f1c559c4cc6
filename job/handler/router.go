package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/jobpanel/ctxutil"
	"github.com/ncobase/jobpanel/logging/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ncobase/jobpanel/job/handler"

// NewRouter returns a gin engine serving the job endpoints.
func NewRouter(h *JobHandler, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), ctxutil.TraceMiddleware(), tracing(), accessLog(log))

	r.GET("/health", Health)

	api := r.Group("/api/scrape")
	api.POST("/start", h.Start)
	api.GET("/log", h.Log)
	api.POST("/test", h.StartTest)
	api.GET("/jobs", h.ListJobs)
	api.GET("/jobs/:id", h.GetJob)
	api.GET("/stats", h.GetStats)

	return r
}

// accessLog logs one line per request. Log polls are logged at debug level.
func accessLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if c.FullPath() == "/api/scrape/log" {
			log.Debug(c.Request.Context(), "Request", kv...)
			return
		}
		log.Info(c.Request.Context(), "Request", kv...)
	}
}

// tracing starts a server span per request, continuing a propagated trace.
func tracing() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("trace_id", ctxutil.GetTraceID(ctx))))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
