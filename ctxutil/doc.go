// Package ctxutil carries request scoped values, currently the trace id,
// through context.Context and gin.Context alike.
//
//	ctx, traceID := ctxutil.EnsureTraceID(ctx)
//	logger.Info(ctx, "Job submitted", "job_id", id) // entry carries trace_id
package ctxutil
