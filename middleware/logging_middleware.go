package middleware

import (
	"context"
	"log/slog"
	"time"

	"mini-soap/message"
)

// LoggingMiddleware logs every call with its duration, and the fault when the
// call failed.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			start := time.Now()
			resp := next(ctx, req)
			attrs := []any{
				slog.String("operation", req.Operation),
				slog.Duration("duration", time.Since(start)),
			}
			if id := RequestID(ctx); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if resp.Failed() {
				attrs = append(attrs,
					slog.String("fault_kind", resp.Fault.Kind.String()),
					slog.String("fault", resp.Fault.Message))
				logger.WarnContext(ctx, "soap call failed", attrs...)
				return resp
			}
			logger.InfoContext(ctx, "soap call", attrs...)
			return resp
		}
	}
}
