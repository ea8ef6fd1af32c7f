package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"mini-soap/message"
)

// RateLimitMiddleware applies a token bucket shared by all callers.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			if !limiter.Allow() {
				return message.NewFault(req.Operation,
					message.Errorf(message.OperationFailure, "rate limit exceeded"))
			}
			return next(ctx, req)
		}
	}
}
