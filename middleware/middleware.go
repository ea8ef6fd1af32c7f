// Package middleware wraps the dispatcher in an onion of cross-cutting
// handlers: logging, metrics, rate limiting and caller-side timeouts.
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
//
// Every handler returns a Response; failures are faults, never raw errors.
package middleware

import (
	"context"

	"mini-soap/message"
)

type HandlerFunc func(ctx context.Context, req *message.Request) *message.Response

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so the first one listed runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
