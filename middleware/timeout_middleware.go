package middleware

import (
	"context"
	"time"

	"mini-soap/message"
)

// TimeOutMiddleware answers with a server-error fault once the deadline
// passes. The operation itself is not interrupted; its eventual result is
// dropped.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Response, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return message.NewFault(req.Operation,
					message.Errorf(message.OperationFailure, "request timed out"))
			}
		}
	}
}
