package middleware

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"mini-thrift/rpcerr"
)

// TimeOutMiddleware bounds a call to timeout. The deadline is also placed on
// the context, so a client stub applies it to its transport.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- next(ctx, call)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return errors.Wrapf(rpcerr.ErrTimeout, "%s after %s", call.Method, timeout)
				}
				return ctx.Err()
			}
		}
	}
}
