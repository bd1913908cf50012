package middleware

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"mini-thrift/log"
	"mini-thrift/rpcerr"
)

// RetryMiddleware re-sends a call that failed with a transport error, up to
// maxRetries times with exponential backoff starting at baseDelay. Other
// errors are returned at once. It belongs on the client side, outside the
// component that picks a connection, so each attempt gets a fresh one.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) error {
			eb := backoff.NewExponentialBackOff()
			eb.InitialInterval = baseDelay
			eb.MaxElapsedTime = 0
			b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries)), ctx)

			attempt := 0
			op := func() error {
				attempt++
				err := next(ctx, call)
				if err != nil && !rpcerr.IsRetryable(err) {
					return backoff.Permanent(err)
				}
				return err
			}
			notify := func(err error, wait time.Duration) {
				log.L().Info("retrying call",
					zap.String("method", call.Method),
					zap.Int("attempt", attempt),
					zap.Duration("wait", wait),
					zap.Error(err))
			}
			return backoff.RetryNotify(op, b, notify)
		}
	}
}
