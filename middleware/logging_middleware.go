package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mini-thrift/rpcerr"
)

// LoggingMiddleware logs every call with its duration. Failed calls are
// logged at warn level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) error {
			start := time.Now()
			err := next(ctx, call)
			fields := []zap.Field{
				zap.String("service", call.Service),
				zap.String("method", call.Method),
				zap.Int32("seq", call.SeqID),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("call failed", append(fields, zap.String("kind", rpcerr.Kind(err)), zap.Error(err))...)
				return err
			}
			logger.Debug("call", fields...)
			return nil
		}
	}
}
