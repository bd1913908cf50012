package middleware

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"mini-thrift/rpcerr"
)

// RateLimitMiddleware 创建一个基于令牌桶算法的限流中间件
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) error {
			if !limiter.Allow() {
				return errors.Wrapf(rpcerr.ErrRateLimited, "%s", call.Method)
			}
			return next(ctx, call)
		}
	}
}
