// Package middleware wraps call handling on both sides of a connection.
//
// On the server a chain runs around the bound service method after the
// arguments are decoded; on the client it runs around the stub call.
//
//	Chain(A, B, C)(h)  ==  A(B(C(h)))
package middleware

import (
	"context"

	"mini-thrift/codec"
)

// Call describes one invocation. Result is nil for one-way methods. On the
// client SeqID is set once the call has been written.
type Call struct {
	Service string
	Method  string
	SeqID   int32
	OneWay  bool
	Args    codec.Record
	Result  codec.Record
}

type HandlerFunc func(ctx context.Context, call *Call) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain 将多个中间件组合成一个中间件
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
