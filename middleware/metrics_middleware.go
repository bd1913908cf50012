package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mini-thrift/rpcerr"
)

// Metrics holds the call counters of one side of a connection.
type Metrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetrics registers mini_thrift_<side>_calls_total and
// mini_thrift_<side>_call_duration_seconds with reg.
func NewMetrics(reg prometheus.Registerer, side string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mini_thrift",
			Subsystem: side,
			Name:      "calls_total",
			Help:      "Calls handled, by outcome.",
		}, []string{"service", "method", "kind"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mini_thrift",
			Subsystem: side,
			Name:      "call_duration_seconds",
			Help:      "Call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"service", "method"}),
	}
}

// MetricsMiddleware counts calls by error kind and observes their latency.
func MetricsMiddleware(m *Metrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) error {
			start := time.Now()
			err := next(ctx, call)
			m.latency.WithLabelValues(call.Service, call.Method).Observe(time.Since(start).Seconds())
			m.calls.WithLabelValues(call.Service, call.Method, rpcerr.Kind(err)).Inc()
			return err
		}
	}
}
