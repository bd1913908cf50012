// Package client calls services published in a registry.
//
// Call pipeline:
//
//	Client.Call → Middleware Chain → Registry.Discover → Balancer.Pick
//	  → stubPool.Get (dial on demand) → Stub.exchange → stubPool.Put
//
// Each pooled Stub owns one connection and carries one call at a time, so
// replies come back in order and sequence ids are checked strictly.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"mini-thrift/codec"
	"mini-thrift/loadbalance"
	"mini-thrift/log"
	"mini-thrift/middleware"
	"mini-thrift/protocol"
	"mini-thrift/registry"
	"mini-thrift/service"
	"mini-thrift/transport"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("client closed")

const (
	DefaultPoolSize    = 4
	DefaultDialTimeout = 3 * time.Second
	DefaultDialRetries = 2
)

type options struct {
	poolSize    int
	network     string
	dialTimeout time.Duration
	dialRetries uint64
	layers      []transport.Layer
	newProtocol func() protocol.Protocol
	middlewares []middleware.Middleware
	logger      *zap.Logger
}

type Option func(*options)

// WithPoolSize bounds the number of connections per instance.
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

func WithNetwork(network string) Option {
	return func(o *options) { o.network = network }
}

// WithDialTimeout bounds each connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithDialRetries sets how many times a failed dial is retried with
// exponential backoff.
func WithDialRetries(n uint64) Option {
	return func(o *options) { o.dialRetries = n }
}

// WithTransport stacks layers over every dialed socket, innermost first.
// The server must use the same stack.
func WithTransport(layers ...transport.Layer) Option {
	return func(o *options) { o.layers = layers }
}

// WithProtocol sets the protocol used on new connections.
func WithProtocol(newProtocol func() protocol.Protocol) Option {
	return func(o *options) { o.newProtocol = newProtocol }
}

// WithMiddleware runs mws around every call, outermost first. They see the
// whole call including discovery, so RetryMiddleware may land on another
// instance.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mws...) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Client calls methods on service instances found through a registry.
// It is safe for concurrent use.
type Client struct {
	registry registry.Registry
	balancer loadbalance.Balancer
	opts     options
	handle   middleware.HandlerFunc

	mu     sync.Mutex
	pools  map[string]*stubPool // addr → idle stubs
	closed bool
}

// NewClient returns a client discovering instances in reg and spreading
// calls with bal.
func NewClient(reg registry.Registry, bal loadbalance.Balancer, opts ...Option) *Client {
	o := options{
		poolSize:    DefaultPoolSize,
		network:     "tcp",
		dialTimeout: DefaultDialTimeout,
		dialRetries: DefaultDialRetries,
		layers:      []transport.Layer{transport.BufferedLayer(0)},
		newProtocol: func() protocol.Protocol { return protocol.NewBinary() },
		logger:      log.L(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{
		registry: reg,
		balancer: bal,
		opts:     o,
		pools:    make(map[string]*stubPool),
	}
	c.handle = middleware.Chain(o.middlewares...)(c.invoke)
	return c
}

// Call invokes m on an instance of serviceName. result must point to a
// value of the method's result type; it is ignored for void and one-way
// methods. An exception reply is returned as *message.ApplicationException.
func (c *Client) Call(ctx context.Context, serviceName string, m *service.MethodSchema, result codec.Value, args ...codec.Value) error {
	call, err := newCall(serviceName, m, result, args)
	if err != nil {
		return err
	}
	return c.handle(ctx, call)
}

// Caller invokes methods of one service.
type Caller interface {
	Call(ctx context.Context, m *service.MethodSchema, result codec.Value, args ...codec.Value) error
}

// For returns a Caller bound to serviceName.
func (c *Client) For(serviceName string) Caller {
	return serviceCaller{c: c, service: serviceName}
}

type serviceCaller struct {
	c       *Client
	service string
}

func (s serviceCaller) Call(ctx context.Context, m *service.MethodSchema, result codec.Value, args ...codec.Value) error {
	return s.c.Call(ctx, s.service, m, result, args...)
}

// Close closes every pooled connection. Calls in flight finish; their
// connections are closed when returned.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs error
	for addr, p := range c.pools {
		errs = errors.CombineErrors(errs, p.Close())
		delete(c.pools, addr)
	}
	return errs
}

// invoke is the innermost handler: it picks an instance and runs the call
// on a pooled stub.
func (c *Client) invoke(ctx context.Context, call *middleware.Call) error {
	instances, err := c.registry.Discover(ctx, call.Service)
	if err != nil {
		return errors.Wrapf(err, "discover %s", call.Service)
	}
	inst, err := c.balancer.Pick(call.Method, instances)
	if err != nil {
		return errors.Wrapf(err, "%s.%s", call.Service, call.Method)
	}

	pool, err := c.pool(inst.Addr)
	if err != nil {
		return err
	}
	stub, err := pool.Get(ctx)
	if err != nil {
		return err
	}
	defer pool.Put(stub)

	if err := stub.exchange(ctx, call); err != nil {
		if stub.Err() != nil {
			c.opts.logger.Debug("connection dropped",
				zap.String("addr", inst.Addr),
				zap.Error(err),
			)
		}
		return err
	}
	return nil
}

func (c *Client) pool(addr string) (*stubPool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	p, ok := c.pools[addr]
	if !ok {
		p = newStubPool(addr, c.opts.poolSize, func(ctx context.Context) (*Stub, error) {
			return c.dial(ctx, addr)
		})
		c.pools[addr] = p
	}
	return p, nil
}

// dial connects to addr, retrying with exponential backoff.
func (c *Client) dial(ctx context.Context, addr string) (*Stub, error) {
	var sock *transport.Socket
	op := func() error {
		dctx, cancel := context.WithTimeout(ctx, c.opts.dialTimeout)
		defer cancel()
		var err error
		sock, err = transport.Dial(dctx, c.opts.network, addr)
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.opts.dialRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.opts.logger.Warn("dial failed, retrying",
			zap.String("addr", addr),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}

	var t transport.Transport = sock
	for _, layer := range c.opts.layers {
		t = layer(t)
	}
	return &Stub{proto: c.opts.newProtocol(), trans: t}, nil
}
