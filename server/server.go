// Package server accepts connections and answers calls for one service.
//
// Request processing pipeline:
//
//	Accept transport → worker pool (one worker per connection)
//	  → loop: Processor.Process (envelope → args → middleware → method → reply)
//	    → unknown method: skip body, reply UnknownMethod exception
//	    → handler failure: reply InternalError exception
//	    → protocol or transport failure: close the connection
//
// Calls on one connection are answered strictly in order, so a client can
// match replies by sequence id without multiplexing.
package server

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"mini-thrift/log"
	"mini-thrift/message"
	"mini-thrift/protocol"
	"mini-thrift/registry"
	"mini-thrift/service"
	"mini-thrift/transport"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server closed")

const (
	DefaultMaxConns    = 1024
	DefaultRegisterTTL = 10 // seconds
)

// shutdownPollInterval is how often Shutdown looks for idle connections.
const shutdownPollInterval = 20 * time.Millisecond

type options struct {
	maxConns    int
	layers      []transport.Layer
	newProtocol func() protocol.Protocol
	logger      *zap.Logger

	registry  registry.Registry
	advertise registry.ServiceInstance
	ttl       int64
}

type Option func(*options)

// WithMaxConns bounds how many connections are served at once. Accepting
// blocks while the limit is reached.
func WithMaxConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithTransport stacks layers over every accepted connection, innermost
// first. Clients must use the same stack.
func WithTransport(layers ...transport.Layer) Option {
	return func(o *options) { o.layers = layers }
}

// WithProtocol sets the protocol used on accepted connections.
func WithProtocol(newProtocol func() protocol.Protocol) Option {
	return func(o *options) { o.newProtocol = newProtocol }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegistry publishes the server in reg while it is serving. An empty
// instance address defaults to the listener address.
func WithRegistry(reg registry.Registry, instance registry.ServiceInstance, ttl int64) Option {
	return func(o *options) {
		o.registry = reg
		o.advertise = instance
		o.ttl = ttl
	}
}

// Server serves one Processor.
type Server struct {
	processor *service.Processor
	opts      options
	id        string
	logger    *zap.Logger
	workers   *ants.Pool

	ctx    context.Context // canceled when connections are force-closed
	cancel context.CancelFunc

	shutdown   atomic.Bool
	mu         sync.Mutex
	acceptor   transport.Acceptor
	registered *registry.ServiceInstance
	conns      map[*conn]struct{}
	wg         sync.WaitGroup // tracks connection workers
}

// NewServer returns a server answering calls with p.
func NewServer(p *service.Processor, opts ...Option) (*Server, error) {
	o := options{
		maxConns:    DefaultMaxConns,
		layers:      []transport.Layer{transport.BufferedLayer(0)},
		newProtocol: func() protocol.Protocol { return protocol.NewBinary() },
		logger:      log.L(),
		ttl:         DefaultRegisterTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		processor: p,
		opts:      o,
		id:        uuid.NewString(),
		conns:     make(map[*conn]struct{}),
	}
	s.logger = o.logger.With(
		zap.String("service", p.Schema().Name),
		zap.String("server_id", s.id),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	workers, err := ants.NewPool(o.maxConns, ants.WithPanicHandler(func(v any) {
		s.logger.Error("connection worker panicked", zap.Any("panic", v))
	}))
	if err != nil {
		return nil, errors.Wrap(err, "create worker pool")
	}
	s.workers = workers
	return s, nil
}

// ID identifies this server instance in the registry.
func (s *Server) ID() string { return s.id }

// ListenAndServe listens on address and serves until Shutdown.
func (s *Server) ListenAndServe(network, address string) error {
	ln, err := transport.Listen(network, address)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts transports from a until Shutdown, which makes it return
// ErrServerClosed. Serve closes a.
func (s *Server) Serve(a transport.Acceptor) error {
	s.mu.Lock()
	if s.shutdown.Load() {
		s.mu.Unlock()
		_ = a.Close()
		return ErrServerClosed
	}
	s.acceptor = a
	s.mu.Unlock()

	if err := s.register(a.Addr()); err != nil {
		_ = a.Close()
		return err
	}
	s.logger.Info("serving", zap.Stringer("addr", a.Addr()))

	for {
		raw, err := a.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return ErrServerClosed
			}
			return errors.Wrap(err, "accept")
		}
		c := s.newConn(raw)
		if c == nil {
			return ErrServerClosed
		}
		if err := s.workers.Submit(func() { s.serveConn(c) }); err != nil {
			s.logger.Warn("rejecting connection", zap.Error(err))
			s.dropConn(c)
		}
	}
}

// Addr returns the address being served, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acceptor == nil {
		return nil
	}
	return s.acceptor.Addr()
}

// Shutdown stops the server gracefully:
//  1. Deregister, so clients stop routing here
//  2. Stop accepting
//  3. Close connections as soon as they are idle between calls
//  4. When ctx is done first, close the rest and return ctx.Err()
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	s.deregister(ctx)

	s.mu.Lock()
	if s.acceptor != nil {
		_ = s.acceptor.Close()
	}
	s.mu.Unlock()

	defer s.workers.Release()

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()
	for {
		if s.closeIdle() == 0 {
			s.wg.Wait()
			return nil
		}
		select {
		case <-ctx.Done():
			s.cancel()
			s.closeAll()
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Server) register(addr net.Addr) error {
	if s.opts.registry == nil {
		return nil
	}
	inst := s.opts.advertise
	if inst.Addr == "" {
		inst.Addr = addr.String()
	}
	if inst.ID == "" {
		inst.ID = s.id
	}
	name := s.processor.Schema().Name
	if err := s.opts.registry.Register(s.ctx, name, inst, s.opts.ttl); err != nil {
		return errors.Wrapf(err, "register %s", name)
	}
	s.mu.Lock()
	s.registered = &inst
	s.mu.Unlock()
	return nil
}

func (s *Server) deregister(ctx context.Context) {
	s.mu.Lock()
	inst := s.registered
	s.registered = nil
	s.mu.Unlock()
	if inst == nil {
		return
	}
	name := s.processor.Schema().Name
	if err := s.opts.registry.Deregister(ctx, name, inst.Addr); err != nil {
		s.logger.Warn("deregister failed", zap.Error(err))
	}
}

// conn is one accepted connection.
type conn struct {
	raw   transport.Transport
	t     transport.Transport
	proto protocol.Protocol
	busy  atomic.Bool // a call has started arriving and is not answered yet
}

// activity marks the connection busy once request bytes arrive.
type activity struct {
	transport.Transport
	busy *atomic.Bool
}

func (a activity) Read(p []byte) (int, error) {
	n, err := a.Transport.Read(p)
	if n > 0 {
		a.busy.Store(true)
	}
	return n, err
}

func (a activity) Unwrap() transport.Transport { return a.Transport }

func (a activity) Close() error { return transport.Close(a.Transport) }

func (s *Server) newConn(raw transport.Transport) *conn {
	c := &conn{raw: raw, proto: s.opts.newProtocol()}
	var t transport.Transport = activity{Transport: raw, busy: &c.busy}
	for _, layer := range s.opts.layers {
		t = layer(t)
	}
	c.t = t

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Load() {
		_ = transport.Close(raw)
		return nil
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return c
}

func (s *Server) dropConn(c *conn) {
	_ = transport.Close(c.raw)
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

// closeIdle closes connections not inside a call and returns how many
// connections remain.
func (s *Server) closeIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		if !c.busy.Load() {
			_ = transport.Close(c.raw)
		}
	}
	return len(s.conns)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = transport.Close(c.raw)
	}
}

// serveConn answers calls on c one at a time until the peer leaves or the
// stream can no longer be trusted.
func (s *Server) serveConn(c *conn) {
	defer s.dropConn(c)
	logger := s.logger
	if sock, ok := c.raw.(*transport.Socket); ok {
		logger = logger.With(zap.Stringer("remote", sock.RemoteAddr()))
	}
	logger.Debug("connection opened")

	for {
		if err := s.processor.Process(s.ctx, c.proto, c.t); err != nil && !s.answerFailure(c, err, logger) {
			return
		}
		// Bytes already read ahead belong to a pipelined call.
		if transport.ReadAhead(c.t) > 0 {
			continue
		}
		c.busy.Store(false)
		if s.shutdown.Load() {
			return
		}
	}
}

// answerFailure answers a failed call where the stream is still in step and
// reports whether the connection can go on.
func (s *Server) answerFailure(c *conn, err error, logger *zap.Logger) bool {
	var ume *service.UnknownMethodError
	var he *service.HandlerError
	switch {
	case errors.As(err, &ume):
		logger.Warn("unknown method", zap.String("method", ume.Name), zap.Int32("seq", ume.SeqID))
		if err := message.SkipBody(c.proto, c.t); err != nil {
			logger.Debug("closing connection", zap.Error(err))
			return false
		}
		if ume.Type != protocol.Call {
			return true
		}
		exc := message.NewException(message.ExceptionUnknownMethod, "unknown method %s", ume.Name)
		return s.writeException(c, ume.Name, ume.SeqID, exc, logger)

	case errors.As(err, &he):
		logger.Error("handler failed",
			zap.String("method", he.Method),
			zap.Int32("seq", he.SeqID),
			zap.Error(he.Err),
		)
		if he.OneWay {
			return true
		}
		exc := message.NewException(message.ExceptionInternalError, "%s: %v", he.Method, he.Err)
		return s.writeException(c, he.Method, he.SeqID, exc, logger)

	case errors.Is(err, io.EOF):
		logger.Debug("connection closed by peer")
		return false

	default:
		if s.shutdown.Load() {
			logger.Debug("connection closed on shutdown", zap.Error(err))
		} else {
			logger.Warn("closing connection", zap.Error(err))
		}
		return false
	}
}

func (s *Server) writeException(c *conn, name string, seqID int32, exc *message.ApplicationException, logger *zap.Logger) bool {
	env := message.Envelope{Name: name, Type: protocol.Exception, SeqID: seqID}
	if err := message.WriteMessage(c.proto, c.t, env, exc); err != nil {
		logger.Debug("closing connection", zap.Error(err))
		return false
	}
	return true
}
