package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mini-thrift/client"
	"mini-thrift/codec"
	"mini-thrift/message"
	"mini-thrift/protocol"
	"mini-thrift/registry"
	"mini-thrift/rpcerr"
	"mini-thrift/service"
	"mini-thrift/transport"
)

var calcSchema = service.NewSchema("Calc",
	service.NewMethod("add", service.Returns[codec.I32](),
		service.Arg[codec.I32]("a", 1), service.Arg[codec.I32]("b", 2)),
	service.NewMethod("fail", service.Returns[codec.I32]()),
	service.NewMethod("slow", service.Returns[codec.I32](), service.Arg[codec.I32]("ms", 1)),
	service.NewMethod("notes", service.Returns[codec.I32]()),
	service.NewOneWay("note", service.Arg[codec.String]("msg", 1)),
)

var (
	mAdd, _   = calcSchema.Method("add")
	mFail, _  = calcSchema.Method("fail")
	mSlow, _  = calcSchema.Method("slow")
	mNotes, _ = calcSchema.Method("notes")
	mNote, _  = calcSchema.Method("note")
)

type calc struct {
	mu    sync.Mutex
	notes []string
}

func (c *calc) Add(a, b codec.I32) (codec.I32, error) { return a + b, nil }

func (c *calc) Fail() (codec.I32, error) { return 0, errors.New("division by zero") }

func (c *calc) Slow(ctx context.Context, ms codec.I32) (codec.I32, error) {
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return ms, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *calc) Notes() (codec.I32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return codec.I32(len(c.notes)), nil
}

func (c *calc) Note(msg codec.String) error {
	c.mu.Lock()
	c.notes = append(c.notes, string(msg))
	c.mu.Unlock()
	return nil
}

// startServer serves a calc on a loopback port until the test ends.
func startServer(t *testing.T, opts ...Option) (*Server, *calc) {
	t.Helper()
	impl := &calc{}
	proc, err := service.NewProcessor(calcSchema, impl)
	require.NoError(t, err)
	srv, err := NewServer(proc, append([]Option{WithLogger(zap.NewNop())}, opts...)...)
	require.NoError(t, err)

	ln, err := transport.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		assert.ErrorIs(t, <-done, ErrServerClosed)
	})
	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, 5*time.Millisecond)
	return srv, impl
}

func dialStub(t *testing.T, addr net.Addr) *client.Stub {
	t.Helper()
	sock, err := transport.Dial(context.Background(), "tcp", addr.String())
	require.NoError(t, err)
	stub := client.NewStub(protocol.NewBinary(), transport.NewBuffered(sock, 0))
	t.Cleanup(func() { _ = stub.Close() })
	return stub
}

func add(t *testing.T, stub *client.Stub, a, b codec.I32) codec.I32 {
	t.Helper()
	var sum codec.I32
	require.NoError(t, stub.Call(context.Background(), mAdd, &sum, &a, &b))
	return sum
}

func TestServerAnswersCalls(t *testing.T) {
	srv, _ := startServer(t)
	stub := dialStub(t, srv.Addr())

	assert.Equal(t, codec.I32(3), add(t, stub, 1, 2))
	assert.Equal(t, codec.I32(-5), add(t, stub, 5, -10))
}

func TestServerUnknownMethodKeepsConnection(t *testing.T) {
	srv, _ := startServer(t)
	stub := dialStub(t, srv.Addr())

	other := service.NewMethod("multiply", service.Returns[codec.I32](),
		service.Arg[codec.I32]("a", 1), service.Arg[codec.I32]("b", 2))
	var out codec.I32
	a, b := codec.I32(2), codec.I32(3)
	err := stub.Call(context.Background(), other, &out, &a, &b)

	var exc *message.ApplicationException
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, message.ExceptionUnknownMethod, exc.Kind())
	assert.True(t, errors.Is(err, rpcerr.ErrUnknownMethod))
	assert.NoError(t, stub.Err())

	assert.Equal(t, codec.I32(5), add(t, stub, 2, 3))
}

func TestServerHandlerErrorBecomesException(t *testing.T) {
	srv, _ := startServer(t)
	stub := dialStub(t, srv.Addr())

	var out codec.I32
	err := stub.Call(context.Background(), mFail, &out)
	var exc *message.ApplicationException
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, message.ExceptionInternalError, exc.Kind())
	assert.Contains(t, string(exc.Message), "division by zero")
	assert.Equal(t, "remote", rpcerr.Kind(err))

	assert.Equal(t, codec.I32(7), add(t, stub, 3, 4))
}

func TestServerOneWayKeepsOrder(t *testing.T) {
	srv, impl := startServer(t)
	stub := dialStub(t, srv.Addr())

	for _, msg := range []string{"a", "b", "c"} {
		m := codec.String(msg)
		require.NoError(t, stub.Call(context.Background(), mNote, nil, &m))
	}
	var n codec.I32
	require.NoError(t, stub.Call(context.Background(), mNotes, &n))
	assert.Equal(t, codec.I32(3), n)

	impl.mu.Lock()
	defer impl.mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, impl.notes)
}

func TestServerClosesConnectionOnGarbage(t *testing.T) {
	srv, _ := startServer(t)
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0x80, 0x01, 0x00, 0x09, 0, 0, 0, 0, 0, 0, 0, 1})
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err, "server hangs up instead of replying")
}

func TestServerConcurrentConnections(t *testing.T) {
	srv, _ := startServer(t, WithMaxConns(8))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stub := dialStub(t, srv.Addr())
			for j := 0; j < 20; j++ {
				var sum codec.I32
				a, b := codec.I32(i), codec.I32(j)
				if assert.NoError(t, stub.Call(context.Background(), mAdd, &sum, &a, &b)) {
					assert.Equal(t, a+b, sum)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestServerRegistersWhileServing(t *testing.T) {
	reg := registry.NewStaticRegistry()
	impl := &calc{}
	proc, err := service.NewProcessor(calcSchema, impl)
	require.NoError(t, err)
	srv, err := NewServer(proc, WithLogger(zap.NewNop()),
		WithRegistry(reg, registry.ServiceInstance{Weight: 5, Version: "v1"}, 10))
	require.NoError(t, err)

	ln, err := transport.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	var insts []registry.ServiceInstance
	require.Eventually(t, func() bool {
		insts, _ = reg.Discover(context.Background(), "Calc")
		return len(insts) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, ln.Addr().String(), insts[0].Addr)
	assert.Equal(t, srv.ID(), insts[0].ID)
	assert.Equal(t, 5, insts[0].Weight)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.ErrorIs(t, <-done, ErrServerClosed)
	insts, _ = reg.Discover(context.Background(), "Calc")
	assert.Empty(t, insts)
}

func TestShutdownWaitsForCallInFlight(t *testing.T) {
	impl := &calc{}
	proc, err := service.NewProcessor(calcSchema, impl)
	require.NoError(t, err)
	srv, err := NewServer(proc, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	ln, err := transport.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()

	stub := dialStub(t, ln.Addr())
	idle := dialStub(t, ln.Addr())
	assert.Equal(t, codec.I32(2), add(t, idle, 1, 1))

	result := make(chan error, 1)
	go func() {
		var out codec.I32
		ms := codec.I32(200)
		result <- stub.Call(context.Background(), mSlow, &out, &ms)
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-result)

	var out codec.I32
	a, b := codec.I32(1), codec.I32(1)
	assert.Error(t, idle.Call(context.Background(), mAdd, &out, &a, &b), "idle connection was closed")
}

func TestShutdownFinishesPipelinedCalls(t *testing.T) {
	proc, err := service.NewProcessor(calcSchema, &calc{})
	require.NoError(t, err)
	srv, err := NewServer(proc, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	ln, err := transport.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()

	sock, err := transport.Dial(context.Background(), "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer sock.Close()

	// Both calls leave in one write, so the second is read ahead with the
	// first.
	p := protocol.NewBinary()
	batch := transport.NewMemory(nil)
	ms := codec.I32(150)
	slowArgs, err := mSlow.ArgsRecord(&ms)
	require.NoError(t, err)
	require.NoError(t, message.WriteMessage(p, batch, message.Envelope{Name: "slow", Type: protocol.Call, SeqID: 1}, slowArgs))
	a, b := codec.I32(1), codec.I32(2)
	addArgs, err := mAdd.ArgsRecord(&a, &b)
	require.NoError(t, err)
	require.NoError(t, message.WriteMessage(p, batch, message.Envelope{Name: "add", Type: protocol.Call, SeqID: 2}, addArgs))
	_, err = sock.Write(batch.Bytes())
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stopped <- srv.Shutdown(ctx)
	}()

	in := transport.NewBuffered(sock, 0)
	for _, want := range []struct {
		m     *service.MethodSchema
		seq   int32
		value codec.I32
	}{{mSlow, 1, 150}, {mAdd, 2, 3}} {
		env, err := message.ReadEnvelope(p, in)
		require.NoError(t, err)
		assert.Equal(t, message.Envelope{Name: want.m.Name, Type: protocol.Reply, SeqID: want.seq}, env)
		result, v := want.m.NewResult()
		require.NoError(t, message.ReadBody(p, in, result))
		assert.Equal(t, want.value, *v.(*codec.I32))
	}
	assert.NoError(t, <-stopped)
}

func TestShutdownDeadlineClosesBusyConnections(t *testing.T) {
	impl := &calc{}
	proc, err := service.NewProcessor(calcSchema, impl)
	require.NoError(t, err)
	srv, err := NewServer(proc, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	ln, err := transport.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()

	stub := dialStub(t, ln.Addr())
	result := make(chan error, 1)
	go func() {
		var out codec.I32
		ms := codec.I32(5000)
		result <- stub.Call(context.Background(), mSlow, &out, &ms)
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, srv.Shutdown(ctx), context.DeadlineExceeded)
	assert.Error(t, <-result)
}

func TestServeAfterShutdown(t *testing.T) {
	proc, err := service.NewProcessor(calcSchema, &calc{})
	require.NoError(t, err)
	srv, err := NewServer(proc, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, srv.Shutdown(context.Background()))

	ln, err := transport.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(ln), ErrServerClosed)
}
