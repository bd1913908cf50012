package client

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-thrift/codec"
	"mini-thrift/message"
	"mini-thrift/middleware"
	"mini-thrift/mock"
	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/service"
	"mini-thrift/transport"
)

var echoSchema = service.NewSchema("Echo",
	service.NewMethod("echo", service.Returns[codec.String](), service.Arg[codec.String]("msg", 1)),
	service.NewMethod("clear", service.Void()),
	service.NewOneWay("ping", service.Arg[codec.I32]("n", 1)),
)

var (
	mEcho, _  = echoSchema.Method("echo")
	mClear, _ = echoSchema.Method("clear")
	mPing, _  = echoSchema.Method("ping")
)

func echoReply(name string, typ protocol.MessageType, seq int32, msg string) []mock.Action {
	return []mock.Action{
		mock.MessageBegin(name, typ, seq),
		mock.StructBegin("echo_result"),
		mock.FieldBegin("success", protocol.String, 0), mock.String(msg), mock.FieldEnd(),
		mock.FieldStop(),
		mock.StructEnd(),
		mock.MessageEnd(),
	}
}

func echoCall(seq int32, msg string) []mock.Action {
	return []mock.Action{
		mock.MessageBegin("echo", protocol.Call, seq),
		mock.StructBegin("echo_args"),
		mock.FieldBegin("msg", protocol.String, 1), mock.String(msg), mock.FieldEnd(),
		mock.FieldStop(),
		mock.StructEnd(),
		mock.MessageEnd(),
	}
}

func echo(s *Stub, msg string) (codec.String, error) {
	in := codec.String(msg)
	var out codec.String
	err := s.Call(context.Background(), mEcho, &out, &in)
	return out, err
}

func TestStubCall(t *testing.T) {
	p := mock.Replay(echoReply("echo", protocol.Reply, 1, "hi")...)
	stub := NewStub(p, transport.NewMemory(nil))

	out, err := echo(stub, "hi")
	require.NoError(t, err)
	assert.Equal(t, codec.String("hi"), out)
	assert.Equal(t, echoCall(1, "hi"), p.Remaining(), "call written after the replayed reply")
}

func TestStubSequenceIDsIncrease(t *testing.T) {
	replies := append(echoReply("echo", protocol.Reply, 1, "a"), echoReply("echo", protocol.Reply, 2, "b")...)
	stub := NewStub(mock.Replay(replies...), transport.NewMemory(nil))

	out, err := echo(stub, "a")
	require.NoError(t, err)
	assert.Equal(t, codec.String("a"), out)
	out, err = echo(stub, "b")
	require.NoError(t, err)
	assert.Equal(t, codec.String("b"), out)
}

func TestStubSequenceMismatchBreaksStub(t *testing.T) {
	p := mock.Replay(echoReply("echo", protocol.Reply, 7, "hi")...)
	stub := NewStub(p, transport.NewMemory(nil))

	_, err := echo(stub, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rpcerr.ErrSequenceMismatch))
	assert.Equal(t, err, stub.Err())

	written := len(p.Log())
	_, again := echo(stub, "hi")
	assert.Equal(t, err, again, "broken stub keeps failing")
	assert.Len(t, p.Log(), written, "and writes nothing")
}

func TestStubWrongNameIsViolation(t *testing.T) {
	stub := NewStub(mock.Replay(echoReply("other", protocol.Reply, 1, "hi")...), transport.NewMemory(nil))
	_, err := echo(stub, "hi")
	assert.True(t, errors.Is(err, rpcerr.ErrProtocolViolation))
	assert.Error(t, stub.Err())
}

func TestStubUnexpectedMessageType(t *testing.T) {
	stub := NewStub(mock.Replay(echoReply("echo", protocol.Call, 1, "hi")...), transport.NewMemory(nil))
	_, err := echo(stub, "hi")
	assert.True(t, errors.Is(err, rpcerr.ErrProtocolViolation))
}

func TestStubException(t *testing.T) {
	p := mock.Replay(
		mock.MessageBegin("echo", protocol.Exception, 1),
		mock.StructBegin("TApplicationException"),
		mock.FieldBegin("message", protocol.String, 1), mock.String("nope"), mock.FieldEnd(),
		mock.FieldBegin("type", protocol.I32, 2), mock.I32(int32(message.ExceptionInternalError)), mock.FieldEnd(),
		mock.FieldStop(),
		mock.StructEnd(),
		mock.MessageEnd(),
	)
	stub := NewStub(p, transport.NewMemory(nil))

	_, err := echo(stub, "hi")
	var exc *message.ApplicationException
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, codec.String("nope"), exc.Message)
	assert.Equal(t, message.ExceptionInternalError, exc.Kind())
	assert.True(t, errors.Is(err, rpcerr.ErrRemote))
	assert.NoError(t, stub.Err(), "exceptions leave the stream in step")
}

func TestStubOneWayReadsNothing(t *testing.T) {
	p := mock.New()
	stub := NewStub(p, transport.NewMemory(nil))

	n := codec.I32(3)
	require.NoError(t, stub.Call(context.Background(), mPing, nil, &n))
	assert.Equal(t, []mock.Action{
		mock.MessageBegin("ping", protocol.OneWay, 1),
		mock.StructBegin("ping_args"),
		mock.FieldBegin("n", protocol.I32, 1), mock.I32(3), mock.FieldEnd(),
		mock.FieldStop(),
		mock.StructEnd(),
		mock.MessageEnd(),
	}, p.Remaining())
}

func TestStubVoidMethod(t *testing.T) {
	p := mock.Replay(
		mock.MessageBegin("clear", protocol.Reply, 1),
		mock.StructBegin("clear_result"),
		mock.FieldStop(),
		mock.StructEnd(),
		mock.MessageEnd(),
	)
	stub := NewStub(p, transport.NewMemory(nil))
	require.NoError(t, stub.Call(context.Background(), mClear, nil))
}

func TestStubRejectsBadArguments(t *testing.T) {
	p := mock.New()
	stub := NewStub(p, transport.NewMemory(nil))

	var out codec.String
	n := codec.I32(1)
	assert.Error(t, stub.Call(context.Background(), mEcho, &out, &n), "wrong argument type")
	assert.Error(t, stub.Call(context.Background(), mEcho, &out), "missing argument")

	in := codec.String("x")
	var wrong codec.I32
	assert.Error(t, stub.Call(context.Background(), mEcho, &wrong, &in), "wrong result type")
	assert.Error(t, stub.Call(context.Background(), mEcho, nil, &in), "nil result")

	var bytesOut codec.Binary
	assert.Error(t, stub.Call(context.Background(), mEcho, &bytesOut, &in), "result of another Go type")
	blob := codec.Binary("x")
	assert.Error(t, stub.Call(context.Background(), mEcho, &out, &blob), "argument of another Go type")

	assert.Empty(t, p.Log())
	assert.NoError(t, stub.Err())
}

func TestStubCanceledContext(t *testing.T) {
	p := mock.New()
	stub := NewStub(p, transport.NewMemory(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := codec.String("x")
	var out codec.String
	assert.ErrorIs(t, stub.Call(ctx, mEcho, &out, &in), context.Canceled)
	assert.Empty(t, p.Log())
	assert.NoError(t, stub.Err())
}

func TestStubTruncatedReplyBreaksStub(t *testing.T) {
	reply := echoReply("echo", protocol.Reply, 1, "hi")
	stub := NewStub(mock.Replay(reply[:4]...), transport.NewMemory(nil))
	_, err := echo(stub, "hi")
	require.Error(t, err)
	assert.Error(t, stub.Err())
}

func TestStubMiddleware(t *testing.T) {
	var seen []string
	spy := func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, call *middleware.Call) error {
			err := next(ctx, call)
			seen = append(seen, call.Service+"."+call.Method)
			assert.Equal(t, int32(1), call.SeqID)
			return err
		}
	}
	stub := NewStub(mock.Replay(echoReply("echo", protocol.Reply, 1, "hi")...), transport.NewMemory(nil), spy).
		WithService("Echo")
	_, err := echo(stub, "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"Echo.echo"}, seen)
}

func TestStubOverBinary(t *testing.T) {
	wire := transport.NewMemory(nil)
	bp := protocol.NewBinary()

	// Pre-load the reply the server would send.
	out := codec.String("pong")
	require.NoError(t, message.WriteMessage(bp, wire,
		message.Envelope{Name: "echo", Type: protocol.Reply, SeqID: 1}, mEcho.ResultRecord(&out)))

	client := &splitTransport{in: wire, out: transport.NewMemory(nil)}
	got, err := echo(NewStub(bp, client), "ping")
	require.NoError(t, err)
	assert.Equal(t, codec.String("pong"), got)

	env, err := message.ReadEnvelope(bp, client.out)
	require.NoError(t, err)
	assert.Equal(t, message.Envelope{Name: "echo", Type: protocol.Call, SeqID: 1}, env)
	args := mEcho.NewArgs()
	require.NoError(t, message.ReadBody(bp, client.out, args))
	assert.Equal(t, codec.String("ping"), *args.FieldValue(0).(*codec.String))
}

// splitTransport reads from in and writes to out.
type splitTransport struct {
	in, out *transport.Memory
}

func (s *splitTransport) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *splitTransport) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s *splitTransport) Flush() error                { return nil }
