package message

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-thrift/codec"
	"mini-thrift/mock"
	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/transport"
)

func TestWriteMessageOperations(t *testing.T) {
	p := mock.New()
	exc := NewException(ExceptionUnknownMethod, "no %s", "frob")
	require.NoError(t, WriteMessage(p, transport.NewMemory(nil), Envelope{"frob", protocol.Exception, 3}, exc))

	assert.Equal(t, []mock.Action{
		mock.MessageBegin("frob", protocol.Exception, 3),
		mock.StructBegin("TApplicationException"),
		mock.FieldBegin("message", protocol.String, 1),
		mock.String("no frob"),
		mock.FieldEnd(),
		mock.FieldBegin("type", protocol.I32, 2),
		mock.I32(1),
		mock.FieldEnd(),
		mock.FieldStop(),
		mock.StructEnd(),
		mock.MessageEnd(),
	}, p.Log())
}

func TestEnvelopeAndBodyOverBinary(t *testing.T) {
	p := protocol.NewBinary()
	wire := transport.NewMemory(nil)
	in := NewException(ExceptionInternalError, "boom")
	require.NoError(t, WriteMessage(p, wire, Envelope{"getStruct", protocol.Exception, 77}, in))

	env, err := ReadEnvelope(p, wire)
	require.NoError(t, err)
	assert.Equal(t, Envelope{"getStruct", protocol.Exception, 77}, env)

	var out ApplicationException
	require.NoError(t, ReadBody(p, wire, &out))
	assert.Equal(t, *in, out)
	assert.Zero(t, wire.Len())
}

func TestSkipBody(t *testing.T) {
	p := protocol.NewBinary()
	wire := transport.NewMemory(nil)
	key := codec.I32(5)
	args := codec.NewDynamicRecord(codec.NewRecordSchema("a_args", codec.Field[codec.I32]("key", 1)), &key)
	require.NoError(t, WriteMessage(p, wire, Envelope{"a", protocol.Call, 1}, args))
	require.NoError(t, WriteMessage(p, wire, Envelope{"b", protocol.Call, 2}, args))

	_, err := ReadEnvelope(p, wire)
	require.NoError(t, err)
	require.NoError(t, SkipBody(p, wire))

	env, err := ReadEnvelope(p, wire)
	require.NoError(t, err)
	assert.Equal(t, "b", env.Name)
}

func TestApplicationExceptionIs(t *testing.T) {
	unknown := NewException(ExceptionUnknownMethod, "nope")
	internal := NewException(ExceptionInternalError, "boom")

	assert.True(t, errors.Is(unknown, rpcerr.ErrRemote))
	assert.True(t, errors.Is(unknown, rpcerr.ErrUnknownMethod))
	assert.True(t, errors.Is(internal, rpcerr.ErrRemote))
	assert.False(t, errors.Is(internal, rpcerr.ErrUnknownMethod))
	assert.False(t, errors.Is(internal, rpcerr.ErrTransport))

	wrapped := errors.Wrap(internal, "call")
	var exc *ApplicationException
	require.True(t, errors.As(wrapped, &exc))
	assert.Equal(t, ExceptionInternalError, exc.Kind())
	assert.Equal(t, "remote internal error: boom", internal.Error())
	assert.Equal(t, "remote", rpcerr.Kind(internal))
}

func TestExceptionTypeString(t *testing.T) {
	assert.Equal(t, "bad sequence id", ExceptionBadSequenceID.String())
	assert.Equal(t, "exception(42)", ExceptionType(42).String())
}
