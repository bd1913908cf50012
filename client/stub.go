package client

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"mini-thrift/codec"
	"mini-thrift/message"
	"mini-thrift/middleware"
	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/service"
	"mini-thrift/transport"
)

// Stub calls methods over one protocol and one transport. It carries one
// call at a time and is not safe for concurrent use.
//
// After a transport or protocol failure the stream may be out of step, so
// the stub is broken: every later call returns the same error. An exception
// reply does not break it.
type Stub struct {
	proto   protocol.Protocol
	trans   transport.Transport
	service string
	seqID   int32
	broken  error
	handle  middleware.HandlerFunc
}

// NewStub returns a stub writing calls with p to t. mws run around every
// call, outermost first.
func NewStub(p protocol.Protocol, t transport.Transport, mws ...middleware.Middleware) *Stub {
	s := &Stub{proto: p, trans: t}
	s.handle = middleware.Chain(mws...)(s.exchange)
	return s
}

// WithService names the service in the calls seen by middleware.
func (s *Stub) WithService(name string) *Stub {
	s.service = name
	return s
}

// Call invokes m with args and decodes the reply's success value into
// result, which must point to a value of the method's result type. result
// is ignored for one-way and void methods.
//
// An exception reply is returned as *message.ApplicationException.
func (s *Stub) Call(ctx context.Context, m *service.MethodSchema, result codec.Value, args ...codec.Value) error {
	call, err := newCall(s.service, m, result, args)
	if err != nil {
		return err
	}
	return s.handle(ctx, call)
}

// Err returns the error that broke the stub, or nil.
func (s *Stub) Err() error { return s.broken }

// Close closes the underlying transport.
func (s *Stub) Close() error { return transport.Close(s.trans) }

func newCall(serviceName string, m *service.MethodSchema, result codec.Value, args []codec.Value) (*middleware.Call, error) {
	rec, err := m.ArgsRecord(args...)
	if err != nil {
		return nil, err
	}
	call := &middleware.Call{Service: serviceName, Method: m.Name, OneWay: m.OneWay, Args: rec}
	if m.OneWay {
		return call, nil
	}
	if err := m.CheckResult(result); err != nil {
		return nil, err
	}
	call.Result = m.ResultRecord(result)
	return call, nil
}

// exchange writes one call and, unless it is one-way, reads its reply.
func (s *Stub) exchange(ctx context.Context, call *middleware.Call) error {
	if s.broken != nil {
		return s.broken
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && transport.SetDeadline(s.trans, deadline) {
		defer transport.SetDeadline(s.trans, time.Time{})
	}

	s.seqID++
	call.SeqID = s.seqID
	typ := protocol.Call
	if call.OneWay {
		typ = protocol.OneWay
	}
	env := message.Envelope{Name: call.Method, Type: typ, SeqID: call.SeqID}
	if err := message.WriteMessage(s.proto, s.trans, env, call.Args); err != nil {
		return s.fail(ctx, err)
	}
	if call.OneWay {
		return nil
	}

	reply, err := message.ReadEnvelope(s.proto, s.trans)
	if err != nil {
		return s.fail(ctx, err)
	}
	if reply.SeqID != call.SeqID {
		return s.fail(ctx, rpcerr.SequenceMismatch(call.SeqID, reply.SeqID))
	}
	if reply.Name != call.Method {
		return s.fail(ctx, rpcerr.Violationf("reply for %q, want %q", reply.Name, call.Method))
	}

	switch reply.Type {
	case protocol.Reply:
		if err := message.ReadBody(s.proto, s.trans, call.Result); err != nil {
			return s.fail(ctx, errors.Wrapf(err, "%s result", call.Method))
		}
		return nil
	case protocol.Exception:
		exc := &message.ApplicationException{}
		if err := message.ReadBody(s.proto, s.trans, exc); err != nil {
			return s.fail(ctx, errors.Wrapf(err, "%s exception", call.Method))
		}
		return exc
	default:
		return s.fail(ctx, rpcerr.Violationf("%s: unexpected %s message", call.Method, reply.Type))
	}
}

func (s *Stub) fail(ctx context.Context, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = errors.Mark(err, rpcerr.ErrTimeout)
	}
	s.broken = err
	return err
}
