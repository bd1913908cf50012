package service

import (
	"context"
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"

	"mini-thrift/message"
	"mini-thrift/middleware"
	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/transport"
)

// UnknownMethodError is returned by Process for a call naming a method the
// service does not have. Only the envelope has been read.
type UnknownMethodError struct {
	Name  string
	SeqID int32
	Type  protocol.MessageType
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown method %q (seq %d)", e.Name, e.SeqID)
}

func (e *UnknownMethodError) Is(target error) bool { return target == rpcerr.ErrUnknownMethod }

// HandlerError is returned by Process when the service method failed. The
// request was read completely and no reply was written. OneWay reports that
// the caller expects no reply either way.
type HandlerError struct {
	Method string
	SeqID  int32
	OneWay bool
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s (seq %d): %v", e.Method, e.SeqID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Processor answers calls for one service.
type Processor struct {
	schema  *Schema
	methods map[string]*methodType
	mws     []middleware.Middleware
	handle  middleware.HandlerFunc
}

type Option func(*Processor)

// WithMiddleware runs mws around every service method, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(p *Processor) { p.mws = append(p.mws, mws...) }
}

// NewProcessor binds schema to the methods of impl.
func NewProcessor(schema *Schema, impl any, opts ...Option) (*Processor, error) {
	methods, err := bindMethods(schema, impl)
	if err != nil {
		return nil, err
	}
	p := &Processor{schema: schema, methods: methods}
	for _, opt := range opts {
		opt(p)
	}
	p.handle = middleware.Chain(p.mws...)(p.invoke)
	return p, nil
}

func (p *Processor) Schema() *Schema { return p.schema }

// Process reads one call from t, runs the service method and, unless the
// call is one-way, writes the reply and flushes.
//
// A call for an unknown method fails with *UnknownMethodError right after
// the envelope. A failing service method yields *HandlerError. Any other
// error leaves the stream in an undefined position.
func (p *Processor) Process(ctx context.Context, proto protocol.Protocol, t transport.Transport) error {
	env, err := message.ReadEnvelope(proto, t)
	if err != nil {
		return err
	}
	mt, ok := p.methods[env.Name]
	if !ok {
		return &UnknownMethodError{Name: env.Name, SeqID: env.SeqID, Type: env.Type}
	}
	if env.Type != protocol.Call && env.Type != protocol.OneWay {
		return rpcerr.Violationf("%s: unexpected %s message", env.Name, env.Type)
	}

	ms := mt.schema
	args := ms.NewArgs()
	if err := message.ReadBody(proto, t, args); err != nil {
		return errors.Wrapf(err, "%s args", ms.Name)
	}

	call := &middleware.Call{
		Service: p.schema.Name,
		Method:  ms.Name,
		SeqID:   env.SeqID,
		OneWay:  ms.OneWay,
		Args:    args,
	}
	if !ms.OneWay {
		call.Result, _ = ms.NewResult()
	}
	oneWay := ms.OneWay || env.Type == protocol.OneWay
	if err := p.handle(ctx, call); err != nil {
		return &HandlerError{Method: ms.Name, SeqID: env.SeqID, OneWay: oneWay, Err: err}
	}

	if oneWay {
		return nil
	}
	reply := message.Envelope{Name: ms.Name, Type: protocol.Reply, SeqID: env.SeqID}
	return message.WriteMessage(proto, t, reply, call.Result)
}

// invoke is the innermost handler: it calls the bound Go method.
func (p *Processor) invoke(ctx context.Context, call *middleware.Call) (err error) {
	mt := p.methods[call.Method]
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic in %s: %v", call.Method, r)
		}
	}()

	in := make([]reflect.Value, len(mt.schema.Args))
	for i := range in {
		in[i] = reflect.ValueOf(call.Args.FieldValue(i))
	}
	var result reflect.Value
	if call.Result != nil && !mt.schema.Result.IsVoid() {
		result = reflect.ValueOf(call.Result.FieldValue(0))
	}
	return mt.call(ctx, in, result)
}
