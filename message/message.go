// Package message defines the envelope every exchange is wrapped in and the
// exception record a server sends back when a call cannot be answered.
//
// One exchange on the wire:
//
//	client ── Call{name, seq}  args record  ──────────▶ server
//	client ◀── Reply{name, seq} result record ───────── server
//	        or Exception{name, seq} ApplicationException
//
// A OneWay message carries arguments and gets no answer.
package message

import (
	"mini-thrift/codec"
	"mini-thrift/protocol"
	"mini-thrift/transport"
)

// Envelope is the header of a message.
type Envelope struct {
	Name  string
	Type  protocol.MessageType
	SeqID int32
}

// WriteMessage writes env, the body record and the message end, then
// flushes t.
func WriteMessage(p protocol.Protocol, t transport.Transport, env Envelope, body codec.Value) error {
	if err := p.WriteMessageBegin(t, env.Name, env.Type, env.SeqID); err != nil {
		return err
	}
	if err := body.Encode(p, t); err != nil {
		return err
	}
	if err := p.WriteMessageEnd(t); err != nil {
		return err
	}
	return t.Flush()
}

// ReadEnvelope reads a message header and nothing else.
func ReadEnvelope(p protocol.Protocol, t transport.Transport) (Envelope, error) {
	name, typ, seq, err := p.ReadMessageBegin(t)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Name: name, Type: typ, SeqID: seq}, nil
}

// ReadBody decodes the body that follows an envelope and the message end.
func ReadBody(p protocol.Protocol, t transport.Transport, body codec.Value) error {
	if err := body.Decode(p, t); err != nil {
		return err
	}
	return p.ReadMessageEnd(t)
}

// SkipBody discards the body record that follows an envelope and reads the
// message end.
func SkipBody(p protocol.Protocol, t transport.Transport) error {
	if err := p.Skip(t, protocol.Struct); err != nil {
		return err
	}
	return p.ReadMessageEnd(t)
}
