// Package protocol defines how primitive values and structural markers are
// written to and read from a Transport.
//
// A Protocol realises the logical framing every exchange follows:
//
//	message := <message-begin> record <message-end>
//	record  := <struct-begin> field* <field-stop> <struct-end>
//	field   := <field-begin> value <field-end>
//
// The byte layout is up to the implementation. BinaryProtocol is the production
// encoding; package mock provides a protocol that records and replays the
// operations themselves.
package protocol

import "mini-thrift/transport"

// Protocol encodes and decodes primitives and boundary markers. Every
// operation receives the transport it acts on and may fail with a
// protocol-specific error.
type Protocol interface {
	WriteMessageBegin(t transport.Transport, name string, typ MessageType, seqID int32) error
	WriteMessageEnd(t transport.Transport) error
	WriteStructBegin(t transport.Transport, name string) error
	WriteStructEnd(t transport.Transport) error
	WriteFieldBegin(t transport.Transport, name string, typ Type, id int16) error
	WriteFieldEnd(t transport.Transport) error
	WriteFieldStop(t transport.Transport) error
	WriteMapBegin(t transport.Transport, keyType, valueType Type, size int) error
	WriteMapEnd(t transport.Transport) error
	WriteListBegin(t transport.Transport, elemType Type, size int) error
	WriteListEnd(t transport.Transport) error
	WriteSetBegin(t transport.Transport, elemType Type, size int) error
	WriteSetEnd(t transport.Transport) error
	WriteBool(t transport.Transport, v bool) error
	WriteI8(t transport.Transport, v int8) error
	WriteI16(t transport.Transport, v int16) error
	WriteI32(t transport.Transport, v int32) error
	WriteI64(t transport.Transport, v int64) error
	WriteDouble(t transport.Transport, v float64) error
	WriteString(t transport.Transport, v string) error
	WriteBinary(t transport.Transport, v []byte) error

	ReadMessageBegin(t transport.Transport) (name string, typ MessageType, seqID int32, err error)
	ReadMessageEnd(t transport.Transport) error
	ReadStructBegin(t transport.Transport) (name string, err error)
	ReadStructEnd(t transport.Transport) error
	// ReadFieldBegin returns typ == Stop once the record has no more fields.
	ReadFieldBegin(t transport.Transport) (name string, typ Type, id int16, err error)
	ReadFieldEnd(t transport.Transport) error
	ReadMapBegin(t transport.Transport) (keyType, valueType Type, size int, err error)
	ReadMapEnd(t transport.Transport) error
	ReadListBegin(t transport.Transport) (elemType Type, size int, err error)
	ReadListEnd(t transport.Transport) error
	ReadSetBegin(t transport.Transport) (elemType Type, size int, err error)
	ReadSetEnd(t transport.Transport) error
	ReadBool(t transport.Transport) (bool, error)
	ReadI8(t transport.Transport) (int8, error)
	ReadI16(t transport.Transport) (int16, error)
	ReadI32(t transport.Transport) (int32, error)
	ReadI64(t transport.Transport) (int64, error)
	ReadDouble(t transport.Transport) (float64, error)
	ReadString(t transport.Transport) (string, error)
	ReadBinary(t transport.Transport) ([]byte, error)

	// Skip consumes and discards one value of type typ, descending through
	// nested structs and containers so the stream stays aligned.
	Skip(t transport.Transport, typ Type) error
}
