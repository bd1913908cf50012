package message

import (
	"fmt"

	"mini-thrift/codec"
	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/transport"
)

// ExceptionType classifies an ApplicationException. The values are fixed
// wire constants.
type ExceptionType int32

const (
	ExceptionUnknown ExceptionType = iota
	ExceptionUnknownMethod
	ExceptionInvalidMessageType
	ExceptionWrongMethodName
	ExceptionBadSequenceID
	ExceptionMissingResult
	ExceptionInternalError
	ExceptionProtocolError
)

var exceptionNames = map[ExceptionType]string{
	ExceptionUnknown:            "unknown",
	ExceptionUnknownMethod:      "unknown method",
	ExceptionInvalidMessageType: "invalid message type",
	ExceptionWrongMethodName:    "wrong method name",
	ExceptionBadSequenceID:      "bad sequence id",
	ExceptionMissingResult:      "missing result",
	ExceptionInternalError:      "internal error",
	ExceptionProtocolError:      "protocol error",
}

func (e ExceptionType) String() string {
	if s, ok := exceptionNames[e]; ok {
		return s
	}
	return fmt.Sprintf("exception(%d)", int32(e))
}

// ApplicationException is the body of an Exception message. It is also the
// error a client returns for such a reply.
type ApplicationException struct {
	Message codec.String
	Type    codec.I32
}

var exceptionSchema = codec.NewRecordSchema("TApplicationException",
	codec.Field[codec.String]("message", 1),
	codec.Field[codec.I32]("type", 2),
)

// NewException returns an exception of the given type.
func NewException(typ ExceptionType, format string, args ...any) *ApplicationException {
	return &ApplicationException{
		Message: codec.String(fmt.Sprintf(format, args...)),
		Type:    codec.I32(typ),
	}
}

func (e *ApplicationException) Kind() ExceptionType { return ExceptionType(e.Type) }

func (e *ApplicationException) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Kind(), e.Message)
}

// Is matches rpcerr.ErrRemote, and rpcerr.ErrUnknownMethod for an
// unknown-method exception.
func (e *ApplicationException) Is(target error) bool {
	switch target {
	case rpcerr.ErrRemote:
		return true
	case rpcerr.ErrUnknownMethod:
		return e.Kind() == ExceptionUnknownMethod
	}
	return false
}

func (e *ApplicationException) RecordSchema() *codec.RecordSchema { return exceptionSchema }

func (e *ApplicationException) FieldValue(i int) codec.Value {
	if i == 0 {
		return &e.Message
	}
	return &e.Type
}

func (e *ApplicationException) WireType() protocol.Type { return protocol.Struct }

func (e *ApplicationException) Encode(p protocol.Protocol, t transport.Transport) error {
	return codec.EncodeRecord(p, t, e)
}

func (e *ApplicationException) Decode(p protocol.Protocol, t transport.Transport) error {
	return codec.DecodeRecord(p, t, e)
}
