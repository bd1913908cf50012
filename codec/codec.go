package codec

import (
	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/transport"
)

// Codec turns a Value into a standalone byte slice and back using one
// protocol encoding.
type Codec interface {
	Marshal(v Value) ([]byte, error)
	Unmarshal(data []byte, v Value) error
}

type protocolCodec struct {
	newProtocol func() protocol.Protocol
}

// NewCodec returns a Codec that uses a fresh protocol from newProtocol for
// every call.
func NewCodec(newProtocol func() protocol.Protocol) Codec {
	return protocolCodec{newProtocol: newProtocol}
}

// BinaryCodec encodes with the binary protocol and default limits.
var BinaryCodec = NewCodec(func() protocol.Protocol { return protocol.NewBinary() })

func (c protocolCodec) Marshal(v Value) ([]byte, error) {
	buf := transport.NewMemory(nil)
	if err := v.Encode(c.newProtocol(), buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v. Bytes left over after v are an error.
func (c protocolCodec) Unmarshal(data []byte, v Value) error {
	buf := transport.NewMemory(data)
	if err := v.Decode(c.newProtocol(), buf); err != nil {
		return err
	}
	if buf.Len() != 0 {
		return rpcerr.Violationf("%d trailing bytes after %s", buf.Len(), v.WireType())
	}
	return nil
}
