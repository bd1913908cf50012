package codec

import (
	"mini-thrift/protocol"
	"mini-thrift/transport"
)

type (
	Bool   bool
	Byte   int8
	I16    int16
	I32    int32
	I64    int64
	Double float64
	String string
	// Binary is an opaque byte blob with its own wire type.
	Binary []byte
)

func (Bool) WireType() protocol.Type { return protocol.Bool }
func (v Bool) Encode(p protocol.Protocol, t transport.Transport) error {
	return p.WriteBool(t, bool(v))
}
func (v *Bool) Decode(p protocol.Protocol, t transport.Transport) error {
	x, err := p.ReadBool(t)
	*v = Bool(x)
	return err
}

func (Byte) WireType() protocol.Type { return protocol.Byte }
func (v Byte) Encode(p protocol.Protocol, t transport.Transport) error {
	return p.WriteI8(t, int8(v))
}
func (v *Byte) Decode(p protocol.Protocol, t transport.Transport) error {
	x, err := p.ReadI8(t)
	*v = Byte(x)
	return err
}

func (I16) WireType() protocol.Type { return protocol.I16 }
func (v I16) Encode(p protocol.Protocol, t transport.Transport) error {
	return p.WriteI16(t, int16(v))
}
func (v *I16) Decode(p protocol.Protocol, t transport.Transport) error {
	x, err := p.ReadI16(t)
	*v = I16(x)
	return err
}

func (I32) WireType() protocol.Type { return protocol.I32 }
func (v I32) Encode(p protocol.Protocol, t transport.Transport) error {
	return p.WriteI32(t, int32(v))
}
func (v *I32) Decode(p protocol.Protocol, t transport.Transport) error {
	x, err := p.ReadI32(t)
	*v = I32(x)
	return err
}

func (I64) WireType() protocol.Type { return protocol.I64 }
func (v I64) Encode(p protocol.Protocol, t transport.Transport) error {
	return p.WriteI64(t, int64(v))
}
func (v *I64) Decode(p protocol.Protocol, t transport.Transport) error {
	x, err := p.ReadI64(t)
	*v = I64(x)
	return err
}

func (Double) WireType() protocol.Type { return protocol.Double }
func (v Double) Encode(p protocol.Protocol, t transport.Transport) error {
	return p.WriteDouble(t, float64(v))
}
func (v *Double) Decode(p protocol.Protocol, t transport.Transport) error {
	x, err := p.ReadDouble(t)
	*v = Double(x)
	return err
}

func (String) WireType() protocol.Type { return protocol.String }
func (v String) Encode(p protocol.Protocol, t transport.Transport) error {
	return p.WriteString(t, string(v))
}
func (v *String) Decode(p protocol.Protocol, t transport.Transport) error {
	x, err := p.ReadString(t)
	*v = String(x)
	return err
}

func (Binary) WireType() protocol.Type { return protocol.Binary }
func (v Binary) Encode(p protocol.Protocol, t transport.Transport) error {
	return p.WriteBinary(t, v)
}
func (v *Binary) Decode(p protocol.Protocol, t transport.Transport) error {
	x, err := p.ReadBinary(t)
	*v = x
	return err
}
