package protocol

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"

	"mini-thrift/rpcerr"
	"mini-thrift/transport"
)

// Binary message headers start with a negative i32 carrying the version in
// the high half and the message type in the low byte:
//
//	┌────────────┬──────┬──────────┬────────────┬───────────┐
//	│ 0x8001     │ 0x00 │ msg type │ name (str) │ seq (i32) │
//	└────────────┴──────┴──────────┴────────────┴───────────┘
//
// The legacy layout (name length, name, type byte, seq) is still accepted on
// read.
const (
	binaryVersion1    uint32 = 0x80010000
	binaryVersionMask uint32 = 0xffff0000
	binaryTypeMask    uint32 = 0x000000ff
)

// BinaryProtocol is the binary wire encoding: one-byte type tags, big-endian
// integers, IEEE-754 doubles, and i32 length prefixes for strings, binary and
// containers. Struct and container end markers and field-end occupy no
// bytes. Field names are not written; ReadFieldBegin returns an empty name.
//
// A BinaryProtocol keeps scratch space and must not be shared between goroutines.
type BinaryProtocol struct {
	stringLimit    int
	containerLimit int
	skipDepth      int
	buf            [8]byte
}

// BinaryOption configures a BinaryProtocol.
type BinaryOption func(*BinaryProtocol)

// WithStringLimit caps the length of strings and binary values accepted on
// read. Zero means unlimited.
func WithStringLimit(n int) BinaryOption {
	return func(b *BinaryProtocol) { b.stringLimit = n }
}

// DefaultContainerLimit is the element count a BinaryProtocol accepts for one
// list, set or map unless WithContainerLimit says otherwise.
const DefaultContainerLimit = 1 << 20

// WithContainerLimit caps the element count of lists, sets and maps accepted
// on read. Zero means unlimited.
func WithContainerLimit(n int) BinaryOption {
	return func(b *BinaryProtocol) { b.containerLimit = n }
}

// WithSkipDepth sets the nesting budget used when skipping unknown fields.
func WithSkipDepth(n int) BinaryOption {
	return func(b *BinaryProtocol) { b.skipDepth = n }
}

// NewBinary returns a binary protocol.
func NewBinary(opts ...BinaryOption) *BinaryProtocol {
	b := &BinaryProtocol{skipDepth: DefaultSkipDepth, containerLimit: DefaultContainerLimit}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BinaryProtocol) WriteMessageBegin(t transport.Transport, name string, typ MessageType, seqID int32) error {
	if err := b.WriteI32(t, int32(binaryVersion1|uint32(typ))); err != nil {
		return err
	}
	if err := b.WriteString(t, name); err != nil {
		return err
	}
	return b.WriteI32(t, seqID)
}

func (b *BinaryProtocol) WriteMessageEnd(t transport.Transport) error               { return nil }
func (b *BinaryProtocol) WriteStructBegin(t transport.Transport, name string) error { return nil }
func (b *BinaryProtocol) WriteStructEnd(t transport.Transport) error                { return nil }

func (b *BinaryProtocol) WriteFieldBegin(t transport.Transport, name string, typ Type, id int16) error {
	if err := b.writeType(t, typ); err != nil {
		return err
	}
	return b.WriteI16(t, id)
}

func (b *BinaryProtocol) WriteFieldEnd(t transport.Transport) error  { return nil }
func (b *BinaryProtocol) WriteFieldStop(t transport.Transport) error { return b.writeType(t, Stop) }

func (b *BinaryProtocol) WriteMapBegin(t transport.Transport, keyType, valueType Type, size int) error {
	if err := b.writeType(t, keyType); err != nil {
		return err
	}
	if err := b.writeType(t, valueType); err != nil {
		return err
	}
	return b.writeSize(t, size)
}

func (b *BinaryProtocol) WriteMapEnd(t transport.Transport) error { return nil }

func (b *BinaryProtocol) WriteListBegin(t transport.Transport, elemType Type, size int) error {
	if err := b.writeType(t, elemType); err != nil {
		return err
	}
	return b.writeSize(t, size)
}

func (b *BinaryProtocol) WriteListEnd(t transport.Transport) error { return nil }

func (b *BinaryProtocol) WriteSetBegin(t transport.Transport, elemType Type, size int) error {
	return b.WriteListBegin(t, elemType, size)
}

func (b *BinaryProtocol) WriteSetEnd(t transport.Transport) error { return nil }

func (b *BinaryProtocol) WriteBool(t transport.Transport, v bool) error {
	if v {
		return b.WriteI8(t, 1)
	}
	return b.WriteI8(t, 0)
}

func (b *BinaryProtocol) WriteI8(t transport.Transport, v int8) error {
	b.buf[0] = byte(v)
	return b.write(t, b.buf[:1])
}

func (b *BinaryProtocol) WriteI16(t transport.Transport, v int16) error {
	binary.BigEndian.PutUint16(b.buf[:2], uint16(v))
	return b.write(t, b.buf[:2])
}

func (b *BinaryProtocol) WriteI32(t transport.Transport, v int32) error {
	binary.BigEndian.PutUint32(b.buf[:4], uint32(v))
	return b.write(t, b.buf[:4])
}

func (b *BinaryProtocol) WriteI64(t transport.Transport, v int64) error {
	binary.BigEndian.PutUint64(b.buf[:8], uint64(v))
	return b.write(t, b.buf[:8])
}

func (b *BinaryProtocol) WriteDouble(t transport.Transport, v float64) error {
	return b.WriteI64(t, int64(math.Float64bits(v)))
}

func (b *BinaryProtocol) WriteString(t transport.Transport, v string) error {
	if err := b.writeSize(t, len(v)); err != nil {
		return err
	}
	_, err := io.WriteString(t, v)
	return rpcerr.Transport(err)
}

func (b *BinaryProtocol) WriteBinary(t transport.Transport, v []byte) error {
	if err := b.writeSize(t, len(v)); err != nil {
		return err
	}
	return b.write(t, v)
}

func (b *BinaryProtocol) ReadMessageBegin(t transport.Transport) (string, MessageType, int32, error) {
	size, err := b.ReadI32(t)
	if err != nil {
		return "", 0, 0, err
	}

	var (
		name string
		typ  MessageType
	)
	if size < 0 {
		if v := uint32(size) & binaryVersionMask; v != binaryVersion1 {
			return "", 0, 0, rpcerr.Violationf("bad message version %#x", v)
		}
		typ = MessageType(uint32(size) & binaryTypeMask)
		if name, err = b.ReadString(t); err != nil {
			return "", 0, 0, err
		}
	} else {
		if b.stringLimit > 0 && int(size) > b.stringLimit {
			return "", 0, 0, rpcerr.Violationf("message name length %d exceeds limit %d", size, b.stringLimit)
		}
		raw, err := b.readN(t, int(size))
		if err != nil {
			return "", 0, 0, err
		}
		name = string(raw)
		v, err := b.ReadI8(t)
		if err != nil {
			return "", 0, 0, err
		}
		typ = MessageType(v)
	}
	if !typ.Valid() {
		return "", 0, 0, rpcerr.Violationf("bad message type %d", byte(typ))
	}

	seqID, err := b.ReadI32(t)
	if err != nil {
		return "", 0, 0, err
	}
	return name, typ, seqID, nil
}

func (b *BinaryProtocol) ReadMessageEnd(t transport.Transport) error            { return nil }
func (b *BinaryProtocol) ReadStructBegin(t transport.Transport) (string, error) { return "", nil }
func (b *BinaryProtocol) ReadStructEnd(t transport.Transport) error             { return nil }

func (b *BinaryProtocol) ReadFieldBegin(t transport.Transport) (string, Type, int16, error) {
	typ, err := b.readType(t)
	if err != nil {
		return "", 0, 0, err
	}
	if typ == Stop {
		return "", Stop, 0, nil
	}
	id, err := b.ReadI16(t)
	if err != nil {
		return "", 0, 0, err
	}
	return "", typ, id, nil
}

func (b *BinaryProtocol) ReadFieldEnd(t transport.Transport) error { return nil }

func (b *BinaryProtocol) ReadMapBegin(t transport.Transport) (Type, Type, int, error) {
	kt, err := b.readType(t)
	if err != nil {
		return 0, 0, 0, err
	}
	vt, err := b.readType(t)
	if err != nil {
		return 0, 0, 0, err
	}
	n, err := b.readContainerSize(t)
	if err != nil {
		return 0, 0, 0, err
	}
	return kt, vt, n, nil
}

func (b *BinaryProtocol) ReadMapEnd(t transport.Transport) error { return nil }

func (b *BinaryProtocol) ReadListBegin(t transport.Transport) (Type, int, error) {
	et, err := b.readType(t)
	if err != nil {
		return 0, 0, err
	}
	n, err := b.readContainerSize(t)
	if err != nil {
		return 0, 0, err
	}
	return et, n, nil
}

func (b *BinaryProtocol) ReadListEnd(t transport.Transport) error { return nil }

func (b *BinaryProtocol) ReadSetBegin(t transport.Transport) (Type, int, error) {
	return b.ReadListBegin(t)
}

func (b *BinaryProtocol) ReadSetEnd(t transport.Transport) error { return nil }

func (b *BinaryProtocol) ReadBool(t transport.Transport) (bool, error) {
	v, err := b.ReadI8(t)
	return v != 0, err
}

func (b *BinaryProtocol) ReadI8(t transport.Transport) (int8, error) {
	if err := b.readFull(t, b.buf[:1]); err != nil {
		return 0, err
	}
	return int8(b.buf[0]), nil
}

func (b *BinaryProtocol) ReadI16(t transport.Transport) (int16, error) {
	if err := b.readFull(t, b.buf[:2]); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b.buf[:2])), nil
}

func (b *BinaryProtocol) ReadI32(t transport.Transport) (int32, error) {
	if err := b.readFull(t, b.buf[:4]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b.buf[:4])), nil
}

func (b *BinaryProtocol) ReadI64(t transport.Transport) (int64, error) {
	if err := b.readFull(t, b.buf[:8]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b.buf[:8])), nil
}

func (b *BinaryProtocol) ReadDouble(t transport.Transport) (float64, error) {
	v, err := b.ReadI64(t)
	return math.Float64frombits(uint64(v)), err
}

func (b *BinaryProtocol) ReadString(t transport.Transport) (string, error) {
	raw, err := b.ReadBinary(t)
	return string(raw), err
}

func (b *BinaryProtocol) ReadBinary(t transport.Transport) ([]byte, error) {
	n, err := b.ReadI32(t)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, rpcerr.Violationf("negative length %d", n)
	}
	if b.stringLimit > 0 && int(n) > b.stringLimit {
		return nil, rpcerr.Violationf("length %d exceeds limit %d", n, b.stringLimit)
	}
	return b.readN(t, int(n))
}

func (b *BinaryProtocol) Skip(t transport.Transport, typ Type) error {
	return SkipValue(b, t, typ, b.skipDepth)
}

func (b *BinaryProtocol) writeType(t transport.Transport, typ Type) error {
	return b.WriteI8(t, int8(typ))
}

func (b *BinaryProtocol) readType(t transport.Transport) (Type, error) {
	v, err := b.ReadI8(t)
	if err != nil {
		return 0, err
	}
	typ := Type(v)
	if !typ.Valid() {
		return 0, rpcerr.Violationf("unknown wire type %d", v)
	}
	return typ, nil
}

func (b *BinaryProtocol) writeSize(t transport.Transport, n int) error {
	if n > math.MaxInt32 {
		return rpcerr.Violationf("size %d does not fit in i32", n)
	}
	return b.WriteI32(t, int32(n))
}

func (b *BinaryProtocol) readContainerSize(t transport.Transport) (int, error) {
	n, err := b.ReadI32(t)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, rpcerr.Violationf("negative container size %d", n)
	}
	if b.containerLimit > 0 && int(n) > b.containerLimit {
		return 0, rpcerr.Violationf("container size %d exceeds limit %d", n, b.containerLimit)
	}
	return int(n), nil
}

func (b *BinaryProtocol) write(t transport.Transport, p []byte) error {
	_, err := t.Write(p)
	return rpcerr.Transport(err)
}

func (b *BinaryProtocol) readFull(t transport.Transport, p []byte) error {
	_, err := io.ReadFull(t, p)
	return rpcerr.Transport(err)
}

// readN reads exactly n bytes. Large lengths are read in chunks so a forged
// length cannot force a huge allocation before the data actually arrives.
func (b *BinaryProtocol) readN(t transport.Transport, n int) ([]byte, error) {
	const chunk = 64 << 10
	if n <= chunk {
		p := make([]byte, n)
		if err := b.readFull(t, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	p := make([]byte, 0, chunk)
	for len(p) < n {
		m := min(n-len(p), chunk)
		start := len(p)
		p = append(p, make([]byte, m)...)
		if err := b.readFull(t, p[start:]); err != nil {
			return nil, errors.WithMessagef(err, "reading %d of %d bytes", start, n)
		}
	}
	return p, nil
}
