// Package mock provides a Protocol that records operations instead of bytes.
//
// Every write appends an Action to the log; reads replay the log front to
// back and fail with a protocol violation when the next action is not the one
// the reader asked for. Tests use it to assert the exact operation sequence a
// codec produces and to decode it back without involving a byte encoding.
package mock

import (
	"fmt"

	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/transport"
)

// Op identifies a protocol operation.
type Op uint8

const (
	OpMessageBegin Op = iota + 1
	OpMessageEnd
	OpStructBegin
	OpStructEnd
	OpFieldBegin
	OpFieldEnd
	OpFieldStop
	OpMapBegin
	OpMapEnd
	OpListBegin
	OpListEnd
	OpSetBegin
	OpSetEnd
	OpBool
	OpByte
	OpI16
	OpI32
	OpI64
	OpDouble
	OpString
	OpBinary
)

var opNames = [...]string{
	OpMessageBegin: "MessageBegin",
	OpMessageEnd:   "MessageEnd",
	OpStructBegin:  "StructBegin",
	OpStructEnd:    "StructEnd",
	OpFieldBegin:   "FieldBegin",
	OpFieldEnd:     "FieldEnd",
	OpFieldStop:    "FieldStop",
	OpMapBegin:     "MapBegin",
	OpMapEnd:       "MapEnd",
	OpListBegin:    "ListBegin",
	OpListEnd:      "ListEnd",
	OpSetBegin:     "SetBegin",
	OpSetEnd:       "SetEnd",
	OpBool:         "Bool",
	OpByte:         "Byte",
	OpI16:          "I16",
	OpI32:          "I32",
	OpI64:          "I64",
	OpDouble:       "Double",
	OpString:       "String",
	OpBinary:       "Binary",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Action is one recorded protocol operation. Only the fields relevant to Op
// are set; the constructors below build each kind.
type Action struct {
	Op          Op
	Name        string
	Type        protocol.Type // field type, or element/key type of a container
	ValueType   protocol.Type // map value type
	MessageType protocol.MessageType
	ID          int32 // field id or message sequence id
	Size        int
	Value       any // primitive payload
}

func (a Action) String() string {
	switch a.Op {
	case OpMessageBegin:
		return fmt.Sprintf("MessageBegin(%q, %s, %d)", a.Name, a.MessageType, a.ID)
	case OpStructBegin:
		return fmt.Sprintf("StructBegin(%q)", a.Name)
	case OpFieldBegin:
		return fmt.Sprintf("FieldBegin(%q, %s, %d)", a.Name, a.Type, a.ID)
	case OpMapBegin:
		return fmt.Sprintf("MapBegin(%s, %s, %d)", a.Type, a.ValueType, a.Size)
	case OpListBegin, OpSetBegin:
		return fmt.Sprintf("%s(%s, %d)", a.Op, a.Type, a.Size)
	case OpBool, OpByte, OpI16, OpI32, OpI64, OpDouble, OpString, OpBinary:
		return fmt.Sprintf("%s(%v)", a.Op, a.Value)
	default:
		return a.Op.String()
	}
}

func MessageBegin(name string, typ protocol.MessageType, seqID int32) Action {
	return Action{Op: OpMessageBegin, Name: name, MessageType: typ, ID: seqID}
}
func MessageEnd() Action             { return Action{Op: OpMessageEnd} }
func StructBegin(name string) Action { return Action{Op: OpStructBegin, Name: name} }
func StructEnd() Action              { return Action{Op: OpStructEnd} }
func FieldBegin(name string, typ protocol.Type, id int16) Action {
	return Action{Op: OpFieldBegin, Name: name, Type: typ, ID: int32(id)}
}
func FieldEnd() Action  { return Action{Op: OpFieldEnd} }
func FieldStop() Action { return Action{Op: OpFieldStop} }
func MapBegin(kt, vt protocol.Type, size int) Action {
	return Action{Op: OpMapBegin, Type: kt, ValueType: vt, Size: size}
}
func MapEnd() Action { return Action{Op: OpMapEnd} }
func ListBegin(et protocol.Type, size int) Action {
	return Action{Op: OpListBegin, Type: et, Size: size}
}
func ListEnd() Action { return Action{Op: OpListEnd} }
func SetBegin(et protocol.Type, size int) Action {
	return Action{Op: OpSetBegin, Type: et, Size: size}
}
func SetEnd() Action          { return Action{Op: OpSetEnd} }
func Bool(v bool) Action      { return Action{Op: OpBool, Value: v} }
func Byte(v int8) Action      { return Action{Op: OpByte, Value: v} }
func I16(v int16) Action      { return Action{Op: OpI16, Value: v} }
func I32(v int32) Action      { return Action{Op: OpI32, Value: v} }
func I64(v int64) Action      { return Action{Op: OpI64, Value: v} }
func Double(v float64) Action { return Action{Op: OpDouble, Value: v} }
func String(v string) Action  { return Action{Op: OpString, Value: v} }
func Binary(v []byte) Action  { return Action{Op: OpBinary, Value: append([]byte(nil), v...)} }

// Protocol records writes and replays them as reads. The transport passed to
// each operation is ignored. A Protocol is not safe for concurrent use.
type Protocol struct {
	log       []Action
	cursor    int
	afterStop bool
	skipDepth int
}

var _ protocol.Protocol = (*Protocol)(nil)

// New returns a protocol with an empty log.
func New() *Protocol {
	return &Protocol{skipDepth: protocol.DefaultSkipDepth}
}

// Replay returns a protocol whose reads replay actions.
func Replay(actions ...Action) *Protocol {
	p := New()
	p.log = append(p.log, actions...)
	return p
}

// Log returns every action written so far, including those already replayed.
func (p *Protocol) Log() []Action { return p.log }

// Remaining returns the actions not yet consumed by reads.
func (p *Protocol) Remaining() []Action { return p.log[p.cursor:] }

// Rewind restarts replay from the first action.
func (p *Protocol) Rewind() {
	p.cursor = 0
	p.afterStop = false
}

func (p *Protocol) record(a Action) error {
	p.log = append(p.log, a)
	return nil
}

func (p *Protocol) next(op Op) (Action, error) {
	if p.cursor >= len(p.log) {
		return Action{}, rpcerr.Violationf("unexpected read of %s on exhausted log", op)
	}
	a := p.log[p.cursor]
	if a.Op != op {
		return Action{}, rpcerr.Violationf("unexpected read of %s, log has %s at %d", op, a, p.cursor)
	}
	p.cursor++
	return a, nil
}

func (p *Protocol) WriteMessageBegin(_ transport.Transport, name string, typ protocol.MessageType, seqID int32) error {
	return p.record(MessageBegin(name, typ, seqID))
}
func (p *Protocol) WriteMessageEnd(transport.Transport) error { return p.record(MessageEnd()) }
func (p *Protocol) WriteStructBegin(_ transport.Transport, name string) error {
	return p.record(StructBegin(name))
}
func (p *Protocol) WriteStructEnd(transport.Transport) error { return p.record(StructEnd()) }
func (p *Protocol) WriteFieldBegin(_ transport.Transport, name string, typ protocol.Type, id int16) error {
	return p.record(FieldBegin(name, typ, id))
}
func (p *Protocol) WriteFieldEnd(transport.Transport) error  { return p.record(FieldEnd()) }
func (p *Protocol) WriteFieldStop(transport.Transport) error { return p.record(FieldStop()) }
func (p *Protocol) WriteMapBegin(_ transport.Transport, kt, vt protocol.Type, size int) error {
	return p.record(MapBegin(kt, vt, size))
}
func (p *Protocol) WriteMapEnd(transport.Transport) error { return p.record(MapEnd()) }
func (p *Protocol) WriteListBegin(_ transport.Transport, et protocol.Type, size int) error {
	return p.record(ListBegin(et, size))
}
func (p *Protocol) WriteListEnd(transport.Transport) error { return p.record(ListEnd()) }
func (p *Protocol) WriteSetBegin(_ transport.Transport, et protocol.Type, size int) error {
	return p.record(SetBegin(et, size))
}
func (p *Protocol) WriteSetEnd(transport.Transport) error              { return p.record(SetEnd()) }
func (p *Protocol) WriteBool(_ transport.Transport, v bool) error      { return p.record(Bool(v)) }
func (p *Protocol) WriteI8(_ transport.Transport, v int8) error        { return p.record(Byte(v)) }
func (p *Protocol) WriteI16(_ transport.Transport, v int16) error      { return p.record(I16(v)) }
func (p *Protocol) WriteI32(_ transport.Transport, v int32) error      { return p.record(I32(v)) }
func (p *Protocol) WriteI64(_ transport.Transport, v int64) error      { return p.record(I64(v)) }
func (p *Protocol) WriteDouble(_ transport.Transport, v float64) error { return p.record(Double(v)) }
func (p *Protocol) WriteString(_ transport.Transport, v string) error  { return p.record(String(v)) }
func (p *Protocol) WriteBinary(_ transport.Transport, v []byte) error  { return p.record(Binary(v)) }

func (p *Protocol) ReadMessageBegin(transport.Transport) (string, protocol.MessageType, int32, error) {
	a, err := p.next(OpMessageBegin)
	return a.Name, a.MessageType, a.ID, err
}

func (p *Protocol) ReadMessageEnd(transport.Transport) error {
	_, err := p.next(OpMessageEnd)
	return err
}

func (p *Protocol) ReadStructBegin(transport.Transport) (string, error) {
	a, err := p.next(OpStructBegin)
	return a.Name, err
}

func (p *Protocol) ReadStructEnd(transport.Transport) error {
	_, err := p.next(OpStructEnd)
	return err
}

// ReadFieldBegin replays a FieldBegin, or a FieldStop as a Stop header. The
// field-end read that follows a Stop consumes nothing.
func (p *Protocol) ReadFieldBegin(transport.Transport) (string, protocol.Type, int16, error) {
	if p.cursor < len(p.log) && p.log[p.cursor].Op == OpFieldStop {
		p.cursor++
		p.afterStop = true
		return "", protocol.Stop, 0, nil
	}
	a, err := p.next(OpFieldBegin)
	return a.Name, a.Type, int16(a.ID), err
}

func (p *Protocol) ReadFieldEnd(transport.Transport) error {
	if p.afterStop {
		p.afterStop = false
		return nil
	}
	_, err := p.next(OpFieldEnd)
	return err
}

func (p *Protocol) ReadMapBegin(transport.Transport) (protocol.Type, protocol.Type, int, error) {
	a, err := p.next(OpMapBegin)
	return a.Type, a.ValueType, a.Size, err
}

func (p *Protocol) ReadMapEnd(transport.Transport) error {
	_, err := p.next(OpMapEnd)
	return err
}

func (p *Protocol) ReadListBegin(transport.Transport) (protocol.Type, int, error) {
	a, err := p.next(OpListBegin)
	return a.Type, a.Size, err
}

func (p *Protocol) ReadListEnd(transport.Transport) error {
	_, err := p.next(OpListEnd)
	return err
}

func (p *Protocol) ReadSetBegin(transport.Transport) (protocol.Type, int, error) {
	a, err := p.next(OpSetBegin)
	return a.Type, a.Size, err
}

func (p *Protocol) ReadSetEnd(transport.Transport) error {
	_, err := p.next(OpSetEnd)
	return err
}

func (p *Protocol) ReadBool(transport.Transport) (bool, error) { return readPrim[bool](p, OpBool) }
func (p *Protocol) ReadI8(transport.Transport) (int8, error)   { return readPrim[int8](p, OpByte) }
func (p *Protocol) ReadI16(transport.Transport) (int16, error) { return readPrim[int16](p, OpI16) }
func (p *Protocol) ReadI32(transport.Transport) (int32, error) { return readPrim[int32](p, OpI32) }
func (p *Protocol) ReadI64(transport.Transport) (int64, error) { return readPrim[int64](p, OpI64) }
func (p *Protocol) ReadDouble(transport.Transport) (float64, error) {
	return readPrim[float64](p, OpDouble)
}
func (p *Protocol) ReadString(transport.Transport) (string, error) {
	return readPrim[string](p, OpString)
}
func (p *Protocol) ReadBinary(transport.Transport) ([]byte, error) {
	return readPrim[[]byte](p, OpBinary)
}

// Skip replays and discards one value of type typ.
func (p *Protocol) Skip(t transport.Transport, typ protocol.Type) error {
	return protocol.SkipValue(p, t, typ, p.skipDepth)
}

func readPrim[T any](p *Protocol, op Op) (T, error) {
	var zero T
	a, err := p.next(op)
	if err != nil {
		return zero, err
	}
	v, ok := a.Value.(T)
	if !ok {
		return zero, rpcerr.Violationf("%s action carries %T", op, a.Value)
	}
	return v, nil
}
