package protocol

import (
	"mini-thrift/rpcerr"
	"mini-thrift/transport"
)

// DefaultSkipDepth bounds how deeply SkipValue descends into nested
// structs and containers.
const DefaultSkipDepth = 64

// SkipValue reads and discards one value of type typ using only p's read
// operations, so it works for any Protocol. depth is the remaining nesting
// budget; running out of it, or meeting a type that carries no value, fails
// with ErrUnsupportedSkip.
func SkipValue(p Protocol, t transport.Transport, typ Type, depth int) error {
	if depth <= 0 {
		return rpcerr.UnsupportedSkipf("skip nesting exceeds depth limit")
	}

	var err error
	switch typ {
	case Bool:
		_, err = p.ReadBool(t)
	case Byte:
		_, err = p.ReadI8(t)
	case I16:
		_, err = p.ReadI16(t)
	case I32:
		_, err = p.ReadI32(t)
	case I64:
		_, err = p.ReadI64(t)
	case Double:
		_, err = p.ReadDouble(t)
	case String:
		_, err = p.ReadString(t)
	case Binary:
		_, err = p.ReadBinary(t)
	case Struct:
		err = skipStruct(p, t, depth)
	case Map:
		var kt, vt Type
		var n int
		if kt, vt, n, err = p.ReadMapBegin(t); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err = SkipValue(p, t, kt, depth-1); err != nil {
				return err
			}
			if err = SkipValue(p, t, vt, depth-1); err != nil {
				return err
			}
		}
		err = p.ReadMapEnd(t)
	case List:
		var et Type
		var n int
		if et, n, err = p.ReadListBegin(t); err != nil {
			return err
		}
		if err = skipElems(p, t, et, n, depth); err != nil {
			return err
		}
		err = p.ReadListEnd(t)
	case Set:
		var et Type
		var n int
		if et, n, err = p.ReadSetBegin(t); err != nil {
			return err
		}
		if err = skipElems(p, t, et, n, depth); err != nil {
			return err
		}
		err = p.ReadSetEnd(t)
	default:
		return rpcerr.UnsupportedSkipf("cannot skip value of type %s", typ)
	}
	return err
}

func skipStruct(p Protocol, t transport.Transport, depth int) error {
	if _, err := p.ReadStructBegin(t); err != nil {
		return err
	}
	for {
		_, ft, _, err := p.ReadFieldBegin(t)
		if err != nil {
			return err
		}
		if ft == Stop {
			if err := p.ReadFieldEnd(t); err != nil {
				return err
			}
			break
		}
		if err := SkipValue(p, t, ft, depth-1); err != nil {
			return err
		}
		if err := p.ReadFieldEnd(t); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(t)
}

func skipElems(p Protocol, t transport.Transport, et Type, n, depth int) error {
	for i := 0; i < n; i++ {
		if err := SkipValue(p, t, et, depth-1); err != nil {
			return err
		}
	}
	return nil
}
