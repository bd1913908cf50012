package codec

import (
	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/transport"
)

// List is an ordered sequence of T.
type List[T any, PT Ptr[T]] []T

func (List[T, PT]) WireType() protocol.Type { return protocol.List }

func (l List[T, PT]) Encode(p protocol.Protocol, t transport.Transport) error {
	if err := p.WriteListBegin(t, WireTypeOf[T, PT](), len(l)); err != nil {
		return err
	}
	for i := range l {
		if err := PT(&l[i]).Encode(p, t); err != nil {
			return err
		}
	}
	return p.WriteListEnd(t)
}

func (l *List[T, PT]) Decode(p protocol.Protocol, t transport.Transport) error {
	et, n, err := p.ReadListBegin(t)
	if err != nil {
		return err
	}
	if want := WireTypeOf[T, PT](); et != want {
		return rpcerr.Violationf("list of %s, want %s", et, want)
	}
	out := make(List[T, PT], 0, sizeHint(n))
	for i := 0; i < n; i++ {
		var v T
		if err := PT(&v).Decode(p, t); err != nil {
			return err
		}
		out = append(out, v)
	}
	*l = out
	return p.ReadListEnd(t)
}
