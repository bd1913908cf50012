package codec

import (
	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/transport"
)

// Map associates keys of type K with values of type V.
type Map[K comparable, V any, PK Ptr[K], PV Ptr[V]] map[K]V

func (Map[K, V, PK, PV]) WireType() protocol.Type { return protocol.Map }

func (m Map[K, V, PK, PV]) Encode(p protocol.Protocol, t transport.Transport) error {
	if err := p.WriteMapBegin(t, WireTypeOf[K, PK](), WireTypeOf[V, PV](), len(m)); err != nil {
		return err
	}
	for k, v := range m {
		if err := PK(&k).Encode(p, t); err != nil {
			return err
		}
		if err := PV(&v).Encode(p, t); err != nil {
			return err
		}
	}
	return p.WriteMapEnd(t)
}

// Decode replaces m with the decoded entries. A repeated key keeps the last
// value read.
func (m *Map[K, V, PK, PV]) Decode(p protocol.Protocol, t transport.Transport) error {
	kt, vt, n, err := p.ReadMapBegin(t)
	if err != nil {
		return err
	}
	wantK, wantV := WireTypeOf[K, PK](), WireTypeOf[V, PV]()
	if kt != wantK || vt != wantV {
		return rpcerr.Violationf("map<%s,%s>, want map<%s,%s>", kt, vt, wantK, wantV)
	}
	out := make(Map[K, V, PK, PV], sizeHint(n))
	for i := 0; i < n; i++ {
		var (
			k K
			v V
		)
		if err := PK(&k).Decode(p, t); err != nil {
			return err
		}
		if err := PV(&v).Decode(p, t); err != nil {
			return err
		}
		out[k] = v
	}
	*m = out
	return p.ReadMapEnd(t)
}
