package codec

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"

	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/transport"
)

// Set is an unordered collection of distinct T. Iteration order, and so the
// order elements are written in, is unspecified.
type Set[T comparable, PT Ptr[T]] map[T]struct{}

// NewSet returns a set holding elems.
func NewSet[T comparable, PT Ptr[T]](elems ...T) Set[T, PT] {
	s := make(Set[T, PT], len(elems))
	for _, e := range elems {
		s[e] = struct{}{}
	}
	return s
}

func (s Set[T, PT]) Contains(v T) bool {
	_, ok := s[v]
	return ok
}

func (Set[T, PT]) WireType() protocol.Type { return protocol.Set }

func (s Set[T, PT]) Encode(p protocol.Protocol, t transport.Transport) error {
	if err := p.WriteSetBegin(t, WireTypeOf[T, PT](), len(s)); err != nil {
		return err
	}
	for v := range s {
		if err := PT(&v).Encode(p, t); err != nil {
			return err
		}
	}
	return p.WriteSetEnd(t)
}

// Decode replaces s with the decoded elements; duplicates collapse.
func (s *Set[T, PT]) Decode(p protocol.Protocol, t transport.Transport) error {
	et, n, err := p.ReadSetBegin(t)
	if err != nil {
		return err
	}
	if want := WireTypeOf[T, PT](); et != want {
		return rpcerr.Violationf("set of %s, want %s", et, want)
	}
	out := make(Set[T, PT], sizeHint(n))
	for i := 0; i < n; i++ {
		var v T
		if err := PT(&v).Decode(p, t); err != nil {
			return err
		}
		out[v] = struct{}{}
	}
	*s = out
	return p.ReadSetEnd(t)
}

// MarshalJSON renders the set as an array.
func (s Set[T, PT]) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(lo.Keys(s))
}
