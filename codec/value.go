// Package codec converts typed Go values to and from protocol operations.
//
// Every encodable type implements Value through a pointer: primitives,
// Optional, List, Set, Map and records. Containers are generic over the
// element type and its pointer, so a list of sets of i32 is written as
//
//	codec.List[codec.Set[codec.I32, *codec.I32], *codec.Set[codec.I32, *codec.I32]]
//
// and packages usually declare aliases for the shapes they use. The wire
// type of a value is a static property of its Go type.
package codec

import (
	"mini-thrift/protocol"
	"mini-thrift/transport"
)

// Value is the capability shared by everything that crosses the wire.
// Decode overwrites the receiver in place.
type Value interface {
	WireType() protocol.Type
	Encode(p protocol.Protocol, t transport.Transport) error
	Decode(p protocol.Protocol, t transport.Transport) error
}

// Ptr constrains PT to be *T and to implement Value. Generic containers use
// it to decode elements in place.
type Ptr[T any] interface {
	*T
	Value
}

// Presence is implemented by values that may be absent from a record.
// Absent values are not written.
type Presence interface {
	IsSet() bool
}

// maxPrealloc bounds the capacity reserved from a size read off the wire.
// Containers grow past it only as elements actually decode.
const maxPrealloc = 1024

func sizeHint(n int) int { return min(n, maxPrealloc) }

// WireTypeOf returns the wire type of T.
func WireTypeOf[T any, PT Ptr[T]]() protocol.Type {
	var v T
	return PT(&v).WireType()
}
