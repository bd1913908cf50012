// Package shared is a small example schema exercising every value kind:
// nested containers, maps, optional fields and a recursive record, served
// by SharedService.
package shared

import (
	"mini-thrift/codec"
	"mini-thrift/protocol"
	"mini-thrift/transport"
)

type (
	I32Set     = codec.Set[codec.I32, *codec.I32]
	Nested1    = codec.List[I32Set, *I32Set]
	Nested2    = codec.List[Nested1, *Nested1]
	Nested3    = codec.List[Nested2, *Nested2]
	StringList = codec.List[codec.String, *codec.String]
	IndexMap   = codec.Map[codec.I32, StringList, *codec.I32, *StringList]
)

type Simple struct {
	Key codec.String `json:"key"`
}

var simpleSchema = codec.NewRecordSchema("Simple", codec.Field[codec.String]("key", 16))

func (s *Simple) RecordSchema() *codec.RecordSchema { return simpleSchema }
func (s *Simple) FieldValue(int) codec.Value        { return &s.Key }
func (s *Simple) WireType() protocol.Type           { return protocol.Struct }
func (s *Simple) Encode(p protocol.Protocol, t transport.Transport) error {
	return codec.EncodeRecord(p, t, s)
}
func (s *Simple) Decode(p protocol.Protocol, t transport.Transport) error {
	return codec.DecodeRecord(p, t, s)
}

// DeeplyNested holds a list<list<list<set<i32>>>>.
type DeeplyNested struct {
	Nested Nested3 `json:"nested"`
}

var deeplyNestedSchema = codec.NewRecordSchema("DeeplyNested", codec.Field[Nested3]("nested", 6))

func (d *DeeplyNested) RecordSchema() *codec.RecordSchema { return deeplyNestedSchema }
func (d *DeeplyNested) FieldValue(int) codec.Value        { return &d.Nested }
func (d *DeeplyNested) WireType() protocol.Type           { return protocol.Struct }
func (d *DeeplyNested) Encode(p protocol.Protocol, t transport.Transport) error {
	return codec.EncodeRecord(p, t, d)
}
func (d *DeeplyNested) Decode(p protocol.Protocol, t transport.Transport) error {
	return codec.DecodeRecord(p, t, d)
}

type ReferencesOther struct {
	Other   DeeplyNested `json:"other"`
	Another Simple       `json:"another"`
	Map     IndexMap     `json:"map"`
}

var referencesOtherSchema = codec.NewRecordSchema("ReferencesOther",
	codec.Field[DeeplyNested]("other", 2),
	codec.Field[Simple]("another", 3),
	codec.Field[IndexMap]("map", 4),
)

func (r *ReferencesOther) RecordSchema() *codec.RecordSchema { return referencesOtherSchema }
func (r *ReferencesOther) FieldValue(i int) codec.Value {
	switch i {
	case 0:
		return &r.Other
	case 1:
		return &r.Another
	default:
		return &r.Map
	}
}
func (r *ReferencesOther) WireType() protocol.Type { return protocol.Struct }
func (r *ReferencesOther) Encode(p protocol.Protocol, t transport.Transport) error {
	return codec.EncodeRecord(p, t, r)
}
func (r *ReferencesOther) Decode(p protocol.Protocol, t transport.Transport) error {
	return codec.DecodeRecord(p, t, r)
}

// Node is a labelled tree.
type Node struct {
	Value    codec.I32                                   `json:"value"`
	Label    codec.Optional[codec.String, *codec.String] `json:"label"`
	Children codec.List[Node, *Node]                     `json:"children"`
}

var nodeSchema = codec.NewRecordSchema("Node",
	codec.Field[codec.I32]("value", 1),
	codec.Field[codec.Optional[codec.String, *codec.String]]("label", 2),
	codec.Field[codec.List[Node, *Node]]("children", 3),
)

func (n *Node) RecordSchema() *codec.RecordSchema { return nodeSchema }
func (n *Node) FieldValue(i int) codec.Value {
	switch i {
	case 0:
		return &n.Value
	case 1:
		return &n.Label
	default:
		return &n.Children
	}
}
func (n *Node) WireType() protocol.Type { return protocol.Struct }
func (n *Node) Encode(p protocol.Protocol, t transport.Transport) error {
	return codec.EncodeRecord(p, t, n)
}
func (n *Node) Decode(p protocol.Protocol, t transport.Transport) error {
	return codec.DecodeRecord(p, t, n)
}

// Depth is the number of edges on the longest path down from n.
func (n *Node) Depth() int {
	d := 0
	for i := range n.Children {
		d = max(d, n.Children[i].Depth()+1)
	}
	return d
}

// Chain returns a path of n+1 nodes valued n down to 0.
func Chain(n int) Node {
	root := Node{Value: codec.I32(n), Children: codec.List[Node, *Node]{}}
	if n > 0 {
		root.Children = codec.List[Node, *Node]{Chain(n - 1)}
	}
	return root
}
