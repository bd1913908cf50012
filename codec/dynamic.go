package codec

import (
	"mini-thrift/protocol"
	"mini-thrift/transport"
)

// DynamicRecord is a record whose fields are supplied at runtime, such as
// the argument and result records of a method call.
type DynamicRecord struct {
	schema *RecordSchema
	values []Value
}

// NewDynamicRecord pairs schema with one value per field, in schema order.
// It panics if the counts differ.
func NewDynamicRecord(schema *RecordSchema, values ...Value) *DynamicRecord {
	if len(values) != len(schema.Fields) {
		panic("codec: record " + schema.Name + ": value count does not match field count")
	}
	return &DynamicRecord{schema: schema, values: values}
}

func (r *DynamicRecord) RecordSchema() *RecordSchema { return r.schema }
func (r *DynamicRecord) FieldValue(i int) Value      { return r.values[i] }

// Values returns the field values in schema order.
func (r *DynamicRecord) Values() []Value { return r.values }

func (r *DynamicRecord) WireType() protocol.Type { return protocol.Struct }

func (r *DynamicRecord) Encode(p protocol.Protocol, t transport.Transport) error {
	return EncodeRecord(p, t, r)
}

func (r *DynamicRecord) Decode(p protocol.Protocol, t transport.Transport) error {
	return DecodeRecord(p, t, r)
}
