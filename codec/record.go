package codec

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/transport"
)

// FieldSchema describes one field of a record.
type FieldSchema struct {
	Name     string
	ID       int16
	Type     protocol.Type
	Optional bool
}

// Field builds the schema of a field holding a T. The wire type comes from T
// and the field is optional when T carries presence.
func Field[T any, PT Ptr[T]](name string, id int16) FieldSchema {
	var v T
	pv := PT(&v)
	_, optional := any(pv).(Presence)
	return FieldSchema{Name: name, ID: id, Type: pv.WireType(), Optional: optional}
}

type fieldKey struct {
	typ protocol.Type
	id  int16
}

// RecordSchema is the immutable field layout of a record type.
type RecordSchema struct {
	Name   string
	Fields []FieldSchema

	index    map[fieldKey]int
	required bool
}

// NewRecordSchema builds a schema. Fields are encoded in the order given.
// It panics if two fields share an id.
func NewRecordSchema(name string, fields ...FieldSchema) *RecordSchema {
	s := &RecordSchema{
		Name:   name,
		Fields: append([]FieldSchema(nil), fields...),
		index:  make(map[fieldKey]int, len(fields)),
	}
	ids := make(map[int16]string, len(fields))
	for i, f := range s.Fields {
		if prev, dup := ids[f.ID]; dup {
			panic(fmt.Sprintf("codec: record %s: fields %q and %q share id %d", name, prev, f.Name, f.ID))
		}
		ids[f.ID] = f.Name
		s.index[fieldKey{f.Type, f.ID}] = i
		if !f.Optional {
			s.required = true
		}
	}
	return s
}

// Lookup returns the index of the field with exactly this wire type and id.
func (s *RecordSchema) Lookup(typ protocol.Type, id int16) (int, bool) {
	i, ok := s.index[fieldKey{typ, id}]
	return i, ok
}

// HasRequired reports whether any field is not optional.
func (s *RecordSchema) HasRequired() bool { return s.required }

// Record is a Value laid out by a RecordSchema. FieldValue returns a pointer
// to the i-th field, in schema order, so the engine can encode or decode it
// in place.
type Record interface {
	Value
	RecordSchema() *RecordSchema
	FieldValue(i int) Value
}

// EncodeRecord writes r as struct-begin, each present field, one field-stop
// and struct-end.
func EncodeRecord(p protocol.Protocol, t transport.Transport, r Record) error {
	s := r.RecordSchema()
	if err := p.WriteStructBegin(t, s.Name); err != nil {
		return err
	}
	for i, f := range s.Fields {
		v := r.FieldValue(i)
		if pr, ok := v.(Presence); ok && !pr.IsSet() {
			continue
		}
		if err := p.WriteFieldBegin(t, f.Name, f.Type, f.ID); err != nil {
			return err
		}
		if err := v.Encode(p, t); err != nil {
			return errors.Wrapf(err, "%s.%s", s.Name, f.Name)
		}
		if err := p.WriteFieldEnd(t); err != nil {
			return err
		}
	}
	if err := p.WriteFieldStop(t); err != nil {
		return err
	}
	return p.WriteStructEnd(t)
}

// DecodeRecord reads fields into r until the field-stop. A field is accepted
// only when both its wire type and id match the schema; anything else is
// skipped. Optional fields missing from the wire end up absent.
//
// A record that decodes no fields at all is rejected if its schema has a
// field that is not optional.
func DecodeRecord(p protocol.Protocol, t transport.Transport, r Record) error {
	s := r.RecordSchema()
	if _, err := p.ReadStructBegin(t); err != nil {
		return err
	}
	for i, f := range s.Fields {
		if !f.Optional {
			continue
		}
		if c, ok := r.FieldValue(i).(interface{ Clear() }); ok {
			c.Clear()
		}
	}

	decoded := 0
	for {
		_, typ, id, err := p.ReadFieldBegin(t)
		if err != nil {
			return err
		}
		if typ == protocol.Stop {
			if err := p.ReadFieldEnd(t); err != nil {
				return err
			}
			break
		}
		if i, ok := s.Lookup(typ, id); ok {
			if err := r.FieldValue(i).Decode(p, t); err != nil {
				return errors.Wrapf(err, "%s.%s", s.Name, s.Fields[i].Name)
			}
			decoded++
		} else if err := p.Skip(t, typ); err != nil {
			return errors.Wrapf(err, "%s: skipping field %d", s.Name, id)
		}
		if err := p.ReadFieldEnd(t); err != nil {
			return err
		}
	}
	if err := p.ReadStructEnd(t); err != nil {
		return err
	}
	if decoded == 0 && s.required {
		return rpcerr.Violationf("record %s: no fields decoded", s.Name)
	}
	return nil
}
