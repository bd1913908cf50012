// Package service describes RPC services and dispatches incoming calls to a
// Go implementation.
//
// A Schema lists the methods of a service. Each MethodSchema derives two
// records: <name>_args, holding one field per argument under the declared
// id, and <name>_result, holding the return value as field "success" with id
// 0. A Processor binds a Schema to the methods of a Go value by reflection.
package service

import (
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"mini-thrift/codec"
	"mini-thrift/protocol"
)

// ArgSchema is one argument of a method.
type ArgSchema struct {
	codec.FieldSchema
	typ reflect.Type
}

// Arg declares an argument of type T.
func Arg[T any, PT codec.Ptr[T]](name string, id int16) ArgSchema {
	return ArgSchema{
		FieldSchema: codec.Field[T, PT](name, id),
		typ:         reflect.TypeOf((*T)(nil)).Elem(),
	}
}

// GoType returns the Go type of the argument value.
func (a ArgSchema) GoType() reflect.Type { return a.typ }

// ResultSchema is the return type of a method. The zero value means the
// method returns nothing but an error.
type ResultSchema struct {
	Type protocol.Type
	typ  reflect.Type
}

// Returns declares a result of type T.
func Returns[T any, PT codec.Ptr[T]]() ResultSchema {
	return ResultSchema{
		Type: codec.WireTypeOf[T, PT](),
		typ:  reflect.TypeOf((*T)(nil)).Elem(),
	}
}

// Void declares a method without a return value.
func Void() ResultSchema { return ResultSchema{} }

// IsVoid reports whether the method returns no value.
func (r ResultSchema) IsVoid() bool { return r.typ == nil }

// GoType returns the Go type of the result, or nil for void.
func (r ResultSchema) GoType() reflect.Type { return r.typ }

// MethodSchema describes one method.
type MethodSchema struct {
	Name   string
	Args   []ArgSchema
	Result ResultSchema
	OneWay bool

	args   *codec.RecordSchema
	result *codec.RecordSchema
}

// NewMethod declares a method that is answered with a reply.
func NewMethod(name string, result ResultSchema, args ...ArgSchema) *MethodSchema {
	return newMethod(name, result, false, args)
}

// NewOneWay declares a method that gets no reply.
func NewOneWay(name string, args ...ArgSchema) *MethodSchema {
	return newMethod(name, Void(), true, args)
}

func newMethod(name string, result ResultSchema, oneWay bool, args []ArgSchema) *MethodSchema {
	m := &MethodSchema{Name: name, Args: args, Result: result, OneWay: oneWay}
	m.args = codec.NewRecordSchema(name+"_args", lo.Map(args, func(a ArgSchema, _ int) codec.FieldSchema {
		return a.FieldSchema
	})...)
	if result.IsVoid() {
		m.result = codec.NewRecordSchema(name + "_result")
	} else {
		m.result = codec.NewRecordSchema(name+"_result", codec.FieldSchema{
			Name: "success",
			ID:   0,
			Type: result.Type,
		})
	}
	return m
}

func (m *MethodSchema) ArgsSchema() *codec.RecordSchema   { return m.args }
func (m *MethodSchema) ResultSchema() *codec.RecordSchema { return m.result }

// NewArgs returns an args record holding fresh zero values.
func (m *MethodSchema) NewArgs() *codec.DynamicRecord {
	values := make([]codec.Value, len(m.Args))
	for i, a := range m.Args {
		values[i] = reflect.New(a.typ).Interface().(codec.Value)
	}
	return codec.NewDynamicRecord(m.args, values...)
}

// ArgsRecord wraps caller-supplied argument values, in declaration order.
// Each value must point to the declared Go type of its argument.
func (m *MethodSchema) ArgsRecord(values ...codec.Value) (*codec.DynamicRecord, error) {
	if len(values) != len(m.Args) {
		return nil, errors.Newf("%s takes %d arguments, got %d", m.Name, len(m.Args), len(values))
	}
	for i, v := range values {
		a := m.Args[i]
		if want := reflect.PointerTo(a.typ); reflect.TypeOf(v) != want {
			return nil, errors.Newf("%s argument %s must be %s, got %T", m.Name, a.Name, want, v)
		}
	}
	return codec.NewDynamicRecord(m.args, values...), nil
}

// NewResult returns a result record holding a fresh zero value, and that
// value. Both are nil for a one-way method.
func (m *MethodSchema) NewResult() (*codec.DynamicRecord, codec.Value) {
	if m.OneWay {
		return nil, nil
	}
	if m.Result.IsVoid() {
		return codec.NewDynamicRecord(m.result), nil
	}
	v := reflect.New(m.Result.typ).Interface().(codec.Value)
	return codec.NewDynamicRecord(m.result, v), v
}

// CheckResult reports whether v can receive the result of m: it must point
// to the declared result type. v is not inspected for void and one-way
// methods.
func (m *MethodSchema) CheckResult(v codec.Value) error {
	if m.OneWay || m.Result.IsVoid() {
		return nil
	}
	if want := reflect.PointerTo(m.Result.typ); reflect.TypeOf(v) != want {
		return errors.Newf("%s result must be %s, got %T", m.Name, want, v)
	}
	return nil
}

// ResultRecord wraps v as the result of m. v is ignored for void methods.
func (m *MethodSchema) ResultRecord(v codec.Value) *codec.DynamicRecord {
	if m.Result.IsVoid() {
		return codec.NewDynamicRecord(m.result)
	}
	return codec.NewDynamicRecord(m.result, v)
}

// Schema is the set of methods a service offers.
type Schema struct {
	Name    string
	Methods []*MethodSchema

	byName map[string]*MethodSchema
}

// NewSchema declares a service. It panics if two methods share a name.
func NewSchema(name string, methods ...*MethodSchema) *Schema {
	s := &Schema{Name: name, Methods: methods, byName: make(map[string]*MethodSchema, len(methods))}
	for _, m := range methods {
		if _, dup := s.byName[m.Name]; dup {
			panic(fmt.Sprintf("service: %s declares method %q twice", name, m.Name))
		}
		s.byName[m.Name] = m
	}
	return s
}

// Method looks a method up by its wire name.
func (s *Schema) Method(name string) (*MethodSchema, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// MethodNames returns the wire names of all methods in declaration order.
func (s *Schema) MethodNames() []string {
	return lo.Map(s.Methods, func(m *MethodSchema, _ int) string { return m.Name })
}
