package service

import (
	"context"
	"reflect"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// methodType is a schema method bound to a Go method.
type methodType struct {
	schema  *MethodSchema
	fn      reflect.Value
	withCtx bool
}

// GoName maps a wire method name to the Go method that implements it:
// "getStruct" and "get_struct" both become "GetStruct".
func GoName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// bindMethods finds, for every method in schema, the exported method of rcvr
// with the matching Go name and checks its signature:
//
//	func([ctx context.Context,] a1 A1, ..., an An) (R, error)
//	func([ctx context.Context,] a1 A1, ..., an An) error   // void or one-way
func bindMethods(schema *Schema, rcvr any) (map[string]*methodType, error) {
	val := reflect.ValueOf(rcvr)
	if !val.IsValid() {
		return nil, errors.Newf("service %s: nil implementation", schema.Name)
	}
	methods := make(map[string]*methodType, len(schema.Methods))
	for _, ms := range schema.Methods {
		goName := GoName(ms.Name)
		fn := val.MethodByName(goName)
		if !fn.IsValid() {
			return nil, errors.Newf("service %s: %T has no method %s for %q", schema.Name, rcvr, goName, ms.Name)
		}
		mt, err := checkSignature(ms, fn)
		if err != nil {
			return nil, errors.Wrapf(err, "service %s: %T.%s", schema.Name, rcvr, goName)
		}
		methods[ms.Name] = mt
	}
	return methods, nil
}

func checkSignature(ms *MethodSchema, fn reflect.Value) (*methodType, error) {
	ft := fn.Type()
	mt := &methodType{schema: ms, fn: fn}

	in := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		mt.withCtx = true
		in = 1
	}
	if got, want := ft.NumIn()-in, len(ms.Args); got != want {
		return nil, errors.Newf("takes %d arguments, schema declares %d", got, want)
	}
	for i, a := range ms.Args {
		if ft.In(in+i) != a.typ {
			return nil, errors.Newf("argument %s is %s, schema declares %s", a.Name, ft.In(in+i), a.typ)
		}
	}

	void := ms.OneWay || ms.Result.IsVoid()
	switch {
	case void && ft.NumOut() == 1 && ft.Out(0) == errorType:
	case !void && ft.NumOut() == 2 && ft.Out(0) == ms.Result.typ && ft.Out(1) == errorType:
	case void:
		return nil, errors.New("must return only error")
	default:
		return nil, errors.Newf("must return (%s, error)", ms.Result.typ)
	}
	return mt, nil
}

// call invokes the method by reflection. args holds pointers to the argument
// values; the result, if any, is stored through result.
func (m *methodType) call(ctx context.Context, args []reflect.Value, result reflect.Value) error {
	in := make([]reflect.Value, 0, len(args)+1)
	if m.withCtx {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}
	for _, a := range args {
		in = append(in, a.Elem())
	}
	out := m.fn.Call(in)
	errv := out[len(out)-1]
	if !errv.IsNil() {
		return errv.Interface().(error)
	}
	if len(out) == 2 && result.IsValid() {
		result.Elem().Set(out[0])
	}
	return nil
}
