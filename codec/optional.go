package codec

import (
	jsoniter "github.com/json-iterator/go"

	"mini-thrift/protocol"
	"mini-thrift/transport"
)

// Optional is a value that may be absent. An absent Optional field is left
// out of its record entirely; decoding a present field marks it set.
type Optional[T any, PT Ptr[T]] struct {
	value   T
	present bool
}

// Some returns a present Optional holding v.
func Some[T any, PT Ptr[T]](v T) Optional[T, PT] {
	return Optional[T, PT]{value: v, present: true}
}

func (o Optional[T, PT]) IsSet() bool { return o.present }

// Get returns the value and whether it is present.
func (o Optional[T, PT]) Get() (T, bool) { return o.value, o.present }

// GetOr returns the value, or def when absent.
func (o Optional[T, PT]) GetOr(def T) T {
	if !o.present {
		return def
	}
	return o.value
}

func (o *Optional[T, PT]) Set(v T) {
	o.value = v
	o.present = true
}

func (o *Optional[T, PT]) Clear() {
	var zero T
	o.value = zero
	o.present = false
}

func (o Optional[T, PT]) WireType() protocol.Type { return WireTypeOf[T, PT]() }

func (o Optional[T, PT]) Encode(p protocol.Protocol, t transport.Transport) error {
	if !o.present {
		return nil
	}
	return PT(&o.value).Encode(p, t)
}

func (o *Optional[T, PT]) Decode(p protocol.Protocol, t transport.Transport) error {
	if err := PT(&o.value).Decode(p, t); err != nil {
		return err
	}
	o.present = true
	return nil
}

// MarshalJSON renders an absent value as null.
func (o Optional[T, PT]) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(o.value)
}
