package protocol

import "fmt"

// Type tags the wire-level shape of a value.
type Type byte

// Wire type tags. The numeric values are the tags the binary protocol writes.
const (
	Stop   Type = 0
	Bool   Type = 2
	Byte   Type = 3
	Double Type = 4
	I16    Type = 6
	I32    Type = 8
	I64    Type = 10
	String Type = 11
	Struct Type = 12
	Map    Type = 13
	Set    Type = 14
	List   Type = 15
	Binary Type = 16
)

var typeNames = map[Type]string{
	Stop:   "stop",
	Bool:   "bool",
	Byte:   "byte",
	Double: "double",
	I16:    "i16",
	I32:    "i32",
	I64:    "i64",
	String: "string",
	Struct: "struct",
	Map:    "map",
	Set:    "set",
	List:   "list",
	Binary: "binary",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", byte(t))
}

// Valid reports whether t is one of the declared wire types.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// MessageType distinguishes the messages of a call exchange.
type MessageType byte

const (
	Call      MessageType = 1 // client → server, reply expected
	Reply     MessageType = 2 // server → client, carries the result record
	Exception MessageType = 3 // server → client, carries an application exception
	OneWay    MessageType = 4 // client → server, no reply
)

func (m MessageType) String() string {
	switch m {
	case Call:
		return "call"
	case Reply:
		return "reply"
	case Exception:
		return "exception"
	case OneWay:
		return "oneway"
	default:
		return fmt.Sprintf("message(%d)", byte(m))
	}
}

// Valid reports whether m is one of the declared message types.
func (m MessageType) Valid() bool {
	return m >= Call && m <= OneWay
}
