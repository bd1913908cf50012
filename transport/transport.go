// Package transport provides the ordered byte streams that protocols read
// from and write to.
//
// A Transport is an io.Reader and io.Writer with an explicit Flush: writes may
// be held back by a decorating layer until the caller has finished a whole
// message. Layers stack transparently:
//
//	Socket (net.Conn) ──▶ Buffered (bufio) ──▶ Framed (length-prefixed frames)
//
// Acceptors hand server-side transports to the dispatch loop; see Listen and
// Layered.
package transport

import (
	"bytes"
	"io"
	"time"
)

// Transport is a blocking, ordered byte stream.
type Transport interface {
	io.Reader
	io.Writer
	// Flush pushes any buffered writes to the underlying stream.
	Flush() error
}

// Deadliner is implemented by transports that can bound blocking I/O.
type Deadliner interface {
	SetDeadline(t time.Time) error
}

// SetDeadline applies d to t if t, or a transport it wraps, supports
// deadlines. It reports whether the deadline was applied.
func SetDeadline(t Transport, d time.Time) bool {
	for t != nil {
		if dl, ok := t.(Deadliner); ok {
			return dl.SetDeadline(d) == nil
		}
		u, ok := t.(interface{ Unwrap() Transport })
		if !ok {
			return false
		}
		t = u.Unwrap()
	}
	return false
}

// ReadAhead returns how many bytes t and the transports it wraps have read
// from the stream but not yet handed to the caller.
func ReadAhead(t Transport) int {
	n := 0
	for t != nil {
		if b, ok := t.(interface{ Buffered() int }); ok {
			n += b.Buffered()
		}
		u, ok := t.(interface{ Unwrap() Transport })
		if !ok {
			break
		}
		t = u.Unwrap()
	}
	return n
}

// Close closes t if it implements io.Closer.
func Close(t Transport) error {
	if c, ok := t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Memory is an in-memory transport: writes append to the buffer and reads
// consume from its front. It is mostly useful in tests.
type Memory struct {
	bytes.Buffer
}

// NewMemory returns a Memory transport holding a copy of b.
func NewMemory(b []byte) *Memory {
	m := &Memory{}
	m.Write(b)
	return m
}

// Flush is a no-op.
func (m *Memory) Flush() error { return nil }
