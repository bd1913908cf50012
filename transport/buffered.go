package transport

import (
	"bufio"
	"io"
)

const defaultBufferSize = 4096

// Buffered decorates a transport with read and write buffers. Writes reach
// the inner transport only on Flush or when the buffer fills.
type Buffered struct {
	inner Transport
	r     *bufio.Reader
	w     *bufio.Writer
}

// NewBuffered wraps inner with buffers of the given size; size <= 0 selects
// a 4 KiB default.
func NewBuffered(inner Transport, size int) *Buffered {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Buffered{
		inner: inner,
		r:     bufio.NewReaderSize(inner, size),
		w:     bufio.NewWriterSize(inner, size),
	}
}

func (b *Buffered) Read(p []byte) (int, error)  { return b.r.Read(p) }
func (b *Buffered) Write(p []byte) (int, error) { return b.w.Write(p) }

// Flush drains the write buffer and flushes the inner transport.
func (b *Buffered) Flush() error {
	if err := b.w.Flush(); err != nil {
		return err
	}
	return b.inner.Flush()
}

// Close closes the inner transport if it is closable. Unflushed writes are
// dropped.
func (b *Buffered) Close() error {
	if c, ok := b.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Buffered returns the number of bytes read ahead into the read buffer.
func (b *Buffered) Buffered() int { return b.r.Buffered() }

// Unwrap returns the inner transport.
func (b *Buffered) Unwrap() Transport { return b.inner }
