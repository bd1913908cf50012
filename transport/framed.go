package transport

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"mini-thrift/rpcerr"
)

// Framed solves stream reassembly for protocols whose messages carry no
// overall length: every Flush emits one frame, and reads are served from the
// current frame, pulling the next one when it is exhausted.
//
// Frame format:
//
//	0      3  4         8
//	┌──────┬──┬─────────┬───────────────┐
//	│magic │v │ bodyLen │    body ...    │
//	│ mth  │01│ uint32  │ bodyLen bytes  │
//	└──────┴──┴─────────┴───────────────┘
type Framed struct {
	inner    Transport
	maxFrame uint32
	header   [FrameHeaderSize]byte
	wbuf     bytes.Buffer
	rbuf     bytes.Reader
}

// Frame header constants. The magic number rejects peers that do not speak
// framed transport (an HTTP client on the wrong port, an unframed client).
const (
	FrameMagic0     byte   = 0x6d // 'm'
	FrameMagic1     byte   = 0x74 // 't'
	FrameMagic2     byte   = 0x68 // 'h'
	FrameVersion    byte   = 0x01
	FrameHeaderSize        = 8
	DefaultMaxFrame uint32 = 16 << 20
)

// NewFramed wraps inner. maxFrame bounds the body length accepted on read;
// zero selects DefaultMaxFrame.
func NewFramed(inner Transport, maxFrame uint32) *Framed {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrame
	}
	return &Framed{inner: inner, maxFrame: maxFrame}
}

// Write appends to the pending frame.
func (f *Framed) Write(p []byte) (int, error) {
	return f.wbuf.Write(p)
}

// Flush writes the pending bytes as one frame. Flushing with nothing
// pending only flushes the inner transport.
func (f *Framed) Flush() error {
	if f.wbuf.Len() > 0 {
		if uint32(f.wbuf.Len()) > f.maxFrame {
			n := f.wbuf.Len()
			f.wbuf.Reset()
			return rpcerr.Violationf("frame of %d bytes exceeds limit %d", n, f.maxFrame)
		}
		f.header[0], f.header[1], f.header[2] = FrameMagic0, FrameMagic1, FrameMagic2
		f.header[3] = FrameVersion
		binary.BigEndian.PutUint32(f.header[4:8], uint32(f.wbuf.Len()))
		if _, err := f.inner.Write(f.header[:]); err != nil {
			return err
		}
		_, err := f.inner.Write(f.wbuf.Bytes())
		f.wbuf.Reset()
		if err != nil {
			return err
		}
	}
	return f.inner.Flush()
}

// Read serves bytes from the current frame, reading the next frame from the
// inner transport when the current one is used up.
func (f *Framed) Read(p []byte) (int, error) {
	for f.rbuf.Len() == 0 {
		if err := f.readFrame(); err != nil {
			return 0, err
		}
	}
	return f.rbuf.Read(p)
}

func (f *Framed) readFrame() error {
	if _, err := io.ReadFull(f.inner, f.header[:]); err != nil {
		return err
	}
	if f.header[0] != FrameMagic0 || f.header[1] != FrameMagic1 || f.header[2] != FrameMagic2 {
		return rpcerr.Violationf("invalid frame magic: %x", f.header[0:3])
	}
	if f.header[3] != FrameVersion {
		return rpcerr.Violationf("unsupported frame version: %d", f.header[3])
	}
	n := binary.BigEndian.Uint32(f.header[4:8])
	if n > f.maxFrame {
		return rpcerr.Violationf("frame of %d bytes exceeds limit %d", n, f.maxFrame)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(f.inner, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	f.rbuf.Reset(body)
	return nil
}

// Close closes the inner transport if it is closable.
func (f *Framed) Close() error {
	if c, ok := f.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Buffered returns the unread bytes of the current frame.
func (f *Framed) Buffered() int { return f.rbuf.Len() }

// Unwrap returns the inner transport.
func (f *Framed) Unwrap() Transport { return f.inner }
