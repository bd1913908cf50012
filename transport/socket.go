package transport

import (
	"context"
	"net"
	"time"

	"mini-thrift/rpcerr"
)

// Socket adapts a net.Conn to Transport. Writes go straight to the
// connection, so Flush has nothing to do.
type Socket struct {
	conn net.Conn
}

// NewSocket wraps conn.
func NewSocket(conn net.Conn) *Socket {
	return &Socket{conn: conn}
}

// Dial connects to address and returns the connection as a Socket.
func Dial(ctx context.Context, network, address string) (*Socket, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, rpcerr.Transport(err)
	}
	return NewSocket(conn), nil
}

func (s *Socket) Read(p []byte) (int, error)  { return s.conn.Read(p) }
func (s *Socket) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *Socket) Flush() error                { return nil }
func (s *Socket) Close() error                { return s.conn.Close() }

// SetDeadline sets the read and write deadline of the connection.
func (s *Socket) SetDeadline(t time.Time) error { return s.conn.SetDeadline(t) }

// Conn returns the underlying connection.
func (s *Socket) Conn() net.Conn { return s.conn }

// RemoteAddr returns the peer address.
func (s *Socket) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
