package transport

import (
	"net"

	"mini-thrift/rpcerr"
)

// Acceptor hands out server-side transports, one per accepted peer.
type Acceptor interface {
	Accept() (Transport, error)
	Close() error
	Addr() net.Addr
}

// Listener accepts TCP (or any stream network) connections as Sockets.
type Listener struct {
	ln net.Listener
}

// Listen announces on the local network address.
func Listen(network, address string) (*Listener, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, rpcerr.Transport(err)
	}
	return &Listener{ln: ln}, nil
}

// NewListener wraps an existing net.Listener.
func NewListener(ln net.Listener) *Listener {
	return &Listener{ln: ln}
}

func (l *Listener) Accept() (Transport, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return NewSocket(conn), nil
}

func (l *Listener) Close() error   { return l.ln.Close() }
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Layer turns a raw transport into a decorated one.
type Layer func(Transport) Transport

// BufferedLayer decorates with NewBuffered.
func BufferedLayer(size int) Layer {
	return func(t Transport) Transport { return NewBuffered(t, size) }
}

// FramedLayer decorates with NewFramed.
func FramedLayer(maxFrame uint32) Layer {
	return func(t Transport) Transport { return NewFramed(t, maxFrame) }
}

// Layered returns an Acceptor that applies wrap to every accepted transport.
func Layered(a Acceptor, wrap Layer) Acceptor {
	return &layered{Acceptor: a, wrap: wrap}
}

type layered struct {
	Acceptor
	wrap Layer
}

func (l *layered) Accept() (Transport, error) {
	t, err := l.Acceptor.Accept()
	if err != nil {
		return nil, err
	}
	return l.wrap(t), nil
}
