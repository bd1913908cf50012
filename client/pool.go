package client

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// errPoolClosed is returned by Get after Close.
var errPoolClosed = errors.New("stub pool closed")

// stubPool keeps reusable stubs for a single address. A stub is used by one
// caller at a time: Get borrows it, Put returns it.
//
// stubs is the FIFO queue of idle stubs; slots holds one token per stub
// that exists, idle or borrowed.
type stubPool struct {
	addr  string
	stubs chan *Stub
	slots chan struct{}
	dial  func(ctx context.Context) (*Stub, error)

	mu     sync.Mutex
	closed bool
}

func newStubPool(addr string, maxStubs int, dial func(ctx context.Context) (*Stub, error)) *stubPool {
	return &stubPool{
		addr:  addr,
		stubs: make(chan *Stub, maxStubs),
		slots: make(chan struct{}, maxStubs),
		dial:  dial,
	}
}

// Get borrows a stub.
// Strategy:
//  1. Take an idle stub if there is one
//  2. Otherwise dial a new one if under the limit
//  3. Otherwise block until a stub is returned, a slot frees up, or ctx is
//     done
func (p *stubPool) Get(ctx context.Context) (*Stub, error) {
	if p.isClosed() {
		return nil, errPoolClosed
	}
	select {
	case s, ok := <-p.stubs:
		return p.borrowed(s, ok)
	default:
	}

	select {
	case s, ok := <-p.stubs:
		return p.borrowed(s, ok)
	case p.slots <- struct{}{}:
		return p.open(ctx)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *stubPool) borrowed(s *Stub, ok bool) (*Stub, error) {
	if !ok {
		return nil, errPoolClosed
	}
	return s, nil
}

// open dials a stub for a slot already taken.
func (p *stubPool) open(ctx context.Context) (*Stub, error) {
	s, err := p.dial(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	if p.isClosed() {
		_ = s.Close()
		<-p.slots
		return nil, errPoolClosed
	}
	return s, nil
}

// Put returns a stub to the pool. A broken stub is closed and its slot
// freed.
func (p *stubPool) Put(s *Stub) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Err() != nil || p.closed {
		_ = s.Close()
		<-p.slots
		return
	}
	p.stubs <- s
}

// Close shuts down the pool and closes idle stubs. Borrowed stubs are
// closed when they are returned.
func (p *stubPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.stubs)
	var errs error
	for s := range p.stubs {
		errs = errors.CombineErrors(errs, s.Close())
		<-p.slots
	}
	return errs
}

func (p *stubPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
