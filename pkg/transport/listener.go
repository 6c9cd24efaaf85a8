package transport

import (
	"context"
	"net"
	"sync"
)

// PipeListener is an in-memory net.Listener. Each Dial creates a fresh Pipe
// whose endpoint 1 is handed to Accept and endpoint 0 to the dialer.
type PipeListener struct {
	name   string
	config PipeConfig

	mu          sync.Mutex
	pipes       []*Pipe
	interceptor Interceptor

	conns     chan net.Conn
	done      chan struct{}
	closeOnce sync.Once
}

// NewPipeListener creates a listener named name using the default pipe
// configuration.
func NewPipeListener(name string) *PipeListener {
	return &PipeListener{
		name:   name,
		config: DefaultPipeConfig(),
		conns:  make(chan net.Conn),
		done:   make(chan struct{}),
	}
}

// SetInterceptor installs an interceptor on every pipe dialed afterwards.
func (l *PipeListener) SetInterceptor(i Interceptor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interceptor = i
}

// Dial connects to the listener. It blocks until Accept takes the
// connection, ctx ends, or the listener closes.
func (l *PipeListener) Dial(ctx context.Context) (net.Conn, error) {
	p := NewPipeWithConfig(l.config)
	p.ends[0].local.Name = l.name
	p.ends[0].peer.Name = l.name
	p.ends[1].local.Name = l.name
	p.ends[1].peer.Name = l.name

	l.mu.Lock()
	p.SetInterceptor(l.interceptor)
	l.mu.Unlock()

	select {
	case l.conns <- p.Conn1():
	case <-ctx.Done():
		_ = p.Close()
		return nil, ctx.Err()
	case <-l.done:
		_ = p.Close()
		return nil, ErrClosed
	}

	l.mu.Lock()
	l.pipes = append(l.pipes, p)
	l.mu.Unlock()
	return p.Conn0(), nil
}

// Accept waits for the next dialed connection.
func (l *PipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Close stops accepting and tears down every pipe created by Dial.
func (l *PipeListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})

	l.mu.Lock()
	pipes := l.pipes
	l.pipes = nil
	l.mu.Unlock()

	for _, p := range pipes {
		_ = p.Close()
	}
	return nil
}

// Addr returns the listener address.
func (l *PipeListener) Addr() net.Addr {
	return PipeAddr{ID: 1, Name: l.name}
}

// Verify PipeListener implements net.Listener.
var _ net.Listener = (*PipeListener)(nil)
