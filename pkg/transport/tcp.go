package transport

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pion/logging"
)

// DefaultPort is the gateway's well-known TCP port.
const DefaultPort = 9998

// DefaultDialTimeout bounds Dial when neither the context nor DialConfig
// sets a deadline.
const DefaultDialTimeout = 10 * time.Second

// ConnHandler serves one accepted connection. The connection is closed
// when the handler returns.
type ConnHandler func(conn net.Conn)

// TCP accepts stream connections and hands each to a ConnHandler in its own
// goroutine. Any net.Listener works, so a PipeListener can stand in for a
// socket in tests.
type TCP struct {
	listener net.Listener
	handler  ConnHandler
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	// Connection tracking
	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

// TCPConfig configures the TCP transport.
type TCPConfig struct {
	// Listener is an optional pre-existing Listener to use.
	// If nil, a new listener will be created using ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":9998").
	// Ignored if Listener is provided.
	ListenAddr string

	// Handler is called for each accepted connection.
	// Required.
	Handler ConnHandler

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewTCP creates a new TCP transport with the given configuration.
func NewTCP(config TCPConfig) (*TCP, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}

	t := &TCP{
		listener: config.Listener,
		handler:  config.Handler,
		closeCh:  make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}

	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("transport-tcp")
	}

	if t.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":" + strconv.Itoa(DefaultPort)
		}

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		t.listener = listener
	}

	return t, nil
}

// Start begins accepting connections.
func (t *TCP) Start() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Infof("listening on %s", t.listener.Addr())
	}

	t.wg.Add(1)
	go t.acceptLoop()

	return nil
}

// Stop closes the listener and every open connection, then waits for the
// handlers to return.
func (t *TCP) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Info("stopping")
	}

	close(t.closeCh)
	t.listener.Close()

	t.connsMu.Lock()
	for c := range t.conns {
		c.Close()
	}
	t.connsMu.Unlock()

	t.wg.Wait()
	return nil
}

// Addr returns the address the transport is listening on.
func (t *TCP) Addr() net.Addr {
	return t.listener.Addr()
}

// ConnCount returns the number of connections currently being served.
func (t *TCP) ConnCount() int {
	t.connsMu.Lock()
	defer t.connsMu.Unlock()
	return len(t.conns)
}

func (t *TCP) acceptLoop() {
	defer t.wg.Done()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
			}
			if t.log != nil {
				t.log.Warnf("accept: %v", err)
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}

		t.connsMu.Lock()
		select {
		case <-t.closeCh:
			t.connsMu.Unlock()
			conn.Close()
			return
		default:
		}
		t.conns[conn] = struct{}{}
		t.wg.Add(1)
		t.connsMu.Unlock()

		go t.handleConn(conn)
	}
}

func (t *TCP) handleConn(conn net.Conn) {
	defer t.wg.Done()
	defer func() {
		conn.Close()
		t.connsMu.Lock()
		delete(t.conns, conn)
		t.connsMu.Unlock()
	}()

	if t.log != nil {
		t.log.Debugf("connection from %s", conn.RemoteAddr())
	}
	t.handler(conn)
}

// DialConfig configures Dial.
type DialConfig struct {
	// Timeout bounds connection establishment.
	// Default: DefaultDialTimeout
	Timeout time.Duration

	// KeepAlive is the TCP keep-alive period. Zero uses the system
	// default; negative disables keep-alives.
	KeepAlive time.Duration
}

// Dial opens a TCP connection to addr. A missing port defaults to
// DefaultPort.
func Dial(ctx context.Context, addr string, config DialConfig) (net.Conn, error) {
	if addr == "" {
		return nil, ErrInvalidAddress
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout, KeepAlive: config.KeepAlive}
	return d.DialContext(ctx, "tcp", addr)
}
