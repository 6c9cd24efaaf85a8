package gateway

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/securechannel"
	"github.com/backkem/dacgate/pkg/session"
	"github.com/backkem/dacgate/pkg/transport"
	"github.com/backkem/dacgate/pkg/trust"
	"github.com/pion/logging"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Identity is the client's long-term key pair. Required unless
	// EphemeralIdentity is set.
	Identity *crypto.KeyPair

	// EphemeralIdentity generates a throwaway identity. The gateway can
	// only accept it with a permissive verifier.
	EphemeralIdentity bool

	// Suite selects the primitives. Must match the gateway.
	Suite *crypto.Suite

	// Verifier decides whether the gateway identity is acceptable.
	// Required.
	Verifier trust.Verifier

	// HandshakeTimeout bounds the handshake.
	// Default: securechannel.DefaultHandshakeTimeout
	HandshakeTimeout time.Duration

	// RequestTimeout bounds each Request when the context has no earlier
	// deadline. Zero means no limit.
	RequestTimeout time.Duration

	// CounterPolicy and SequenceLimit are passed to the session.
	CounterPolicy session.CounterPolicy
	SequenceLimit uint64

	// Dial configures the TCP connection made by Dial.
	Dial transport.DialConfig

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Client is an authenticated connection to a gateway. Requests are
// serialized.
type Client struct {
	conn net.Conn
	sess *securechannel.Session

	mu     sync.Mutex
	closed bool
}

// Dial connects to the gateway at addr and authenticates.
func Dial(ctx context.Context, addr string, config ClientConfig) (*Client, error) {
	if config.Verifier == nil {
		return nil, ErrNoVerifier
	}
	conn, err := transport.Dial(ctx, addr, config.Dial)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, conn, config)
}

// NewClient authenticates over an established connection. The client owns
// conn and closes it on failure.
func NewClient(ctx context.Context, conn net.Conn, config ClientConfig) (*Client, error) {
	if config.Verifier == nil {
		conn.Close()
		return nil, ErrNoVerifier
	}
	sess, err := securechannel.New(securechannel.Config{
		Role:              session.RoleClient,
		Transport:         conn,
		Verifier:          config.Verifier,
		Identity:          config.Identity,
		EphemeralIdentity: config.EphemeralIdentity,
		Suite:             config.Suite,
		HandshakeTimeout:  config.HandshakeTimeout,
		IOTimeout:         config.RequestTimeout,
		CounterPolicy:     config.CounterPolicy,
		SequenceLimit:     config.SequenceLimit,
		LoggerFactory:     config.LoggerFactory,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := sess.Authenticate(ctx); err != nil {
		sess.Release()
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, sess: sess}, nil
}

// Request sends one request frame and waits for the response frame.
// Any error ends the session.
func (c *Client) Request(ctx context.Context, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if err := c.sess.Send(ctx, payload); err != nil {
		return nil, err
	}
	return c.sess.Receive(ctx)
}

// Command sends a text command line and decodes the decision.
func (c *Client) Command(ctx context.Context, line string) (Decision, error) {
	resp, err := c.Request(ctx, []byte(line))
	if err != nil {
		return 0, err
	}
	return ParseDecision(resp)
}

// PeerFingerprint returns the gateway identity fingerprint.
func (c *Client) PeerFingerprint() string {
	return c.sess.PeerFingerprint()
}

// Binding returns the session binding value.
func (c *Client) Binding() []byte {
	return c.sess.Binding()
}

// RemoteAddr returns the gateway address.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close releases the session keys and closes the connection.
func (c *Client) Close() error {
	c.sess.Release()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
