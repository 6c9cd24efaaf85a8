package securechannel

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/session"
	"github.com/backkem/dacgate/pkg/trust"
	"github.com/pion/logging"
)

// DefaultHandshakeTimeout bounds Authenticate when the caller's context has
// no earlier deadline.
const DefaultHandshakeTimeout = 10 * time.Second

// Config configures a Session.
type Config struct {
	// Role is the local side of the handshake. Required.
	Role session.Role

	// Transport carries handshake records and data frames. Required.
	// If it implements SetDeadline, SetReadDeadline and SetWriteDeadline
	// (as net.Conn does) context deadlines and cancellation interrupt
	// blocked I/O.
	Transport io.ReadWriter

	// Verifier decides whether the peer identity is acceptable. Required;
	// the handshake fails closed.
	Verifier trust.Verifier

	// Identity is the long-term signing key pair. It may instead be set
	// with SetIdentity before Authenticate.
	Identity *crypto.KeyPair

	// EphemeralIdentity generates a throwaway identity when none is set.
	// Only for demos and tests: the peer cannot pin such an identity.
	EphemeralIdentity bool

	// Suite selects the primitives. Defaults to the X25519/Ed25519 suite.
	Suite *crypto.Suite

	// Rand is the random source. Defaults to crypto/rand.
	Rand io.Reader

	// HandshakeTimeout bounds Authenticate. Defaults to
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// IOTimeout bounds each Send and Receive. Zero means no limit beyond
	// the caller's context.
	IOTimeout time.Duration

	// CounterPolicy and SequenceLimit control sequence counter exhaustion.
	CounterPolicy session.CounterPolicy
	SequenceLimit uint64

	// LoggerFactory for the session's logger. Optional.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Role.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, session.ErrInvalidRole)
	}
	if c.Transport == nil {
		return fmt.Errorf("%w: transport required", ErrInvalidConfig)
	}
	if c.Verifier == nil {
		return fmt.Errorf("%w: verifier required", ErrInvalidConfig)
	}
	if c.Suite != nil {
		if err := c.Suite.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if !c.CounterPolicy.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, session.ErrInvalidPolicy)
	}
	if c.HandshakeTimeout < 0 || c.IOTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.Suite == nil {
		c.Suite = crypto.NewCurve25519Suite()
	}
	if c.Rand == nil {
		c.Rand = rand.Reader
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.SequenceLimit == 0 {
		c.SequenceLimit = session.DefaultSequenceLimit
	}
}
