package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/securechannel"
	"github.com/backkem/dacgate/pkg/session"
	"github.com/backkem/dacgate/pkg/transport"
	"github.com/backkem/dacgate/pkg/trust"
	lrucache "github.com/cognusion/go-cache-lru"
	"github.com/google/uuid"
	"github.com/marusama/semaphore"
	"github.com/pion/logging"
)

// Server defaults.
const (
	DefaultMaxHandshakes    = 16
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 5 * time.Minute
	DefaultLockoutHosts     = 10000
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Listener is an optional pre-existing listener. If nil, one is
	// created on ListenAddr.
	Listener net.Listener

	// ListenAddr is the TCP address to listen on.
	// Default: ":9998"
	ListenAddr string

	// Identity is the gateway's long-term key pair. Required.
	Identity crypto.KeyPair

	// Suite selects the primitives. Defaults to the X25519/Ed25519 suite.
	Suite *crypto.Suite

	// Verifier decides which client identities may connect. Required.
	Verifier trust.Verifier

	// Handler answers requests. Required.
	Handler Handler

	// MaxSessions bounds concurrent connections.
	// Default: session.DefaultMaxSessions
	MaxSessions int

	// MaxHandshakes bounds concurrent handshakes.
	// Default: DefaultMaxHandshakes
	MaxHandshakes int

	// HandshakeTimeout bounds each handshake.
	// Default: securechannel.DefaultHandshakeTimeout
	HandshakeTimeout time.Duration

	// IdleTimeout closes a session that sends no request for this long.
	// Zero disables it.
	IdleTimeout time.Duration

	// CounterPolicy and SequenceLimit are passed to every session.
	CounterPolicy session.CounterPolicy
	SequenceLimit uint64

	// LockoutThreshold is the number of attack signals from one remote
	// host after which its connections are refused.
	// Default: DefaultLockoutThreshold
	LockoutThreshold int

	// LockoutDuration is how long strikes against a host are remembered.
	// Default: DefaultLockoutDuration
	LockoutDuration time.Duration

	// LockoutHosts bounds the number of hosts tracked for lockout.
	// Default: DefaultLockoutHosts
	LockoutHosts int

	// Metrics receives handshake and frame counts. Optional.
	Metrics *Metrics

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration.
func (c *ServerConfig) Validate() error {
	if len(c.Identity.Private) == 0 || len(c.Identity.Public) == 0 {
		return ErrNoIdentity
	}
	if c.Verifier == nil {
		return ErrNoVerifier
	}
	if c.Handler == nil {
		return ErrNoHandler
	}
	if c.Suite != nil {
		if err := c.Suite.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if c.MaxSessions < 0 || c.MaxHandshakes < 0 || c.LockoutThreshold < 0 || c.LockoutHosts < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidConfig)
	}
	if c.HandshakeTimeout < 0 || c.IdleTimeout < 0 || c.LockoutDuration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	if !c.CounterPolicy.IsValid() {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, session.ErrInvalidPolicy)
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *ServerConfig) applyDefaults() {
	if c.Suite == nil {
		c.Suite = crypto.NewCurve25519Suite()
	}
	if c.MaxHandshakes == 0 {
		c.MaxHandshakes = DefaultMaxHandshakes
	}
	if c.LockoutThreshold == 0 {
		c.LockoutThreshold = DefaultLockoutThreshold
	}
	if c.LockoutDuration == 0 {
		c.LockoutDuration = DefaultLockoutDuration
	}
	if c.LockoutHosts == 0 {
		c.LockoutHosts = DefaultLockoutHosts
	}
}

// Server authenticates incoming connections and serves their requests.
type Server struct {
	config     ServerConfig
	tcp        *transport.TCP
	sessions   *session.Table
	handshakes semaphore.Semaphore
	log        logging.LeveledLogger

	strikesMu sync.Mutex
	strikes   *lrucache.Cache

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server. It listens immediately but accepts nothing
// until Start.
func NewServer(config ServerConfig) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     config,
		sessions:   session.NewTable(config.MaxSessions),
		handshakes: semaphore.New(config.MaxHandshakes),
		strikes:    lrucache.NewWithLRU(config.LockoutDuration, time.Minute, config.LockoutHosts),
		ctx:        ctx,
		cancel:     cancel,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("gateway")
	}

	tcp, err := transport.NewTCP(transport.TCPConfig{
		Listener:      config.Listener,
		ListenAddr:    config.ListenAddr,
		Handler:       s.serveConn,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	s.tcp = tcp
	return s, nil
}

// Start begins accepting connections.
func (s *Server) Start() error {
	if err := s.tcp.Start(); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Infof("gateway %s ready (suite %s)",
			crypto.ShortFingerprint(s.config.Identity.Public), s.config.Suite.Name())
	}
	return nil
}

// Stop closes the listener and every session and waits for them to end.
func (s *Server) Stop() error {
	s.cancel()
	return s.tcp.Stop()
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.tcp.Addr()
}

// Fingerprint returns the fingerprint of the gateway identity.
func (s *Server) Fingerprint() string {
	return crypto.Fingerprint(s.config.Identity.Public)
}

// Sessions returns the connections currently being served, ordered by
// start time.
func (s *Server) Sessions() []session.Entry {
	return s.sessions.Snapshot()
}

// Strikes returns the number of remembered attack signals from host.
func (s *Server) Strikes(host string) int {
	s.strikesMu.Lock()
	defer s.strikesMu.Unlock()
	if v, ok := s.strikes.Get(host); ok {
		return v.(int)
	}
	return 0
}

// Locked reports whether connections from host are refused.
func (s *Server) Locked(host string) bool {
	return s.Strikes(host) >= s.config.LockoutThreshold
}

// Unlock forgets the strikes against host.
func (s *Server) Unlock(host string) {
	s.strikesMu.Lock()
	defer s.strikesMu.Unlock()
	s.strikes.Delete(host)
}

func (s *Server) strike(host string) int {
	s.strikesMu.Lock()
	defer s.strikesMu.Unlock()
	n := 1
	if v, ok := s.strikes.Get(host); ok {
		n += v.(int)
	}
	s.strikes.Set(host, n, lrucache.DefaultExpiration)
	return n
}

func remoteHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func (s *Server) serveConn(conn net.Conn) {
	id := uuid.NewString()
	host := remoteHost(conn.RemoteAddr())

	if s.Locked(host) {
		if s.config.Metrics != nil {
			s.config.Metrics.Lockouts.Inc()
		}
		if s.log != nil {
			s.log.Warnf("[%s] refusing %s: locked out", id, conn.RemoteAddr())
		}
		return
	}

	if err := s.sessions.Add(&session.Entry{
		ID:      id,
		Remote:  conn.RemoteAddr().String(),
		Started: time.Now(),
		Closer:  conn,
	}); err != nil {
		if s.log != nil {
			s.log.Warnf("[%s] refusing %s: %v", id, conn.RemoteAddr(), err)
		}
		return
	}
	defer s.sessions.Remove(id)

	sess, err := securechannel.New(securechannel.Config{
		Role:             session.RoleServer,
		Transport:        conn,
		Verifier:         s.config.Verifier,
		Identity:         &s.config.Identity,
		Suite:            s.config.Suite,
		HandshakeTimeout: s.config.HandshakeTimeout,
		CounterPolicy:    s.config.CounterPolicy,
		SequenceLimit:    s.config.SequenceLimit,
		LoggerFactory:    s.config.LoggerFactory,
	})
	if err != nil {
		if s.log != nil {
			s.log.Errorf("[%s] session: %v", id, err)
		}
		return
	}
	defer sess.Release()

	if !s.handshake(id, host, sess) {
		return
	}
	peer := sess.PeerFingerprint()
	if err := s.sessions.SetPeer(id, peer); err != nil {
		return
	}
	if m := s.config.Metrics; m != nil {
		m.ActiveSessions.Inc()
		defer m.ActiveSessions.Dec()
	}

	s.serveRequests(id, host, peer, sess)
}

// handshake runs the server handshake under the concurrency limit.
func (s *Server) handshake(id, host string, sess *securechannel.Session) bool {
	if err := s.handshakes.Acquire(s.ctx, 1); err != nil {
		return false
	}
	started := time.Now()
	err := sess.Authenticate(s.ctx)
	s.handshakes.Release(1)

	m := s.config.Metrics
	if err == nil {
		if m != nil {
			m.HandshakeSeconds.Observe(time.Since(started).Seconds())
		}
		if s.log != nil {
			s.log.Infof("[%s] authenticated %s from %s", id, sess.PeerFingerprint(), host)
		}
		return true
	}

	if m != nil {
		m.HandshakeFailures.WithLabelValues(securechannel.KindOf(err).String()).Inc()
	}
	s.failed(id, host, err)
	return false
}

func (s *Server) serveRequests(id, host, peer string, sess *securechannel.Session) {
	m := s.config.Metrics
	for {
		ctx, cancel := s.ctx, context.CancelFunc(func() {})
		if s.config.IdleTimeout > 0 {
			ctx, cancel = context.WithTimeout(s.ctx, s.config.IdleTimeout)
		}
		payload, err := sess.Receive(ctx)
		cancel()
		if err != nil {
			s.failed(id, host, err)
			return
		}
		if m != nil {
			m.Frames.WithLabelValues(DirectionIn).Inc()
		}

		resp := s.config.Handler.Handle(s.ctx, &Request{
			ConnID:  id,
			Peer:    peer,
			Payload: payload,
		})

		if err := sess.Send(s.ctx, resp); err != nil {
			s.failed(id, host, err)
			return
		}
		if m != nil {
			m.Frames.WithLabelValues(DirectionOut).Inc()
		}
	}
}

// failed logs a session failure and records attack signals against host.
func (s *Server) failed(id, host string, err error) {
	if securechannel.IsAttackSignal(err) {
		n := s.strike(host)
		if s.log != nil {
			s.log.Warnf("[%s] %s: %v (strike %d)", id, host, err, n)
			if n == s.config.LockoutThreshold {
				s.log.Warnf("locking out %s for %v", host, s.config.LockoutDuration)
			}
		}
		return
	}
	if s.log == nil {
		return
	}
	switch {
	case errors.Is(err, io.EOF), s.ctx.Err() != nil:
		s.log.Debugf("[%s] closed: %v", id, err)
	default:
		s.log.Infof("[%s] closed: %v", id, err)
	}
}
